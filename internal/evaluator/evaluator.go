// Package evaluator walks a parsed DSL Program, orchestrating the
// httpclient and the host-code bridge: it builds requests, submits and
// awaits them, and dispatches a ResultExpr's branches against the
// responses that come back.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fetchdsl/fetchdsl/internal/bridge"
	"github.com/fetchdsl/fetchdsl/internal/dsl/ast"
	"github.com/fetchdsl/fetchdsl/internal/dsl/dslerrors"
	"github.com/fetchdsl/fetchdsl/internal/httpclient"
)

// Env is a flat name-to-value environment, one of the evaluator's three
// layers (let, local, global).
type Env map[string]any

// BranchAction is the Go-callable shape a bare identifier action must
// resolve to in the environment: it receives the response and the
// extracted payload (bytes/string/json/*goquery.Document/*httpclient.XMLNode
// depending on the branch's content type) and returns a result.
type BranchAction func(resp *httpclient.Response, obj any) (any, error)

// Evaluator evaluates Programs against a shared client and bridge.
type Evaluator struct {
	client *httpclient.Client
	bridge bridge.Bridge
	logger *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

func WithLogger(l *slog.Logger) Option { return func(e *Evaluator) { e.logger = l } }

// New builds an Evaluator over client, using bridge to evaluate host-code
// fragments.
func New(client *httpclient.Client, br bridge.Bridge, opts ...Option) *Evaluator {
	e := &Evaluator{client: client, bridge: br, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// evalState holds the three layered environments and the _result slot for
// one Eval call. It is never reused across calls or shared across
// goroutines.
type evalState struct {
	client *httpclient.Client
	bridge bridge.Bridge
	logger *slog.Logger

	global Env
	local  Env
	let    Env
	result any
}

// Eval runs program to completion and returns the value of its final
// statement (the evaluator's _result after the last statement runs).
func (e *Evaluator) Eval(ctx context.Context, program *ast.Program, globalEnv, localEnv Env) (any, error) {
	s := &evalState{
		client: e.client,
		bridge: e.bridge,
		logger: e.logger,
		global: globalEnv,
		local:  localEnv,
		let:    Env{},
	}
	for _, stmt := range program.Statements {
		v, err := s.evalStmt(ctx, stmt)
		if err != nil {
			return nil, err
		}
		s.result = v
	}
	return s.result, nil
}

func (s *evalState) lookup(name string) (any, bool) {
	if v, ok := s.let[name]; ok {
		return v, true
	}
	if v, ok := s.local[name]; ok {
		return v, true
	}
	if v, ok := s.global[name]; ok {
		return v, true
	}
	return nil, false
}

// hostEnv flattens the three layers (let overrides local overrides
// global) into the single view the host bridge expects.
func (s *evalState) hostEnv() bridge.Env {
	out := bridge.Env{}
	for k, v := range s.global {
		out[k] = v
	}
	for k, v := range s.local {
		out[k] = v
	}
	for k, v := range s.let {
		out[k] = v
	}
	return out
}

func (s *evalState) evalStmt(ctx context.Context, stmt ast.Statement) (any, error) {
	switch st := stmt.(type) {
	case *ast.LetStmt:
		v, err := s.evalExpr(ctx, st.Expr)
		if err != nil {
			return nil, err
		}
		s.let[st.Name] = v
		return v, nil
	case *ast.ExprStmt:
		return s.evalExpr(ctx, st.Expr)
	default:
		return nil, &dslerrors.EvaluatorError{Message: fmt.Sprintf("unhandled statement %T", stmt)}
	}
}

func (s *evalState) evalExpr(ctx context.Context, expr ast.Expression) (any, error) {
	switch e := expr.(type) {
	case *ast.IdentifierExpr:
		return s.evalIdentifier(e.Ident)
	case *ast.PlaceholderExpr:
		return s.result, nil
	case *ast.RequestExpr:
		return s.evalRequestExpr(ctx, e)
	case *ast.FutureExpr:
		return s.evalFutureExpr(ctx, e)
	case *ast.ResponseExpr:
		return s.evalResponseExpr(ctx, e)
	case *ast.ResultExpr:
		return s.evalResultExpr(ctx, e)
	case *ast.ThenExpr:
		return s.evalExpr(ctx, e.Expr)
	default:
		return nil, &dslerrors.EvaluatorError{Message: fmt.Sprintf("unhandled expression %T", expr)}
	}
}

func (s *evalState) evalIdentifier(id *ast.Identifier) (any, error) {
	if v, ok := s.lookup(id.Name); ok {
		return v, nil
	}
	return nil, &dslerrors.EvaluatorError{Message: fmt.Sprintf("unknown identifier %q", id.Name)}
}

// evalNode evaluates a generic AST slot node (used for URL, timeout,
// retry, retry_interval, sleep, and Set values).
func (s *evalState) evalNode(ctx context.Context, n ast.Node) (any, error) {
	switch v := n.(type) {
	case *ast.Empty:
		return nil, nil
	case *ast.Placeholder:
		return s.result, nil
	case *ast.Identifier:
		return s.evalIdentifier(v)
	case *ast.HostExpr:
		val, err := s.bridge.EvalExpr(v.Text, s.hostEnv())
		if err != nil {
			return nil, &dslerrors.EvaluatorError{Message: "host expression " + v.Text, Cause: err}
		}
		return val, nil
	case *ast.Text:
		return v.Value, nil
	case *ast.TimeInterval:
		return s.evalTimeInterval(ctx, v)
	default:
		return nil, &dslerrors.EvaluatorError{Message: fmt.Sprintf("cannot evaluate node %T", n)}
	}
}

func (s *evalState) evalTimeInterval(ctx context.Context, v *ast.TimeInterval) (time.Duration, error) {
	numVal, err := s.evalNode(ctx, v.Num)
	if err != nil {
		return 0, err
	}
	n, err := toFloat(numVal)
	if err != nil {
		return 0, &dslerrors.EvaluatorError{Message: "time interval magnitude", Cause: err}
	}
	return time.Duration(n*float64(v.Multiplier)) * time.Second, nil
}
