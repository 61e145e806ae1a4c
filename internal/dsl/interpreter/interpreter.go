// Package interpreter ties the lexer, parser, and evaluator together into
// a single entry point for running DSL source.
package interpreter

import (
	"context"

	"github.com/fetchdsl/fetchdsl/internal/bridge"
	"github.com/fetchdsl/fetchdsl/internal/dsl/lexer"
	"github.com/fetchdsl/fetchdsl/internal/dsl/parser"
	"github.com/fetchdsl/fetchdsl/internal/evaluator"
	"github.com/fetchdsl/fetchdsl/internal/httpclient"
)

// Interpreter runs DSL source against a shared HTTP client and host-code
// bridge.
type Interpreter struct {
	client *httpclient.Client
	eval   *evaluator.Evaluator
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// New builds an Interpreter. client is owned by the caller — the
// Interpreter never shuts it down, since the same client is typically
// shared across many Interpreter.Run calls.
func New(client *httpclient.Client, br bridge.Bridge, opts ...evaluator.Option) *Interpreter {
	return &Interpreter{
		client: client,
		eval:   evaluator.New(client, br, opts...),
	}
}

// Run lexes, parses, and evaluates source, returning the value of its
// final statement.
func (i *Interpreter) Run(ctx context.Context, source string, globalEnv, localEnv evaluator.Env) (any, error) {
	l := lexer.New(source)
	p, err := parser.New(l)
	if err != nil {
		return nil, err
	}
	program, err := p.Parse()
	if err != nil {
		return nil, err
	}
	return i.eval.Eval(ctx, program, globalEnv, localEnv)
}
