package evaluator

import (
	"context"

	"github.com/fetchdsl/fetchdsl/internal/dsl/ast"
	"github.com/fetchdsl/fetchdsl/internal/dsl/dslerrors"
	"github.com/fetchdsl/fetchdsl/internal/httpclient"
)

func (s *evalState) evalResultExpr(ctx context.Context, e *ast.ResultExpr) (any, error) {
	v, err := s.evalExpr(ctx, e.Resp)
	if err != nil {
		return nil, err
	}
	switch resp := v.(type) {
	case *httpclient.Response:
		return s.evalResultForResponse(ctx, resp, e.Branches)
	case []*httpclient.Response:
		results := make([]any, len(resp))
		for i, r := range resp {
			value, err := s.evalResultForResponse(ctx, r, e.Branches)
			if err != nil {
				return nil, err
			}
			results[i] = value
		}
		return results, nil
	default:
		return nil, &dslerrors.EvaluatorError{Message: "process requires a response value"}
	}
}

// evalResultForResponse dispatches branches against a single response,
// passing it through unchanged when nothing matches.
func (s *evalState) evalResultForResponse(ctx context.Context, resp *httpclient.Response, branches []*ast.Branch) (any, error) {
	for _, b := range branches {
		matched, value, err := s.evalBranch(ctx, resp, b)
		if err != nil {
			return nil, err
		}
		if matched {
			return value, nil
		}
	}
	// no branch matched (or none were written): pass the response through
	return resp, nil
}

// evalBranch reports whether b matches resp and, if so, the value its
// action produced. A non-nil error here is fatal (malformed branch); an
// error raised by the action itself is captured in value as a
// *dslerrors.BranchActionError rather than returned.
func (s *evalState) evalBranch(ctx context.Context, resp *httpclient.Response, b *ast.Branch) (bool, any, error) {
	matched, err := s.branchMatches(ctx, resp, b)
	if err != nil {
		return false, nil, err
	}
	if !matched {
		return false, nil, nil
	}

	payload, err := branchPayload(resp, b.ContentType.Value)
	if err != nil {
		return false, nil, err
	}

	value, actionErr := s.evalBranchAction(b.Action, resp, payload)
	if actionErr != nil {
		return true, &dslerrors.BranchActionError{Cause: actionErr}, nil
	}
	return true, value, nil
}

func (s *evalState) branchMatches(ctx context.Context, resp *httpclient.Response, b *ast.Branch) (bool, error) {
	if _, ok := b.Attr.(*ast.Empty); ok {
		return true, nil
	}
	attrName, ok := b.Attr.(*ast.Text)
	if !ok {
		return false, &dslerrors.EvaluatorError{Message: "malformed branch attribute"}
	}
	attrVal, err := responseAttr(resp, attrName.Value)
	if err != nil {
		return false, err
	}
	testObjVal, err := s.evalNode(ctx, b.TestObj)
	if err != nil {
		return false, err
	}
	opText, ok := b.TestOp.(*ast.Text)
	if !ok {
		return false, &dslerrors.EvaluatorError{Message: "malformed branch test operator"}
	}
	return evalTestOp(opText.Value, testObjVal, attrVal), nil
}

func (s *evalState) evalBranchAction(action ast.Node, resp *httpclient.Response, payload any) (any, error) {
	switch a := action.(type) {
	case *ast.HostBlock:
		return s.bridge.EvalBlock(a.Text, resp, payload)
	case *ast.Identifier:
		v, ok := s.lookup(a.Name)
		if !ok {
			return nil, &dslerrors.EvaluatorError{Message: "unknown action " + a.Name}
		}
		switch fn := v.(type) {
		case BranchAction:
			return fn(resp, payload)
		case func(*httpclient.Response, any) (any, error):
			return fn(resp, payload)
		default:
			return nil, &dslerrors.EvaluatorError{Message: "action " + a.Name + " is not callable"}
		}
	default:
		return nil, &dslerrors.EvaluatorError{Message: "malformed branch action"}
	}
}

// responseAttr resolves the handful of response attributes a branch test
// may reference.
func responseAttr(resp *httpclient.Response, name string) (any, error) {
	switch name {
	case "status":
		return resp.Status(), nil
	case "reason":
		return resp.Reason(), nil
	case "url":
		return resp.URL().String(), nil
	case "content":
		return resp.Content(), nil
	default:
		return nil, &dslerrors.EvaluatorError{Message: "unknown response attribute " + name}
	}
}

// branchPayload extracts the value an action receives as its second
// argument, per the branch's declared content type.
func branchPayload(resp *httpclient.Response, contentType string) (any, error) {
	switch contentType {
	case "bytes":
		return resp.Content(), nil
	case "str":
		return resp.Text(nil)
	case "json":
		return resp.JSON()
	case "html":
		return resp.HTML()
	case "xml":
		return resp.XML()
	default:
		return nil, &dslerrors.EvaluatorError{Message: "unknown content type " + contentType}
	}
}

// evalTestOp applies op with the reversed operand order the grammar reads
// naturally in English ("whose url contains 'x'" tests whether testObj
// ('x') is found in attrVal (the url), not the other way around).
func evalTestOp(op string, testObjVal, attrVal any) bool {
	switch op {
	case "==":
		return equalValue(attrVal, testObjVal)
	case "!=":
		return !equalValue(attrVal, testObjVal)
	case "in":
		return containsValue(attrVal, testObjVal)
	case "not in":
		return !containsValue(attrVal, testObjVal)
	default:
		return false
	}
}
