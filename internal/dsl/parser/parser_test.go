package parser

import (
	"testing"

	"github.com/fetchdsl/fetchdsl/internal/dsl/ast"
	"github.com/fetchdsl/fetchdsl/internal/dsl/lexer"
)

func parseProgram(t *testing.T, src string) *ast.Program {
	t.Helper()
	p, err := New(lexer.New(src))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	prog, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return prog
}

func TestParseLetAndRequestExpr(t *testing.T) {
	prog := parseProgram(t, `let page = get from 'https://example.com'`)
	if len(prog.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(prog.Statements))
	}
	let, ok := prog.Statements[0].(*ast.LetStmt)
	if !ok {
		t.Fatalf("expected *ast.LetStmt, got %T", prog.Statements[0])
	}
	if let.Name != "page" {
		t.Fatalf("expected name %q, got %q", "page", let.Name)
	}
	req, ok := let.Expr.(*ast.RequestExpr)
	if !ok {
		t.Fatalf("expected *ast.RequestExpr, got %T", let.Expr)
	}
	if req.Method.Value != "get" {
		t.Fatalf("expected method get, got %q", req.Method.Value)
	}
	url, ok := req.URL.(*ast.HostExpr)
	if !ok || url.Text != "'https://example.com'" {
		t.Fatalf("unexpected url node: %#v", req.URL)
	}
	if _, ok := req.Timeout.(*ast.Empty); !ok {
		t.Fatalf("expected empty timeout, got %#v", req.Timeout)
	}
}

func TestParseRequestWithClauses(t *testing.T) {
	src := `get from 'https://example.com' with timeout 5 second retry 3 time set 'k' equals 'v' in query`
	prog := parseProgram(t, src)
	req := prog.Statements[0].(*ast.ExprStmt).Expr.(*ast.RequestExpr)

	ti, ok := req.Timeout.(*ast.TimeInterval)
	if !ok {
		t.Fatalf("expected TimeInterval, got %#v", req.Timeout)
	}
	if ti.Multiplier != 1 {
		t.Fatalf("expected multiplier 1 (seconds), got %d", ti.Multiplier)
	}

	retry, ok := req.Retry.(*ast.HostExpr)
	if !ok || retry.Text != "3" {
		t.Fatalf("expected retry count 3, got %#v", req.Retry)
	}

	if len(req.SetList) != 1 {
		t.Fatalf("expected 1 set clause, got %d", len(req.SetList))
	}
	set := req.SetList[0]
	if set.Key.Value != "'k'" || set.Field.Value != "query" {
		t.Fatalf("unexpected set clause: %#v", set)
	}
}

func TestParseRetryAtIntervalApart(t *testing.T) {
	src := `get from 'https://x' with retry 2 time at 5 second apart`
	prog := parseProgram(t, src)
	req := prog.Statements[0].(*ast.ExprStmt).Expr.(*ast.RequestExpr)

	retry, ok := req.Retry.(*ast.HostExpr)
	if !ok || retry.Text != "2" {
		t.Fatalf("expected retry count 2, got %#v", req.Retry)
	}
	ri, ok := req.RetryInterval.(*ast.TimeInterval)
	if !ok {
		t.Fatalf("expected RetryInterval TimeInterval, got %#v", req.RetryInterval)
	}
	if ri.Multiplier != 1 {
		t.Fatalf("expected seconds multiplier, got %d", ri.Multiplier)
	}
}

func TestParseSendWaitProcessChain(t *testing.T) {
	src := "let page = get from 'https://x'\n" +
		"then send\n" +
		"then wait\n" +
		"then process whose status equals '200' as json with handler"
	prog := parseProgram(t, src)
	if len(prog.Statements) != 4 {
		t.Fatalf("expected 4 statements, got %d", len(prog.Statements))
	}
	last, ok := prog.Statements[3].(*ast.ExprStmt)
	if !ok {
		t.Fatalf("expected *ast.ExprStmt, got %T", prog.Statements[3])
	}
	then, ok := last.Expr.(*ast.ThenExpr)
	if !ok {
		t.Fatalf("expected *ast.ThenExpr, got %T", last.Expr)
	}
	result, ok := then.Expr.(*ast.ResultExpr)
	if !ok {
		t.Fatalf("expected ResultExpr, got %T", then.Expr)
	}
	if _, ok := result.Resp.(*ast.PlaceholderExpr); !ok {
		t.Fatalf("expected implicit placeholder response, got %T", result.Resp)
	}
	if len(result.Branches) != 1 {
		t.Fatalf("expected 1 branch, got %d", len(result.Branches))
	}
	b := result.Branches[0]
	attr, ok := b.Attr.(*ast.Text)
	if !ok || attr.Value != "status" {
		t.Fatalf("unexpected attr: %#v", b.Attr)
	}
	op, ok := b.TestOp.(*ast.Text)
	if !ok || op.Value != "==" {
		t.Fatalf("unexpected op: %#v", b.TestOp)
	}
	if b.ContentType.Value != "json" {
		t.Fatalf("unexpected content type: %q", b.ContentType.Value)
	}
	action, ok := b.Action.(*ast.Identifier)
	if !ok || action.Name != "handler" {
		t.Fatalf("unexpected action: %#v", b.Action)
	}
}

func TestParseOtherwiseBranch(t *testing.T) {
	src := `process response otherwise as bytes with fallback`
	prog := parseProgram(t, src)
	result := prog.Statements[0].(*ast.ExprStmt).Expr.(*ast.ResultExpr)
	if len(result.Branches) != 1 {
		t.Fatalf("expected 1 branch, got %d", len(result.Branches))
	}
	b := result.Branches[0]
	if _, ok := b.Attr.(*ast.Empty); !ok {
		t.Fatalf("expected unconditional branch, got attr %#v", b.Attr)
	}
}

func TestParseContainsOperator(t *testing.T) {
	src := `process response whose url contains 'login' as str with onLogin`
	prog := parseProgram(t, src)
	result := prog.Statements[0].(*ast.ExprStmt).Expr.(*ast.ResultExpr)
	op := result.Branches[0].TestOp.(*ast.Text)
	if op.Value != "in" {
		t.Fatalf("expected 'in', got %q", op.Value)
	}
}

func TestParseMissingURLIsError(t *testing.T) {
	p, err := New(lexer.New(`get from`))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Parse(); err == nil {
		t.Fatal("expected an error for a missing url")
	}
}

func TestParseSleepClause(t *testing.T) {
	src := `get from 'https://x' with sleep 2 minute per request`
	prog := parseProgram(t, src)
	req := prog.Statements[0].(*ast.ExprStmt).Expr.(*ast.RequestExpr)
	sleep, ok := req.Sleep.(*ast.TimeInterval)
	if !ok {
		t.Fatalf("expected TimeInterval, got %#v", req.Sleep)
	}
	if sleep.Multiplier != 60 {
		t.Fatalf("expected minute multiplier 60, got %d", sleep.Multiplier)
	}
}
