// Package parser implements a single-token-lookahead, keyword-directed
// recursive-descent parser for the fetch-pipeline DSL.
package parser

import (
	"regexp"
	"strings"

	"github.com/fetchdsl/fetchdsl/internal/dsl/ast"
	"github.com/fetchdsl/fetchdsl/internal/dsl/dslerrors"
	"github.com/fetchdsl/fetchdsl/internal/dsl/lexer"
	"github.com/fetchdsl/fetchdsl/internal/dsl/token"
)

// testOpTable maps the longest-matched English phrase to its evaluator
// operator token, in the order the parser's growing-string match tries
// them.
var testOpTable = map[string]string{
	" equals":          "==",
	" does not equal":  "!=",
	" contains":        "in",
	" does not contain": "not in",
}

// Parser turns a token stream into a Program.
type Parser struct {
	l   *lexer.Lexer
	cur token.Token
}

// New primes the parser with the first token of l.
func New(l *lexer.Lexer) (*Parser, error) {
	p := &Parser{l: l}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Parser) advance() error {
	t, err := p.l.Next()
	if err != nil {
		return &dslerrors.LexerError{Message: err.Error(), Cause: err}
	}
	p.cur = t
	return nil
}

func (p *Parser) line() int {
	if p.cur.Type == token.EOF {
		return 0
	}
	return p.cur.Pos.Line
}

// requireCur checks the current token's literal text against pattern
// (compiled as a regexp, per the original grammar's substring-match
// convention).
func (p *Parser) requireCur(pattern string) error {
	return p.requireToken(p.cur, pattern)
}

func (p *Parser) requireToken(tok token.Token, pattern string) error {
	if tok.Type == token.EOF {
		return &dslerrors.ParserError{Expected: pattern, Line: 0}
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return &dslerrors.ParserError{Custom: "invalid grammar pattern " + pattern, Line: tok.Pos.Line}
	}
	if !re.MatchString(tok.Literal) {
		return &dslerrors.ParserError{Expected: pattern, Got: tok.Literal, Line: tok.Pos.Line}
	}
	return nil
}

// Parse consumes the whole token stream and returns a Program.
func (p *Parser) Parse() (*ast.Program, error) {
	prog := &ast.Program{}
	for p.cur.Type != token.EOF {
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		prog.Statements = append(prog.Statements, stmt)
	}
	return prog, nil
}

func (p *Parser) parseStmt() (ast.Statement, error) {
	if p.cur.Type == token.LET {
		return p.parseLetStmt()
	}
	return p.parseExprStmt()
}

func (p *Parser) parseLetStmt() (ast.Statement, error) {
	if err := p.advance(); err != nil { // consume "let"
		return nil, err
	}
	if p.cur.Type == token.EOF {
		return nil, &dslerrors.ParserError{Custom: "identifier required", Line: 0}
	}
	name := p.cur.Literal
	if err := p.advance(); err != nil { // consume identifier
		return nil, err
	}
	if err := p.requireCur("="); err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil { // consume "="
		return nil, err
	}
	expr, err := p.parseExpr(false)
	if err != nil {
		return nil, err
	}
	return &ast.LetStmt{Name: name, Expr: expr}, nil
}

func (p *Parser) parseExprStmt() (ast.Statement, error) {
	expr, err := p.parseExpr(false)
	if err != nil {
		return nil, err
	}
	return &ast.ExprStmt{Expr: expr}, nil
}

func (p *Parser) parseExpr(implicit bool) (ast.Expression, error) {
	switch p.cur.Type {
	case token.GET, token.POST:
		return p.parseRequestExpr(implicit)
	case token.SEND:
		return p.parseFutureExpr(implicit)
	case token.WAIT:
		return p.parseResponseExpr(implicit)
	case token.PROCESS:
		return p.parseResultExpr(implicit)
	case token.THEN:
		return p.parseThenExpr()
	default:
		return p.parseIdentifierExpr()
	}
}

func (p *Parser) parseIdentifierExpr() (ast.Expression, error) {
	if p.cur.Type == token.EOF {
		return nil, &dslerrors.ParserError{Custom: "expression required", Line: 0}
	}
	name := p.cur.Literal
	if err := p.advance(); err != nil {
		return nil, err
	}
	return &ast.IdentifierExpr{Ident: &ast.Identifier{Name: name}}, nil
}

func (p *Parser) parseThenExpr() (ast.Expression, error) {
	if err := p.advance(); err != nil { // consume "then"
		return nil, err
	}
	inner, err := p.parseExpr(true)
	if err != nil {
		return nil, err
	}
	return &ast.ThenExpr{Expr: inner}, nil
}

func (p *Parser) parseFutureExpr(implicit bool) (ast.Expression, error) {
	if err := p.advance(); err != nil { // consume "send"
		return nil, err
	}
	if implicit {
		return &ast.FutureExpr{Expr: &ast.PlaceholderExpr{}}, nil
	}
	inner, err := p.parseExpr(false)
	if err != nil {
		return nil, err
	}
	return &ast.FutureExpr{Expr: inner}, nil
}

func (p *Parser) parseResponseExpr(implicit bool) (ast.Expression, error) {
	if err := p.advance(); err != nil { // consume "wait"
		return nil, err
	}
	if implicit {
		return &ast.ResponseExpr{Expr: &ast.PlaceholderExpr{}}, nil
	}
	inner, err := p.parseExpr(false)
	if err != nil {
		return nil, err
	}
	return &ast.ResponseExpr{Expr: inner}, nil
}

func (p *Parser) parseResultExpr(implicit bool) (ast.Expression, error) {
	if err := p.advance(); err != nil { // consume "process"
		return nil, err
	}
	var resp ast.Expression
	if implicit {
		resp = &ast.PlaceholderExpr{}
	} else {
		var err error
		resp, err = p.parseExpr(false)
		if err != nil {
			return nil, err
		}
	}
	var branches []*ast.Branch
	for p.cur.Type == token.WHOSE || p.cur.Type == token.OTHERWISE || p.cur.Type == token.AS {
		b, err := p.parseBranch()
		if err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	return &ast.ResultExpr{Resp: resp, Branches: branches}, nil
}

// cacheUntilKeyword buffers tokens (without consuming the stopping token)
// until EOF or a keyword token is reached.
func (p *Parser) cacheUntilKeyword() ([]token.Token, error) {
	var cache []token.Token
	for p.cur.Type != token.EOF && !token.IsKeyword(p.cur.Type) {
		cache = append(cache, p.cur)
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return cache, nil
}

// cacheUntilType buffers tokens until EOF or a token of type tt is reached.
func (p *Parser) cacheUntilType(tt token.Type) ([]token.Token, error) {
	var cache []token.Token
	for p.cur.Type != token.EOF && p.cur.Type != tt {
		cache = append(cache, p.cur)
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return cache, nil
}

func joinLiterals(toks []token.Token) string {
	parts := make([]string, len(toks))
	for i, t := range toks {
		parts[i] = t.Literal
	}
	return strings.Join(parts, " ")
}

func (p *Parser) parseRequestExpr(implicit bool) (ast.Expression, error) {
	method := p.cur.Literal
	isGet := p.cur.Type == token.GET
	if err := p.advance(); err != nil { // consume get/post
		return nil, err
	}
	if isGet {
		if err := p.requireCur("from"); err != nil {
			return nil, err
		}
	} else {
		if err := p.requireCur("to"); err != nil {
			return nil, err
		}
	}
	if err := p.advance(); err != nil { // consume from/to
		return nil, err
	}

	var urlNode ast.Node
	if implicit {
		urlNode = &ast.Placeholder{}
	} else {
		cache, err := p.cacheUntilKeyword()
		if err != nil {
			return nil, err
		}
		if len(cache) == 0 {
			return nil, &dslerrors.ParserError{Custom: "url required", Line: p.line()}
		}
		urlNode = &ast.HostExpr{Text: joinLiterals(cache)}
	}

	var timeoutNode ast.Node = &ast.Empty{}
	var retryNode ast.Node = &ast.Empty{}
	var retryIntervalNode ast.Node = &ast.Empty{}
	var sleepNode ast.Node = &ast.Empty{}
	var setList []*ast.Set

	if p.cur.Type == token.WITH {
		if err := p.advance(); err != nil { // consume "with"
			return nil, err
		}
		lastKw := p.cur.Type
		if err := p.advance(); err != nil { // consume first clause keyword
			return nil, err
		}
		for {
			cache, err := p.cacheUntilKeyword()
			if err != nil {
				return nil, err
			}
			switch lastKw {
			case token.TIMEOUT:
				ti, err := p.parseTimeInterval(cache)
				if err != nil {
					return nil, err
				}
				timeoutNode = ti
			case token.RETRY:
				r, ri, err := p.parseRetry(cache)
				if err != nil {
					return nil, err
				}
				retryNode, retryIntervalNode = r, ri
			case token.SLEEP:
				si, err := p.parseSleep(cache)
				if err != nil {
					return nil, err
				}
				sleepNode = si
			case token.SET:
				s, err := p.parseSet(cache)
				if err != nil {
					return nil, err
				}
				setList = append(setList, s)
			}
			kw := p.cur.Type
			if kw == token.TIMEOUT || kw == token.RETRY || kw == token.SLEEP || kw == token.SET {
				lastKw = kw
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
	}

	return &ast.RequestExpr{
		Method:        &ast.Text{Value: method},
		URL:           urlNode,
		Timeout:       timeoutNode,
		Retry:         retryNode,
		RetryInterval: retryIntervalNode,
		Sleep:         sleepNode,
		SetList:       setList,
	}, nil
}

func (p *Parser) parseTimeInterval(cache []token.Token) (*ast.TimeInterval, error) {
	if len(cache) < 2 {
		return nil, &dslerrors.ParserError{Expected: "second|minute", Line: p.line()}
	}
	if err := p.requireToken(cache[1], "second|minute"); err != nil {
		return nil, err
	}
	mult := 1
	if strings.Contains(cache[1].Literal, "minute") {
		mult = 60
	}
	return &ast.TimeInterval{Num: &ast.HostExpr{Text: cache[0].Literal}, Multiplier: mult}, nil
}

func (p *Parser) parseRetry(cache []token.Token) (retry ast.Node, retryInterval ast.Node, err error) {
	retry = &ast.Empty{}
	retryInterval = &ast.Empty{}
	for len(cache) > 0 {
		if cache[0].Literal == "at" {
			if len(cache) < 4 {
				return nil, nil, &dslerrors.ParserError{Expected: "second|minute", Line: p.line()}
			}
			ti, err := p.parseTimeInterval(cache[1:3])
			if err != nil {
				return nil, nil, err
			}
			retryInterval = ti
			if err := p.requireToken(cache[3], "apart"); err != nil {
				return nil, nil, err
			}
			cache = cache[4:]
			continue
		}
		if len(cache) < 2 {
			return nil, nil, &dslerrors.ParserError{Expected: "time", Line: p.line()}
		}
		retry = &ast.HostExpr{Text: cache[0].Literal}
		if err := p.requireToken(cache[1], "time"); err != nil {
			return nil, nil, err
		}
		cache = cache[2:]
	}
	return retry, retryInterval, nil
}

func (p *Parser) parseSleep(cache []token.Token) (*ast.TimeInterval, error) {
	if len(cache) < 4 {
		return nil, &dslerrors.ParserError{Expected: "per", Line: p.line()}
	}
	ti, err := p.parseTimeInterval(cache[:2])
	if err != nil {
		return nil, err
	}
	if err := p.requireToken(cache[2], "per"); err != nil {
		return nil, err
	}
	if err := p.requireToken(cache[3], "request"); err != nil {
		return nil, err
	}
	return ti, nil
}

func (p *Parser) parseSet(cache []token.Token) (*ast.Set, error) {
	if len(cache) < 4 {
		return nil, &dslerrors.ParserError{Expected: "equals", Line: p.line()}
	}
	key := &ast.Text{Value: cache[0].Literal}
	if err := p.requireToken(cache[1], "equals"); err != nil {
		return nil, err
	}
	value := &ast.HostExpr{Text: joinLiterals(cache[2 : len(cache)-2])}
	if err := p.requireToken(cache[len(cache)-2], "in"); err != nil {
		return nil, err
	}
	field := &ast.Text{Value: cache[len(cache)-1].Literal}
	return &ast.Set{Key: key, Value: value, Field: field}, nil
}

func (p *Parser) parseAction() (ast.Node, error) {
	if p.cur.Type == token.BLOCK {
		text := p.cur.Literal
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.HostBlock{Text: text}, nil
	}
	if p.cur.Type == token.EOF {
		return nil, &dslerrors.ParserError{Custom: "action required", Line: 0}
	}
	name := p.cur.Literal
	if err := p.advance(); err != nil {
		return nil, err
	}
	return &ast.Identifier{Name: name}, nil
}

func (p *Parser) parseBranch() (*ast.Branch, error) {
	if p.cur.Type == token.OTHERWISE {
		if err := p.advance(); err != nil { // consume "otherwise"
			return nil, err
		}
	}

	if p.cur.Type == token.AS {
		if err := p.advance(); err != nil { // consume "as"
			return nil, err
		}
		if p.cur.Type == token.EOF {
			return nil, &dslerrors.ParserError{Custom: "content type required", Line: 0}
		}
		contentType := &ast.Text{Value: p.cur.Literal}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.requireCur("with"); err != nil {
			return nil, err
		}
		if err := p.advance(); err != nil { // consume "with"
			return nil, err
		}
		action, err := p.parseAction()
		if err != nil {
			return nil, err
		}
		return &ast.Branch{Attr: &ast.Empty{}, TestOp: &ast.Empty{}, TestObj: &ast.Empty{}, ContentType: contentType, Action: action}, nil
	}

	if err := p.requireCur("whose"); err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil { // consume "whose"
		return nil, err
	}
	if p.cur.Type == token.EOF {
		return nil, &dslerrors.ParserError{Custom: "attribute required", Line: 0}
	}
	attr := &ast.Text{Value: p.cur.Literal}
	if err := p.advance(); err != nil {
		return nil, err
	}

	var mapped string
	accum := ""
	for {
		if p.cur.Type == token.EOF {
			return nil, &dslerrors.ParserError{Custom: "test operator required", Line: 0}
		}
		accum += " " + p.cur.Literal
		if m, ok := testOpTable[accum]; ok {
			mapped = m
			if err := p.advance(); err != nil {
				return nil, err
			}
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	testOp := &ast.Text{Value: mapped}

	cache, err := p.cacheUntilType(token.AS)
	if err != nil {
		return nil, err
	}
	testObj := &ast.HostExpr{Text: joinLiterals(cache)}

	if err := p.requireCur("as"); err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil { // consume "as"
		return nil, err
	}
	if p.cur.Type == token.EOF {
		return nil, &dslerrors.ParserError{Custom: "content type required", Line: 0}
	}
	contentType := &ast.Text{Value: p.cur.Literal}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.requireCur("with"); err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil { // consume "with"
		return nil, err
	}
	action, err := p.parseAction()
	if err != nil {
		return nil, err
	}
	return &ast.Branch{Attr: attr, TestOp: testOp, TestObj: testObj, ContentType: contentType, Action: action}, nil
}
