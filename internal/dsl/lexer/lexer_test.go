package lexer

import (
	"testing"

	"github.com/fetchdsl/fetchdsl/internal/dsl/token"
)

func TestKeywordsAndWords(t *testing.T) {
	input := `let x = get from send wait process whose as then otherwise with timeout retry sleep set post`

	expected := []token.Type{
		token.LET, token.WORD, token.EQ, token.GET, token.WORD, token.SEND,
		token.WAIT, token.PROCESS, token.WHOSE, token.AS, token.THEN,
		token.OTHERWISE, token.WITH, token.TIMEOUT, token.RETRY, token.SLEEP,
		token.SET, token.POST, token.EOF,
	}

	l := New(input)
	for i, exp := range expected {
		tok, err := l.Next()
		if err != nil {
			t.Fatalf("test[%d]: unexpected error: %v", i, err)
		}
		if tok.Type != exp {
			t.Fatalf("test[%d] - wrong type. expected=%s, got=%s (literal=%q)", i, exp, tok.Type, tok.Literal)
		}
	}
}

func TestQuotedStringsLexAsWord(t *testing.T) {
	input := `'https://example.com/page' "double quoted"`
	l := New(input)

	tok1, err := l.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok1.Type != token.WORD || tok1.Literal != `'https://example.com/page'` {
		t.Fatalf("got %s(%q)", tok1.Type, tok1.Literal)
	}

	tok2, err := l.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok2.Type != token.WORD || tok2.Literal != `"double quoted"` {
		t.Fatalf("got %s(%q)", tok2.Type, tok2.Literal)
	}
}

func TestQuotedStringWithEscapedQuote(t *testing.T) {
	input := `'it\'s here'`
	l := New(input)
	tok, err := l.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `'it\'s here'`
	if tok.Literal != want {
		t.Fatalf("got %q, want %q", tok.Literal, want)
	}
}

func TestUnterminatedStringIsError(t *testing.T) {
	l := New(`'unterminated`)
	if _, err := l.Next(); err == nil {
		t.Fatal("expected an error for an unterminated string")
	}
}

func TestBlockCapturesVerbatimText(t *testing.T) {
	input := "{{\n  return response.status\n}}"
	l := New(input)
	tok, err := l.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.Type != token.BLOCK {
		t.Fatalf("expected BLOCK, got %s", tok.Type)
	}
	want := "\n  return response.status\n"
	if tok.Literal != want {
		t.Fatalf("got %q, want %q", tok.Literal, want)
	}
}

func TestUnterminatedBlockIsError(t *testing.T) {
	l := New(`{{ return 1`)
	if _, err := l.Next(); err == nil {
		t.Fatal("expected an error for an unterminated block")
	}
}

func TestLineNumbersTrackNewlines(t *testing.T) {
	input := "let x\n= get\nfrom 'a'"
	l := New(input)

	tok, _ := l.Next() // let, line 1
	if tok.Pos.Line != 1 {
		t.Fatalf("expected line 1, got %d", tok.Pos.Line)
	}
	tok, _ = l.Next() // x, line 1
	if tok.Pos.Line != 1 {
		t.Fatalf("expected line 1, got %d", tok.Pos.Line)
	}
	tok, _ = l.Next() // =, line 2
	if tok.Pos.Line != 2 {
		t.Fatalf("expected line 2, got %d", tok.Pos.Line)
	}
	tok, _ = l.Next() // get, line 2
	if tok.Pos.Line != 2 {
		t.Fatalf("expected line 2, got %d", tok.Pos.Line)
	}
	tok, _ = l.Next() // from, line 3
	if tok.Pos.Line != 3 {
		t.Fatalf("expected line 3, got %d", tok.Pos.Line)
	}
}

func TestRepeatedEOF(t *testing.T) {
	l := New(``)
	for i := 0; i < 3; i++ {
		tok, err := l.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tok.Type != token.EOF {
			t.Fatalf("call %d: expected EOF, got %s", i, tok.Type)
		}
	}
}
