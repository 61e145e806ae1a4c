// Package lexer tokenizes fetch-pipeline DSL source text.
package lexer

import (
	"fmt"

	"github.com/fetchdsl/fetchdsl/internal/dsl/token"
)

// Lexer turns source text into a token stream via repeated calls to Next.
type Lexer struct {
	input []rune

	position int  // index of ch in input
	readPos  int  // index of the next char to read
	ch       rune // input[position], or 0 at/after EOF

	lineNo int
}

// New returns a Lexer primed to read the first character of source.
func New(source string) *Lexer {
	l := &Lexer{input: []rune(source), lineNo: 1}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.position = l.readPos
	l.readPos++
}

// peekChar looks one character past ch without advancing.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) atEOF() bool {
	return l.position >= len(l.input)
}

func isWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// skipWhitespace advances past a run of whitespace, tracking line numbers.
func (l *Lexer) skipWhitespace() {
	for !l.atEOF() && isWhitespace(l.ch) {
		if l.ch == '\n' {
			l.lineNo++
		}
		l.readChar()
	}
}

// Next returns the next token in the stream. After the final token it
// returns a token.EOF token repeatedly.
func (l *Lexer) Next() (token.Token, error) {
	l.skipWhitespace()
	line := l.lineNo

	if l.atEOF() {
		return token.Token{Type: token.EOF, Pos: token.Position{Line: line}}, nil
	}

	switch {
	case l.ch == '\'' || l.ch == '"':
		text, err := l.readQuoted(l.ch)
		if err != nil {
			return token.Token{}, err
		}
		return token.Token{Type: token.LookupWord(text), Literal: text, Pos: token.Position{Line: line}}, nil
	case l.ch == '{' && l.peekChar() == '{':
		text, err := l.readBlock()
		if err != nil {
			return token.Token{}, err
		}
		return token.Token{Type: token.BLOCK, Literal: text, Pos: token.Position{Line: line}}, nil
	default:
		text := l.readWord()
		return token.Token{Type: token.LookupWord(text), Literal: text, Pos: token.Position{Line: line}}, nil
	}
}

// readQuoted scans a quote..quote run, including the surrounding quote
// characters in the returned text. A single backslash-escaped character is
// allowed to contain the quote rune without terminating the string.
func (l *Lexer) readQuoted(quote rune) (string, error) {
	startLine := l.lineNo
	var out []rune
	out = append(out, l.ch) // opening quote
	escaped := false
	for {
		if l.atEOF() {
			return "", fmt.Errorf("lexer: EOF encountered while processing string starting at line %d", startLine)
		}
		escaped = l.ch == '\\' && !escaped
		l.readChar()
		if l.atEOF() {
			return "", fmt.Errorf("lexer: EOF encountered while processing string starting at line %d", startLine)
		}
		out = append(out, l.ch)
		if l.ch == quote && !escaped {
			l.readChar()
			return string(out), nil
		}
	}
}

// readBlock scans a {{ ... }} pair, returning the verbatim inner text
// (whitespace preserved; dedenting happens later, during evaluation).
func (l *Lexer) readBlock() (string, error) {
	startLine := l.lineNo
	l.readChar() // consume first {
	l.readChar() // consume second {

	var out []rune
	for {
		if l.atEOF() {
			return "", fmt.Errorf("lexer: EOF encountered while processing block starting at line %d", startLine)
		}
		if l.ch == '}' && l.peekChar() == '}' {
			l.readChar() // consume first }
			l.readChar() // consume second }
			return string(out), nil
		}
		if l.ch == '\n' {
			l.lineNo++
		}
		out = append(out, l.ch)
		l.readChar()
	}
}

// readWord scans a run of non-whitespace characters.
func (l *Lexer) readWord() string {
	var out []rune
	for !l.atEOF() && !isWhitespace(l.ch) {
		out = append(out, l.ch)
		l.readChar()
	}
	return string(out)
}
