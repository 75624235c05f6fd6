package sexp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"unicode"
)

// TokenType identifies the kind of a lexical token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenOpen
	TokenClose
	TokenAtom
	TokenString
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenOpen:
		return "'('"
	case TokenClose:
		return "')'"
	case TokenAtom:
		return "atom"
	case TokenString:
		return "string"
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Token is a lexical token with the line it started on.
type Token struct {
	Type  TokenType
	Value string
	Line  int
}

// Lexer splits a stream into tokens. Comments run from ';' or '#' to the
// end of the line.
type Lexer struct {
	r      *bufio.Reader
	peeked rune
	has    bool
	line   int
}

// NewLexer returns a lexer reading from r.
func NewLexer(r io.Reader) *Lexer {
	return &Lexer{r: bufio.NewReader(r), line: 1}
}

// Next returns the next token, or a TokenEOF token at end of input.
func (l *Lexer) Next() (Token, error) {
	for {
		ch, err := l.peek()
		if errors.Is(err, io.EOF) {
			return Token{Type: TokenEOF, Line: l.line}, nil
		}
		if err != nil {
			return Token{}, err
		}
		if unicode.IsSpace(ch) {
			l.read()
			continue
		}
		if ch == ';' || ch == '#' {
			for {
				c, err := l.read()
				if err != nil || c == '\n' {
					break
				}
			}
			continue
		}
		break
	}

	ch, _ := l.peek()
	line := l.line
	switch ch {
	case '(':
		l.read()
		return Token{Type: TokenOpen, Value: "(", Line: line}, nil
	case ')':
		l.read()
		return Token{Type: TokenClose, Value: ")", Line: line}, nil
	case '"':
		s, err := l.readString()
		return Token{Type: TokenString, Value: s, Line: line}, err
	}
	return Token{Type: TokenAtom, Value: l.readAtom(), Line: line}, nil
}

func (l *Lexer) peek() (rune, error) {
	if l.has {
		return l.peeked, nil
	}
	ch, _, err := l.r.ReadRune()
	if err != nil {
		return 0, err
	}
	l.peeked, l.has = ch, true
	return ch, nil
}

func (l *Lexer) read() (rune, error) {
	var ch rune
	if l.has {
		ch, l.has = l.peeked, false
	} else {
		c, _, err := l.r.ReadRune()
		if err != nil {
			return 0, err
		}
		ch = c
	}
	if ch == '\n' {
		l.line++
	}
	return ch, nil
}

func (l *Lexer) readString() (string, error) {
	start := l.line
	l.read()
	var out []rune
	for {
		ch, err := l.read()
		if err != nil {
			return "", fmt.Errorf("line %d: unterminated string", start)
		}
		switch ch {
		case '"':
			return string(out), nil
		case '\\':
			next, err := l.read()
			if err != nil {
				return "", fmt.Errorf("line %d: unterminated string", start)
			}
			switch next {
			case 'n':
				out = append(out, '\n')
			case 't':
				out = append(out, '\t')
			default:
				out = append(out, next)
			}
		default:
			out = append(out, ch)
		}
	}
}

func (l *Lexer) readAtom() string {
	var out []rune
	for {
		ch, err := l.peek()
		if err != nil || unicode.IsSpace(ch) || ch == '(' || ch == ')' || ch == '"' {
			break
		}
		l.read()
		out = append(out, ch)
	}
	return string(out)
}
