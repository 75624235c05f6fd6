package sexp

import (
	"fmt"
	"io"
)

// Parser builds expression trees from a token stream.
type Parser struct {
	lex *Lexer
	cur Token
}

// NewParser returns a parser reading from r.
func NewParser(r io.Reader) *Parser {
	return &Parser{lex: NewLexer(r)}
}

// ParseAll parses top-level expressions until end of input.
func (p *Parser) ParseAll() ([]Sexp, error) {
	var out []Sexp
	for {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.Type == TokenEOF {
			return out, nil
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
}

func (p *Parser) advance() error {
	tok, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *Parser) parseExpr() (Sexp, error) {
	switch p.cur.Type {
	case TokenOpen:
		return p.parseList()
	case TokenAtom, TokenString:
		return Atom(p.cur.Value), nil
	}
	return nil, fmt.Errorf("line %d: unexpected %s", p.cur.Line, p.cur.Type)
}

func (p *Parser) parseList() (Sexp, error) {
	l := &List{Line: p.cur.Line}
	for {
		if err := p.advance(); err != nil {
			return nil, err
		}
		switch p.cur.Type {
		case TokenClose:
			return l, nil
		case TokenEOF:
			return nil, fmt.Errorf("line %d: unclosed list", l.Line)
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		l.items = append(l.items, e)
	}
}
