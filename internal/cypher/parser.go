// Package cypher contains the parser of the pattern query language, a
// Cypher subset: MATCH/OPTIONAL MATCH clauses with WHERE and a RETURN clause.
package cypher

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/roach88/dtc/internal/cypher/lexer"
)

// ParseOptions is a Parse options structure.
type ParseOptions struct {
	// Filename is reported in error positions.
	Filename string
}

// Parse parses query from string.
func Parse(input string, opts ParseOptions) (*Query, error) {
	p, err := newParser(input, opts)
	if err != nil {
		return nil, err
	}
	return p.parseQuery()
}

func newParser(input string, opts ParseOptions) (parser, error) {
	tokens, err := lexer.Tokenize(input, lexer.TokenizeOptions{Filename: opts.Filename})
	if err != nil {
		var lexErr *lexer.Error
		if errors.As(err, &lexErr) {
			return parser{}, &SyntaxError{Msg: lexErr.Msg, Pos: lexErr.Pos}
		}
		return parser{}, errors.Wrap(err, "tokenize")
	}
	return parser{
		tokens: tokens,
	}, nil
}

type parser struct {
	tokens []lexer.Token
	pos    int
}

func (p *parser) consume(tt lexer.TokenType) error {
	if t := p.next(); t.Type != tt {
		return p.unexpectedToken(t, fmt.Sprintf("expected %q", tt))
	}
	return nil
}

func (p *parser) next() lexer.Token {
	t := p.peek()
	if t.Type != lexer.EOF {
		p.pos++
	}
	return t
}

func (p *parser) peek() lexer.Token {
	return p.peekN(0)
}

func (p *parser) peekN(n int) lexer.Token {
	idx := p.pos + n
	if len(p.tokens) <= idx {
		t := lexer.Token{Type: lexer.EOF}
		if len(p.tokens) > 0 {
			t.Pos = p.tokens[len(p.tokens)-1].Pos
		}
		return t
	}
	return p.tokens[idx]
}

func (p *parser) unexpectedToken(t lexer.Token, context string) error {
	msg := fmt.Sprintf("unexpected token %q", t.Text)
	if t.Type == lexer.EOF {
		msg = "unexpected EOF"
	}
	if context != "" {
		msg += ": " + context
	}
	return &SyntaxError{
		Msg: msg,
		Pos: t.Pos,
	}
}

// consumeName consumes an identifier. Keywords are accepted where a bare
// name is unambiguous (labels, property keys, map keys).
func (p *parser) consumeName(allowKeywords bool) (string, error) {
	t := p.next()
	switch {
	case t.Type == lexer.Ident:
		return t.Text, nil
	case allowKeywords && t.Type.IsKeyword():
		return t.Text, nil
	default:
		return "", p.unexpectedToken(t, "expected name")
	}
}

func (p *parser) parseQuery() (*Query, error) {
	q := &Query{}
	for {
		t := p.peek()
		switch t.Type {
		case lexer.Match, lexer.Optional:
			c, err := p.parseMatchClause()
			if err != nil {
				return nil, err
			}
			q.Clauses = append(q.Clauses, c)
			continue
		case lexer.Return:
			if len(q.Clauses) == 0 {
				return nil, &SyntaxError{Msg: "RETURN without MATCH", Pos: t.Pos}
			}
			r, err := p.parseReturn()
			if err != nil {
				return nil, err
			}
			q.Return = r
		default:
			return nil, p.unexpectedToken(t, "expected MATCH, OPTIONAL MATCH or RETURN")
		}
		break
	}

	if p.peek().Type == lexer.Semicolon {
		p.next()
	}
	if t := p.peek(); t.Type != lexer.EOF {
		return nil, p.unexpectedToken(t, "expected end of query")
	}
	return q, nil
}

func (p *parser) parseMatchClause() (*MatchClause, error) {
	c := &MatchClause{Pos: p.peek().Pos}
	if p.peek().Type == lexer.Optional {
		p.next()
		c.Optional = true
	}
	if err := p.consume(lexer.Match); err != nil {
		return nil, err
	}

	for {
		pattern, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		c.Patterns = append(c.Patterns, pattern)

		if p.peek().Type != lexer.Comma {
			break
		}
		p.next()
	}

	if p.peek().Type == lexer.Where {
		p.next()
		where, err := p.parseExpr()
		if err != nil {
			return nil, errors.Wrap(err, "parse WHERE")
		}
		c.Where = where
	}
	return c, nil
}

func (p *parser) parseReturn() (*ReturnClause, error) {
	r := &ReturnClause{Pos: p.peek().Pos}
	if err := p.consume(lexer.Return); err != nil {
		return nil, err
	}
	if t := p.peek(); t.Type == lexer.Mul {
		return nil, &SyntaxError{Msg: "RETURN * is not supported", Pos: t.Pos}
	}

	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, errors.Wrap(err, "parse RETURN item")
		}
		item := &ReturnItem{Expr: e}
		if p.peek().Type == lexer.As {
			p.next()
			alias, err := p.consumeName(false)
			if err != nil {
				return nil, err
			}
			item.Alias = alias
		}
		r.Items = append(r.Items, item)

		if p.peek().Type != lexer.Comma {
			return r, nil
		}
		p.next()
	}
}
