package cypher

import (
	"github.com/roach88/dtc/internal/cypher/lexer"
)

func (p *parser) parsePattern() (*Pattern, error) {
	node, err := p.parseNode()
	if err != nil {
		return nil, err
	}
	pattern := &Pattern{Nodes: []*NodePattern{node}}

	for {
		switch p.peek().Type {
		case lexer.Sub, lexer.Lt:
		default:
			return pattern, nil
		}

		rel, err := p.parseRel()
		if err != nil {
			return nil, err
		}
		node, err := p.parseNode()
		if err != nil {
			return nil, err
		}
		pattern.Rels = append(pattern.Rels, rel)
		pattern.Nodes = append(pattern.Nodes, node)
	}
}

func (p *parser) parseNode() (*NodePattern, error) {
	start := p.peek()
	if err := p.consume(lexer.OpenParen); err != nil {
		return nil, err
	}
	n := &NodePattern{Pos: start.Pos}

	if p.peek().Type == lexer.Ident {
		n.Var = p.next().Text
	}
	for p.peek().Type == lexer.Colon {
		p.next()
		label, err := p.consumeName(true)
		if err != nil {
			return nil, err
		}
		n.Labels = append(n.Labels, label)
	}
	if p.peek().Type == lexer.OpenBrace {
		props, err := p.parseProperties()
		if err != nil {
			return nil, err
		}
		n.Props = props
	}

	if err := p.consume(lexer.CloseParen); err != nil {
		return nil, err
	}
	return n, nil
}

// parseRel parses one of:
//
//	-[...]->  -->  <-[...]-  <--  -[...]-  --
func (p *parser) parseRel() (*RelPattern, error) {
	start := p.peek()
	rel := &RelPattern{Pos: start.Pos}

	var left, right bool
	if start.Type == lexer.Lt {
		p.next()
		left = true
	}
	if err := p.consume(lexer.Sub); err != nil {
		return nil, err
	}

	if p.peek().Type == lexer.OpenBracket {
		if err := p.parseRelBody(rel); err != nil {
			return nil, err
		}
	}

	if err := p.consume(lexer.Sub); err != nil {
		return nil, err
	}
	if p.peek().Type == lexer.Gt {
		p.next()
		right = true
	}

	switch {
	case left && right:
		return nil, &SyntaxError{Msg: "relationship cannot point both ways", Pos: start.Pos}
	case left:
		rel.Direction = Incoming
	case right:
		rel.Direction = Outgoing
	default:
		rel.Direction = Undirected
	}
	return rel, nil
}

func (p *parser) parseRelBody(rel *RelPattern) error {
	if err := p.consume(lexer.OpenBracket); err != nil {
		return err
	}

	if p.peek().Type == lexer.Ident {
		rel.Var = p.next().Text
	}
	if p.peek().Type == lexer.Colon {
		p.next()
		typ, err := p.consumeName(true)
		if err != nil {
			return err
		}
		rel.Types = append(rel.Types, typ)
	}
	if p.peek().Type == lexer.Mul {
		// Variable-length bounds are kept out of the AST: the builder
		// rejects such relationships regardless of the range.
		p.next()
		rel.VarLength = true
		for {
			switch p.peek().Type {
			case lexer.Integer, lexer.Number, lexer.Dot:
				p.next()
				continue
			}
			break
		}
	}
	if p.peek().Type == lexer.OpenBrace {
		props, err := p.parseProperties()
		if err != nil {
			return err
		}
		rel.Props = props
	}

	return p.consume(lexer.CloseBracket)
}

// parseProperties parses an inline property map. Keys may be dotted
// (`{service.name: "cart"}`) or backtick quoted.
func (p *parser) parseProperties() ([]PropertyEntry, error) {
	if err := p.consume(lexer.OpenBrace); err != nil {
		return nil, err
	}

	var props []PropertyEntry
	for {
		if p.peek().Type == lexer.CloseBrace {
			p.next()
			return props, nil
		}
		if len(props) > 0 {
			if err := p.consume(lexer.Comma); err != nil {
				return nil, err
			}
		}

		pos := p.peek().Pos
		key, err := p.consumeName(true)
		if err != nil {
			return nil, err
		}
		for p.peek().Type == lexer.Dot {
			p.next()
			part, err := p.consumeName(true)
			if err != nil {
				return nil, err
			}
			key += "." + part
		}
		if err := p.consume(lexer.Colon); err != nil {
			return nil, err
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		props = append(props, PropertyEntry{Key: key, Value: value, Pos: pos})
	}
}
