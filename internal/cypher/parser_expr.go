package cypher

import (
	"github.com/roach88/dtc/internal/cypher/lexer"
)

func (p *parser) parseExpr() (Expr, error) {
	left, err := p.parseUnaryExpr()
	if err != nil {
		return nil, err
	}
	return p.parseBinaryExpr(left, precOr)
}

// peekBinaryOp returns the binary operator at the cursor and the number of
// tokens it spans.
func (p *parser) peekBinaryOp() (op BinaryOp, n int, ok bool) {
	t := p.peek()
	switch t.Type {
	case lexer.Or:
		return OpOr, 1, true
	case lexer.Xor:
		return OpXor, 1, true
	case lexer.And:
		return OpAnd, 1, true
	case lexer.Eq:
		return OpEq, 1, true
	case lexer.NotEq:
		return OpNotEq, 1, true
	case lexer.Lt:
		return OpLt, 1, true
	case lexer.Lte:
		return OpLte, 1, true
	case lexer.Gt:
		return OpGt, 1, true
	case lexer.Gte:
		return OpGte, 1, true
	case lexer.In:
		return OpIn, 1, true
	case lexer.Contains:
		return OpContains, 1, true
	case lexer.Starts:
		if p.peekN(1).Type == lexer.With {
			return OpStartsWith, 2, true
		}
	case lexer.Ends:
		if p.peekN(1).Type == lexer.With {
			return OpEndsWith, 2, true
		}
	case lexer.Add:
		return OpAdd, 1, true
	case lexer.Sub:
		return OpSub, 1, true
	case lexer.Mul:
		return OpMul, 1, true
	case lexer.Div:
		return OpDiv, 1, true
	case lexer.Mod:
		return OpMod, 1, true
	case lexer.Pow:
		return OpPow, 1, true
	}
	return 0, 0, false
}

// peekPrecedence returns the precedence of the operator at the cursor,
// counting postfix IS [NOT] NULL as a comparison.
func (p *parser) peekPrecedence() (prec int, rightAssoc, ok bool) {
	if p.peek().Type == lexer.Is {
		return precComparison, false, true
	}
	op, _, ok := p.peekBinaryOp()
	if !ok {
		return 0, false, false
	}
	return op.Precedence(), op.IsRightAssoc(), true
}

func (p *parser) parseBinaryExpr(left Expr, minPrec int) (Expr, error) {
	for {
		// Postfix null checks bind like comparisons.
		if p.peek().Type == lexer.Is && precComparison >= minPrec {
			var err error
			left, err = p.parseNullCheck(left)
			if err != nil {
				return nil, err
			}
			continue
		}

		op, n, ok := p.peekBinaryOp()
		if !ok || op.Precedence() < minPrec {
			return left, nil
		}
		opTok := p.peek()
		for i := 0; i < n; i++ {
			p.next()
		}

		right, err := p.parseUnaryExpr()
		if err != nil {
			return nil, err
		}
		for {
			nextPrec, rightAssoc, ok := p.peekPrecedence()
			if !ok {
				break
			}
			if nextPrec > op.Precedence() || (rightAssoc && nextPrec == op.Precedence()) {
				minNext := op.Precedence() + 1
				if nextPrec == op.Precedence() {
					minNext = op.Precedence()
				}
				right, err = p.parseBinaryExpr(right, minNext)
				if err != nil {
					return nil, err
				}
				continue
			}
			break
		}

		left = &BinaryExpr{
			Left:  left,
			Op:    op,
			Right: right,
			Pos:   opTok.Pos,
		}
	}
}

func (p *parser) parseNullCheck(x Expr) (Expr, error) {
	t := p.next() // IS
	op := OpIsNull
	if p.peek().Type == lexer.Not {
		p.next()
		op = OpIsNotNull
	}
	if err := p.consume(lexer.Null); err != nil {
		return nil, err
	}
	return &UnaryExpr{Op: op, X: x, Pos: t.Pos}, nil
}

func (p *parser) parseUnaryExpr() (Expr, error) {
	t := p.peek()
	switch t.Type {
	case lexer.Not:
		p.next()
		x, err := p.parseUnaryExpr()
		if err != nil {
			return nil, err
		}
		// NOT binds looser than comparisons: NOT a = b is NOT (a = b).
		x, err = p.parseBinaryExpr(x, precComparison)
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: OpNot, X: x, Pos: t.Pos}, nil
	case lexer.Sub:
		p.next()
		x, err := p.parsePostfixExpr()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: OpNeg, X: x, Pos: t.Pos}, nil
	case lexer.Add:
		p.next()
		return p.parsePostfixExpr()
	default:
		return p.parsePostfixExpr()
	}
}

func (p *parser) parsePostfixExpr() (Expr, error) {
	x, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == lexer.Dot {
		dot := p.next()
		key, err := p.consumeName(true)
		if err != nil {
			return nil, err
		}
		x = &PropertyAccess{Subject: x, Key: key, Pos: dot.Pos}
	}
	return x, nil
}

func (p *parser) parseAtom() (Expr, error) {
	t := p.next()
	switch t.Type {
	case lexer.String:
		return &Literal{Kind: LiteralString, Text: t.Text, Pos: t.Pos}, nil
	case lexer.Integer:
		return &Literal{Kind: LiteralInteger, Text: t.Text, Pos: t.Pos}, nil
	case lexer.Number:
		return &Literal{Kind: LiteralNumber, Text: t.Text, Pos: t.Pos}, nil
	case lexer.True, lexer.False:
		return &Literal{Kind: LiteralBool, Text: t.Type.String(), Pos: t.Pos}, nil
	case lexer.Null:
		return &Literal{Kind: LiteralNull, Text: "NULL", Pos: t.Pos}, nil
	case lexer.OpenParen:
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.consume(lexer.CloseParen); err != nil {
			return nil, err
		}
		return x, nil
	case lexer.OpenBracket:
		return p.parseList(t)
	case lexer.Ident:
		if p.peek().Type == lexer.OpenParen {
			return p.parseFunctionCall(t)
		}
		return &Variable{Name: t.Text, Pos: t.Pos}, nil
	default:
		return nil, p.unexpectedToken(t, "expected expression")
	}
}

func (p *parser) parseList(open lexer.Token) (Expr, error) {
	list := &ListExpr{Pos: open.Pos}
	for {
		if p.peek().Type == lexer.CloseBracket {
			p.next()
			return list, nil
		}
		if len(list.Items) > 0 {
			if err := p.consume(lexer.Comma); err != nil {
				return nil, err
			}
		}
		item, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		list.Items = append(list.Items, item)
	}
}

func (p *parser) parseFunctionCall(name lexer.Token) (Expr, error) {
	call := &FunctionCall{Name: name.Text, Pos: name.Pos}
	if err := p.consume(lexer.OpenParen); err != nil {
		return nil, err
	}

	switch p.peek().Type {
	case lexer.Distinct:
		p.next()
		call.Distinct = true
	case lexer.Mul:
		p.next()
		call.Star = true
		if err := p.consume(lexer.CloseParen); err != nil {
			return nil, err
		}
		return call, nil
	}

	for {
		if p.peek().Type == lexer.CloseParen {
			p.next()
			return call, nil
		}
		if len(call.Args) > 0 {
			if err := p.consume(lexer.Comma); err != nil {
				return nil, err
			}
		}
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
	}
}
