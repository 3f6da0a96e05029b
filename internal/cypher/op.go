package cypher

// BinaryOp defines binary operator.
type BinaryOp int

const (
	OpOr BinaryOp = iota + 1
	OpXor
	OpAnd
	OpEq
	OpNotEq
	OpLt
	OpLte
	OpGt
	OpGte
	OpIn
	OpStartsWith
	OpEndsWith
	OpContains
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
)

const (
	precOr = iota + 1
	precXor
	precAnd
	precNot
	precComparison
	precAdditive
	precMultiplicative
	precPow
)

// Precedence returns operator precedence.
func (op BinaryOp) Precedence() int {
	switch op {
	case OpOr:
		return precOr
	case OpXor:
		return precXor
	case OpAnd:
		return precAnd
	case OpEq, OpNotEq, OpLt, OpLte, OpGt, OpGte, OpIn, OpStartsWith, OpEndsWith, OpContains:
		return precComparison
	case OpAdd, OpSub:
		return precAdditive
	case OpMul, OpDiv, OpMod:
		return precMultiplicative
	case OpPow:
		return precPow
	default:
		return 0
	}
}

// IsRightAssoc whether operator is right-associative.
func (op BinaryOp) IsRightAssoc() bool {
	return op == OpPow
}

// String implements fmt.Stringer.
func (op BinaryOp) String() string {
	switch op {
	case OpOr:
		return "OR"
	case OpXor:
		return "XOR"
	case OpAnd:
		return "AND"
	case OpEq:
		return "="
	case OpNotEq:
		return "<>"
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpIn:
		return "IN"
	case OpStartsWith:
		return "STARTS WITH"
	case OpEndsWith:
		return "ENDS WITH"
	case OpContains:
		return "CONTAINS"
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	case OpPow:
		return "^"
	default:
		return "<unknown binary op>"
	}
}

// UnaryOp defines unary operator.
type UnaryOp int

const (
	OpNot UnaryOp = iota + 1
	OpNeg
	OpIsNull
	OpIsNotNull
)

// String implements fmt.Stringer.
func (op UnaryOp) String() string {
	switch op {
	case OpNot:
		return "NOT"
	case OpNeg:
		return "-"
	case OpIsNull:
		return "IS NULL"
	case OpIsNotNull:
		return "IS NOT NULL"
	default:
		return "<unknown unary op>"
	}
}
