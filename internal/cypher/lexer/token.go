package lexer

import (
	"strconv"
	"text/scanner"
)

// Token is a query token.
type Token struct {
	Type TokenType
	Text string
	Pos  scanner.Position
}

// TokenType defines query token type.
type TokenType int

const (
	Invalid TokenType = iota
	EOF
	Ident
	// Literals
	String
	Integer
	Number

	Comma
	Dot
	Colon
	Semicolon
	OpenParen
	CloseParen
	OpenBracket
	CloseBracket
	OpenBrace
	CloseBrace
	Eq
	NotEq
	Lt
	Lte
	Gt
	Gte
	Add
	Sub
	Mul
	Div
	Mod
	Pow

	// Keywords
	Match
	Optional
	Where
	Return
	As
	And
	Or
	Xor
	Not
	In
	Starts
	Ends
	With
	Contains
	Is
	Distinct
	True
	False
	Null
)

var tokens = map[string]TokenType{
	",":  Comma,
	".":  Dot,
	":":  Colon,
	";":  Semicolon,
	"(":  OpenParen,
	")":  CloseParen,
	"[":  OpenBracket,
	"]":  CloseBracket,
	"{":  OpenBrace,
	"}":  CloseBrace,
	"=":  Eq,
	"<>": NotEq,
	"!=": NotEq,
	"<":  Lt,
	"<=": Lte,
	">":  Gt,
	">=": Gte,
	"+":  Add,
	"-":  Sub,
	"*":  Mul,
	"/":  Div,
	"%":  Mod,
	"^":  Pow,
}

// keywords are matched case-insensitively.
var keywords = map[string]TokenType{
	"MATCH":    Match,
	"OPTIONAL": Optional,
	"WHERE":    Where,
	"RETURN":   Return,
	"AS":       As,
	"AND":      And,
	"OR":       Or,
	"XOR":      Xor,
	"NOT":      Not,
	"IN":       In,
	"STARTS":   Starts,
	"ENDS":     Ends,
	"WITH":     With,
	"CONTAINS": Contains,
	"IS":       Is,
	"DISTINCT": Distinct,
	"TRUE":     True,
	"FALSE":    False,
	"NULL":     Null,
}

var tokenNames = [...]string{
	Invalid:      "Invalid",
	EOF:          "EOF",
	Ident:        "Ident",
	String:       "String",
	Integer:      "Integer",
	Number:       "Number",
	Comma:        ",",
	Dot:          ".",
	Colon:        ":",
	Semicolon:    ";",
	OpenParen:    "(",
	CloseParen:   ")",
	OpenBracket:  "[",
	CloseBracket: "]",
	OpenBrace:    "{",
	CloseBrace:   "}",
	Eq:           "=",
	NotEq:        "<>",
	Lt:           "<",
	Lte:          "<=",
	Gt:           ">",
	Gte:          ">=",
	Add:          "+",
	Sub:          "-",
	Mul:          "*",
	Div:          "/",
	Mod:          "%",
	Pow:          "^",
	Match:        "MATCH",
	Optional:     "OPTIONAL",
	Where:        "WHERE",
	Return:       "RETURN",
	As:           "AS",
	And:          "AND",
	Or:           "OR",
	Xor:          "XOR",
	Not:          "NOT",
	In:           "IN",
	Starts:       "STARTS",
	Ends:         "ENDS",
	With:         "WITH",
	Contains:     "CONTAINS",
	Is:           "IS",
	Distinct:     "DISTINCT",
	True:         "TRUE",
	False:        "FALSE",
	Null:         "NULL",
}

// String implements fmt.Stringer.
func (tt TokenType) String() string {
	if tt >= 0 && int(tt) < len(tokenNames) && tokenNames[tt] != "" {
		return tokenNames[tt]
	}
	return "TokenType(" + strconv.Itoa(int(tt)) + ")"
}

// IsKeyword reports whether token type is a reserved word.
//
// Keywords may still be used as property keys and map keys.
func (tt TokenType) IsKeyword() bool {
	return tt >= Match && tt <= Null
}
