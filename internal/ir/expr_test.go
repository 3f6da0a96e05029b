package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ref(v, k string) PropertyRef { return PropertyRef{Var: v, Key: k} }

func TestFormatExpr(t *testing.T) {
	tests := []struct {
		name string
		expr Expr
		want string
	}{
		{"nil", nil, "true"},
		{"property", ref("e", "response.code"), "e.response.code"},
		{
			"comparison",
			Binary{Op: OpEq, Left: ref("a", "name"), Right: Literal{Value: String("get")}},
			`(a.name = "get")`,
		},
		{
			"nested logic",
			Binary{
				Op:    OpOr,
				Left:  Binary{Op: OpNotEq, Left: ref("a", "x"), Right: Literal{Value: Int(1)}},
				Right: Unary{Op: OpIsNotNull, X: ref("a", "z")},
			},
			"((a.x <> 1) OR a.z IS NOT NULL)",
		},
		{"not", Unary{Op: OpNot, X: Literal{Value: Bool(true)}}, "NOT TRUE"},
		{"neg", Unary{Op: OpNeg, X: Literal{Value: Float(2.5)}}, "-2.5"},
		{
			"string op",
			Binary{Op: OpStartsWith, Left: ref("a", "request.path"), Right: Literal{Value: String("/api")}},
			`(a.request.path STARTS WITH "/api")`,
		},
		{
			"call and list",
			Binary{
				Op:    OpIn,
				Left:  Call{Func: "bucket", Args: []Expr{ref("a", "duration"), Literal{Value: Int(10)}}},
				Right: List{Items: []Expr{Literal{Value: Int(1)}, Literal{Value: Null{}}}},
			},
			"(bucket(a.duration, 10) IN [1, NULL])",
		},
		{"pow", Binary{Op: OpPow, Left: Literal{Value: Int(2)}, Right: Literal{Value: Int(3)}}, "(2 ^ 3)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatExpr(tt.expr))
		})
	}
}

func TestVarsAndProperties(t *testing.T) {
	e := Binary{
		Op:    OpAnd,
		Left:  Binary{Op: OpEq, Left: ref("c", "x"), Right: ref("a", "x")},
		Right: Call{Func: "f", Args: []Expr{ref("a", "y"), ref("a", "x")}},
	}

	assert.Equal(t, []string{"a", "c"}, Vars(e))
	assert.Equal(t, []PropertyRef{ref("a", "x"), ref("a", "y"), ref("c", "x")}, Properties(e))
	assert.Len(t, Calls(e), 1)
	assert.Empty(t, Vars(Literal{Value: Int(1)}))
}

func TestConjunctsAndAnd(t *testing.T) {
	p1 := Binary{Op: OpEq, Left: ref("a", "x"), Right: Literal{Value: Int(1)}}
	p2 := Binary{Op: OpEq, Left: ref("b", "x"), Right: Literal{Value: Int(2)}}
	p3 := Binary{Op: OpOr, Left: p1, Right: p2}

	joined := And(p1, p2, p3)
	assert.Equal(t, []Expr{p1, p2, p3}, Conjuncts(joined))
	assert.Nil(t, And())
	assert.Equal(t, p1, And(p1))
	assert.Equal(t, []Expr{p3}, Conjuncts(p3))
}
