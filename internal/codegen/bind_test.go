package codegen

import (
	"testing"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/roach88/dtc/internal/compiler"
	"github.com/roach88/dtc/internal/cypher"
	"github.com/roach88/dtc/internal/ir"
	"github.com/roach88/dtc/internal/udf"
)

var (
	weighted = udf.Definition{Name: "weighted", Params: []string{"x", "w"}, Kind: ir.UdfAggregate, Init: "0", Body: "acc + x * w"}
	bucket   = udf.Definition{Name: "bucket", Params: []string{"d", "width"}, Kind: ir.UdfScalar, Body: "d - d % width"}
)

func build(t *testing.T, query, root string, defs ...udf.Definition) *ir.QueryIR {
	t.Helper()
	q, err := cypher.Parse(query, cypher.ParseOptions{Filename: "test.cql"})
	require.NoError(t, err)
	out, err := compiler.Build(q, compiler.BuildOptions{Root: root, UDFs: udf.Bindings(defs)})
	require.NoError(t, err)
	return out
}

func TestBindUDFs_AggregationArity(t *testing.T) {
	q := build(t, heredoc.Doc(`
		MATCH (a)-[e]->(b)
		RETURN weighted(b.duration)
	`), "a", weighted)

	_, err := BindUDFs(q, []udf.Definition{weighted})
	require.Error(t, err)

	var mismatch *UdfSignatureMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, UdfSignatureMismatchError{Name: "weighted", Declared: 2, Got: 1, Site: "aggregation"}, *mismatch)

	var se *compiler.SemanticError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, compiler.ErrUdfSignatureMismatch, se.Code)
	assert.Contains(t, err.Error(), "weighted declares 2 parameter(s) but is called with 1 argument(s)")
}

func TestBindUDFs_ReportsEveryMismatch(t *testing.T) {
	q := build(t, heredoc.Doc(`
		MATCH (a)-[e]->(b)
		WHERE bucket(b.duration) = 100
		RETURN bucket(a.duration, 10, 2), count(*)
	`), "a", bucket)

	_, err := BindUDFs(q, []udf.Definition{bucket})
	require.Error(t, err)

	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	assert.Equal(t, &UdfSignatureMismatchError{Name: "bucket", Declared: 2, Got: 1, Site: "WHERE"}, errs[0])
	assert.Equal(t, &UdfSignatureMismatchError{Name: "bucket", Declared: 2, Got: 3, Site: "RETURN"}, errs[1])
}

func TestBindUDFs_MissingDefinition(t *testing.T) {
	q := build(t, "MATCH (a)-[e]->(b) RETURN weighted(b.duration, 2)", "a", weighted)

	_, err := BindUDFs(q, nil)
	var unknown *compiler.UnknownFunctionError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "weighted", unknown.Name)
}

func TestBindUDFs_OK(t *testing.T) {
	q := build(t, heredoc.Doc(`
		MATCH (a)-[e]->(b)
		WHERE bucket(b.duration, 10) = 20
		RETURN weighted(b.duration, 2)
	`), "a", weighted, bucket)

	bound, err := BindUDFs(q, []udf.Definition{weighted, bucket})
	require.NoError(t, err)
	require.Len(t, bound, 2)
	assert.Equal(t, "bucket", bound[0].Name)
	assert.Equal(t, "weighted", bound[1].Name)
}
