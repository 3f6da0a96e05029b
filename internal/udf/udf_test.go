package udf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/roach88/dtc/internal/ir"
)

func TestParse_Scalar(t *testing.T) {
	d, err := Parse("bucket.udf", []byte(heredoc.Doc(`
		---
		name: bucket
		params: [d, width]
		kind: scalar
		---
		d - d % width
	`)))
	require.NoError(t, err)

	assert.Equal(t, "bucket", d.Name)
	assert.Equal(t, []string{"d", "width"}, d.Params)
	assert.Equal(t, ir.UdfScalar, d.Kind)
	assert.Equal(t, "d - d % width", d.Body)
	assert.Equal(t, "bucket.udf", d.Path)
	assert.Equal(t, ir.UdfBinding{Name: "bucket", Params: []string{"d", "width"}, Kind: ir.UdfScalar}, d.Binding())
}

func TestParse_AggregateWithInit(t *testing.T) {
	d, err := Parse("total.udf", []byte(heredoc.Doc(`
		---
		name: total
		params: [x]
		kind: aggregate
		init: "0"
		---
		acc + x
	`)))
	require.NoError(t, err)

	assert.Equal(t, ir.UdfAggregate, d.Kind)
	assert.Equal(t, "0", d.Init)
	assert.Equal(t, "acc + x", d.Body)
}

func TestParse_DefaultKindIsScalar(t *testing.T) {
	d, err := Parse("f.udf", []byte("---\nname: f\nparams: [x]\n---\nx * 2\n"))
	require.NoError(t, err)
	assert.Equal(t, ir.UdfScalar, d.Kind)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		msg  string
	}{
		{"no header", "x + 1", "missing --- header"},
		{"unterminated header", "---\nname: f\n", "unterminated"},
		{"unknown field", "---\nname: f\nparms: [x]\n---\nx", "header"},
		{"bad name", "---\nname: 1f\n---\n1", "invalid name"},
		{"reserved name", "---\nname: count\n---\n1", "built-in"},
		{"reserved param", "---\nname: f\nparams: [acc]\n---\nacc", "reserved"},
		{"duplicate param", "---\nname: f\nparams: [x, x]\n---\nx", "duplicate parameter"},
		{"bad kind", "---\nname: f\nkind: window\n---\n1", "invalid kind"},
		{"init on scalar", "---\nname: f\ninit: \"0\"\n---\n1", "init is only valid"},
		{"empty body", "---\nname: f\n---\n\n", "empty body"},
		{"body syntax", "---\nname: f\nparams: [x]\n---\nx +", "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("f.udf", []byte(tt.data))
			require.Error(t, err)

			var defErr *DefinitionError
			require.ErrorAs(t, err, &defErr)
			assert.Equal(t, "f.udf", defErr.Path)
			assert.Contains(t, err.Error(), tt.msg)
			assert.Contains(t, err.Error(), "[E303]")
		})
	}
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	a := write("a.udf", "---\nname: double\nparams: [x]\n---\nx * 2\n")
	b := write("b.udf", "---\nname: total\nparams: [x]\nkind: aggregate\ninit: \"0\"\n---\nacc + x\n")

	defs, err := LoadFiles([]string{a, b})
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, []ir.UdfBinding{
		{Name: "double", Params: []string{"x"}, Kind: ir.UdfScalar},
		{Name: "total", Params: []string{"x"}, Kind: ir.UdfAggregate},
	}, Bindings(defs))
}

func TestLoadFiles_ReportsEveryFailure(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.udf")
	dup := filepath.Join(dir, "dup.udf")
	bad := filepath.Join(dir, "bad.udf")
	require.NoError(t, os.WriteFile(good, []byte("---\nname: f\n---\n1\n"), 0o644))
	require.NoError(t, os.WriteFile(dup, []byte("---\nname: f\n---\n2\n"), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte("no header"), 0o644))
	missing := filepath.Join(dir, "missing.udf")

	_, err := LoadFiles([]string{good, dup, bad, missing})
	require.Error(t, err)

	errs := multierr.Errors(err)
	require.Len(t, errs, 3)
	for _, e := range errs {
		var defErr *DefinitionError
		require.ErrorAs(t, e, &defErr)
	}
	assert.Contains(t, err.Error(), "already defined in "+good)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
