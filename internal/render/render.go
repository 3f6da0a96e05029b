// Package render turns backend output into source files.
//
// Backends describe each file as a Unit: a template name and a flat map of
// named fields. Templates are text/template files with the sprig function
// set. The renderer knows nothing about what it substitutes; generated Go
// source is only passed through gofmt.
package render

import (
	"bytes"
	"embed"
	"go/format"
	"io/fs"
	"os"
	"path"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/go-faster/errors"
)

//go:embed templates/*.tmpl
var embedded embed.FS

// Role is the part a generated file plays.
type Role string

const (
	// RoleFilter is the primary output: the hop filter, root filter or
	// simulation harness.
	RoleFilter Role = "filter"
	// RoleAggregation is the aggregation output.
	RoleAggregation Role = "aggregation"
)

// Fields are the named substitution points of a template.
type Fields map[string]string

// Unit is one file to render.
type Unit struct {
	Role     Role
	Template string
	Fields   Fields
}

// ReadError is returned when a template cannot be read.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string { return "read template " + e.Path + ": " + e.Err.Error() }
func (e *ReadError) Unwrap() error { return e.Err }

// Renderer loads templates from a directory or from the built-in set.
type Renderer struct {
	fsys fs.FS
	dir  string
}

// New returns a Renderer reading templates from dir. An empty dir selects
// the built-in templates.
func New(dir string) *Renderer {
	if dir == "" {
		sub, _ := fs.Sub(embedded, "templates")
		return &Renderer{fsys: sub}
	}
	return &Renderer{fsys: os.DirFS(dir), dir: dir}
}

// Names lists the available templates.
func (r *Renderer) Names() ([]string, error) {
	matches, err := fs.Glob(r.fsys, "*.tmpl")
	if err != nil {
		return nil, errors.Wrap(err, "list templates")
	}
	return matches, nil
}

// Template reads and parses one template.
func (r *Renderer) Template(name string) (*template.Template, error) {
	data, err := fs.ReadFile(r.fsys, name)
	if err != nil {
		return nil, &ReadError{Path: r.path(name), Err: err}
	}
	t, err := template.New(name).
		Option("missingkey=error").
		Funcs(sprig.TxtFuncMap()).
		Parse(string(data))
	if err != nil {
		return nil, errors.Wrapf(err, "parse template %s", name)
	}
	return t, nil
}

// Render renders u.
func (r *Renderer) Render(u Unit) ([]byte, error) {
	t, err := r.Template(u.Template)
	if err != nil {
		return nil, err
	}
	return Execute(t, u.Fields)
}

// Execute fills t with fields. Output of *.go.tmpl templates is formatted
// as Go source.
func Execute(t *template.Template, fields Fields) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, map[string]string(fields)); err != nil {
		return nil, errors.Wrapf(err, "execute template %s", t.Name())
	}
	if !strings.HasSuffix(t.Name(), ".go.tmpl") {
		return buf.Bytes(), nil
	}
	out, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, errors.Wrapf(err, "format output of %s", t.Name())
	}
	return out, nil
}

func (r *Renderer) path(name string) string {
	if r.dir == "" {
		return path.Join("templates", name)
	}
	return path.Join(r.dir, name)
}

// Comment renders lines as a // comment block without a trailing newline.
func Comment(lines []string) string {
	var sb strings.Builder
	for i, l := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		if l == "" {
			sb.WriteString("//")
			continue
		}
		sb.WriteString("// ")
		sb.WriteString(l)
	}
	return sb.String()
}
