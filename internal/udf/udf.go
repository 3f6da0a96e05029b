// Package udf loads user-defined functions.
//
// A UDF file is a YAML header between two `---` lines followed by an
// expression body:
//
//	---
//	name: bucket
//	params: [d, width]
//	kind: scalar
//	---
//	d - d % width
//
// Aggregate UDFs fold every completed match into a running value named acc,
// starting from init:
//
//	---
//	name: total
//	params: [x]
//	kind: aggregate
//	init: "0"
//	---
//	acc + x
package udf

import (
	"bytes"
	"os"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/go-faster/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/roach88/dtc/internal/compiler"
	"github.com/roach88/dtc/internal/ir"
)

// AccVar is the name of the running value in aggregate bodies.
const AccVar = "acc"

var identRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Definition is a parsed UDF file.
type Definition struct {
	Name   string     `yaml:"name"`
	Params []string   `yaml:"params"`
	Kind   ir.UdfKind `yaml:"kind"`
	// Init is the initial accumulator expression of aggregate UDFs.
	Init string `yaml:"init,omitempty"`

	Body string `yaml:"-"`
	Path string `yaml:"-"`
}

// Binding is the IR view of d: everything but the body.
func (d Definition) Binding() ir.UdfBinding {
	return ir.UdfBinding{Name: d.Name, Params: d.Params, Kind: d.Kind}
}

// Parse parses a UDF file. path is used for error reporting only.
func Parse(path string, data []byte) (Definition, error) {
	header, body, err := splitFrontMatter(data)
	if err != nil {
		return Definition{}, &DefinitionError{Path: path, Msg: err.Error()}
	}

	var d Definition
	decoder := yaml.NewDecoder(bytes.NewReader(header))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&d); err != nil {
		return Definition{}, &DefinitionError{Path: path, Msg: "header: " + err.Error()}
	}
	d.Path = path
	d.Body = strings.TrimSpace(string(body))
	if d.Kind == "" {
		d.Kind = ir.UdfScalar
	}

	if err := d.validate(); err != nil {
		return Definition{}, &DefinitionError{Path: path, Name: d.Name, Msg: err.Error()}
	}
	return d, nil
}

// splitFrontMatter returns the YAML header and the body of a UDF file.
func splitFrontMatter(data []byte) (header, body []byte, err error) {
	data = bytes.TrimLeft(data, "\ufeff \t\r\n")
	lines := bytes.SplitAfter(data, []byte("\n"))
	if len(lines) == 0 || string(bytes.TrimSpace(lines[0])) != "---" {
		return nil, nil, errors.New("missing --- header")
	}

	var hdr bytes.Buffer
	for i := 1; i < len(lines); i++ {
		if string(bytes.TrimSpace(lines[i])) == "---" {
			return hdr.Bytes(), bytes.Join(lines[i+1:], nil), nil
		}
		hdr.Write(lines[i])
	}
	return nil, nil, errors.New("unterminated --- header")
}

func (d *Definition) validate() error {
	if !identRe.MatchString(d.Name) {
		return errors.Errorf("invalid name %q", d.Name)
	}
	if compiler.IsReservedFunction(d.Name) {
		return errors.Errorf("name %q is a built-in function", d.Name)
	}

	seen := make(map[string]bool, len(d.Params))
	for _, p := range d.Params {
		if !identRe.MatchString(p) {
			return errors.Errorf("invalid parameter name %q", p)
		}
		if p == AccVar {
			return errors.Errorf("parameter name %q is reserved", AccVar)
		}
		if seen[p] {
			return errors.Errorf("duplicate parameter %q", p)
		}
		seen[p] = true
	}

	switch d.Kind {
	case ir.UdfScalar:
		if d.Init != "" {
			return errors.New("init is only valid for aggregate functions")
		}
	case ir.UdfAggregate:
	default:
		return errors.Errorf("invalid kind %q, must be %q or %q", d.Kind, ir.UdfScalar, ir.UdfAggregate)
	}

	if d.Body == "" {
		return errors.New("empty body")
	}
	if _, err := expr.Compile(d.Body, expr.AllowUndefinedVariables()); err != nil {
		return errors.Wrap(err, "body")
	}
	if d.Init != "" {
		if _, err := expr.Compile(d.Init); err != nil {
			return errors.Wrap(err, "init")
		}
	}
	return nil
}

// File is the raw content of a UDF file.
type File struct {
	Path string
	Data []byte
}

// LoadFiles reads and parses every path.
func LoadFiles(paths []string) ([]Definition, error) {
	var (
		files []File
		errs  error
	)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			errs = multierr.Append(errs, &DefinitionError{Path: path, Msg: "read failed", Err: err})
			continue
		}
		files = append(files, File{Path: path, Data: data})
	}
	defs, err := ParseFiles(files)
	if errs != nil || err != nil {
		return nil, multierr.Append(errs, err)
	}
	return defs, nil
}

// ParseFiles parses every file. All failures are reported together;
// errors.As still finds each *DefinitionError.
func ParseFiles(files []File) ([]Definition, error) {
	var (
		defs []Definition
		errs error
		seen = make(map[string]string, len(files))
	)
	for _, f := range files {
		d, err := Parse(f.Path, f.Data)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if prev, ok := seen[d.Name]; ok {
			errs = multierr.Append(errs, &DefinitionError{
				Path: f.Path,
				Name: d.Name,
				Msg:  "already defined in " + prev,
			})
			continue
		}
		seen[d.Name] = f.Path
		defs = append(defs, d)
	}
	if errs != nil {
		return nil, errs
	}
	return defs, nil
}

// Bindings returns the IR bindings of defs.
func Bindings(defs []Definition) []ir.UdfBinding {
	out := make([]ir.UdfBinding, len(defs))
	for i, d := range defs {
		out[i] = d.Binding()
	}
	return out
}
