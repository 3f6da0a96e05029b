// Package config loads the optional CUE configuration file.
//
// The file is unified with an embedded #Config schema, which supplies the
// defaults and rejects unknown fields:
//
//	mode:          "sim"
//	distributed:   true
//	header_prefix: "x-trace-"
package config

import (
	_ "embed"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/go-faster/errors"

	"github.com/roach88/dtc/pkg/tracefilter"
)

//go:embed schema.cue
var schema string

// Config is a decoded configuration file.
type Config struct {
	Mode        string `json:"mode"`
	Distributed bool   `json:"distributed"`
	OutFile     string `json:"out_file"`
	AggrOutFile string `json:"aggr_out_file"`
	Ledger      string `json:"ledger,omitempty"`
	Templates   string `json:"templates,omitempty"`

	HeaderPrefix string `json:"header_prefix"`
	QueueName    string `json:"queue_name"`
	TraceCluster string `json:"trace_cluster"`
}

// Trace returns the protocol names of c.
func (c Config) Trace() tracefilter.Config {
	return tracefilter.Config{
		HeaderPrefix: c.HeaderPrefix,
		QueueName:    c.QueueName,
		TraceCluster: c.TraceCluster,
	}
}

// Error is returned for a configuration file that cannot be read or does
// not satisfy the schema.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string { return "config " + e.Path + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Default returns the schema defaults.
func Default() (Config, error) {
	return Parse("", nil)
}

// Load reads and decodes path. An empty path yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &Error{Path: path, Err: err}
	}
	return Parse(path, data)
}

// Parse decodes a configuration file. A nil data yields the defaults.
func Parse(filename string, data []byte) (Config, error) {
	ctx := cuecontext.New()
	s := ctx.CompileString(schema, cue.Filename("schema.cue"))
	if err := s.Err(); err != nil {
		return Config{}, errors.Wrap(err, "compile schema")
	}
	v := s.LookupPath(cue.ParsePath("#Config"))

	if data != nil {
		file := ctx.CompileBytes(data, cue.Filename(filename))
		if err := file.Err(); err != nil {
			return Config{}, &Error{Path: filename, Err: err}
		}
		v = v.Unify(file)
	}
	if err := v.Validate(); err != nil {
		return Config{}, &Error{Path: filename, Err: err}
	}

	var c Config
	if err := v.Decode(&c); err != nil {
		return Config{}, &Error{Path: filename, Err: err}
	}
	return c, nil
}
