// Package pipeline drives one compilation from input files to generated
// artifacts.
//
// The driver reads the query and UDF files, parses and builds the IR, binds
// UDFs, lowers the shared model and hands it to the backend selected by the
// compilation mode. Every artifact is rendered in memory before anything
// is written. Any error aborts the run and no output file is left behind.
package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/roach88/dtc/internal/codegen"
	"github.com/roach88/dtc/internal/compiler"
	"github.com/roach88/dtc/internal/cypher"
	"github.com/roach88/dtc/internal/envoy"
	"github.com/roach88/dtc/internal/render"
	"github.com/roach88/dtc/internal/simulator"
	"github.com/roach88/dtc/internal/udf"
	"github.com/roach88/dtc/pkg/tracefilter"
)

// Mode selects the backend.
type Mode string

const (
	ModeEnvoy Mode = "envoy"
	ModeSim   Mode = "sim"
)

// ParseMode validates a compilation mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeEnvoy, ModeSim:
		return m, nil
	default:
		return "", &UnsupportedModeError{Mode: s}
	}
}

// Default output paths.
const (
	DefaultOutFile     = "filter.go"
	DefaultAggrOutFile = "aggr_filter.go"
)

// Request is one compilation.
type Request struct {
	QueryPath string
	UDFPaths  []string
	Root      string
	Mode      string
	// Distributed selects the propagation protocol. For ModeSim it is the
	// default strategy of the generated harness.
	Distributed bool

	OutFile     string
	AggrOutFile string
	// TemplateDir overrides the built-in templates.
	TemplateDir string

	Config tracefilter.Config
}

func (r Request) outFile() string {
	if r.OutFile == "" {
		return DefaultOutFile
	}
	return r.OutFile
}

func (r Request) aggrOutFile() string {
	if r.AggrOutFile == "" {
		return DefaultAggrOutFile
	}
	return r.AggrOutFile
}

// Artifact is one rendered file.
type Artifact struct {
	Role render.Role
	Path string
	Data []byte
	// Digest is the hex SHA-256 of Data.
	Digest string
}

// Result of a compilation.
type Result struct {
	Mode        Mode
	Distributed bool
	Model       *codegen.Model
	Artifacts   []Artifact
}

// Compiler runs requests.
type Compiler struct {
	lg *zap.Logger
}

// New creates a Compiler. A nil logger is replaced by a no-op logger.
func New(lg *zap.Logger) *Compiler {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Compiler{lg: lg}
}

// Model reads the inputs of req and builds the shared codegen model. It
// neither checks the mode nor renders anything.
func (c *Compiler) Model(req Request) (*codegen.Model, error) {
	text, err := os.ReadFile(req.QueryPath)
	if err != nil {
		return nil, &IOError{Path: req.QueryPath, Op: "read query", Err: err}
	}
	defs, err := loadUDFs(req.UDFPaths)
	if err != nil {
		return nil, err
	}

	q, err := cypher.Parse(string(text), cypher.ParseOptions{Filename: req.QueryPath})
	if err != nil {
		return nil, err
	}
	out, err := compiler.Build(q, compiler.BuildOptions{Root: req.Root, UDFs: udf.Bindings(defs)})
	if err != nil {
		return nil, err
	}
	m, err := codegen.New(out, defs)
	if err != nil {
		return nil, err
	}

	c.lg.Debug("Query lowered",
		zap.String("query", req.QueryPath),
		zap.Int("levels", len(m.Plan.Levels)),
		zap.String("fingerprint", m.Plan.Fingerprint),
	)
	return m, nil
}

// loadUDFs reads UDF files. Unreadable files are IOErrors, malformed ones
// udf.DefinitionErrors.
func loadUDFs(paths []string) ([]udf.Definition, error) {
	files := make([]udf.File, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &IOError{Path: path, Op: "read udf", Err: err}
		}
		files = append(files, udf.File{Path: path, Data: data})
	}
	return udf.ParseFiles(files)
}

// Compile runs req up to rendered artifacts. Nothing is written.
func (c *Compiler) Compile(req Request) (*Result, error) {
	mode, err := ParseMode(req.Mode)
	if err != nil {
		return nil, err
	}
	c.lg.Info("Compiling",
		zap.String("query", req.QueryPath),
		zap.String("mode", string(mode)),
		zap.Bool("distributed", req.Distributed),
	)

	m, err := c.Model(req)
	if err != nil {
		return nil, err
	}

	source := filepath.Base(req.QueryPath)
	var units []render.Unit
	switch mode {
	case ModeEnvoy:
		units = envoy.Generate(m, envoy.Options{
			Source:      source,
			Distributed: req.Distributed,
			Config:      req.Config,
		}).Units()
	case ModeSim:
		units = simulator.Generate(m, simulator.Options{
			Source:          source,
			Distributed:     req.Distributed,
			Config:          req.Config,
			AggregationFile: filepath.Base(req.aggrOutFile()),
		}).Units()
	}

	arts, err := c.render(req, units)
	if err != nil {
		return nil, err
	}
	return &Result{Mode: mode, Distributed: req.Distributed, Model: m, Artifacts: arts}, nil
}

// Hooks run around the write step of Run. Either may be nil.
type Hooks struct {
	// BeforeWrite runs once every artifact is rendered. An error aborts
	// the run before anything is written.
	BeforeWrite func(*Result) error
	// AfterWrite runs once every artifact is on disk. An error removes the
	// artifacts again.
	AfterWrite func(*Result) error
}

// Run compiles req and writes the artifacts.
func (c *Compiler) Run(req Request, h Hooks) (*Result, error) {
	res, err := c.Compile(req)
	if err != nil {
		return nil, err
	}
	if h.BeforeWrite != nil {
		if err := h.BeforeWrite(res); err != nil {
			return nil, err
		}
	}
	if err := Write(res.Artifacts); err != nil {
		return nil, err
	}
	if h.AfterWrite != nil {
		if err := h.AfterWrite(res); err != nil {
			c.lg.Warn("Removing artifacts", zap.Error(err))
			return nil, multierr.Append(err, remove(res.Artifacts))
		}
	}
	for _, a := range res.Artifacts {
		c.lg.Info("Wrote artifact", zap.String("role", string(a.Role)), zap.String("path", a.Path))
	}
	return res, nil
}

func (c *Compiler) render(req Request, units []render.Unit) ([]Artifact, error) {
	r := render.New(req.TemplateDir)
	arts := make([]Artifact, 0, len(units))
	for _, u := range units {
		t, err := r.Template(u.Template)
		if err != nil {
			var re *render.ReadError
			if errors.As(err, &re) {
				return nil, &IOError{Path: re.Path, Op: "read template", Err: re.Err}
			}
			return nil, err
		}
		data, err := render.Execute(t, u.Fields)
		if err != nil {
			return nil, err
		}

		path := req.outFile()
		if u.Role == render.RoleAggregation {
			path = req.aggrOutFile()
		}
		sum := sha256.Sum256(data)
		arts = append(arts, Artifact{Role: u.Role, Path: path, Data: data, Digest: hex.EncodeToString(sum[:])})
		c.lg.Debug("Artifact rendered", zap.String("role", string(u.Role)), zap.String("path", path), zap.Int("bytes", len(data)))
	}
	if len(arts) == 2 && filepath.Clean(arts[0].Path) == filepath.Clean(arts[1].Path) {
		return nil, errors.Errorf("output and aggregation output are the same file %s", arts[0].Path)
	}
	return arts, nil
}
