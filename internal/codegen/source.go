package codegen

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/dtc/internal/ir"
)

// Namespace is the UUID namespace of generated artifact ids.
var Namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/roach88/dtc"))

// ArtifactID is the stable id of one generated artifact of m. It only
// depends on the plan fingerprint and role.
func (m *Model) ArtifactID(role string) uuid.UUID {
	return uuid.NewSHA1(Namespace, []byte(m.Plan.Fingerprint+"/"+role))
}

// PlanLiteral is PlanJSON safe to embed in a Go raw string literal.
// Backquotes can only occur inside JSON strings, where \u0060 decodes to
// the same text.
func (m *Model) PlanLiteral() string {
	return strings.ReplaceAll(string(m.PlanJSON), "`", `\u0060`)
}

// QueryID is the wire id of the plan in hex.
func (m *Model) QueryID() string {
	return fmt.Sprintf("%#016x", m.Plan.Query)
}

// Summary describes the levels of the plan, one line each, for comments in
// generated files.
func (m *Model) Summary() []string {
	p := m.Plan
	lines := make([]string, 0, len(p.Levels)+2)
	for _, l := range p.Levels {
		name := l.Node
		if l.Edge != "" {
			name = l.Edge + " -> " + l.Node
		}
		var flags []string
		if l.Index == p.Root {
			flags = append(flags, "root")
		}
		if l.Optional {
			flags = append(flags, "optional")
		}
		line := fmt.Sprintf("level %d: %s", l.Index, name)
		if len(flags) > 0 {
			line += " (" + strings.Join(flags, ", ") + ")"
		}
		if l.Predicate != "" {
			line += " where " + l.Predicate
		}
		lines = append(lines, line)
	}
	if p.Filter != "" {
		lines = append(lines, "filter: "+p.Filter)
	}
	lines = append(lines, "aggregation: "+p.Aggregation.Name)
	return lines
}

// Header describes a generated file: where its query came from, which
// backend produced it and the plan summary.
func (m *Model) Header(source, backend string) []string {
	lines := []string{
		"query:       " + source,
		"backend:     " + backend + ", dtc " + ir.CompilerVersion,
		"fingerprint: " + m.Plan.Fingerprint,
		"",
	}
	return append(lines, m.Summary()...)
}
