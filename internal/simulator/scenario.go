package simulator

import (
	"bytes"
	"os"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/roach88/dtc/internal/codegen"
	"github.com/roach88/dtc/pkg/tracefilter"
)

// Scenario is a replayable sequence of hop observations with an optional
// expected result.
//
//	name: errors-on-edge
//	description: two calls from A to B
//	traces:
//	  - spans:
//	      - {id: a1, attributes: {service.name: A, response.code: 200}}
//	      - {id: b1, parent: a1, attributes: {service.name: B, response.code: 500}}
//	expect: ["1"]
type Scenario struct {
	// Name identifies the scenario and seeds synthetic trace ids.
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	// TraceSpecs are replayed in order.
	TraceSpecs []tracefilter.TraceSpec `yaml:"traces"`

	// Expect lists the expected result rows as rendered by
	// tracefilter.Row.String. Nil means no expectation.
	Expect []string `yaml:"expect,omitempty"`
}

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read scenario")
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %s", path)
	}
	return s, nil
}

// ParseScenario decodes and validates a scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, errors.Wrap(err, "parse yaml")
	}
	if err := s.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid scenario")
	}
	return &s, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if len(s.TraceSpecs) == 0 {
		return errors.New("traces list is required and must be non-empty")
	}
	for i, t := range s.TraceSpecs {
		if len(t.Spans) == 0 {
			return errors.Errorf("traces[%d]: spans list is required and must be non-empty", i)
		}
		seen := make(map[string]bool, len(t.Spans))
		for j, sp := range t.Spans {
			if sp.ID == "" {
				return errors.Errorf("traces[%d].spans[%d]: id is required", i, j)
			}
			if seen[sp.ID] {
				return errors.Errorf("traces[%d].spans[%d]: duplicate span id %q", i, j, sp.ID)
			}
			seen[sp.ID] = true
		}
	}
	return nil
}

// Traces converts the scenario traces. Traces without an id get a
// deterministic one derived from the scenario name and position.
func (s *Scenario) Traces() []tracefilter.Trace {
	out := make([]tracefilter.Trace, len(s.TraceSpecs))
	for i, spec := range s.TraceSpecs {
		if spec.ID == "" {
			spec.ID = TraceID(s.Name, i)
		}
		out[i] = spec.Trace()
	}
	return out
}

// TraceID is the synthetic id of the i-th trace of a scenario.
func TraceID(scenario string, i int) string {
	id := uuid.NewSHA1(codegen.Namespace, []byte(scenario+"/trace/"+strconv.Itoa(i)))
	return id.String()
}
