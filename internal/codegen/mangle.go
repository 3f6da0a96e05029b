package codegen

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Identifier prefixes. Every generated identifier carries one, so no
// identifier clashes with a keyword or built-in of the target language.
const (
	VarPrefix = "v_"
	UDFPrefix = "udf_"
)

// Mangler maps pattern variable and UDF names to identifiers.
//
// Names are folded to ASCII: accents are stripped and every other
// character outside [A-Za-z0-9] becomes '_'. Two names folding to the same
// identifier are told apart by a hash suffix, so the mapping only depends
// on the names themselves and the order they are first seen.
type Mangler struct {
	idents map[string]string // name -> ident
	owners map[string]string // ident -> name
}

// NewMangler creates an empty Mangler.
func NewMangler() *Mangler {
	return &Mangler{
		idents: make(map[string]string),
		owners: make(map[string]string),
	}
}

// Var returns the identifier of a pattern variable.
func (m *Mangler) Var(name string) string { return m.ident(VarPrefix, name) }

// UDF returns the identifier of a user-defined function.
func (m *Mangler) UDF(name string) string { return m.ident(UDFPrefix, name) }

func (m *Mangler) ident(prefix, name string) string {
	key := prefix + name
	if id, ok := m.idents[key]; ok {
		return id
	}

	id := prefix + fold(name)
	if owner, taken := m.owners[id]; taken && owner != key {
		id = fmt.Sprintf("%s_%08x", id, uint32(xxhash.Sum64String(name)))
	}
	m.idents[key] = id
	m.owners[id] = key
	return id
}

// Idents returns every assigned identifier by original name.
func (m *Mangler) Idents() map[string]string {
	out := make(map[string]string, len(m.idents))
	for k, v := range m.idents {
		out[k] = v
	}
	return out
}

func fold(name string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, name)
	if err != nil {
		s = name
	}

	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
