// Package ir provides the target-independent intermediate representation of
// a compiled pattern query.
//
// This package contains type definitions and canonical encoding only. All
// other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - QueryIR is built once by the compiler and never mutated afterwards
//   - Expressions and values are sealed interfaces with exhaustive switches
//   - Pattern order is preserved, maps are iterated in sorted order only
//   - Identity is content-addressed: see Fingerprint
package ir
