package ir

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/go-faster/errors"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainQuery    = "dtc/query/v1"
	DomainPlan     = "dtc/plan/v1"
	DomainArtifact = "dtc/artifact/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes the content-addressed identity of a query.
// Two queries that differ only in formatting, comments or the order of
// top-level conjuncts share a fingerprint.
func Fingerprint(q *QueryIR) (string, error) {
	canonical, err := MarshalCanonical(q.Canonical())
	if err != nil {
		return "", errors.Wrap(err, "fingerprint")
	}
	return hashWithDomain(DomainQuery, canonical), nil
}

// HashCanonical hashes an arbitrary canonical value under the given domain.
func HashCanonical(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", errors.Wrapf(err, "hash %s", domain)
	}
	return hashWithDomain(domain, canonical), nil
}

// ArtifactDigest hashes generated source text.
func ArtifactDigest(content []byte) string {
	return hashWithDomain(DomainArtifact, content)
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests or when the query is known to be valid.
func MustFingerprint(q *QueryIR) string {
	fp, err := Fingerprint(q)
	if err != nil {
		panic(err)
	}
	return fp
}
