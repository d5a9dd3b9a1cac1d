// Package digest computes the reconstruction-integrity triple embedded in
// every stage: byte length, additive checksum and a multiplicative rolling
// hash. It detects corruption and logic drift; it is not collision
// resistant.
package digest

import (
	"fmt"
	"strings"
)

const (
	// HashSeed is the initial rolling hash state.
	HashSeed uint32 = 2166136261
	// HashPrime is the per-byte multiplier.
	HashPrime uint32 = 16777619
)

// Digest summarises one buffer.
type Digest struct {
	Length   uint32 `json:"length" yaml:"length"`
	Checksum uint32 `json:"checksum" yaml:"checksum"`
	Hash     uint32 `json:"hash" yaml:"hash"`
}

// Of computes the digest of b.
func Of(b []byte) Digest {
	return Digest{
		Length:   uint32(len(b)),
		Checksum: Sum32(b),
		Hash:     Hash32(b),
	}
}

// Sum32 is the sum of all bytes modulo 2^32.
func Sum32(b []byte) uint32 {
	var s uint32
	for _, c := range b {
		s += uint32(c)
	}
	return s
}

// Hash32 multiplies then XORs each byte into the state, modulo 2^32.
func Hash32(b []byte) uint32 {
	h := HashSeed
	for _, c := range b {
		h *= HashPrime
		h ^= uint32(c)
	}
	return h
}

// Mismatch lists the fields of got that differ from want; nil means equal.
func (want Digest) Mismatch(got Digest) []string {
	var out []string
	if got.Length != want.Length {
		out = append(out, "length")
	}
	if got.Checksum != want.Checksum {
		out = append(out, "checksum")
	}
	if got.Hash != want.Hash {
		out = append(out, "hash")
	}
	return out
}

// Verify recomputes the digest of b and applies policy. Under Strict any
// mismatch is an error; under Lenient it is reported through warn and nil
// is returned.
func (want Digest) Verify(b []byte, policy Policy, warn func(msg string)) error {
	bad := want.Mismatch(Of(b))
	if len(bad) == 0 {
		return nil
	}
	msg := fmt.Sprintf("%s mismatch", strings.Join(bad, ", "))
	if policy == Lenient {
		if warn != nil {
			warn(msg)
		}
		return nil
	}
	return &IntegrityError{Fields: bad}
}

// IntegrityError is returned by Verify under the strict policy.
type IntegrityError struct {
	Fields []string
}

func (e *IntegrityError) Error() string {
	return "integrity check failed: " + strings.Join(e.Fields, ", ") + " mismatch"
}
