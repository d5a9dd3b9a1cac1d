// Package cipher implements the per-literal byte cipher: XOR with a key,
// then an additive shift modulo 256, then radix-64 (standard base64) text.
// It hides literals from casual inspection and is not cryptography.
package cipher

import "encoding/base64"

// Default sampling bounds, inclusive. Any key byte and any shift are
// reversible; the bounds only keep the keys away from trivial values.
const (
	MinKey   = 7
	MaxKey   = 251
	MinShift = 1
	MaxShift = 25
)

// Rand is the randomness source the package draws keys from. *rand.Rand
// from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

// Encrypted is one ciphertext record.
type Encrypted struct {
	Data  string `json:"b64"`
	Key   byte   `json:"key"`
	Shift byte   `json:"shift"`
}

// Between returns a uniform integer in [lo, hi].
func Between(r Rand, lo, hi int) int {
	return lo + r.IntN(hi-lo+1)
}

// SampleKey draws a key and shift from the default bounds.
func SampleKey(r Rand) (key, shift byte) {
	return byte(Between(r, MinKey, MaxKey)), byte(Between(r, MinShift, MaxShift))
}

// Encrypt keys plain with a freshly sampled key and shift.
func Encrypt(r Rand, plain []byte) Encrypted {
	key, shift := SampleKey(r)
	return EncryptWith(plain, key, shift)
}

// EncryptWith is Encrypt with a caller-chosen key and shift.
func EncryptWith(plain []byte, key, shift byte) Encrypted {
	return Encrypted{
		Data:  base64.StdEncoding.EncodeToString(Seal(plain, key, shift)),
		Key:   key,
		Shift: shift,
	}
}

// Decrypt reverses Encrypt.
func Decrypt(e Encrypted) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(e.Data)
	if err != nil {
		return nil, err
	}
	return Open(raw, e.Key, e.Shift), nil
}

// Seal applies XOR then shift and returns a new slice.
func Seal(plain []byte, key, shift byte) []byte {
	out := make([]byte, len(plain))
	for i, b := range plain {
		out[i] = (b ^ key) + shift
	}
	return out
}

// Open undoes Seal: shift first, then XOR.
func Open(sealed []byte, key, shift byte) []byte {
	out := make([]byte, len(sealed))
	for i, b := range sealed {
		out[i] = (b - shift) ^ key
	}
	return out
}
