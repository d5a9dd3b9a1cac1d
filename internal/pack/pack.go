// Package pack splits a buffer into chunks, keys them, and scrambles their
// storage order with a Permutation. Two layouts exist:
//
//   - Text: the whole buffer is keyed once, radix-64 encoded, and the text
//     is split. This is the outer (stage-1) carrier.
//   - Keyed: the raw buffer is split and every chunk gets its own key,
//     shift and recorded length before encoding. This is the inner
//     (stage-2) program body.
//
// Unpack is the reference decoder; the Lua decoders in package stage must
// agree with it byte for byte.
package pack

import (
	"encoding/base64"
	"fmt"
	"strings"

	"luaobf/internal/cipher"
	"luaobf/internal/digest"
)

// Rand is the randomness source for keys and permutations.
type Rand interface {
	IntN(n int) int
	Uint32() uint32
}

// Layout selects the chunking scheme.
type Layout int

const (
	Text Layout = iota
	Keyed
)

// Bounds clamps a requested piece count and sets the minimum piece size.
type Bounds struct {
	Min, Max  int
	FloorSize int
}

var (
	Stage1Bounds = Bounds{Min: 5, Max: 48, FloorSize: 64}
	Stage2Bounds = Bounds{Min: 6, Max: 64, FloorSize: 48}
)

// Clamp forces n into [Min, Max].
func (b Bounds) Clamp(n int) int {
	return max(b.Min, min(b.Max, n))
}

// PieceSize returns max(FloorSize, length/n) for the clamped n.
func (b Bounds) PieceSize(length, n int) int {
	return max(b.FloorSize, length/b.Clamp(n))
}

// Count returns how many pieces a buffer of length bytes is split into
// for a requested count n. A short trailing remainder is its own piece, so
// the result can exceed the clamped n.
func (b Bounds) Count(length, n int) int {
	if length <= 0 {
		return 0
	}
	size := b.PieceSize(length, n)
	return (length + size - 1) / size
}

// Split cuts b into fixed-stride pieces; the last one may be shorter. An
// empty buffer yields no pieces.
func Split[T ~string | ~[]byte](b T, size int) []T {
	var out []T
	for i := 0; i < len(b); i += size {
		out = append(out, b[i:min(i+size, len(b))])
	}
	return out
}

// Chunk is one stored piece.
type Chunk struct {
	Data   string `json:"b64"`
	Key    byte   `json:"key,omitempty"`
	Shift  byte   `json:"shift,omitempty"`
	Length int    `json:"length"`
}

// Payload is a packed buffer. Chunks are in storage (permuted) order.
type Payload struct {
	Layout Layout        `json:"layout"`
	Chunks []Chunk       `json:"chunks"`
	Perm   Permutation   `json:"permutation"`
	Digest digest.Digest `json:"digest"`
	// Key and Shift are the whole-buffer key of the Text layout.
	Key   byte `json:"key,omitempty"`
	Shift byte `json:"shift,omitempty"`
}

// Config controls Pack.
type Config struct {
	Layout Layout
	Bounds Bounds
	Pieces int
	Mode   Mode
}

// Pack packs buf according to cfg, drawing every key, shift and seed from r.
func Pack(r Rand, buf []byte, cfg Config) Payload {
	p := Payload{Layout: cfg.Layout, Digest: digest.Of(buf)}
	var chunks []Chunk
	switch cfg.Layout {
	case Text:
		p.Key, p.Shift = cipher.SampleKey(r)
		text := base64.StdEncoding.EncodeToString(cipher.Seal(buf, p.Key, p.Shift))
		for _, s := range Split(text, cfg.Bounds.PieceSize(len(text), cfg.Pieces)) {
			chunks = append(chunks, Chunk{Data: s, Length: len(s)})
		}
	case Keyed:
		for _, piece := range Split(buf, cfg.Bounds.PieceSize(len(buf), cfg.Pieces)) {
			e := cipher.Encrypt(r, piece)
			chunks = append(chunks, Chunk{Data: e.Data, Key: e.Key, Shift: e.Shift, Length: len(piece)})
		}
	}
	p.Perm = New(r, cfg.Mode, len(chunks))
	p.Chunks = Shuffle(p.Perm, chunks)
	return p
}

// Unpack reconstructs the original buffer and verifies nothing; callers
// compare against Digest under their own policy.
func (p Payload) Unpack() ([]byte, error) {
	if len(p.Perm.Order) != len(p.Chunks) {
		return nil, fmt.Errorf("permutation covers %d pieces, payload has %d", len(p.Perm.Order), len(p.Chunks))
	}
	ordered := Unshuffle(p.Perm, p.Chunks)
	switch p.Layout {
	case Text:
		var sb strings.Builder
		for _, c := range ordered {
			sb.WriteString(c.Data)
		}
		raw, err := base64.StdEncoding.DecodeString(sb.String())
		if err != nil {
			return nil, fmt.Errorf("decode carrier: %w", err)
		}
		return cipher.Open(raw, p.Key, p.Shift), nil
	case Keyed:
		var out []byte
		for i, c := range ordered {
			b, err := cipher.Decrypt(cipher.Encrypted{Data: c.Data, Key: c.Key, Shift: c.Shift})
			if err != nil {
				return nil, fmt.Errorf("decode chunk %d: %w", i, err)
			}
			out = append(out, b...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown layout %d", p.Layout)
}

// Pieces returns the stored chunk data in storage order.
func (p Payload) Pieces() []string {
	out := make([]string, len(p.Chunks))
	for i, c := range p.Chunks {
		out[i] = c.Data
	}
	return out
}
