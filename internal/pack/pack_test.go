package pack

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"luaobf/internal/digest"
)

func TestBoundsClamp(t *testing.T) {
	assert.Equal(t, 5, Stage1Bounds.Clamp(1))
	assert.Equal(t, 48, Stage1Bounds.Clamp(100))
	assert.Equal(t, 10, Stage1Bounds.Clamp(10))
	assert.Equal(t, 6, Stage2Bounds.Clamp(-3))
	assert.Equal(t, 64, Stage2Bounds.Clamp(65))
}

func TestPieceSizeFloor(t *testing.T) {
	assert.Equal(t, 64, Stage1Bounds.PieceSize(100, 10))
	assert.Equal(t, 100, Stage1Bounds.PieceSize(1000, 10))
	assert.Equal(t, 48, Stage2Bounds.PieceSize(0, 14))
}

func TestCountMatchesSplit(t *testing.T) {
	// 3134 bytes at the 48-byte floor: 65 full pieces and a 14-byte tail.
	assert.Equal(t, 66, Stage2Bounds.Count(3134, 64))
	assert.Equal(t, 0, Stage2Bounds.Count(0, 14))
	rapid.Check(t, func(t *rapid.T) {
		b := rapid.SampledFrom([]Bounds{Stage1Bounds, Stage2Bounds}).Draw(t, "bounds")
		length := rapid.IntRange(0, 20000).Draw(t, "length")
		n := rapid.IntRange(-5, 100).Draw(t, "n")
		got := len(Split(make([]byte, length), b.PieceSize(length, n)))
		if got != b.Count(length, n) {
			t.Fatalf("Count(%d,%d) = %d, Split gives %d", length, n, b.Count(length, n), got)
		}
	})
}

func TestSplit(t *testing.T) {
	assert.Equal(t, []string{"abc", "def", "g"}, Split("abcdefg", 3))
	assert.Nil(t, Split([]byte{}, 4))
}

func TestPackEmptyBuffer(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	for _, layout := range []Layout{Text, Keyed} {
		p := Pack(r, nil, Config{Layout: layout, Bounds: Stage2Bounds, Pieces: 14})
		got, err := p.Unpack()
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.Equal(t, digest.Of(nil), p.Digest)
	}
}

func TestPackKeyedRecordsLengths(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 6))
	buf := bytes.Repeat([]byte("0123456789"), 30)
	p := Pack(r, buf, Config{Layout: Keyed, Bounds: Stage2Bounds, Pieces: 6, Mode: Explicit})
	require.Len(t, p.Chunks, 6) // max(48, 300/6) = 50 bytes per piece
	total := 0
	for _, c := range p.Chunks {
		total += c.Length
	}
	assert.Equal(t, len(buf), total)
}

func TestPackCorruptionChangesOutput(t *testing.T) {
	r := rand.New(rand.NewPCG(9, 9))
	buf := bytes.Repeat([]byte("print('x')\n"), 40)
	p := Pack(r, buf, Config{Layout: Text, Bounds: Stage1Bounds, Pieces: 10})
	c := []byte(p.Chunks[0].Data)
	if c[0] == 'A' {
		c[0] = 'B'
	} else {
		c[0] = 'A'
	}
	p.Chunks[0].Data = string(c)
	got, err := p.Unpack()
	require.NoError(t, err)
	assert.NotEmpty(t, p.Digest.Mismatch(digest.Of(got)))
}

func TestPackRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		buf := rapid.SliceOfN(rapid.Byte(), 0, 2048).Draw(t, "buf")
		n := rapid.IntRange(-10, 100).Draw(t, "n")
		layout := Layout(rapid.IntRange(0, 1).Draw(t, "layout"))
		mode := rapid.SampledFrom([]Mode{Explicit, Seeded}).Draw(t, "mode")
		bounds := rapid.SampledFrom([]Bounds{Stage1Bounds, Stage2Bounds}).Draw(t, "bounds")
		r := rand.New(rand.NewPCG(rapid.Uint64().Draw(t, "s1"), rapid.Uint64().Draw(t, "s2")))

		p := Pack(r, buf, Config{Layout: layout, Bounds: bounds, Pieces: n, Mode: mode})
		if err := p.Perm.Validate(); err != nil {
			t.Fatalf("bad permutation: %v", err)
		}
		got, err := p.Unpack()
		if err != nil {
			t.Fatalf("unpack: %v", err)
		}
		if !bytes.Equal(got, buf) {
			t.Fatalf("round trip mismatch")
		}
		if p.Digest != digest.Of(got) {
			t.Fatalf("digest mismatch")
		}
	})
}
