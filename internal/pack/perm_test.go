package pack

import (
	"encoding/json"
	"math/rand/v2"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type vectors struct {
	Stream []struct {
		Seed uint32   `json:"seed"`
		Next []uint32 `json:"next"`
	} `json:"stream"`
	Perm []struct {
		Seed  uint32 `json:"seed"`
		N     int    `json:"n"`
		Order []int  `json:"order"`
	} `json:"perm"`
}

func loadVectors(t *testing.T) vectors {
	t.Helper()
	b, err := os.ReadFile("testdata/xorshift.json")
	require.NoError(t, err)
	var v vectors
	require.NoError(t, json.Unmarshal(b, &v))
	return v
}

func TestXorshiftVectors(t *testing.T) {
	for _, vec := range loadVectors(t).Stream {
		x := Xorshift32(vec.Seed)
		for i, want := range vec.Next {
			assert.Equal(t, want, x.Next(), "seed %d step %d", vec.Seed, i)
		}
	}
}

func TestSeededPermutationVectors(t *testing.T) {
	for _, vec := range loadVectors(t).Perm {
		p := NewSeeded(vec.Seed, vec.N)
		assert.Equal(t, vec.Order, p.Order, "seed %d n %d", vec.Seed, vec.N)
		require.NoError(t, p.Validate())
	}
}

func TestSeededZeroSeed(t *testing.T) {
	p := NewSeeded(0, 6)
	assert.Equal(t, uint32(1), p.Seed)
	require.NoError(t, p.Validate())
}

func TestValidateRejects(t *testing.T) {
	assert.Error(t, Permutation{Order: []int{1, 1, 3}}.Validate())
	assert.Error(t, Permutation{Order: []int{0, 1}}.Validate())
	assert.Error(t, Permutation{Order: []int{1, 2, 4}}.Validate())
	assert.Error(t, Permutation{Mode: Seeded, Seed: 1, Order: []int{1, 2, 3, 4, 5}}.Validate())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, Explicit, m)
	m, err = ParseMode("seeded")
	require.NoError(t, err)
	assert.Equal(t, Seeded, m)
	_, err = ParseMode("lcg")
	assert.Error(t, err)
}

func TestExplicitIsBijection(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 64).Draw(t, "n")
		seed := rapid.Uint64().Draw(t, "seed")
		p := NewExplicit(rand.New(rand.NewPCG(seed, 7)), n)
		if err := p.Validate(); err != nil {
			t.Fatalf("not a permutation: %v", err)
		}
		pieces := make([]int, n)
		for i := range pieces {
			pieces[i] = i * 3
		}
		back := Unshuffle(p, Shuffle(p, pieces))
		for i := range pieces {
			if back[i] != pieces[i] {
				t.Fatalf("unshuffle mismatch at %d", i)
			}
		}
	})
}
