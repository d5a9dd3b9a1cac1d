package ident

import (
	"errors"
	"math/rand/v2"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var identRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{5,9}$`)

func TestNamesAreWellFormedAndUnique(t *testing.T) {
	a := New(rand.New(rand.NewPCG(1, 1)), Config{})
	seen := map[string]bool{}
	for i := 0; i < 2000; i++ {
		n, err := a.Next()
		require.NoError(t, err)
		assert.Regexp(t, identRe, n)
		assert.False(t, seen[n], "duplicate %q", n)
		seen[n] = true
	}
	assert.Len(t, a.Issued(), 2000)
}

// fixedRand always returns the same values, so every candidate collides
// after the first one.
type fixedRand struct{}

func (fixedRand) IntN(int) int { return 0 }

func TestExhaustionFailsLoudly(t *testing.T) {
	a := New(fixedRand{}, Config{MinLen: 6, MaxLen: 6, Attempts: 5})
	first, err := a.Next()
	require.NoError(t, err)
	assert.Equal(t, "AAAAAA", first)
	_, err = a.Next()
	assert.True(t, errors.Is(err, ErrExhausted))
}

func TestReservedNeverIssued(t *testing.T) {
	a := New(fixedRand{}, Config{MinLen: 6, MaxLen: 6, Attempts: 3})
	a.Reserve("AAAAAA")
	_, err := a.Next()
	assert.ErrorIs(t, err, ErrExhausted)
	for _, kw := range []string{"end", "local", "bit32", "_G"} {
		assert.True(t, a.Taken(kw), kw)
	}
}

func TestNamesByRole(t *testing.T) {
	a := New(rand.New(rand.NewPCG(2, 2)), Config{})
	m, err := a.Names("dec", "xor", "sum")
	require.NoError(t, err)
	assert.Len(t, m, 3)
	assert.NotEqual(t, m["dec"], m["xor"])
}
