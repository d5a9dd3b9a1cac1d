package digest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEmptyBuffer(t *testing.T) {
	assert.Equal(t, Digest{Length: 0, Checksum: 0, Hash: HashSeed}, Of(nil))
}

func TestKnownVector(t *testing.T) {
	d := Of([]byte("a"))
	assert.Equal(t, uint32(1), d.Length)
	assert.Equal(t, uint32(97), d.Checksum)
	h := HashSeed
	h *= HashPrime
	assert.Equal(t, h^97, d.Hash)
}

func TestChecksumWraps(t *testing.T) {
	b := make([]byte, 1<<10)
	for i := range b {
		b[i] = 0xff
	}
	assert.Equal(t, uint32(0xff*len(b)), Sum32(b))
}

func TestVerifyPolicies(t *testing.T) {
	want := Of([]byte("payload"))
	corrupt := []byte("paylaod")

	err := want.Verify(corrupt, Strict, nil)
	var ie *IntegrityError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, []string{"hash"}, ie.Fields)

	var warned string
	require.NoError(t, want.Verify(corrupt, Lenient, func(m string) { warned = m }))
	assert.Equal(t, "hash mismatch", warned)

	require.NoError(t, want.Verify([]byte("payload"), Strict, nil))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, Strict, p)
	p, err = ParsePolicy("lenient")
	require.NoError(t, err)
	assert.Equal(t, Lenient, p)
	_, err = ParsePolicy("loose")
	assert.Error(t, err)
}

func TestDeterministicAndSensitive(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := rapid.SliceOfN(rapid.Byte(), 1, 256).Draw(t, "b")
		if Of(b) != Of(append([]byte(nil), b...)) {
			t.Fatalf("digest not deterministic")
		}
		i := rapid.IntRange(0, len(b)-1).Draw(t, "i")
		delta := rapid.ByteRange(1, 255).Draw(t, "delta")
		c := append([]byte(nil), b...)
		c[i] += delta
		// a single changed byte always moves the checksum
		if Of(c) == Of(b) {
			t.Fatalf("single byte change not detected at %d", i)
		}
	})
}
