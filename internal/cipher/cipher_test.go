package cipher

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	e := Encrypt(r, []byte("hello"))
	assert.GreaterOrEqual(t, int(e.Key), MinKey)
	assert.LessOrEqual(t, int(e.Key), MaxKey)
	assert.GreaterOrEqual(t, int(e.Shift), MinShift)
	assert.LessOrEqual(t, int(e.Shift), MaxShift)
	got, err := Decrypt(e)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestSealKnownVector(t *testing.T) {
	// 'A' (0x41) ^ 0x07 = 0x46, + 1 = 0x47
	assert.Equal(t, []byte{0x47}, Seal([]byte("A"), 7, 1))
	// wraps modulo 256
	assert.Equal(t, []byte{0x04}, Seal([]byte{0xff}, 0x00, 5))
	assert.Equal(t, []byte{0xff}, Open([]byte{0x04}, 0x00, 5))
}

func TestDecryptRejectsBadBase64(t *testing.T) {
	_, err := Decrypt(Encrypted{Data: "!!"})
	assert.Error(t, err)
}

func TestRoundTripAllKeys(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		plain := rapid.SliceOf(rapid.Byte()).Draw(t, "plain")
		key := rapid.Byte().Draw(t, "key")
		shift := rapid.Byte().Draw(t, "shift")
		got, err := Decrypt(EncryptWith(plain, key, shift))
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if string(got) != string(plain) {
			t.Fatalf("round trip mismatch: %x != %x", got, plain)
		}
	})
}
