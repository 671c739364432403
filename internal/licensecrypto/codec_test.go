package licensecrypto

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/smallbiznis/licensehub/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, keySize)
}

func newTestCodec(t *testing.T) *Codec {
	t.Helper()

	codec, err := New(Config{
		Keys:        map[string][]byte{"k1": testKey(1)},
		ActiveKeyID: "k1",
		HMACSecret:  []byte(strings.Repeat("s", 32)),
	})
	require.NoError(t, err)
	return codec
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	inputs := []string{"", "ABCDE-FGHIJ-KLMNO-PQRST-UVWXY", "ünïcødé ✓", strings.Repeat("x", 4096)}
	for _, plain := range inputs {
		stored, err := codec.Encrypt(plain)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(stored, "k1."))

		got, err := codec.Decrypt(stored)
		require.NoError(t, err)
		assert.Equal(t, plain, got)
	}
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	codec := newTestCodec(t)

	a, err := codec.Encrypt("ABCDE-FGHIJ")
	require.NoError(t, err)
	b, err := codec.Encrypt("ABCDE-FGHIJ")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestLookupHashIsDeterministic(t *testing.T) {
	codec := newTestCodec(t)

	assert.Equal(t, codec.LookupHash("KEY:1"), codec.LookupHash("KEY:1"))
	assert.NotEqual(t, codec.LookupHash("KEY:1"), codec.LookupHash("KEY:2"))
	assert.Equal(t, codec.LookupHash("KEY:42"), codec.LicenseLookup("KEY", "42"))
	assert.Len(t, codec.LookupHash("anything"), 64)
}

func TestLookupHashDependsOnSecret(t *testing.T) {
	a := newTestCodec(t)
	b, err := New(Config{
		Keys:        map[string][]byte{"k1": testKey(1)},
		ActiveKeyID: "k1",
		HMACSecret:  []byte(strings.Repeat("t", 32)),
	})
	require.NoError(t, err)

	assert.NotEqual(t, a.LookupHash("KEY:1"), b.LookupHash("KEY:1"))
}

func TestDecryptDetectsTampering(t *testing.T) {
	codec := newTestCodec(t)

	stored, err := codec.Encrypt("ABCDE-FGHIJ-KLMNO-PQRST-UVWXY")
	require.NoError(t, err)

	for i := 0; i < len(stored); i++ {
		tampered := []byte(stored)
		tampered[i] ^= 0x01
		_, err := codec.Decrypt(string(tampered))
		if !errors.Is(err, ErrDecryptionFailure) {
			t.Fatalf("flipping byte %d: expected ErrDecryptionFailure, got %v", i, err)
		}
	}
}

func TestDecryptRejectsMalformedInput(t *testing.T) {
	codec := newTestCodec(t)

	for _, input := range []string{"", "k1", "k1.", ".abc", "k1.!!!", "k1." + base64.RawURLEncoding.EncodeToString([]byte("short"))} {
		_, err := codec.Decrypt(input)
		assert.ErrorIs(t, err, ErrDecryptionFailure, "input %q", input)
	}
}

func TestDecryptWithRotatedKeys(t *testing.T) {
	old, err := New(Config{
		Keys:        map[string][]byte{"k1": testKey(1)},
		ActiveKeyID: "k1",
		HMACSecret:  []byte(strings.Repeat("s", 32)),
	})
	require.NoError(t, err)

	stored, err := old.Encrypt("LEGACY-KEY")
	require.NoError(t, err)

	rotated, err := New(Config{
		Keys:        map[string][]byte{"k1": testKey(1), "k2": testKey(2)},
		ActiveKeyID: "k2",
		HMACSecret:  []byte(strings.Repeat("s", 32)),
	})
	require.NoError(t, err)

	got, err := rotated.Decrypt(stored)
	require.NoError(t, err)
	assert.Equal(t, "LEGACY-KEY", got)

	fresh, err := rotated.Encrypt("NEW-KEY")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(fresh, "k2."))

	_, err = old.Decrypt(fresh)
	assert.ErrorIs(t, err, ErrDecryptionFailure)
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	codec := newTestCodec(t)
	stored, err := codec.Encrypt("ABCDE")
	require.NoError(t, err)

	other, err := New(Config{
		Keys:        map[string][]byte{"k1": testKey(9)},
		ActiveKeyID: "k1",
		HMACSecret:  []byte(strings.Repeat("s", 32)),
	})
	require.NoError(t, err)

	_, err = other.Decrypt(stored)
	assert.ErrorIs(t, err, ErrDecryptionFailure)
}

func TestDeriveKey(t *testing.T) {
	codec := newTestCodec(t)

	a, err := codec.DeriveKey("team-signing:1", 0)
	require.NoError(t, err)
	b, err := codec.DeriveKey("team-signing:1", 0)
	require.NoError(t, err)
	c, err := codec.DeriveKey("team-signing:2", 0)
	require.NoError(t, err)

	assert.Len(t, a, keySize)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestSignAndVerify(t *testing.T) {
	key := []byte("signing-key")
	sig := Sign(key, "challenge")

	assert.True(t, VerifySignature(key, "challenge", sig))
	assert.False(t, VerifySignature(key, "other", sig))
	assert.False(t, VerifySignature([]byte("other-key"), "challenge", sig))
	assert.False(t, VerifySignature(key, "challenge", "not-hex"))
}

func TestConfigValidation(t *testing.T) {
	secret := []byte(strings.Repeat("s", 32))
	cases := []struct {
		name string
		cfg  Config
	}{
		{name: "no keys", cfg: Config{ActiveKeyID: "k1", HMACSecret: secret}},
		{name: "short key", cfg: Config{Keys: map[string][]byte{"k1": []byte("short")}, ActiveKeyID: "k1", HMACSecret: secret}},
		{name: "missing active", cfg: Config{Keys: map[string][]byte{"k1": testKey(1)}, ActiveKeyID: "k2", HMACSecret: secret}},
		{name: "dotted id", cfg: Config{Keys: map[string][]byte{"k.1": testKey(1)}, ActiveKeyID: "k.1", HMACSecret: secret}},
		{name: "short secret", cfg: Config{Keys: map[string][]byte{"k1": testKey(1)}, ActiveKeyID: "k1", HMACSecret: []byte("short")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestNewFromConfig(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(testKey(3))

	codec, err := NewFromConfig(config.Config{
		Crypto: config.CryptoConfig{
			EncryptionKeys: "primary:" + encoded,
			HMACSecret:     strings.Repeat("h", 32),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "primary", codec.ActiveKeyID())

	_, err = ParseKeys("broken")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
