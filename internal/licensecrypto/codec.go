package licensecrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	keySize       = 32
	nonceSize     = 12
	keyIDSep      = "."
	minSecretSize = 32
)

var (
	ErrDecryptionFailure = errors.New("license key decryption failed")
	ErrInvalidConfig     = errors.New("invalid codec config")
)

// Codec encrypts license keys at rest and derives the deterministic lookup
// tokens used to find them again.
//
// Stored ciphertexts look like "<keyID>.<base64url(nonce|ciphertext|tag)>".
// The key id lets old rows keep decrypting after a new active key is
// configured. Lookup tokens have no such versioning: changing the HMAC secret
// makes every stored lookup unmatchable.
type Codec struct {
	aeads       map[string]cipher.AEAD
	activeKeyID string
	hmacSecret  []byte
	random      io.Reader
}

// New builds a codec from explicit key material.
func New(cfg Config) (*Codec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	aeads := make(map[string]cipher.AEAD, len(cfg.Keys))
	for id, key := range cfg.Keys {
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %v", ErrInvalidConfig, id, err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %v", ErrInvalidConfig, id, err)
		}
		aeads[id] = aead
	}

	random := cfg.Random
	if random == nil {
		random = rand.Reader
	}

	secret := make([]byte, len(cfg.HMACSecret))
	copy(secret, cfg.HMACSecret)

	return &Codec{
		aeads:       aeads,
		activeKeyID: cfg.ActiveKeyID,
		hmacSecret:  secret,
		random:      random,
	}, nil
}

// ActiveKeyID returns the id new ciphertexts are sealed with.
func (c *Codec) ActiveKeyID() string {
	return c.activeKeyID
}

// Encrypt seals plaintext with the active key and a fresh nonce, so the same
// plaintext never produces the same ciphertext twice.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	aead := c.aeads[c.activeKeyID]

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(c.random, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), []byte(c.activeKeyID))
	return c.activeKeyID + keyIDSep + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Any malformed input, unknown key
// id or failed authentication returns ErrDecryptionFailure.
func (c *Codec) Decrypt(stored string) (string, error) {
	keyID, encoded, ok := strings.Cut(strings.TrimSpace(stored), keyIDSep)
	if !ok || keyID == "" || encoded == "" {
		return "", ErrDecryptionFailure
	}

	aead, ok := c.aeads[keyID]
	if !ok {
		return "", fmt.Errorf("%w: unknown key id %q", ErrDecryptionFailure, keyID)
	}

	raw, err := base64.RawURLEncoding.Strict().DecodeString(encoded)
	if err != nil {
		return "", ErrDecryptionFailure
	}
	if len(raw) < nonceSize+aead.Overhead() {
		return "", ErrDecryptionFailure
	}

	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plain, err := aead.Open(nil, nonce, sealed, []byte(keyID))
	if err != nil {
		return "", ErrDecryptionFailure
	}
	return string(plain), nil
}

// LookupHash returns the hex HMAC-SHA256 of input under the server secret.
// It is deterministic and safe to store as an equality index.
func (c *Codec) LookupHash(input string) string {
	return Sign(c.hmacSecret, input)
}

// LicenseLookup builds the per-team lookup token for a plaintext key.
func (c *Codec) LicenseLookup(plaintextKey, teamID string) string {
	return c.LookupHash(plaintextKey + ":" + teamID)
}

// DeriveKey expands the HMAC secret into a scoped sub-key with HKDF-SHA256.
// The same info always yields the same key.
func (c *Codec) DeriveKey(info string, size int) ([]byte, error) {
	if size <= 0 {
		size = keySize
	}
	reader := hkdf.New(sha256.New, c.hmacSecret, nil, []byte(info))
	out := make([]byte, size)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return out, nil
}

// Sign returns the hex HMAC-SHA256 of message under key.
func Sign(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares a hex signature against the expected HMAC in
// constant time.
func VerifySignature(key []byte, message, signature string) bool {
	provided, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return subtle.ConstantTimeCompare(mac.Sum(nil), provided) == 1
}
