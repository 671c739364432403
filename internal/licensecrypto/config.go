package licensecrypto

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/smallbiznis/licensehub/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("license.crypto",
	fx.Provide(NewFromConfig),
)

// Config is the key material a Codec is built from. It is loaded once at
// startup and never mutated afterwards.
type Config struct {
	// Keys maps key ids to 32-byte AES-256 keys.
	Keys        map[string][]byte
	ActiveKeyID string
	HMACSecret  []byte

	// Random overrides the nonce source; nil means crypto/rand.
	Random io.Reader
}

func (c Config) Validate() error {
	if len(c.Keys) == 0 {
		return fmt.Errorf("%w: no encryption keys", ErrInvalidConfig)
	}
	for id, key := range c.Keys {
		if id == "" || strings.Contains(id, keyIDSep) {
			return fmt.Errorf("%w: key id %q must be non-empty and contain no %q", ErrInvalidConfig, id, keyIDSep)
		}
		if len(key) != keySize {
			return fmt.Errorf("%w: key %q must be %d bytes, got %d", ErrInvalidConfig, id, keySize, len(key))
		}
	}
	if _, ok := c.Keys[c.ActiveKeyID]; !ok {
		return fmt.Errorf("%w: active key %q is not configured", ErrInvalidConfig, c.ActiveKeyID)
	}
	if len(c.HMACSecret) < minSecretSize {
		return fmt.Errorf("%w: hmac secret must be at least %d bytes", ErrInvalidConfig, minSecretSize)
	}
	return nil
}

// ParseKeys decodes "id:base64key,id2:base64key2" into a key map.
func ParseKeys(raw string) (map[string][]byte, error) {
	keys := map[string][]byte{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, encoded, ok := strings.Cut(part, ":")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("%w: malformed key entry", ErrInvalidConfig)
		}
		key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
		if err != nil {
			return nil, fmt.Errorf("%w: key %q is not base64: %v", ErrInvalidConfig, id, err)
		}
		keys[id] = key
	}
	return keys, nil
}

// NewFromConfig builds the process-wide codec from application config.
func NewFromConfig(cfg config.Config) (*Codec, error) {
	keys, err := ParseKeys(cfg.Crypto.EncryptionKeys)
	if err != nil {
		return nil, err
	}

	activeKeyID := cfg.Crypto.ActiveKeyID
	if activeKeyID == "" && len(keys) == 1 {
		for id := range keys {
			activeKeyID = id
		}
	}

	return New(Config{
		Keys:        keys,
		ActiveKeyID: activeKeyID,
		HMACSecret:  []byte(cfg.Crypto.HMACSecret),
	})
}
