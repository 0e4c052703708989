package secret

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"github.com/MrEthical07/goSession/password"
)

const (
	// SecretBytes is the amount of entropy in a generated secret.
	SecretBytes = 32
	// MinKeyBytes is the minimum accepted length of the lookup key.
	MinKeyBytes = 32
)

var (
	// ErrShortKey is returned by NewCodec when the lookup key is too short.
	ErrShortKey = errors.New("secret: lookup key must be at least 32 bytes")
	// ErrNilHasher is returned by NewCodec without a hasher.
	ErrNilHasher = errors.New("secret: nil hasher")
)

// Codec generates secrets, derives their lookup ids and hashes them.
// It is safe for concurrent use.
type Codec struct {
	key    []byte
	hasher *password.Argon2
	rand   io.Reader
}

// NewCodec returns a Codec keyed with lookupKey. The key is copied.
func NewCodec(lookupKey []byte, hasher *password.Argon2) (*Codec, error) {
	if len(lookupKey) < MinKeyBytes {
		return nil, ErrShortKey
	}
	if hasher == nil {
		return nil, ErrNilHasher
	}
	return &Codec{
		key:    append([]byte(nil), lookupKey...),
		hasher: hasher,
		rand:   rand.Reader,
	}, nil
}

// Generate returns a fresh URL-safe secret.
func (c *Codec) Generate() (string, error) {
	buf := make([]byte, SecretBytes)
	if _, err := io.ReadFull(c.rand, buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// DeriveLookupID returns the storage key for raw. The MAC covers the decoded
// secret bytes; input that is not valid base64url is MACed as-is.
func (c *Codec) DeriveLookupID(raw string) string {
	msg, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		msg = []byte(raw)
	}
	mac := hmac.New(sha256.New, c.key)
	mac.Write(msg)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Hash returns the slow one-way hash stored next to the lookup id.
func (c *Codec) Hash(raw string) (string, error) {
	return c.hasher.Hash(raw)
}

// Verify reports whether raw produced hash. A malformed hash never matches.
func (c *Codec) Verify(hash, raw string) bool {
	ok, err := c.hasher.Verify(raw, hash)
	return err == nil && ok
}
