package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
)

const (
	// KeyPrefix is the prefix for generated API keys
	KeyPrefix = "dd_key_"
	// KeyLength is the length of the random part of the key
	KeyLength = 32
)

// ErrInvalidKey is returned for unknown API keys.
var ErrInvalidKey = errors.New("invalid API key")

// Principal identifies the caller behind a validated key.
type Principal struct {
	KeyID string
}

// KeyValidator validates API keys.
type KeyValidator interface {
	ValidateAPIKey(ctx context.Context, key string) (*Principal, error)
}

// StaticKey validates against a single configured key.
type StaticKey struct {
	hash []byte
	id   string
}

// NewStaticKey returns a validator for key. The key itself is not retained.
func NewStaticKey(key string) *StaticKey {
	sum := sha256.Sum256([]byte(key))
	hashed := HashAPIKey(key)
	return &StaticKey{hash: sum[:], id: hashed[:12]}
}

// ValidateAPIKey compares key in constant time.
func (s *StaticKey) ValidateAPIKey(_ context.Context, key string) (*Principal, error) {
	sum := sha256.Sum256([]byte(key))
	if subtle.ConstantTimeCompare(sum[:], s.hash) != 1 {
		return nil, ErrInvalidKey
	}
	return &Principal{KeyID: s.id}, nil
}

// GenerateAPIKey generates a new API key.
func GenerateAPIKey() (string, error) {
	bytes := make([]byte, KeyLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}
	return KeyPrefix + hex.EncodeToString(bytes), nil
}

// HashAPIKey hashes an API key for logging and comparison.
func HashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}
