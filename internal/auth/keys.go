package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
)

// APIKeyStore validates API keys presented to the status server.
type APIKeyStore interface {
	Validate(ctx context.Context, key string) (bool, error)
}

// StaticKeyStore accepts a fixed set of keys, typically from SYNC_API_KEYS.
type StaticKeyStore struct {
	keys [][]byte
}

func NewStaticKeyStore(keys []string) *StaticKeyStore {
	s := &StaticKeyStore{}
	for _, k := range keys {
		if k != "" {
			s.keys = append(s.keys, []byte(k))
		}
	}
	return s
}

// Validate compares key against every configured key in constant time.
// An empty store rejects everything.
func (s *StaticKeyStore) Validate(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("missing key")
	}
	ok := 0
	for _, k := range s.keys {
		ok |= subtle.ConstantTimeCompare(k, []byte(key))
	}
	return ok == 1, nil
}

// Len returns the number of configured keys.
func (s *StaticKeyStore) Len() int { return len(s.keys) }

// HashPrefix returns the first 8 hex chars of SHA-256(key) for logging.
func HashPrefix(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:8]
}
