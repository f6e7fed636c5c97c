package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// apiKeyBytes is the entropy of generated agent API keys (64 hex characters).
const apiKeyBytes = 32

// APIKeyHasher defines hashing and verification of agent API keys.
type APIKeyHasher interface {
	// Hash returns the bcrypt hash of the given key.
	Hash(key string) (string, error)

	// Compare compares a stored hash with a presented key.
	// Returns ErrInvalidAPIKey on mismatch.
	Compare(hash, key string) error
}

// BcryptHasher implements APIKeyHasher using bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher with the given cost.
// A cost of 0 uses the bcrypt default.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

var _ APIKeyHasher = (*BcryptHasher)(nil)

// Hash implements APIKeyHasher.
func (h *BcryptHasher) Hash(key string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), h.cost)
	if err != nil {
		return "", fmt.Errorf("hashing API key: %w", err)
	}
	return string(hashed), nil
}

// Compare implements APIKeyHasher.
func (h *BcryptHasher) Compare(hash, key string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
		return ErrInvalidAPIKey
	}
	return nil
}

// GenerateAPIKey returns a new random agent API key.
// The key is shown to the agent exactly once at registration.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, apiKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating API key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
