package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TokenService defines operations for managing agent authentication tokens.
type TokenService interface {
	// GenerateToken creates a signed JWT for the given agent.
	// Returns the token string or an error if signing fails.
	GenerateToken(ctx context.Context, agentID uuid.UUID) (string, error)

	// ValidateToken validates the provided token string and extracts the claims.
	// Returns ErrExpiredToken, ErrTokenNotYetValid, or ErrInvalidToken on failure.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the validated claims extracted from an agent token.
type Claims struct {
	// AgentID is the unique identifier of the agent the token was issued for.
	AgentID uuid.UUID `json:"aid,omitempty"`

	// Standard registered JWT claims
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
