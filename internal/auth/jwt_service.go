// Package auth issues and validates the bearer tokens that guard the HTTP
// API and the notification socket when a signing secret is configured.
package auth

import (
	"context"
	"time"
)

// JWTService defines the interface for JWT token operations.
type JWTService interface {
	// GenerateToken signs a token for subject valid for the given lifetime.
	GenerateToken(ctx context.Context, subject string, lifetime time.Duration) (string, error)

	// ValidateToken verifies a token and returns its claims.
	// Returns ErrExpiredToken, ErrTokenNotYetValid or ErrInvalidToken on failure.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims is the validated content of a token.
type Claims struct {
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
