package auth

import "errors"

// Common authentication errors.
var (
	// ErrInvalidToken is returned when a token is malformed, carries a bad
	// signature or uses an unexpected signing method.
	ErrInvalidToken = errors.New("invalid authentication token")

	// ErrExpiredToken is returned when a token's expiry has passed.
	ErrExpiredToken = errors.New("authentication token has expired")

	// ErrTokenNotYetValid is returned when a token's nbf or iat is in the future.
	ErrTokenNotYetValid = errors.New("authentication token not yet valid")

	// ErrMissingToken is returned when a request carries no token at all.
	ErrMissingToken = errors.New("authentication token is missing")
)
