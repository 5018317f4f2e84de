// Package common contains shared constants and sentinel errors used across
// filegate components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// ErrIntegrityConflict is returned when the revision hash submitted with
	// an update does not match the currently persisted row (stale read).
	ErrIntegrityConflict = errors.New("integrity conflict")

	// Token lifecycle errors.
	ErrInvalidToken          = errors.New("invalid token")
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenValidationFailed = errors.New("token validation failed")
	ErrInvalidTokenKind      = errors.New("invalid token kind")
	ErrTokenNotFound         = errors.New("token not found")

	// ErrorSigning is returned when the signing primitive rejects a payload.
	ErrorSigning = errors.New("signing error")
)
