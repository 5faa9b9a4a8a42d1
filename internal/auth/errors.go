package auth

import "errors"

var (
	ErrNotFound     = errors.New("auth: not found")
	ErrUnauthorized = errors.New("auth: unauthorized")
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrTokenExpired = errors.New("auth: refresh token expired")
	ErrRevoked      = errors.New("auth: token has been revoked")

	// ErrAlreadyRevoked is returned by RefreshTokenStore.Consume when the
	// conditional revoke matched no row: a concurrent rotation (or an
	// explicit logout) got there first.
	ErrAlreadyRevoked = errors.New("auth: refresh token already revoked")
)
