package auth

import (
	"context"
	"time"
)

// Store describes persistence operations required by the session service.
type Store interface {
	Users(ctx context.Context) UserStore
	RefreshTokens(ctx context.Context) RefreshTokenStore
}

// UserStore reads account records.
type UserStore interface {
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// RefreshTokenStore manages the refresh-token lifecycle. Records are
// append-plus-update only; nothing here deletes.
type RefreshTokenStore interface {
	Create(ctx context.Context, tok *RefreshToken) error
	FindByHash(ctx context.Context, hash string) (*RefreshToken, error)

	// Consume sets revoked_at on an unrevoked record. It is the atomicity
	// boundary for rotation: implementations must use a single conditional
	// update and return ErrAlreadyRevoked when no row matched.
	Consume(ctx context.Context, id string, at time.Time) error

	// MarkRevoked sets revoked_at unconditionally if unset. Idempotent.
	MarkRevoked(ctx context.Context, id string, at time.Time) error

	// MarkRevokedByUser revokes every live token owned by the user.
	MarkRevokedByUser(ctx context.Context, userID string, at time.Time) error

	// LinkSuccessor records which token replaced a consumed one.
	LinkSuccessor(ctx context.Context, id, successorID string) error
}
