package auth

import "time"

// User is the account record backing login and claim snapshots.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	Name         string
	Avatar       string
	Bio          string
	Location     string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RefreshToken is a persisted long-lived credential. Records are never
// deleted: revocation and succession are recorded in place so that reuse
// of a consumed token remains detectable.
type RefreshToken struct {
	ID           string
	UserID       string
	TokenHash    string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	RevokedAt    *time.Time
	ReplacedByID *string
}

// TokenPair holds freshly issued credentials and their expirations.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}
