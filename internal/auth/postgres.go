package auth

import (
	"context"
	"database/sql"
	"time"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Users(context.Context) UserStore { return &userStore{db: s.db} }
func (s *PGStore) RefreshTokens(context.Context) RefreshTokenStore {
	return &refreshTokenStore{db: s.db}
}

// User store ---------------------------------------------------------------
type userStore struct{ db *sql.DB }

const userColumns = `id, email, password_hash, role, name, avatar, bio, location, status, created_at, updated_at`

func (s *userStore) Find(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id)
	return scanUser(row)
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1`, email)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Name,
		&u.Avatar, &u.Bio, &u.Location, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Refresh token store ------------------------------------------------------
type refreshTokenStore struct{ db *sql.DB }

func (s *refreshTokenStore) Create(ctx context.Context, tok *RefreshToken) error {
	_, err := s.db.ExecContext(ctx,
		`insert into refresh_tokens(id, user_id, token_hash, created_at, expires_at)
		 values($1,$2,$3,$4,$5)`,
		tok.ID, tok.UserID, tok.TokenHash, tok.CreatedAt, tok.ExpiresAt,
	)
	return err
}

func (s *refreshTokenStore) FindByHash(ctx context.Context, hash string) (*RefreshToken, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, user_id, token_hash, created_at, expires_at, revoked_at, replaced_by_id
		 from refresh_tokens where token_hash=$1`, hash)
	var tok RefreshToken
	if err := row.Scan(&tok.ID, &tok.UserID, &tok.TokenHash, &tok.CreatedAt,
		&tok.ExpiresAt, &tok.RevokedAt, &tok.ReplacedByID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &tok, nil
}

// Consume is the rotation atomicity boundary: the condition lives in the
// update itself, so of two concurrent rotations only one sees a row change.
func (s *refreshTokenStore) Consume(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked_at=$2 where id=$1 and revoked_at is null`,
		id, at,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyRevoked
	}
	return nil
}

func (s *refreshTokenStore) MarkRevoked(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked_at=$2 where id=$1 and revoked_at is null`,
		id, at,
	)
	return err
}

func (s *refreshTokenStore) MarkRevokedByUser(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked_at=$2 where user_id=$1 and revoked_at is null`,
		userID, at,
	)
	return err
}

func (s *refreshTokenStore) LinkSuccessor(ctx context.Context, id, successorID string) error {
	_, err := s.db.ExecContext(ctx,
		`update refresh_tokens set replaced_by_id=$2 where id=$1`,
		id, successorID,
	)
	return err
}
