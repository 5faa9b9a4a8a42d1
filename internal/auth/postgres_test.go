package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockStore(t *testing.T) (*PGStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return NewPGStore(db), mock
}

func TestPGUserFind(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "email", "password_hash", "role", "name",
		"avatar", "bio", "location", "status", "created_at", "updated_at",
	}).AddRow("user-1", "m@example.com", "hash", "traveler", "Mallory",
		"", "", "", "active", now, now)
	mock.ExpectQuery(`select .+ from users where id=\$1`).
		WithArgs("user-1").WillReturnRows(rows)

	u, err := store.Users(context.Background()).Find(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if u.Email != "m@example.com" || u.Status != "active" {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestPGUserFindByEmailNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`select .+ from users where email=\$1`).
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Users(context.Background()).FindByEmail(context.Background(), "ghost@example.com")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestPGRefreshTokenCreate(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()
	tok := &RefreshToken{
		ID:        "tok-1",
		UserID:    "user-1",
		TokenHash: "abc",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}

	mock.ExpectExec(`insert into refresh_tokens`).
		WithArgs(tok.ID, tok.UserID, tok.TokenHash, tok.CreatedAt, tok.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.RefreshTokens(context.Background()).Create(context.Background(), tok); err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func TestPGRefreshTokenFindByHash(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "user_id", "token_hash", "created_at", "expires_at", "revoked_at", "replaced_by_id",
	}).AddRow("tok-1", "user-1", "abc", now, now.Add(time.Hour), nil, nil)
	mock.ExpectQuery(`select .+ from refresh_tokens where token_hash=\$1`).
		WithArgs("abc").WillReturnRows(rows)

	tok, err := store.RefreshTokens(context.Background()).FindByHash(context.Background(), "abc")
	if err != nil {
		t.Fatalf("FindByHash: %v", err)
	}
	if tok.ID != "tok-1" || tok.RevokedAt != nil || tok.ReplacedByID != nil {
		t.Fatalf("unexpected token: %+v", tok)
	}
}

func TestPGConsume(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Now()

	mock.ExpectExec(`update refresh_tokens set revoked_at=\$2 where id=\$1 and revoked_at is null`).
		WithArgs("tok-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.RefreshTokens(context.Background()).Consume(context.Background(), "tok-1", at); err != nil {
		t.Fatalf("Consume: %v", err)
	}
}

func TestPGConsumeAlreadyRevoked(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Now()

	// Zero rows matched: the guard in the where clause already fired.
	mock.ExpectExec(`update refresh_tokens set revoked_at=\$2 where id=\$1 and revoked_at is null`).
		WithArgs("tok-1", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.RefreshTokens(context.Background()).Consume(context.Background(), "tok-1", at)
	if !errors.Is(err, ErrAlreadyRevoked) {
		t.Fatalf("want ErrAlreadyRevoked, got %v", err)
	}
}

func TestPGMarkRevokedByUser(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Now()

	mock.ExpectExec(`update refresh_tokens set revoked_at=\$2 where user_id=\$1 and revoked_at is null`).
		WithArgs("user-1", at).
		WillReturnResult(sqlmock.NewResult(0, 3))

	if err := store.RefreshTokens(context.Background()).MarkRevokedByUser(context.Background(), "user-1", at); err != nil {
		t.Fatalf("MarkRevokedByUser: %v", err)
	}
}

func TestPGLinkSuccessor(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`update refresh_tokens set replaced_by_id=\$2 where id=\$1`).
		WithArgs("tok-1", "tok-2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.RefreshTokens(context.Background()).LinkSuccessor(context.Background(), "tok-1", "tok-2"); err != nil {
		t.Fatalf("LinkSuccessor: %v", err)
	}
}
