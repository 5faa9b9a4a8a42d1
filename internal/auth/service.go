package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"waypost.app/internal/ids"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 14 * 24 * time.Hour

	blacklistPrefix  = "blacklist:"
	refreshSecretLen = 64
)

// RevocationList is the fast key-value store holding denylist entries for
// explicitly logged-out access tokens. Implementations must honor per-key
// TTLs; see internal/blacklist.
type RevocationList interface {
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Service issues, validates, rotates and revokes credentials.
type Service struct {
	store       Store
	revocations RevocationList
	secret      []byte
	issuer      string
	accessTTL   time.Duration
	refreshTTL  time.Duration
	now         func() time.Time
	log         *zap.Logger
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) ServiceOption {
	return func(s *Service) error {
		s.issuer = strings.TrimSpace(issuer)
		return nil
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithLogger attaches a logger for security-relevant events.
func WithLogger(log *zap.Logger) ServiceOption {
	return func(s *Service) error {
		if log != nil {
			s.log = log
		}
		return nil
	}
}

// NewService constructs the session service.
func NewService(store Store, revocations RevocationList, secret string, opts ...ServiceOption) (*Service, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	svc := &Service{
		store:       store,
		revocations: revocations,
		secret:      []byte(secret),
		accessTTL:   defaultAccessTTL,
		refreshTTL:  defaultRefreshTTL,
		now:         time.Now,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// ParseTTL converts a configured lifetime into a duration. Plain integers
// are read as seconds ("900"); anything else must be a Go duration
// shorthand ("15m").
func ParseTTL(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("auth: empty ttl")
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("auth: ttl must be positive, got %d", secs)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("auth: parse ttl %q: %w", raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("auth: ttl must be positive, got %s", d)
	}
	return d, nil
}

// HashToken returns the hex SHA-256 of a raw refresh secret. Only this
// hash is ever persisted.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Login authenticates email/password and issues fresh credentials. Every
// failure mode collapses to ErrUnauthorized so responses do not reveal
// whether the account exists.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, *User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return TokenPair{}, nil, ErrUnauthorized
	}
	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		return TokenPair{}, nil, ErrUnauthorized
	}
	if !strings.EqualFold(user.Status, "active") {
		return TokenPair{}, nil, ErrUnauthorized
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return TokenPair{}, nil, ErrUnauthorized
	}
	pair, err := s.Issue(ctx, user)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, user, nil
}

// Issue mints an access/refresh pair for an authenticated user. The raw
// refresh value leaves this function exactly once and is never stored or
// logged.
func (s *Service) Issue(ctx context.Context, user *User) (TokenPair, error) {
	if user == nil || strings.TrimSpace(user.ID) == "" {
		return TokenPair{}, errors.New("auth: user is required")
	}
	now := s.now().UTC()
	access, accessExp, err := s.signAccessToken(user, now)
	if err != nil {
		return TokenPair{}, err
	}
	raw, rec, err := s.generateRefreshToken(user.ID, now)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.RefreshTokens(ctx).Create(ctx, rec); err != nil {
		return TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     raw,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: rec.ExpiresAt,
	}, nil
}

// Validate verifies the token signature and expiry, then consults the
// revocation list. A token a user explicitly logged out is rejected even
// while its signature and expiry are still good. An unreachable
// revocation list fails closed: the error is surfaced, never swallowed.
func (s *Service) Validate(ctx context.Context, token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt == nil || claims.PrimarySubject() == "" {
		return nil, ErrInvalidToken
	}
	if s.issuer != "" && claims.Issuer != "" && !strings.EqualFold(claims.Issuer, s.issuer) {
		return nil, ErrInvalidToken
	}
	revoked, err := s.revocations.Exists(ctx, blacklistPrefix+token)
	if err != nil {
		return nil, fmt.Errorf("revocation check: %w", err)
	}
	if revoked {
		return nil, ErrRevoked
	}
	return claims, nil
}

// DecodeUnverified reads claims without verifying the signature. Only the
// logout path may use it, to compute a blacklist TTL from a token that
// may already be otherwise invalid. Never authenticate with it.
func (s *Service) DecodeUnverified(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Rotate exchanges a raw refresh token for a fresh pair, consuming the
// presented record. Presenting the same value twice always fails the
// second time; under concurrent use of one token at most one caller wins.
func (s *Service) Rotate(ctx context.Context, raw string) (TokenPair, *User, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return TokenPair{}, nil, ErrInvalidToken
	}
	tokens := s.store.RefreshTokens(ctx)
	rec, err := tokens.FindByHash(ctx, HashToken(raw))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrInvalidToken
		}
		return TokenPair{}, nil, err
	}
	now := s.now().UTC()
	if now.After(rec.ExpiresAt) {
		return TokenPair{}, nil, ErrTokenExpired
	}
	if rec.RevokedAt != nil {
		// Reuse of a consumed token. Indistinguishable here from revoked-by-
		// logout; see DESIGN.md on the replay-detection gap.
		s.log.Warn("revoked refresh token presented",
			zap.String("token_id", rec.ID), zap.String("user_id", rec.UserID))
		return TokenPair{}, nil, ErrRevoked
	}
	if err := tokens.Consume(ctx, rec.ID, now); err != nil {
		if errors.Is(err, ErrAlreadyRevoked) {
			return TokenPair{}, nil, ErrRevoked
		}
		return TokenPair{}, nil, err
	}
	user, err := s.store.Users(ctx).Find(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrUnauthorized
		}
		return TokenPair{}, nil, err
	}
	pair, successorID, err := s.mint(ctx, user, now)
	if err != nil {
		return TokenPair{}, nil, err
	}
	if err := tokens.LinkSuccessor(ctx, rec.ID, successorID); err != nil {
		return TokenPair{}, nil, err
	}
	return pair, user, nil
}

// Revoke invalidates a single refresh token (logout from this device).
// Unknown or already-revoked tokens are a no-op.
func (s *Service) Revoke(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	tokens := s.store.RefreshTokens(ctx)
	rec, err := tokens.FindByHash(ctx, HashToken(raw))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if rec.RevokedAt != nil {
		return nil
	}
	return tokens.MarkRevoked(ctx, rec.ID, s.now().UTC())
}

// RevokeAll invalidates every live refresh token the user owns (logout
// from all devices).
func (s *Service) RevokeAll(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("auth: user id is required")
	}
	return s.store.RefreshTokens(ctx).MarkRevokedByUser(ctx, userID, s.now().UTC())
}

// Logout blacklists an access token for its remaining lifetime. The token
// is decoded, not verified: an expired or otherwise dubious token with a
// readable exp claim still logs out cleanly. A token past its natural
// expiry needs no denylist entry. Once decoding succeeds, logout reports
// success even if the revocation list write fails; that failure is a
// security-relevant gap and is logged as such.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.DecodeUnverified(token)
	if err != nil {
		return ErrInvalidToken
	}
	if claims.ExpiresAt == nil {
		return ErrInvalidToken
	}
	remaining := claims.ExpiresAt.Time.Sub(s.now())
	if remaining <= 0 {
		return nil
	}
	if err := s.revocations.SetWithTTL(ctx, blacklistPrefix+token, "1", remaining); err != nil {
		s.log.Error("blacklist write failed, logout not enforced for remaining lifetime",
			zap.Duration("remaining", remaining), zap.Error(err))
	}
	return nil
}

// IsRevoked reports whether the access token was explicitly blacklisted.
func (s *Service) IsRevoked(ctx context.Context, token string) (bool, error) {
	return s.revocations.Exists(ctx, blacklistPrefix+token)
}

func (s *Service) mint(ctx context.Context, user *User, now time.Time) (TokenPair, string, error) {
	access, accessExp, err := s.signAccessToken(user, now)
	if err != nil {
		return TokenPair{}, "", err
	}
	raw, rec, err := s.generateRefreshToken(user.ID, now)
	if err != nil {
		return TokenPair{}, "", err
	}
	if err := s.store.RefreshTokens(ctx).Create(ctx, rec); err != nil {
		return TokenPair{}, "", fmt.Errorf("store refresh token: %w", err)
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     raw,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: rec.ExpiresAt,
	}, rec.ID, nil
}

func (s *Service) signAccessToken(user *User, now time.Time) (string, time.Time, error) {
	exp := now.Add(s.accessTTL)
	claims := &Claims{
		Email:    user.Email,
		Role:     user.Role,
		Name:     user.Name,
		Avatar:   user.Avatar,
		Bio:      user.Bio,
		Location: user.Location,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

func (s *Service) generateRefreshToken(userID string, now time.Time) (string, *RefreshToken, error) {
	secretBytes := make([]byte, refreshSecretLen)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", nil, err
	}
	raw := hex.EncodeToString(secretBytes)
	rec := &RefreshToken{
		ID:        ids.New(),
		UserID:    userID,
		TokenHash: HashToken(raw),
		CreatedAt: now,
		ExpiresAt: now.Add(s.refreshTTL),
	}
	return raw, rec, nil
}
