package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"waypost.app/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/login",
	"/v1/auth/refresh",
	"/v1/auth/logout",
	"/v1/realtime/chat",
	"/v1/realtime/notifications",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

func (a *API) withAuth(next http.Handler) http.Handler {
	if a == nil || a.sessions == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := a.sessions.Validate(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidToken):
				writeError(w, http.StatusUnauthorized, "invalid token")
			case errors.Is(err, auth.ErrRevoked):
				writeError(w, http.StatusUnauthorized, "token has been revoked")
			default:
				// Revocation cache unreachable: cannot confirm non-revoked, so
				// fail closed rather than let a logged-out token through.
				writeError(w, http.StatusInternalServerError, "authentication error")
			}
			return
		}

		ctx := auth.ContextWithClaims(r.Context(), claims)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractBearerToken reads the Authorization header, tolerating a missing
// Bearer prefix for clients that send the raw token.
func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		header = strings.TrimSpace(header[len(bearer):])
	}
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	return header, nil
}

// handshakeToken extracts the realtime handshake credential: the
// dedicated access_token query/form field first, else the Authorization
// header, with or without the Bearer prefix.
func handshakeToken(r *http.Request) string {
	if tok := strings.TrimSpace(r.URL.Query().Get("access_token")); tok != "" {
		return tok
	}
	tok, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		return ""
	}
	return tok
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
