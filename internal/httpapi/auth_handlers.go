package httpapi

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"waypost.app/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
	Bio      string `json:"bio,omitempty"`
	Location string `json:"location,omitempty"`
}

type loginResponse struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	User         *userResponse `json:"user,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pair, user, err := a.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		a.log.Error("login failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	a.setRefreshCookie(w, pair.RefreshToken, pair.RefreshExpiresAt)
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User: &userResponse{
			ID:       user.ID,
			Email:    user.Email,
			Role:     user.Role,
			Name:     user.Name,
			Avatar:   user.Avatar,
			Bio:      user.Bio,
			Location: user.Location,
		},
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	raw := a.refreshTokenFromRequest(r)
	if raw == "" {
		writeError(w, http.StatusUnauthorized, "missing refresh token")
		return
	}
	pair, _, err := a.sessions.Rotate(r.Context(), raw)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidToken):
			writeError(w, http.StatusUnauthorized, "invalid refresh token")
		case errors.Is(err, auth.ErrTokenExpired):
			writeError(w, http.StatusUnauthorized, "refresh token expired")
		case errors.Is(err, auth.ErrRevoked):
			writeError(w, http.StatusUnauthorized, "refresh token has been revoked")
		case errors.Is(err, auth.ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, "unauthorized")
		default:
			a.log.Error("refresh failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "refresh failed")
		}
		return
	}
	a.setRefreshCookie(w, pair.RefreshToken, pair.RefreshExpiresAt)
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// handleLogout blacklists the presented access token for its remaining
// lifetime and, when a refresh cookie rides along, revokes that too.
// Logout is best-effort: once the token decodes, the call succeeds.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	token, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err := a.sessions.Logout(r.Context(), token); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	if raw := a.refreshTokenFromRequest(r); raw != "" {
		if err := a.sessions.Revoke(r.Context(), raw); err != nil {
			a.log.Warn("refresh token revoke on logout failed", zap.Error(err))
		}
	}
	a.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// handleLogoutAll revokes every refresh token the authenticated user
// owns, and blacklists the access token the request arrived with: a
// logout from all devices includes this one. Requires a valid bearer
// (it is not in the public path list).
func (a *API) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := a.sessions.RevokeAll(r.Context(), claims.PrimarySubject()); err != nil {
		a.log.Error("revoke all failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	if token, ok := auth.TokenFromContext(r.Context()); ok {
		if err := a.sessions.Logout(r.Context(), token); err != nil {
			a.log.Warn("access token blacklist on logout-all failed", zap.Error(err))
		}
	}
	a.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out from all devices"})
}

// refreshTokenFromRequest prefers the HttpOnly cookie and falls back to a
// JSON body for clients that cannot carry cookies.
func (a *API) refreshTokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(a.cookie.Name); err == nil && c.Value != "" {
		return c.Value
	}
	var req refreshRequest
	if err := decodeJSON(r, &req); err == nil {
		return req.RefreshToken
	}
	return ""
}

func (a *API) setRefreshCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookie.Name,
		Value:    token,
		Domain:   a.cookie.Domain,
		Path:     a.cookie.Path,
		Expires:  expires,
		HttpOnly: true,
		Secure:   a.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *API) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookie.Name,
		Value:    "",
		Domain:   a.cookie.Domain,
		Path:     a.cookie.Path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}
