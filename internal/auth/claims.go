package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the access-token claims. Profile attributes are snapshotted
// at issuance and stay fixed for the token's lifetime; updates to the
// underlying user only show up on the next issued token.
//
// LegacyID and LegacyUserID exist because older clients minted tokens
// carrying the subject under "id" or "userId" instead of "sub". Always
// read the subject through PrimarySubject, never from a field directly.
type Claims struct {
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	Name     string `json:"name,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Bio      string `json:"bio,omitempty"`
	Location string `json:"location,omitempty"`

	LegacyID     string `json:"id,omitempty"`
	LegacyUserID string `json:"userId,omitempty"`

	jwt.RegisteredClaims
}

// PrimarySubject returns the first non-empty of sub, id, userId.
func (c *Claims) PrimarySubject() string {
	for _, v := range []string{c.Subject, c.LegacyID, c.LegacyUserID} {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
