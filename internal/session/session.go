package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserMetadata carries the profile fields the auth backend attaches to a user.
type UserMetadata struct {
	DisplayName string `json:"display_name"`
	Name        string `json:"name"`
}

// User is the authenticated identity embedded in a session record.
type User struct {
	ID       string       `json:"id"`
	Email    string       `json:"email"`
	Metadata UserMetadata `json:"user_metadata"`
}

// Session mirrors the credential record issued by the auth backend. It is
// persisted as a single serialized document.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	User         User   `json:"user"`
}

// Valid reports whether the session carries both an access token and a user
// id. Anything less is treated identically to "logged out".
func (s Session) Valid() bool {
	return s.AccessToken != "" && s.User.ID != ""
}

// CurrentUser is the derived projection of a valid session.
type CurrentUser struct {
	ID    string
	Email string
	Name  string
}

// DisplayName resolves the user's label: metadata display name, then metadata
// name, then email. First non-empty wins.
func (u User) DisplayName() string {
	if u.Metadata.DisplayName != "" {
		return u.Metadata.DisplayName
	}
	if u.Metadata.Name != "" {
		return u.Metadata.Name
	}
	return u.Email
}

// TokenExpiry extracts the expiry claim from the access token without
// verifying its signature; the backend owns the token, this side only reads
// it for freshness reporting. The second return is false when the token is
// not a parseable JWT or carries no expiry.
func (s Session) TokenExpiry() (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(s.AccessToken, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
