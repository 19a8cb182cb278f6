package auth

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Claims is the identity subset the site needs from the provider.
type Claims struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// UserInfo is the read-only profile snapshot handed to the presentation layer.
type UserInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Session is a signed-in browser. It is either stored complete (access token
// plus claims) or not stored at all.
type Session struct {
	ID          uuid.UUID
	AccessToken string
	IDToken     string
	Claims      Claims
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UserAgent   string
	IPAddress   string
}

// ClientMeta describes the browser completing a login.
type ClientMeta struct {
	UserAgent string
	IPAddress string
	// PreviousToken is the cookie token of a session being replaced by re-login.
	PreviousToken string
}

// TokenSet is what the provider hands back from a login.
type TokenSet struct {
	AccessToken string
	IDToken     string
	Expiry      time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// UserInfo returns the session's profile snapshot.
func (s *Session) UserInfo() UserInfo {
	return UserInfo{Name: s.Claims.Name, Email: s.Claims.Email}
}

// BearerToken returns the access token. Expiry is enforced by Service.Lookup
// against the service clock, so a session handed out by the Service is live.
func (s *Session) BearerToken() (string, bool) {
	if s == nil || s.AccessToken == "" {
		return "", false
	}
	return s.AccessToken, true
}

// Profile returns the display name and email used to prefill checkout.
func (s *Session) Profile() (string, string) {
	if s == nil {
		return "", ""
	}
	return s.Claims.Name, s.Claims.Email
}

// IdentityKey identifies the session for per-session bookkeeping.
func (s *Session) IdentityKey() string {
	if s == nil {
		return ""
	}
	return s.ID.String()
}

func (s *Session) validate() error {
	if strings.TrimSpace(s.AccessToken) == "" {
		return ErrMissingToken
	}
	if strings.TrimSpace(s.Claims.Subject) == "" {
		return ErrMalformedResponse
	}
	return nil
}

// idTokenClaims mirrors the Cognito ID token / userinfo payload.
type idTokenClaims struct {
	Subject       string   `json:"sub"`
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
	Name          string   `json:"name"`
	GivenName     string   `json:"given_name"`
	FamilyName    string   `json:"family_name"`
	Username      string   `json:"cognito:username"`
}

func (c idTokenClaims) toClaims() Claims {
	return Claims{
		Subject:       c.Subject,
		Email:         c.Email,
		EmailVerified: bool(c.EmailVerified),
		Name:          c.displayName(),
	}
}

func (c idTokenClaims) displayName() string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	if full := strings.TrimSpace(c.GivenName + " " + c.FamilyName); full != "" {
		return full
	}
	if c.Username != "" {
		return c.Username
	}
	local, _, _ := strings.Cut(c.Email, "@")
	return local
}

// flexBool accepts both JSON booleans and the "true"/"false" strings some
// userinfo endpoints return.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch typed := v.(type) {
	case bool:
		*b = flexBool(typed)
	case string:
		*b = flexBool(strings.EqualFold(typed, "true"))
	default:
		*b = false
	}
	return nil
}

func (c *idTokenClaims) fromMap(m map[string]any) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, c)
}
