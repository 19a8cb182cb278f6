package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingToken is returned when a callback carries no access token.
	ErrMissingToken = errors.New("auth: no access token in callback")
	// ErrMalformedResponse is returned when identity claims cannot be decoded.
	ErrMalformedResponse = errors.New("auth: malformed identity response")
	// ErrUserInfoUnavailable is returned when no userinfo endpoint is configured.
	ErrUserInfoUnavailable = errors.New("auth: userinfo endpoint not configured")
)

// ProviderError carries an error the identity provider reported on redirect.
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("auth: provider error %q", e.Code)
	}
	return fmt.Sprintf("auth: provider error %q: %s", e.Code, e.Description)
}
