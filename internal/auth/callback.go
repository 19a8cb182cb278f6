package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// CallbackParams is everything the provider may hand back on the redirect URI.
type CallbackParams struct {
	Code             string
	State            string
	AccessToken      string
	IDToken          string
	TokenType        string
	ExpiresIn        time.Duration
	Error            string
	ErrorDescription string
}

// ParseCallback extracts callback parameters from both the query string and
// the URL fragment. Fragment values win when a key appears in both.
func ParseCallback(rawURL string) (CallbackParams, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return CallbackParams{}, fmt.Errorf("%w: parse callback url: %v", ErrMalformedResponse, err)
	}

	values := parsed.Query()
	if fragment := parsed.EscapedFragment(); fragment != "" {
		fragmentValues, err := url.ParseQuery(strings.TrimPrefix(fragment, "#"))
		if err != nil {
			return CallbackParams{}, fmt.Errorf("%w: parse callback fragment: %v", ErrMalformedResponse, err)
		}
		for key, vals := range fragmentValues {
			values[key] = vals
		}
	}

	return CallbackFromValues(values)
}

// CallbackFromValues builds CallbackParams from already-decoded form values.
func CallbackFromValues(values url.Values) (CallbackParams, error) {
	params := CallbackParams{
		Code:             strings.TrimSpace(values.Get("code")),
		State:            values.Get("state"),
		AccessToken:      strings.TrimSpace(values.Get("access_token")),
		IDToken:          strings.TrimSpace(values.Get("id_token")),
		TokenType:        values.Get("token_type"),
		Error:            values.Get("error"),
		ErrorDescription: values.Get("error_description"),
	}

	if raw := strings.TrimSpace(values.Get("expires_in")); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds < 0 {
			return CallbackParams{}, fmt.Errorf("%w: invalid expires_in %q", ErrMalformedResponse, raw)
		}
		params.ExpiresIn = time.Duration(seconds) * time.Second
	}

	return params, nil
}

// Empty reports whether the callback carried nothing at all, which is what
// the server sees when tokens travel in the fragment.
func (p CallbackParams) Empty() bool {
	return p.Code == "" && p.AccessToken == "" && p.IDToken == "" && p.Error == ""
}

// GenerateState generates a cryptographically secure random state string.
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
