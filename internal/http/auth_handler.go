package http

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stealthbuddy/internal/auth"
)

// oauthStatePayload holds the CSRF state and optional redirect path.
type oauthStatePayload struct {
	State      string `json:"s"`
	RedirectTo string `json:"r,omitempty"`
}

// isValidRedirectPath validates that a path is a safe relative redirect.
// It prevents open redirect attacks by ensuring the path:
// - Starts with a single "/" (not "//")
// - Has no scheme or host component
// - Cannot be bypassed via URL encoding
func isValidRedirectPath(path string) bool {
	if path == "" {
		return false
	}

	decoded, err := url.QueryUnescape(path)
	if err != nil {
		return false
	}

	if !strings.HasPrefix(decoded, "/") || strings.HasPrefix(decoded, "//") || strings.HasPrefix(decoded, "/\\") {
		return false
	}

	parsed, err := url.Parse(decoded)
	if err != nil {
		return false
	}

	return parsed.Scheme == "" && parsed.Host == ""
}

const (
	sessionCookieName    = "stealthbuddy_session"
	oauthStateCookieName = "stealthbuddy_oauth_state"
	oauthStateCookieTTL  = 10 * time.Minute
	callbackPath         = "/auth/callback"
)

type loginRecorder interface {
	RecordLogin(err error)
}

type balanceForgetter interface {
	Forget(session *auth.Session)
}

// AuthHandler drives the hosted login round trip and logout.
type AuthHandler struct {
	auth         *auth.Service
	accounts     balanceForgetter
	recorder     loginRecorder
	pages        *renderer
	logger       *slog.Logger
	secureCookie bool
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *auth.Service, accounts balanceForgetter, recorder loginRecorder, pages *renderer, env string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:         authService,
		accounts:     accounts,
		recorder:     recorder,
		pages:        pages,
		logger:       logger,
		secureCookie: !strings.EqualFold(env, "development"),
	}
}

// Login handles GET /auth/login by sending the browser to the hosted login page.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := auth.GenerateState()
	if err != nil {
		h.logger.Error("failed to generate state", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    state,
		Path:     "/auth",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(oauthStateCookieTTL.Seconds()),
	})

	payload := oauthStatePayload{State: state}
	if redirectTo := r.URL.Query().Get("redirectTo"); redirectTo != "" && isValidRedirectPath(redirectTo) {
		payload.RedirectTo = redirectTo
	}

	stateJSON, _ := json.Marshal(payload)
	fullState := base64.RawURLEncoding.EncodeToString(stateJSON)

	http.Redirect(w, r, h.auth.LoginURL(fullState), http.StatusTemporaryRedirect)
}

// Callback handles GET /auth/callback. With the implicit flow the tokens sit
// in the URL fragment, which never reaches the server, so a bare callback gets
// a page that posts the fragment back.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if r.URL.RawQuery == "" {
		h.pages.render(w, http.StatusOK, "callback", pageData{Title: "Signing in"})
		return
	}
	h.complete(w, r, callbackPath+"?"+r.URL.RawQuery)
}

// CallbackForm handles POST /auth/callback carrying the fragment parameters.
func (h *AuthHandler) CallbackForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := r.ParseForm(); err != nil {
		h.redirectWithError(w, r, "Invalid sign-in response. Please try again.")
		return
	}
	h.complete(w, r, callbackPath+"#"+r.PostForm.Encode())
}

func (h *AuthHandler) complete(w http.ResponseWriter, r *http.Request, currentURL string) {
	params, err := auth.ParseCallback(currentURL)
	if err != nil {
		h.logger.Warn("oauth callback: unparsable parameters", "error", err)
		h.redirectWithError(w, r, "Invalid sign-in response. Please try again.")
		return
	}

	redirectTo, ok := h.verifyState(w, r, params.State)
	if !ok {
		return
	}

	meta := auth.ClientMeta{UserAgent: r.UserAgent(), IPAddress: clientIPFromRequest(r)}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		meta.PreviousToken = cookie.Value
	}

	session, token, err := h.auth.HandleCallback(r.Context(), currentURL, meta)
	if h.recorder != nil {
		h.recorder.RecordLogin(err)
	}
	if err != nil {
		h.logger.Warn("oauth callback failed", "error", err)
		h.redirectWithError(w, r, callbackErrorMessage(err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		Expires:  session.ExpiresAt,
		MaxAge:   int(time.Until(session.ExpiresAt).Seconds()),
	})

	h.logger.Info("login successful", "session_id", session.ID, "subject", session.Claims.Subject)
	http.Redirect(w, r, redirectTo, http.StatusSeeOther)
}

// verifyState checks the CSRF state against the cookie and returns the
// validated post-login path.
func (h *AuthHandler) verifyState(w http.ResponseWriter, r *http.Request, stateParam string) (string, bool) {
	stateCookie, err := r.Cookie(oauthStateCookieName)
	if err != nil {
		h.logger.Warn("oauth callback: missing state cookie")
		h.redirectWithError(w, r, "Session expired. Please try again.")
		return "", false
	}

	stateBytes, err := base64.RawURLEncoding.DecodeString(stateParam)
	if err != nil {
		h.logger.Warn("oauth callback: invalid state encoding")
		h.redirectWithError(w, r, "Invalid state. Please try again.")
		return "", false
	}

	var statePayload oauthStatePayload
	if err := json.Unmarshal(stateBytes, &statePayload); err != nil {
		h.logger.Warn("oauth callback: invalid state JSON")
		h.redirectWithError(w, r, "Invalid state. Please try again.")
		return "", false
	}

	if subtle.ConstantTimeCompare([]byte(statePayload.State), []byte(stateCookie.Value)) != 1 {
		h.logger.Warn("oauth callback: state mismatch")
		h.redirectWithError(w, r, "Invalid state. Please try again.")
		return "", false
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
	})

	redirectTo := "/"
	if statePayload.RedirectTo != "" && isValidRedirectPath(statePayload.RedirectTo) {
		redirectTo = statePayload.RedirectTo
	}
	return redirectTo, true
}

// Logout handles GET and POST /auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var token string
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		token = cookie.Value
	}
	if session := SessionFromContext(r.Context()); session != nil && h.accounts != nil {
		h.accounts.Forget(session)
	}

	target, err := h.auth.Logout(r.Context(), token)
	if err != nil {
		h.logger.Error("logout: failed to delete session", "error", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, target, http.StatusSeeOther)
}

// redirectWithError sends the browser home with a one-shot error message.
func (h *AuthHandler) redirectWithError(w http.ResponseWriter, r *http.Request, message string) {
	setFlash(w, "error", message, h.secureCookie)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func callbackErrorMessage(err error) string {
	var providerErr *auth.ProviderError
	switch {
	case errors.As(err, &providerErr):
		if providerErr.Code == "access_denied" {
			return "Sign-in was cancelled."
		}
		if providerErr.Description != "" {
			return providerErr.Description
		}
		return "Sign-in failed. Please try again."
	case errors.Is(err, auth.ErrMissingToken):
		return "Sign-in did not return an access token. Please try again."
	case errors.Is(err, auth.ErrMalformedResponse):
		return "We could not read your profile from the sign-in provider."
	default:
		return "Failed to complete authentication."
	}
}
