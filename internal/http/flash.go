package http

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const flashCookieName = "stealthbuddy_flash"

// flashMessage is a one-shot message carried across a redirect.
type flashMessage struct {
	Kind string `json:"k"`
	Text string `json:"t"`
}

// messagePolicy strips all markup from text that came from outside the service.
var messagePolicy = bluemonday.StrictPolicy()

func sanitizeMessage(text string) string {
	return strings.TrimSpace(messagePolicy.Sanitize(text))
}

func setFlash(w http.ResponseWriter, kind, text string, secure bool) {
	data, err := json.Marshal(flashMessage{Kind: kind, Text: sanitizeMessage(text)})
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(data),
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   60,
	})
}

// popFlash reads the flash cookie and clears it.
func popFlash(w http.ResponseWriter, r *http.Request, secure bool) *flashMessage {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})

	data, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	var msg flashMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Text == "" {
		return nil
	}
	msg.Text = sanitizeMessage(msg.Text)
	return &msg
}
