package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"stealthbuddy/internal/account"
	"stealthbuddy/internal/auth"
	"stealthbuddy/internal/billing"
)

// accountService is the part of account.Service the handlers use.
type accountService interface {
	Load(ctx context.Context, session *auth.Session) (account.User, error)
	Refresh(ctx context.Context, session *auth.Session) (billing.Credits, error)
	Forget(session *auth.Session)
}

// SessionHandler exposes the signed-in state to page scripts.
type SessionHandler struct {
	accounts accountService
	logger   *slog.Logger
}

// NewSessionHandler returns a handler reading from the account service.
func NewSessionHandler(accounts accountService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{accounts: accounts, logger: logger}
}

type sessionResponse struct {
	Authenticated bool          `json:"authenticated"`
	User          *account.User `json:"user,omitempty"`
}

// Status handles GET /api/session.
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	if session == nil {
		writeJSON(w, http.StatusOK, sessionResponse{})
		return
	}

	// A failed balance fetch still yields the last known balance.
	user, err := h.accounts.Load(r.Context(), session)
	if err != nil {
		h.logger.Warn("session status: credits unavailable", "error", err)
	}
	writeJSON(w, http.StatusOK, sessionResponse{Authenticated: true, User: &user})
}

type creditsResponse struct {
	Credits billing.Credits `json:"credits"`
	Plan    string          `json:"plan"`
}

// Credits handles GET /api/credits. The route requires a session.
func (h *SessionHandler) Credits(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	if session == nil {
		unauthorized(w)
		return
	}

	credits, err := h.accounts.Refresh(r.Context(), session)
	if err != nil {
		h.logger.Error("failed to fetch credits", "error", err)
		writeError(w, http.StatusBadGateway, creditsErrorMessage(err))
		return
	}

	plan := account.PlanFree
	if credits.IsUnlimited() {
		plan = account.PlanPro
	}
	writeJSON(w, http.StatusOK, creditsResponse{Credits: credits, Plan: plan})
}

func creditsErrorMessage(err error) string {
	var apiErr *billing.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "Failed to fetch credits"
}
