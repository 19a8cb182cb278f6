package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"stealthbuddy/internal/account"
	"stealthbuddy/internal/billing"
)

const (
	messagePaymentSucceeded = "Payment successful! Your credits have been updated."
	messageCheckoutBusy     = "A checkout is already in progress. Finish or close it first."
	messageUnknownPlan      = "That plan is not available."
)

// checkoutService is the part of billing.Orchestrator the handler drives.
type checkoutService interface {
	InitiateCheckout(ctx context.Context, id billing.Identity, sel billing.Selection, onSuccess func(), onFailure func(string)) (*billing.Attempt, error)
	Resolve(ctx context.Context, id billing.Identity, attemptID string, ev billing.Event) error
	Attempt(id billing.Identity, attemptID string) (billing.Attempt, error)
}

// CheckoutHandler starts checkouts and receives widget outcomes.
type CheckoutHandler struct {
	checkout     checkoutService
	accounts     accountService
	notices      *account.Notices
	catalog      *billing.Catalog
	scriptURL    string
	pages        *renderer
	logger       *slog.Logger
	secureCookie bool
}

func NewCheckoutHandler(checkout checkoutService, accounts accountService, notices *account.Notices, catalog *billing.Catalog, scriptURL string, pages *renderer, env string, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout:     checkout,
		accounts:     accounts,
		notices:      notices,
		catalog:      catalog,
		scriptURL:    scriptURL,
		pages:        pages,
		logger:       logger,
		secureCookie: !strings.EqualFold(env, "development"),
	}
}

// Start handles POST /checkout with form field plan.
func (h *CheckoutHandler) Start(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	if session == nil {
		http.Redirect(w, r, "/auth/login?redirectTo=/account", http.StatusSeeOther)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}

	plan, err := h.catalog.Lookup(r.PostForm.Get("plan"))
	if err != nil {
		setFlash(w, "error", messageUnknownPlan, h.secureCookie)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	key := session.IdentityKey()
	onSuccess := func() {
		h.notices.Push(key, account.Notice{Kind: account.NoticeSuccess, Text: messagePaymentSucceeded})
	}
	onFailure := func(message string) {
		h.notices.Push(key, account.Notice{Kind: account.NoticeError, Text: sanitizeMessage(message)})
	}

	attempt, err := h.checkout.InitiateCheckout(r.Context(), session, plan.Selection(), onSuccess, onFailure)
	switch {
	case errors.Is(err, billing.ErrCheckoutInProgress):
		setFlash(w, "error", messageCheckoutBusy, h.secureCookie)
		http.Redirect(w, r, "/account", http.StatusSeeOther)
		return
	case err != nil:
		// onFailure has already queued the message.
		h.logger.Warn("checkout could not start", "plan", plan.ID, "error", err)
		http.Redirect(w, r, "/account", http.StatusSeeOther)
		return
	}

	h.pages.render(w, http.StatusOK, "checkout", pageData{
		Title: "Checkout",
		Checkout: &checkoutView{
			AttemptID: attempt.ID,
			Plan:      attempt.Selection,
			ScriptURL: h.scriptURL,
			EventsURL: "/checkout/" + attempt.ID + "/events",
			Options:   attempt.Options,
		},
	})
}

type checkoutEventResponse struct {
	Status   billing.AttemptStatus `json:"status"`
	Redirect string                `json:"redirect"`
}

// Events handles POST /checkout/{id}/events.
func (h *CheckoutHandler) Events(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	if session == nil {
		unauthorized(w)
		return
	}

	var ev billing.Event
	if err := decodeJSONBody(w, r, &ev); err != nil {
		writeJSONError(w, err)
		return
	}

	attemptID := chi.URLParam(r, "id")
	if err := h.checkout.Resolve(r.Context(), session, attemptID, ev); err != nil {
		switch {
		case errors.Is(err, billing.ErrAttemptNotFound):
			writeError(w, http.StatusNotFound, "checkout not found")
		case errors.Is(err, billing.ErrAttemptResolved):
			writeError(w, http.StatusConflict, "checkout already completed")
		case errors.Is(err, billing.ErrOrderMismatch):
			writeError(w, http.StatusConflict, "order does not match checkout")
		case errors.Is(err, billing.ErrUnknownEvent):
			writeError(w, http.StatusBadRequest, "unknown event")
		default:
			h.logger.Error("failed to resolve checkout", "attempt_id", attemptID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	if ev.Kind == billing.EventPaymentSuccess {
		if _, err := h.accounts.Refresh(r.Context(), session); err != nil {
			h.logger.Warn("failed to refresh credits after purchase", "attempt_id", attemptID, "error", err)
		}
	}

	status := billing.StatusPending
	if attempt, err := h.checkout.Attempt(session, attemptID); err == nil {
		status = attempt.Status
	}
	writeJSON(w, http.StatusOK, checkoutEventResponse{Status: status, Redirect: "/account"})
}
