package http

import (
	"log/slog"
	"net/http"
	"strings"

	"stealthbuddy/internal/account"
	"stealthbuddy/internal/billing"
	"stealthbuddy/internal/config"
)

// PagesHandler renders the marketing page and the account panel.
type PagesHandler struct {
	accounts     accountService
	notices      *account.Notices
	catalog      *billing.Catalog
	downloads    config.DownloadConfig
	pages        *renderer
	logger       *slog.Logger
	secureCookie bool
}

func NewPagesHandler(accounts accountService, notices *account.Notices, catalog *billing.Catalog, downloads config.DownloadConfig, pages *renderer, env string, logger *slog.Logger) *PagesHandler {
	return &PagesHandler{
		accounts:     accounts,
		notices:      notices,
		catalog:      catalog,
		downloads:    downloads,
		pages:        pages,
		logger:       logger,
		secureCookie: !strings.EqualFold(env, "development"),
	}
}

// Home handles GET /.
func (h *PagesHandler) Home(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Flash:     popFlash(w, r, h.secureCookie),
		Plans:     h.catalog.Plans(),
		Downloads: downloadsFor(h.downloads, r.UserAgent()),
	}

	if session := SessionFromContext(r.Context()); session != nil {
		user, err := h.accounts.Load(r.Context(), session)
		if err != nil {
			h.logger.Warn("home: credits unavailable", "error", err)
		}
		data.User = &user
		data.Notices = h.notices.Pop(session.IdentityKey())
	}

	h.pages.render(w, http.StatusOK, "home", data)
}

// Account handles GET /account. Anonymous visitors are sent to login.
func (h *PagesHandler) Account(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	if session == nil {
		http.Redirect(w, r, "/auth/login?redirectTo=/account", http.StatusSeeOther)
		return
	}

	user, err := h.accounts.Load(r.Context(), session)
	if err != nil {
		h.logger.Warn("account: credits unavailable", "error", err)
	}

	h.pages.render(w, http.StatusOK, "account", pageData{
		Title:        "Account",
		User:         &user,
		Flash:        popFlash(w, r, h.secureCookie),
		Notices:      h.notices.Pop(session.IdentityKey()),
		BalanceError: err != nil,
		Plans:        h.catalog.Plans(),
	})
}
