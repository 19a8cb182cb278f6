package http

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"stealthbuddy/internal/account"
	"stealthbuddy/internal/billing"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"home", "account", "checkout", "callback"}

// pageData is the model every page template receives.
type pageData struct {
	Title        string
	User         *account.User
	Flash        *flashMessage
	Notices      []account.Notice
	BalanceError bool
	Plans        []billing.Plan
	Downloads    []downloadLink
	Checkout     *checkoutView
}

type checkoutView struct {
	AttemptID string
	Plan      billing.Selection
	ScriptURL string
	EventsURL string
	Options   billing.WidgetOptions
}

// renderer holds one template set per page, each sharing the layout.
type renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

func newRenderer(logger *slog.Logger) (*renderer, error) {
	funcs := template.FuncMap{
		"credits": func(c billing.Credits) string { return c.String() },
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		pages[name] = tmpl
	}
	return &renderer{pages: pages, logger: logger}, nil
}

func (r *renderer) render(w http.ResponseWriter, status int, name string, data pageData) {
	tmpl, ok := r.pages[name]
	if !ok {
		r.logger.Error("unknown template", "name", name)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		r.logger.Error("failed to render page", "name", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
