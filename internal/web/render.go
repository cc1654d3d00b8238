package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"

	"nammakumta/directory/internal/domain"
	"nammakumta/directory/internal/router"

	log "github.com/sirupsen/logrus"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var pageNames = []string{"home", "explore", "subcategory", "shop", "ad", "favorites", "profile", "error"}

// view is what every page template receives.
type view struct {
	Title    string
	SignedIn bool
	Nav      navView
	Data     any
}

type navView struct {
	Current      string
	CanGoBack    bool
	CanGoForward bool
}

func newNavView(rt *router.Router) navView {
	if rt == nil {
		return navView{Current: "/"}
	}
	return navView{
		Current:      rt.Current(),
		CanGoBack:    rt.CanGoBack(),
		CanGoForward: rt.CanGoForward(),
	}
}

type renderer struct {
	pages     map[string]*template.Template
	fragments *template.Template
}

func pushURL(path string) string {
	return "/nav/push?to=" + url.QueryEscape(path)
}

func shopPath(s *domain.Shop) string {
	return "/shops/" + url.PathEscape(s.ID)
}

func adPath(a *domain.Advertisement) string {
	return "/ads/" + url.PathEscape(a.ID)
}

func subcategoryPath(s *domain.Subcategory) string {
	return "/subcategories/" + url.PathEscape(s.ID)
}

func explorePath(c *domain.Category) string {
	return "/explore?" + url.Values{"categoryId": {c.ID}, "categoryName": {c.Name}}.Encode()
}

var templateFuncs = template.FuncMap{
	"pushURL":         pushURL,
	"shopPath":        shopPath,
	"adPath":          adPath,
	"subcategoryPath": subcategoryPath,
	"explorePath":     explorePath,
	"safeHTML": func(s string) template.HTML {
		// only ever called with bluemonday output
		return template.HTML(s)
	},
}

func newRenderer() (*renderer, error) {
	r := &renderer{pages: make(map[string]*template.Template, len(pageNames))}

	for _, name := range pageNames {
		t, err := template.New("layout.tmpl").Funcs(templateFuncs).ParseFS(templateFS,
			"templates/layout.tmpl",
			"templates/partials.tmpl",
			"templates/"+name+".tmpl",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		r.pages[name] = t
	}

	fragments, err := template.New("partials.tmpl").Funcs(templateFuncs).ParseFS(templateFS, "templates/partials.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse partials: %w", err)
	}
	r.fragments = fragments

	return r, nil
}

// page writes a full document, or only the swappable main region for htmx.
func (s *Server) page(w http.ResponseWriter, r *http.Request, status int, name string, v view) {
	t, ok := s.render.pages[name]
	if !ok {
		http.Error(w, "unknown page", http.StatusInternalServerError)
		return
	}

	root := "layout"
	if isHTMX(r) {
		root = "main"
	}
	s.execute(w, status, t, root, v)
}

// fragment writes a single partial.
func (s *Server) fragment(w http.ResponseWriter, status int, name string, data any) {
	s.execute(w, status, s.render.fragments, name, data)
}

func (s *Server) execute(w http.ResponseWriter, status int, t *template.Template, name string, data any) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		log.WithError(err).Errorf("❌ Failed to render %s", name)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.page(w, r, status, "error", view{
		Title:    http.StatusText(status),
		SignedIn: userID(r) != "",
		Data: struct {
			Status  int
			Message string
		}{status, message},
	})
}
