package web

import (
	"context"
	"maps"
	"net/http"
	"net/url"
	"strings"

	"nammakumta/directory/internal/router"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
)

// htmxHistory drives the address bar through htmx response headers. htmx
// applies them after swapping the response into the page, so the browser
// never reloads.
type htmxHistory struct {
	header http.Header
}

func (h htmxHistory) PushState(u string) {
	h.header.Set("HX-Push-Url", u)
}

func (h htmxHistory) ReplaceState(u string) {
	h.header.Set("HX-Replace-Url", u)
}

// redirectHistory records where a plain browser has to be sent next.
type redirectHistory struct {
	location string
}

func (h *redirectHistory) PushState(u string) {
	h.location = u
}

func (h *redirectHistory) ReplaceState(u string) {
	h.location = u
}

// shownHistory is bound when the browser already displays the location.
type shownHistory struct{}

func (shownHistory) PushState(string)    {}
func (shownHistory) ReplaceState(string) {}

func (s *Server) routerOptions() []router.Option {
	if s.maxEntries <= 0 {
		return nil
	}
	return []router.Option{router.WithMaxEntries(s.maxEntries)}
}

// loadRouter restores the session's router, or mounts a new one when the
// session has none yet.
func (s *Server) loadRouter(r *http.Request, history router.History, fallback string) *router.Router {
	st, ok, err := s.nav.Load(r.Context(), sessionID(r))
	if err != nil {
		log.WithError(err).Warn("⚠️ Navigation state unavailable, starting fresh")
	}
	if err != nil || !ok {
		return router.New(history, mountLocation(r, fallback), s.routerOptions()...)
	}
	return router.Restore(history, st, s.routerOptions()...)
}

func (s *Server) saveRouter(r *http.Request, rt *router.Router) {
	if err := s.nav.Save(r.Context(), sessionID(r), rt.Snapshot()); err != nil {
		log.WithError(err).Warn("⚠️ Failed to save navigation state")
	}
}

// mountLocation is the location the browser shows when a session is first
// seen: htmx reports it in HX-Current-URL, plain requests use fallback.
func mountLocation(r *http.Request, fallback string) string {
	if current := r.Header.Get("HX-Current-URL"); current != "" {
		if u, err := url.Parse(current); err == nil && u.Path != "" {
			return u.RequestURI()
		}
	}
	if fallback == "" {
		return "/"
	}
	return fallback
}

// refererLocation is where a plain form post was submitted from.
func refererLocation(r *http.Request) string {
	u, err := url.Parse(r.Referer())
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.RequestURI()
}

// routerFor returns the router for a page request and records the page as the
// current location. A location the router is not showing yet is a new
// navigation.
func (s *Server) routerFor(w http.ResponseWriter, r *http.Request) *router.Router {
	if rt, ok := r.Context().Value(ctxKeyRouter).(*router.Router); ok {
		return rt
	}

	var history router.History = shownHistory{}
	if isHTMX(r) {
		history = htmxHistory{header: w.Header()}
	}

	location := r.URL.RequestURI()
	rt := s.loadRouter(r, history, location)
	if !sameLocation(rt.Current(), location) {
		rt.Push(location)
	}
	s.saveRouter(r, rt)
	return rt
}

func sameLocation(a, b string) bool {
	pathA, queryA := router.Parse(a)
	pathB, queryB := router.Parse(b)
	return pathA == pathB && maps.Equal(queryA, queryB)
}

// validTarget rejects locations that would leave the site. It looks at the
// target the way the router will store it, with the leading slash added.
// Browsers read a backslash as a slash and drop tabs and newlines, so those
// never reach a Location header.
func validTarget(to string) bool {
	to = strings.TrimSpace(to)
	if to == "" {
		return false
	}
	if strings.ContainsFunc(to, func(r rune) bool { return r == '\\' || r < 0x20 || r == 0x7f }) {
		return false
	}
	u, err := url.Parse(to)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return false
	}
	if !strings.HasPrefix(to, "/") {
		to = "/" + to
	}
	return !strings.HasPrefix(to, "//")
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	to := r.FormValue("to")
	if !validTarget(to) {
		s.renderError(w, r, http.StatusBadRequest, "Invalid navigation target")
		return
	}
	s.navigate(w, r, func(rt *router.Router) { rt.Push(to) })
}

func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	to := r.FormValue("to")
	if !validTarget(to) {
		s.renderError(w, r, http.StatusBadRequest, "Invalid navigation target")
		return
	}
	s.navigate(w, r, func(rt *router.Router) { rt.Replace(to) })
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	s.navigate(w, r, (*router.Router).Back)
}

func (s *Server) handleForward(w http.ResponseWriter, r *http.Request) {
	s.navigate(w, r, (*router.Router).Forward)
}

// navigate applies op to the session's router and shows the resulting
// location: in place for htmx, through a 303 otherwise.
func (s *Server) navigate(w http.ResponseWriter, r *http.Request, op func(*router.Router)) {
	if !isHTMX(r) {
		history := &redirectHistory{}
		rt := s.loadRouter(r, history, refererLocation(r))
		op(rt)
		s.saveRouter(r, rt)
		target := history.location
		if target == "" {
			target = rt.Current()
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	rt := s.loadRouter(r, htmxHistory{header: w.Header()}, "/")
	op(rt)
	s.saveRouter(r, rt)
	s.renderLocation(w, r, rt)
}

// renderLocation serves the router's current location as if the browser had
// requested it.
func (s *Server) renderLocation(w http.ResponseWriter, r *http.Request, rt *router.Router) {
	u, err := url.Parse(rt.Current())
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Invalid location")
		return
	}

	// a nil route context makes chi route the clone from scratch
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, nil)
	ctx = context.WithValue(ctx, ctxKeyRouter, rt)

	req := r.Clone(ctx)
	req.Method = http.MethodGet
	req.URL = u
	req.RequestURI = u.RequestURI()
	req.Body = http.NoBody
	req.ContentLength = 0

	s.pages.ServeHTTP(w, req)
}
