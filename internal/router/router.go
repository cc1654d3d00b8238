// Package router keeps a single-page-app style navigation state: the current
// pathname and query parameters plus a linear back/forward stack, mirrored onto
// the browser's address bar through a History binding.
//
// A Router is not safe for concurrent use. Each browser session owns its own
// instance; callers serialize operations the same way UI event handlers do.
package router

import (
	"net/url"
	"strings"
)

// History is the browser history API as seen by the router. Implementations
// must change the visible URL without reloading the page.
type History interface {
	PushState(url string)
	ReplaceState(url string)
}

// Entry is one slot of the navigation stack. Path includes the raw query string.
type Entry struct {
	Path string `json:"path"`
}

type Router struct {
	pathname   string
	query      map[string]string
	entries    []Entry
	index      int
	history    History
	maxEntries int
}

type Option func(*Router)

// WithMaxEntries caps the stack length. Older entries are dropped first.
func WithMaxEntries(n int) Option {
	return func(r *Router) {
		r.maxEntries = n
	}
}

// New mounts a router at the current browser location. The stack starts with
// that single entry.
func New(history History, location string, opts ...Option) *Router {
	r := &Router{history: history}
	for _, opt := range opts {
		opt(r)
	}
	path := normalize(location)
	r.apply(path)
	r.entries = []Entry{{Path: path}}
	r.index = 0
	return r
}

// Push navigates to path, discarding any forward entries.
func (r *Router) Push(path string) {
	path = normalize(path)
	r.apply(path)

	r.entries = append(r.entries[:r.index+1], Entry{Path: path})
	r.index = len(r.entries) - 1
	r.trim()

	r.history.PushState(path)
}

// Replace swaps the visible location in place. The stack is left untouched.
func (r *Router) Replace(path string) {
	path = normalize(path)
	r.apply(path)
	r.history.ReplaceState(path)
}

// Back moves one entry back. It is a no-op at the start of the stack.
//
// The address bar is updated with ReplaceState: the native back button is a
// separate channel and pushing here would grow the browser history on every
// in-app back.
func (r *Router) Back() {
	if r.index == 0 {
		return
	}
	r.index--
	r.moveTo(r.entries[r.index].Path)
}

// Forward moves one entry forward. It is a no-op at the tip of the stack.
func (r *Router) Forward() {
	if r.index >= len(r.entries)-1 {
		return
	}
	r.index++
	r.moveTo(r.entries[r.index].Path)
}

func (r *Router) moveTo(path string) {
	r.apply(path)
	r.history.ReplaceState(path)
}

func (r *Router) Pathname() string {
	return r.pathname
}

// Query returns a copy of the current query parameters.
func (r *Router) Query() map[string]string {
	out := make(map[string]string, len(r.query))
	for k, v := range r.query {
		out[k] = v
	}
	return out
}

func (r *Router) Param(key string) string {
	return r.query[key]
}

// Current returns the visible location including its query string.
func (r *Router) Current() string {
	if len(r.query) == 0 {
		return r.pathname
	}
	values := make(url.Values, len(r.query))
	for k, v := range r.query {
		values.Set(k, v)
	}
	return r.pathname + "?" + values.Encode()
}

func (r *Router) CanGoBack() bool {
	return r.index > 0
}

func (r *Router) CanGoForward() bool {
	return r.index < len(r.entries)-1
}

func (r *Router) Len() int {
	return len(r.entries)
}

func (r *Router) Index() int {
	return r.index
}

// Entries returns a copy of the navigation stack.
func (r *Router) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Router) apply(path string) {
	r.pathname, r.query = Parse(path)
}

func (r *Router) trim() {
	if r.maxEntries <= 0 || len(r.entries) <= r.maxEntries {
		return
	}
	drop := len(r.entries) - r.maxEntries
	r.entries = append([]Entry(nil), r.entries[drop:]...)
	r.index -= drop
	if r.index < 0 {
		r.index = 0
	}
}

// Parse splits a location on its first '?' into the pathname and the query
// parameters. Malformed query pairs are skipped; the first value wins for
// repeated keys.
func Parse(location string) (string, map[string]string) {
	location = normalize(location)
	pathOnly, search, _ := strings.Cut(location, "?")
	if pathOnly == "" {
		pathOnly = "/"
	}

	query := make(map[string]string)
	if search == "" {
		return pathOnly, query
	}
	// ParseQuery keeps every well-formed pair even when it reports an error.
	values, _ := url.ParseQuery(search)
	for k, v := range values {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}
	return pathOnly, query
}

func normalize(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return "/"
	}
	// drop fragments; they never reach the server and carry no router state
	if i := strings.IndexByte(path, '#'); i >= 0 {
		path = path[:i]
		if path == "" {
			return "/"
		}
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}
