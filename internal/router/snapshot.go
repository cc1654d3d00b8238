package router

// State is a serializable copy of a router, used to carry navigation across
// requests of the same browser session.
type State struct {
	Entries  []Entry `json:"entries"`
	Index    int     `json:"index"`
	Location string  `json:"location"`
}

func (r *Router) Snapshot() State {
	return State{
		Entries:  r.Entries(),
		Index:    r.index,
		Location: r.Current(),
	}
}

// Restore rebuilds a router from a snapshot. A snapshot with no entries mounts
// at its location; an out-of-range index is clamped into the stack.
func Restore(history History, st State, opts ...Option) *Router {
	if len(st.Entries) == 0 {
		return New(history, st.Location, opts...)
	}

	r := &Router{history: history}
	for _, opt := range opts {
		opt(r)
	}
	r.entries = make([]Entry, len(st.Entries))
	for i, e := range st.Entries {
		r.entries[i] = Entry{Path: normalize(e.Path)}
	}
	r.index = st.Index
	if r.index < 0 {
		r.index = 0
	}
	if r.index > len(r.entries)-1 {
		r.index = len(r.entries) - 1
	}
	r.trim()

	location := st.Location
	if location == "" {
		location = r.entries[r.index].Path
	}
	r.apply(normalize(location))
	return r
}

// Rebind points the router at a different browser binding, typically the one
// of the request currently being served.
func (r *Router) Rebind(history History) {
	r.history = history
}
