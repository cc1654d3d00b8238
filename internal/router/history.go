package router

// Call records one invocation made on a MemoryHistory.
type Call struct {
	Op  string // "push" or "replace"
	URL string
}

// MemoryHistory is a History that only remembers what it was asked to do.
type MemoryHistory struct {
	Calls []Call
}

func (h *MemoryHistory) PushState(url string) {
	h.Calls = append(h.Calls, Call{Op: "push", URL: url})
}

func (h *MemoryHistory) ReplaceState(url string) {
	h.Calls = append(h.Calls, Call{Op: "replace", URL: url})
}

// Last returns the most recent call, if any.
func (h *MemoryHistory) Last() (Call, bool) {
	if len(h.Calls) == 0 {
		return Call{}, false
	}
	return h.Calls[len(h.Calls)-1], true
}

// Location is the URL the address bar would show after the recorded calls.
func (h *MemoryHistory) Location() string {
	if c, ok := h.Last(); ok {
		return c.URL
	}
	return ""
}
