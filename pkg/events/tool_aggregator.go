package events

import "sync"

// ToolEventEntry aggregates the activity of one tool request, keyed by the
// request id.
type ToolEventEntry struct {
	ID        string
	Name      string
	Iteration int
	Completed bool
	Success   bool
}

// ToolEventAggregator collects tool events of a run into compact entries.
// It is an EventSink and can be attached to a run next to the client sink.
type ToolEventAggregator struct {
	mu      sync.Mutex
	index   map[string]int
	entries []ToolEventEntry
}

func NewToolEventAggregator() *ToolEventAggregator {
	return &ToolEventAggregator{
		index:   make(map[string]int),
		entries: make([]ToolEventEntry, 0, 4),
	}
}

func (a *ToolEventAggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.index = make(map[string]int)
	a.entries = a.entries[:0]
}

// Entries returns a snapshot of the entries in announcement order.
func (a *ToolEventAggregator) Entries() []ToolEventEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]ToolEventEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

func (a *ToolEventAggregator) PublishEvent(e Event) error {
	a.Handle(e)
	return nil
}

// Handle consumes an Event and updates entries when it is tool-related.
func (a *ToolEventAggregator) Handle(e Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch ev := e.(type) {
	case *EventToolsStarted:
		for _, t := range ev.Tools {
			if t.ID == "" {
				continue
			}
			idx := a.ensure(t.ID)
			a.entries[idx].Name = t.Name
			a.entries[idx].Iteration = ev.Metadata().Iteration
		}
	case *EventToolCompleted:
		if ev.ID == "" {
			return
		}
		idx := a.ensure(ev.ID)
		if ev.Name != "" {
			a.entries[idx].Name = ev.Name
		}
		a.entries[idx].Completed = true
		a.entries[idx].Success = ev.Success
	}
}

// Lines returns one plain-text line per entry.
func (a *ToolEventAggregator) Lines() []string {
	entries := a.Entries()
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name
		if name == "" {
			name = e.ID
		}
		status := "running"
		if e.Completed {
			status = "ok"
			if !e.Success {
				status = "failed"
			}
		}
		lines = append(lines, joinWithDoubleSpace([]string{"→ " + name, e.ID, status}))
	}
	return lines
}

func (a *ToolEventAggregator) ensure(id string) int {
	if idx, ok := a.index[id]; ok {
		return idx
	}
	idx := len(a.entries)
	a.index[id] = idx
	a.entries = append(a.entries, ToolEventEntry{ID: id})
	return idx
}

func joinWithDoubleSpace(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	totalLen := 0
	for _, p := range parts {
		totalLen += len(p)
	}
	b := make([]byte, 0, totalLen+2*(len(parts)-1))
	for i, p := range parts {
		if i > 0 {
			b = append(b, ' ', ' ')
		}
		b = append(b, p...)
	}
	return string(b)
}

var _ EventSink = (*ToolEventAggregator)(nil)
