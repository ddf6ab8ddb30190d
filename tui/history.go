// Package tui provides a Bubble Tea terminal UI over the qicore kernel.
package tui

// History is a bounded command history with cursor-based navigation.
type History struct {
	entries []string
	max     int
	cursor  int // -1 = not navigating, 0..len-1 = position in entries
}

// NewHistory creates a history holding at most max entries, pre-filled
// with seed (oldest first), e.g. a restored session's command log.
func NewHistory(max int, seed ...string) *History {
	if max < 1 {
		max = 1
	}
	h := &History{
		entries: make([]string, 0, max),
		max:     max,
		cursor:  -1,
	}
	for _, cmd := range seed {
		h.Push(cmd)
	}
	return h
}

// Push adds a command. Consecutive duplicates are skipped and the oldest
// entry is dropped once the history is full.
func (h *History) Push(cmd string) {
	if cmd == "" {
		return
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == cmd {
		return
	}
	if len(h.entries) == h.max {
		copy(h.entries, h.entries[1:])
		h.entries = h.entries[:h.max-1]
	}
	h.entries = append(h.entries, cmd)
}

// Len reports the number of stored entries.
func (h *History) Len() int { return len(h.entries) }

// Prev steps to the previous (older) entry, stopping at the oldest.
func (h *History) Prev() (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	switch {
	case h.cursor == -1:
		h.cursor = len(h.entries) - 1
	case h.cursor > 0:
		h.cursor--
	}
	return h.entries[h.cursor], true
}

// Next steps to the next (newer) entry. It returns false once past the
// most recent entry, which means back to fresh input.
func (h *History) Next() (string, bool) {
	if h.cursor == -1 {
		return "", false
	}
	h.cursor++
	if h.cursor >= len(h.entries) {
		h.cursor = -1
		return "", false
	}
	return h.entries[h.cursor], true
}

// ResetCursor leaves navigation mode.
func (h *History) ResetCursor() {
	h.cursor = -1
}
