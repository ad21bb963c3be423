package gaze

import (
	"sync"

	"github.com/fakeyudi/gazetrace/internal/host"
)

// HighlightSlot holds at most one live highlight. Setting a new one always
// releases the previous one first.
type HighlightSlot struct {
	mu  sync.Mutex
	cur host.Highlight
}

// Replace releases the current highlight and asks h to mark [start, end).
func (s *HighlightSlot) Replace(h host.Highlighter, start, end int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur != nil {
		s.cur.Release()
		s.cur = nil
	}
	next, err := h.Highlight(start, end)
	if err != nil {
		return err
	}
	s.cur = next
	return nil
}

// Clear releases the current highlight, if any.
func (s *HighlightSlot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur != nil {
		s.cur.Release()
		s.cur = nil
	}
}
