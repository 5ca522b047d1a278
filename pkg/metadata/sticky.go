package metadata

import (
	"strings"
	"sync"
)

// stickyValue remembers the last non-empty value it saw. Once set it keeps
// answering with that value even when a recompute reports empty, which is
// exactly the flicker a message header must not show.
type stickyValue struct {
	mu  sync.Mutex
	val string
	set bool
}

func (s *stickyValue) observe(v string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(v) != "" {
		s.val = v
		s.set = true
	}
	return s.val
}

// stickyFields groups the sticky display fields for one message id.
type stickyFields struct {
	agent    stickyValue
	provider stickyValue
	model    stickyValue
}
