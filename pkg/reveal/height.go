package reveal

import (
	"sync"
	"time"
)

// frameInterval approximates one animation frame. Height changes arriving
// faster than this are coalesced so layout never thrashes the scroll anchor.
const frameInterval = 16 * time.Millisecond

// heightNotifier delivers at most one height per frame. A new value arriving
// before delivery supersedes the pending one; stop cancels an undelivered
// call outright.
type heightNotifier struct {
	fn func(int)

	mu      sync.Mutex
	latest  int
	pending bool
	stopped bool
	timer   *time.Timer
}

func newHeightNotifier(fn func(int)) *heightNotifier {
	return &heightNotifier{fn: fn}
}

func (n *heightNotifier) notify(height int) {
	if n == nil || n.fn == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stopped {
		return
	}
	n.latest = height
	if n.pending {
		return
	}
	n.pending = true
	n.timer = time.AfterFunc(frameInterval, n.flush)
}

func (n *heightNotifier) flush() {
	n.mu.Lock()
	if n.stopped || !n.pending {
		n.mu.Unlock()
		return
	}
	n.pending = false
	height := n.latest
	n.mu.Unlock()

	n.fn(height)
}

func (n *heightNotifier) stop() {
	if n == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopped = true
	n.pending = false
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}
