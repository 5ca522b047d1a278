// Package clipboard copies message text to the system clipboard and drives
// the transient "copied" indicator. Copy failures are logged and swallowed:
// a broken clipboard must never interrupt the conversation view.
package clipboard

import (
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"

	"github.com/btriapitsyn/openchamber-sub004/pkg/logging"
)

// feedbackDuration is how long the "copied" indicator stays up.
const feedbackDuration = 2 * time.Second

// Writer performs fire-and-forget clipboard writes.
type Writer struct {
	log      *logging.Logger
	write    func(string) error
	feedback time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// New creates a writer backed by the platform clipboard. The logger may be
// nil.
func New(log *logging.Logger) *Writer {
	return &Writer{
		log:      log,
		write:    clipboard.WriteAll,
		feedback: feedbackDuration,
	}
}

// Copy writes text to the clipboard. On success onFeedback fires with true
// immediately and false once the feedback window elapses. A copy issued while
// the previous window is open restarts it. Blank text is a no-op.
func (w *Writer) Copy(text string, onFeedback func(active bool)) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if err := w.write(text); err != nil {
		if w.log != nil {
			_ = w.log.Warn(logging.CategoryClipboard, "copy_failed", err.Error(), nil)
		}
		return
	}
	if onFeedback == nil {
		return
	}
	onFeedback(true)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.feedback, func() {
		onFeedback(false)
	})
}

// Stop cancels any pending feedback reset.
func (w *Writer) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
