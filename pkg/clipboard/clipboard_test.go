package clipboard

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type feedbackRecorder struct {
	mu     sync.Mutex
	states []bool
}

func (r *feedbackRecorder) record(active bool) {
	r.mu.Lock()
	r.states = append(r.states, active)
	r.mu.Unlock()
}

func (r *feedbackRecorder) snapshot() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bool, len(r.states))
	copy(out, r.states)
	return out
}

func newTestWriter(write func(string) error) *Writer {
	return &Writer{
		write:    write,
		feedback: 20 * time.Millisecond,
	}
}

func TestCopy_WritesAndResetsFeedback(t *testing.T) {
	var written string
	w := newTestWriter(func(text string) error {
		written = text
		return nil
	})
	defer w.Stop()

	rec := &feedbackRecorder{}
	w.Copy("hello", rec.record)

	assert.Equal(t, "hello", written)
	require.Equal(t, []bool{true}, rec.snapshot())

	require.Eventually(t, func() bool {
		states := rec.snapshot()
		return len(states) == 2 && !states[1]
	}, time.Second, 5*time.Millisecond)
}

func TestCopy_RestartsFeedbackWindow(t *testing.T) {
	w := newTestWriter(func(string) error { return nil })
	defer w.Stop()

	rec := &feedbackRecorder{}
	w.Copy("one", rec.record)
	w.Copy("two", rec.record)

	require.Eventually(t, func() bool {
		states := rec.snapshot()
		return len(states) >= 3 && !states[len(states)-1]
	}, time.Second, 5*time.Millisecond)

	// Two activations, one reset: the first window was replaced.
	assert.Equal(t, []bool{true, true, false}, rec.snapshot())
}

func TestCopy_ErrorSuppressesFeedback(t *testing.T) {
	w := newTestWriter(func(string) error { return errors.New("no display") })
	defer w.Stop()

	rec := &feedbackRecorder{}
	w.Copy("hello", rec.record)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestCopy_IgnoresBlankText(t *testing.T) {
	called := false
	w := newTestWriter(func(string) error {
		called = true
		return nil
	})
	w.Copy("   \n", nil)
	assert.False(t, called)
}
