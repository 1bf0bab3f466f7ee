package composer

import "time"

// DefaultHideAfter is how long the chat surface stays up after the last
// message.
const DefaultHideAfter = 12 * time.Second

// HideTimer tracks when the chat surface should auto-hide. Every Arm
// supersedes the previous one; the host schedules a tick for the returned
// generation and reports it back through Fire. Ticks from older
// generations are stale and ignored.
type HideTimer struct {
	window   time.Duration
	gen      uint64
	deadline time.Time
	armed    bool
	pinned   bool
	hidden   bool
}

func NewHideTimer(window time.Duration) *HideTimer {
	if window <= 0 {
		window = DefaultHideAfter
	}
	return &HideTimer{window: window, hidden: true}
}

func (t *HideTimer) Window() time.Duration { return t.window }

// Arm shows the surface and restarts the countdown from now.
func (t *HideTimer) Arm(now time.Time) (gen uint64, deadline time.Time) {
	t.gen++
	t.deadline = now.Add(t.window)
	t.armed = true
	t.hidden = false
	return t.gen, t.deadline
}

// Fire hides the surface if gen is the current generation. It reports
// whether the surface was hidden.
func (t *HideTimer) Fire(gen uint64) bool {
	if !t.armed || gen != t.gen || t.pinned {
		return false
	}
	t.armed = false
	t.hidden = true
	return true
}

// Pin keeps the surface visible while the composer has focus. Unpinning
// does not re-arm; the caller decides whether to.
func (t *HideTimer) Pin(pinned bool) {
	t.pinned = pinned
	if pinned {
		t.hidden = false
	}
}

func (t *HideTimer) Pinned() bool { return t.pinned }

func (t *HideTimer) Hidden() bool { return t.hidden }

// Deadline is the time the current generation expires. Zero when idle.
func (t *HideTimer) Deadline() time.Time {
	if !t.armed {
		return time.Time{}
	}
	return t.deadline
}

// Generation returns the current generation.
func (t *HideTimer) Generation() uint64 { return t.gen }
