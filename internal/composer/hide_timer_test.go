package composer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/weiawesome/sync-party/internal/domain"
)

func TestHideTimer_RearmSupersedesPreviousTick(t *testing.T) {
	timer := NewHideTimer(12 * time.Second)
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, timer.Hidden())

	first, _ := timer.Arm(start)
	assert.False(t, timer.Hidden())

	second, deadline := timer.Arm(start.Add(5 * time.Second))
	assert.Equal(t, start.Add(17*time.Second), deadline)
	assert.Equal(t, deadline, timer.Deadline())

	// the T+12s tick belongs to the first arm
	assert.False(t, timer.Fire(first))
	assert.False(t, timer.Hidden())

	assert.True(t, timer.Fire(second))
	assert.True(t, timer.Hidden())
	assert.True(t, timer.Deadline().IsZero())

	assert.False(t, timer.Fire(second))
}

func TestHideTimer_PinnedSurfaceStaysVisible(t *testing.T) {
	timer := NewHideTimer(time.Second)
	gen, _ := timer.Arm(time.Now())

	timer.Pin(true)
	assert.False(t, timer.Fire(gen))
	assert.False(t, timer.Hidden())

	timer.Pin(false)
	assert.True(t, timer.Fire(gen))
}

func TestHideTimer_DefaultWindow(t *testing.T) {
	assert.Equal(t, DefaultHideAfter, NewHideTimer(0).Window())
}

func TestHistory(t *testing.T) {
	h := NewHistory(3)

	for _, id := range []string{"1", "2", "3"} {
		assert.True(t, h.Append(domain.ChatMessage{ID: id, PartyID: "p1", Message: "m" + id}))
	}
	assert.False(t, h.Append(domain.ChatMessage{ID: "2", PartyID: "p1"}))
	assert.True(t, h.Append(domain.ChatMessage{ID: "x", PartyID: "p2"}))

	assert.True(t, h.Append(domain.ChatMessage{ID: "4", PartyID: "p1"}))
	got := h.Messages("p1")
	assert.Len(t, got, 3)
	assert.Equal(t, "2", got[0].ID)
	assert.Equal(t, "4", got[2].ID)

	// trimmed ids may come back
	assert.True(t, h.Append(domain.ChatMessage{ID: "1", PartyID: "p1"}))

	got[0].Message = "mutated"
	assert.NotEqual(t, "mutated", h.Messages("p1")[0].Message)

	assert.Equal(t, 1, h.Len("p2"))
	h.Clear("p2")
	assert.Empty(t, h.Messages("p2"))
}
