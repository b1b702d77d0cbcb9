package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestRemainingAt(t *testing.T) {
	start := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, 600, RemainingAt(start, 10, start))
	assert.Equal(t, 599, RemainingAt(start, 10, start.Add(500*time.Millisecond)))
	assert.Equal(t, 1, RemainingAt(start, 10, start.Add(599*time.Second)))
	assert.Equal(t, 0, RemainingAt(start, 10, start.Add(10*time.Minute)))
	assert.Equal(t, 0, RemainingAt(start, 10, start.Add(2*time.Hour)))
}

func TestTimerCountsDownAndExpiresOnce(t *testing.T) {
	start := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	tm := NewTimer(start, intPtr(1))
	require.True(t, tm.Timed())
	assert.Equal(t, TimerInactive, tm.State())

	res := tm.Start(start)
	assert.Equal(t, TickResult{Remaining: 60}, res)
	assert.Equal(t, TimerRunning, tm.State())

	res = tm.Tick(start.Add(45 * time.Second))
	assert.Equal(t, 15, res.Remaining)
	assert.False(t, res.Expired)
	assert.Equal(t, UrgencyMedium, tm.Urgency())

	// Clock skew backwards never raises the remaining time.
	res = tm.Tick(start.Add(30 * time.Second))
	assert.Equal(t, 15, res.Remaining)

	res = tm.Tick(start.Add(61 * time.Second))
	assert.Equal(t, TickResult{Remaining: 0, Expired: true}, res)
	assert.Equal(t, TimerExpired, tm.State())

	res = tm.Tick(start.Add(62 * time.Second))
	assert.False(t, res.Expired)
	assert.Equal(t, 0, res.Remaining)
}

func TestTimerStartAfterDeadline(t *testing.T) {
	start := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	tm := NewTimer(start, intPtr(30))

	res := tm.Start(start.Add(3 * time.Hour))
	assert.True(t, res.Expired)
	assert.Equal(t, TimerExpired, tm.State())
}

func TestTimerUntimed(t *testing.T) {
	tm := NewTimer(time.Now(), nil)
	assert.False(t, tm.Timed())

	res := tm.Start(time.Now())
	assert.False(t, res.Expired)
	assert.Equal(t, TimerInactive, tm.State())
	assert.Equal(t, UrgencyNone, tm.Urgency())
}

func TestTimerStop(t *testing.T) {
	start := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	tm := NewTimer(start, intPtr(1))
	tm.Start(start)
	tm.Stop()

	res := tm.Tick(start.Add(2 * time.Minute))
	assert.False(t, res.Expired)
	assert.Equal(t, 60, res.Remaining)
}

func TestUrgencyFor(t *testing.T) {
	tests := []struct {
		remaining int
		want      Urgency
	}{
		{remaining: 100, want: UrgencyLow},
		{remaining: 51, want: UrgencyLow},
		{remaining: 50, want: UrgencyMedium},
		{remaining: 25, want: UrgencyMedium},
		{remaining: 24, want: UrgencyHigh},
		{remaining: 10, want: UrgencyHigh},
		{remaining: 9, want: UrgencyCritical},
		{remaining: 0, want: UrgencyCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, UrgencyFor(tt.remaining, 100), "remaining=%d", tt.remaining)
	}
	assert.Equal(t, UrgencyNone, UrgencyFor(10, 0))
}
