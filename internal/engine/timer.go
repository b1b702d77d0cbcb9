package engine

import "time"

// TickPeriod is the countdown resolution.
const TickPeriod = time.Second

// TimerState enumerates countdown states.
type TimerState string

const (
	TimerInactive TimerState = "inactive"
	TimerRunning  TimerState = "running"
	TimerExpired  TimerState = "expired"
)

// Urgency is the display tier derived from the remaining share of time.
type Urgency string

const (
	UrgencyNone     Urgency = "none"
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// TickResult is the outcome of advancing the countdown.
type TickResult struct {
	Remaining int
	// Expired is true only on the tick that moved the timer to expired.
	Expired bool
}

// Timer is the countdown of a timed session, anchored at the session start.
// It is not safe for concurrent use.
type Timer struct {
	state        TimerState
	startedAt    time.Time
	limitSeconds int
	remaining    int
	stopped      bool
}

// NewTimer creates an inactive timer. A nil limit yields an untimed timer
// that never leaves the inactive state.
func NewTimer(startedAt time.Time, limitMinutes *int) *Timer {
	t := &Timer{state: TimerInactive, startedAt: startedAt}
	if limitMinutes != nil {
		t.limitSeconds = *limitMinutes * 60
		t.remaining = t.limitSeconds
	}
	return t
}

// RemainingAt computes whole seconds left at now, never below zero.
func RemainingAt(startedAt time.Time, limitMinutes int, now time.Time) int {
	end := startedAt.Add(time.Duration(limitMinutes) * time.Minute)
	left := end.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left / time.Second)
}

// Timed reports whether the timer counts down at all.
func (t *Timer) Timed() bool {
	return t.limitSeconds > 0
}

// Start moves a timed timer to running and evaluates it once at now.
// A session loaded after its deadline expires immediately.
func (t *Timer) Start(now time.Time) TickResult {
	if !t.Timed() || t.state != TimerInactive || t.stopped {
		return TickResult{Remaining: t.remaining}
	}
	t.state = TimerRunning
	return t.Tick(now)
}

// Tick re-evaluates the countdown. Remaining never increases.
func (t *Timer) Tick(now time.Time) TickResult {
	if t.state != TimerRunning || t.stopped {
		return TickResult{Remaining: t.remaining}
	}
	t.remaining = t.Observe(now)
	if t.remaining == 0 {
		t.state = TimerExpired
		return TickResult{Remaining: 0, Expired: true}
	}
	return TickResult{Remaining: t.remaining}
}

// Observe returns the remaining seconds at now without changing state.
func (t *Timer) Observe(now time.Time) int {
	if !t.Timed() {
		return 0
	}
	if t.state == TimerExpired {
		return 0
	}
	r := RemainingAt(t.startedAt, t.limitSeconds/60, now)
	if t.state == TimerRunning && r > t.remaining {
		r = t.remaining
	}
	return r
}

// Stop cancels further ticks.
func (t *Timer) Stop() {
	t.stopped = true
}

// State returns the countdown state.
func (t *Timer) State() TimerState {
	return t.state
}

// Remaining returns the seconds left as of the last tick.
func (t *Timer) Remaining() int {
	return t.remaining
}

// LimitSeconds returns the full duration of a timed session.
func (t *Timer) LimitSeconds() int {
	return t.limitSeconds
}

// Urgency returns the display tier for the last tick.
func (t *Timer) Urgency() Urgency {
	if !t.Timed() {
		return UrgencyNone
	}
	return UrgencyFor(t.remaining, t.limitSeconds)
}

// UrgencyFor maps remaining/limit onto the urgency tiers.
func UrgencyFor(remaining, limitSeconds int) Urgency {
	if limitSeconds <= 0 {
		return UrgencyNone
	}
	ratio := float64(remaining) / float64(limitSeconds)
	switch {
	case ratio > 0.5:
		return UrgencyLow
	case ratio >= 0.25:
		return UrgencyMedium
	case ratio >= 0.10:
		return UrgencyHigh
	default:
		return UrgencyCritical
	}
}
