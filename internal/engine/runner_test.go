package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-practice/internal/model"
)

const waitFor = 2 * time.Second
const pollEvery = 5 * time.Millisecond

// memStore is an in-memory Store with failure injection.
type memStore struct {
	mu           sync.Mutex
	session      *model.ExamSession
	updates      int
	finalizes    int
	updateErr    error
	positions    int
	positionErr  error
	finalizeErrs []error
	gate         chan struct{}
}

func newMemStore(s *model.ExamSession) *memStore {
	return &memStore{session: s}
}

func (m *memStore) LoadSession(_ context.Context, id uuid.UUID) (*model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil || m.session.ID != id {
		return nil, ErrSessionNotFound
	}
	cp := *m.session
	cp.Answers = m.session.Answers.Clone()
	return &cp, nil
}

func (m *memStore) UpdateAnswers(_ context.Context, _ uuid.UUID, answers model.Answers) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	if m.session.Status == model.SessionStatusCompleted {
		return ErrSessionCompleted
	}
	m.updates++
	m.session.Answers = answers.Clone()
	return nil
}

func (m *memStore) UpdatePosition(_ context.Context, _ uuid.UUID, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.positionErr != nil {
		return m.positionErr
	}
	if m.session.Status == model.SessionStatusCompleted {
		return ErrSessionCompleted
	}
	m.positions++
	m.session.CurrentIndex = max(m.session.CurrentIndex, index)
	return nil
}

func (m *memStore) FinalizeSession(ctx context.Context, _ uuid.UUID, fin model.Finalization) error {
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalizes++
	if len(m.finalizeErrs) > 0 {
		err := m.finalizeErrs[0]
		m.finalizeErrs = m.finalizeErrs[1:]
		return err
	}
	if m.session.Status == model.SessionStatusCompleted {
		return ErrSessionCompleted
	}
	complete(m.session, fin)
	return nil
}

func (m *memStore) status() model.SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Status
}

func (m *memStore) answers() model.Answers {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Answers.Clone()
}

func (m *memStore) position() (index, writes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.CurrentIndex, m.positions
}

func (m *memStore) counts() (updates, finalizes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates, m.finalizes
}

type recorder struct {
	mu            sync.Mutex
	notifications []Notification
	activities    []Activity
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *recorder) Record(a Activity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activities = append(r.activities, a)
}

func (r *recorder) kinds() []NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]NotificationKind, len(r.notifications))
	for i, n := range r.notifications {
		out[i] = n.Kind
	}
	return out
}

func (r *recorder) activityKinds() []ActivityKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ActivityKind, len(r.activities))
	for i, a := range r.activities {
		out[i] = a.Kind
	}
	return out
}

func startRunner(t *testing.T, store *memStore, clock clockwork.Clock, opts ...RunnerOption) *Runner {
	t.Helper()
	opts = append([]RunnerOption{WithClock(clock)}, opts...)
	r, err := Start(context.Background(), store, store.session.ID, opts...)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func phaseOf(_ *testing.T, r *Runner) Phase {
	v, err := r.Snapshot(context.Background())
	if err != nil {
		return ""
	}
	return v.Phase
}

func TestRunnerRejectsUnknownSession(t *testing.T) {
	store := newMemStore(newSession(model.ExamTypeStandard, 3, intPtr(5)))
	_, err := Start(context.Background(), store, uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRunnerRejectsInconsistentSession(t *testing.T) {
	s := newSession(model.ExamTypeStandard, 3, intPtr(5))
	s.TotalQuestions = 5
	_, err := Start(context.Background(), newMemStore(s), s.ID)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestRunnerManualSubmit(t *testing.T) {
	s := newSession(model.ExamTypeStandard, 4, intPtr(10))
	store := newMemStore(s)
	clock := clockwork.NewFakeClockAt(s.StartedAt)
	rec := &recorder{}
	r := startRunner(t, store, clock, WithObserver(rec), WithActivitySink(rec))
	ctx := context.Background()

	require.NoError(t, r.Answer(ctx, 0, model.OptionA))
	require.NoError(t, r.Answer(ctx, 1, model.OptionB))
	require.NoError(t, r.Answer(ctx, 1, model.OptionA)) // overwrite
	assert.ErrorIs(t, r.Answer(ctx, 4, model.OptionA), ErrIndexOutOfRange)
	assert.ErrorIs(t, r.Answer(ctx, 2, "E"), ErrInvalidOption)

	clock.Advance(90 * time.Second)
	res, err := r.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Score)
	assert.Equal(t, 4, res.TotalQuestions)
	assert.Equal(t, 90, res.TimeSpentSeconds)
	assert.False(t, res.AutoSubmitted)

	// Idempotent after completion.
	again, err := r.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, res, again)

	assert.ErrorIs(t, r.Answer(ctx, 3, model.OptionA), ErrSessionCompleted)
	_, finalizes := store.counts()
	assert.Equal(t, 1, finalizes)
	assert.Equal(t, model.SessionStatusCompleted, store.status())
	assert.Contains(t, rec.kinds(), NotifyGraded)
	assert.Contains(t, rec.activityKinds(), ActivitySubmit)
}

func TestRunnerAutoSubmitsOnExpiry(t *testing.T) {
	s := newSession(model.ExamTypeStandard, 3, intPtr(1))
	store := newMemStore(s)
	clock := clockwork.NewFakeClockAt(s.StartedAt)
	rec := &recorder{}
	r := startRunner(t, store, clock, WithObserver(rec))

	require.NoError(t, r.Answer(context.Background(), 0, model.OptionA))
	clock.Advance(61 * time.Second)

	assert.Eventually(t, func() bool { return phaseOf(t, r) == PhaseCompleted }, waitFor, pollEvery)

	res, err := r.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, res.AutoSubmitted)
	assert.Equal(t, 1, res.Score)
	assert.Equal(t, 60, res.TimeSpentSeconds)

	// Further time never triggers a second terminal write.
	clock.Advance(5 * time.Second)
	clock.Advance(5 * time.Second)
	_, finalizes := store.counts()
	assert.Equal(t, 1, finalizes)

	v, err := r.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TimerExpired, v.TimerState)
	assert.Equal(t, 0, v.Remaining)
}

func TestRunnerSubmitsImmediatelyWhenLoadedPastDeadline(t *testing.T) {
	s := newSession(model.ExamTypeStrict, 3, intPtr(30))
	store := newMemStore(s)
	clock := clockwork.NewFakeClockAt(s.StartedAt.Add(2 * time.Hour))
	r := startRunner(t, store, clock)

	assert.Eventually(t, func() bool { return phaseOf(t, r) == PhaseCompleted }, waitFor, pollEvery)
	res, err := r.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, res.AutoSubmitted)
	assert.Equal(t, 1800, res.TimeSpentSeconds)
}

func TestRunnerTimerAndUserSubmitRace(t *testing.T) {
	s := newSession(model.ExamTypeStandard, 2, intPtr(1))
	store := newMemStore(s)
	store.gate = make(chan struct{})
	clock := clockwork.NewFakeClockAt(s.StartedAt)
	r := startRunner(t, store, clock)
	ctx := context.Background()

	require.NoError(t, r.Answer(ctx, 0, model.OptionA))

	type outcome struct {
		res *Result
		err error
	}
	results := make(chan outcome, 2)
	go func() {
		res, err := r.Submit(ctx)
		results <- outcome{res, err}
	}()
	assert.Eventually(t, func() bool { return phaseOf(t, r) == PhaseSubmitting }, waitFor, pollEvery)

	// The deadline passes while the manual submission is in flight.
	clock.Advance(61 * time.Second)
	assert.ErrorIs(t, r.Answer(ctx, 1, model.OptionA), ErrSubmitting)

	go func() {
		res, err := r.Submit(ctx)
		results <- outcome{res, err}
	}()
	close(store.gate)

	first := <-results
	second := <-results
	require.NoError(t, first.err)
	require.NoError(t, second.err)
	assert.Equal(t, first.res, second.res)
	assert.False(t, first.res.AutoSubmitted)
	assert.Equal(t, 1, first.res.Score)

	clock.Advance(time.Second)
	_, finalizes := store.counts()
	assert.Equal(t, 1, finalizes)
}

func TestRunnerSubmitFailureKeepsSessionOpen(t *testing.T) {
	s := newSession(model.ExamTypePractice, 3, nil)
	store := newMemStore(s)
	store.finalizeErrs = []error{errors.New("connection reset")}
	clock := clockwork.NewFakeClockAt(s.StartedAt)
	rec := &recorder{}
	r := startRunner(t, store, clock, WithObserver(rec))
	ctx := context.Background()

	require.NoError(t, r.Answer(ctx, 2, model.OptionA))

	_, err := r.Submit(ctx)
	require.ErrorIs(t, err, ErrSubmitFailed)
	assert.Equal(t, PhaseInProgress, phaseOf(t, r))
	assert.Equal(t, model.SessionStatusInProgress, store.status())
	assert.Contains(t, rec.kinds(), NotifySubmitFailed)

	// Still answerable, and a retry goes through.
	require.NoError(t, r.Answer(ctx, 1, model.OptionA))
	res, err := r.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Score)

	_, finalizes := store.counts()
	assert.Equal(t, 2, finalizes)
}

func TestRunnerRetriesFailedAutoSubmitOnNextTick(t *testing.T) {
	s := newSession(model.ExamTypeStandard, 2, intPtr(1))
	store := newMemStore(s)
	store.finalizeErrs = []error{errors.New("deadlock detected")}
	clock := clockwork.NewFakeClockAt(s.StartedAt)
	r := startRunner(t, store, clock)

	clock.Advance(61 * time.Second)
	assert.Eventually(t, func() bool {
		_, f := store.counts()
		return f >= 1
	}, waitFor, pollEvery)

	clock.Advance(time.Second)
	assert.Eventually(t, func() bool { return phaseOf(t, r) == PhaseCompleted }, waitFor, pollEvery)

	res, err := r.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, res.AutoSubmitted)
	_, finalizes := store.counts()
	assert.Equal(t, 2, finalizes)
}

func TestRunnerAdoptsResultFinalizedElsewhere(t *testing.T) {
	s := newSession(model.ExamTypePractice, 2, nil)
	store := newMemStore(s)
	clock := clockwork.NewFakeClockAt(s.StartedAt)
	r := startRunner(t, store, clock)

	// Another device completes the attempt first.
	store.mu.Lock()
	other := Finalize(store.session, 0, s.StartedAt.Add(time.Minute), false)
	other.Answers = model.Answers{0: model.OptionA, 1: model.OptionA}
	other.Score = 2
	complete(store.session, other)
	store.mu.Unlock()

	res, err := r.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Score)
	assert.Equal(t, PhaseCompleted, phaseOf(t, r))
}

func TestRunnerStrictLocksEarlierQuestions(t *testing.T) {
	s := newSession(model.ExamTypeStrict, 5, intPtr(10))
	store := newMemStore(s)
	r := startRunner(t, store, clockwork.NewFakeClockAt(s.StartedAt))
	ctx := context.Background()

	require.NoError(t, r.Answer(ctx, 0, model.OptionA))
	pos, err := r.MoveTo(ctx, 3)
	require.NoError(t, err)
	assert.True(t, pos.Accepted)
	assert.Equal(t, 3, pos.Current)

	pos, err = r.MoveTo(ctx, 1)
	require.NoError(t, err)
	assert.False(t, pos.Accepted)
	assert.Equal(t, 3, pos.Current)

	assert.ErrorIs(t, r.Answer(ctx, 1, model.OptionB), ErrQuestionLocked)
	require.NoError(t, r.Answer(ctx, 4, model.OptionB))

	// Review flags stay available behind the pointer.
	require.NoError(t, r.MarkForReview(ctx, 1, true))
	v, err := r.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, v.Marked)
	assert.Equal(t, model.Answers{0: model.OptionA, 4: model.OptionB}, v.Answers)
}

func TestRunnerStrictResumesAtFurthestAnswer(t *testing.T) {
	s := newSession(model.ExamTypeStrict, 5, intPtr(10))
	s.Answers = model.Answers{0: model.OptionA, 2: model.OptionC}
	r := startRunner(t, newMemStore(s), clockwork.NewFakeClockAt(s.StartedAt))

	v, err := r.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v.Current)
}

func TestRunnerStrictPointerSurvivesReopen(t *testing.T) {
	s := newSession(model.ExamTypeStrict, 10, intPtr(30))
	store := newMemStore(s)
	clock := clockwork.NewFakeClockAt(s.StartedAt)
	ctx := context.Background()

	first, err := Start(ctx, store, s.ID, WithClock(clock))
	require.NoError(t, err)
	require.NoError(t, first.Answer(ctx, 1, model.OptionA))
	pos, err := first.MoveTo(ctx, 7)
	require.NoError(t, err)
	require.True(t, pos.Accepted)

	// The move is stored before it is acknowledged.
	index, _ := store.position()
	assert.Equal(t, 7, index)
	first.Close()

	second := startRunner(t, store, clock)
	v, err := second.Snapshot(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, v.Current, 7)

	pos, err = second.MoveTo(ctx, 3)
	require.NoError(t, err)
	assert.False(t, pos.Accepted)
	assert.ErrorIs(t, second.Answer(ctx, 5, model.OptionB), ErrQuestionLocked)
}

func TestRunnerStrictPointerWrittenOnAutosaveAfterFailure(t *testing.T) {
	s := newSession(model.ExamTypeStrict, 10, intPtr(30))
	store := newMemStore(s)
	store.positionErr = errors.New("timeout")
	clock := clockwork.NewFakeClockAt(s.StartedAt)
	r := startRunner(t, store, clock)
	ctx := context.Background()

	pos, err := r.MoveTo(ctx, 4)
	require.NoError(t, err)
	require.True(t, pos.Accepted)

	store.mu.Lock()
	store.positionErr = nil
	store.mu.Unlock()
	clock.Advance(DefaultAutosavePeriod)

	assert.Eventually(t, func() bool {
		index, _ := store.position()
		return index == 4
	}, waitFor, pollEvery)
}

func TestRunnerCloseFlushesUnsavedAnswers(t *testing.T) {
	s := newSession(model.ExamTypeStrict, 5, intPtr(30))
	store := newMemStore(s)
	r, err := Start(context.Background(), store, s.ID, WithClock(clockwork.NewFakeClockAt(s.StartedAt)))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, r.Answer(ctx, 0, model.OptionC))
	require.NoError(t, r.Answer(ctx, 2, model.OptionD))

	store.mu.Lock()
	store.positionErr = errors.New("timeout")
	store.mu.Unlock()
	_, err = r.MoveTo(ctx, 3)
	require.NoError(t, err)
	store.mu.Lock()
	store.positionErr = nil
	store.mu.Unlock()

	updates, _ := store.counts()
	require.Zero(t, updates)

	r.Close()

	assert.Equal(t, model.Answers{0: model.OptionC, 2: model.OptionD}, store.answers())
	index, _ := store.position()
	assert.Equal(t, 3, index)
}

func TestRunnerCloseSkipsFlushWhenNothingChanged(t *testing.T) {
	s := newSession(model.ExamTypeStandard, 3, intPtr(10))
	store := newMemStore(s)
	r, err := Start(context.Background(), store, s.ID, WithClock(clockwork.NewFakeClockAt(s.StartedAt)))
	require.NoError(t, err)

	r.Close()

	updates, _ := store.counts()
	_, writes := store.position()
	assert.Zero(t, updates)
	assert.Zero(t, writes)
}

func TestRunnerAutosave(t *testing.T) {
	s := newSession(model.ExamTypeStandard, 3, intPtr(10))
	store := newMemStore(s)
	clock := clockwork.NewFakeClockAt(s.StartedAt)
	r := startRunner(t, store, clock)

	require.NoError(t, r.Answer(context.Background(), 1, model.OptionD))
	clock.Advance(DefaultAutosavePeriod)

	assert.Eventually(t, func() bool {
		u, _ := store.counts()
		return u >= 1
	}, waitFor, pollEvery)

	assert.Equal(t, model.Answers{1: model.OptionD}, store.answers())
}

func TestRunnerAutosaveFailureIsSilent(t *testing.T) {
	s := newSession(model.ExamTypePractice, 3, nil)
	store := newMemStore(s)
	store.updateErr = errors.New("timeout")
	clock := clockwork.NewFakeClockAt(s.StartedAt)
	r := startRunner(t, store, clock)

	require.NoError(t, r.Answer(context.Background(), 0, model.OptionA))
	clock.Advance(DefaultAutosavePeriod)

	// The user keeps working and can still submit.
	require.NoError(t, r.Answer(context.Background(), 1, model.OptionA))
	res, err := r.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Score)
}

func TestRunnerLongExamCadenceAndSections(t *testing.T) {
	s := newSession(model.ExamTypeStandard, 220, intPtr(120))
	r := startRunner(t, newMemStore(s), clockwork.NewFakeClockAt(s.StartedAt))

	pos, err := r.MoveTo(context.Background(), 150)
	require.NoError(t, err)
	require.NotNil(t, pos.Section)
	assert.Equal(t, 4, pos.Section.Number)
	assert.True(t, pos.Section.Boundary)

	v, err := r.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15, v.AutosavePeriodSeconds)
	assert.Equal(t, 5, v.Section.Total)
}

func TestRunnerLongExamAutosavesEveryFifteenSeconds(t *testing.T) {
	s := newSession(model.ExamTypeStandard, 250, intPtr(120))
	store := newMemStore(s)
	clock := clockwork.NewFakeClockAt(s.StartedAt)
	r := startRunner(t, store, clock)

	require.NoError(t, r.Answer(context.Background(), 0, model.OptionA))

	clock.Advance(14 * time.Second)
	assert.Never(t, func() bool {
		u, _ := store.counts()
		return u > 0
	}, 100*time.Millisecond, pollEvery)

	clock.Advance(time.Second)
	assert.Eventually(t, func() bool {
		u, _ := store.counts()
		return u >= 1
	}, waitFor, pollEvery)
}

func TestRunnerTickCarriesSection(t *testing.T) {
	s := newSession(model.ExamTypeStandard, 250, intPtr(120))
	clock := clockwork.NewFakeClockAt(s.StartedAt)
	rec := &recorder{}
	r := startRunner(t, newMemStore(s), clock, WithObserver(rec))

	_, err := r.MoveTo(context.Background(), 120)
	require.NoError(t, err)
	clock.Advance(time.Second)

	assert.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		for _, n := range rec.notifications {
			if n.Kind == NotifyTick && n.Section != nil && n.Section.Number == 3 {
				return true
			}
		}
		return false
	}, waitFor, pollEvery)
}

func TestRunnerStandardHourExpiry(t *testing.T) {
	s := newSession(model.ExamTypeStandard, 5, intPtr(60))
	store := newMemStore(s)
	clock := clockwork.NewFakeClockAt(s.StartedAt)
	r := startRunner(t, store, clock)
	ctx := context.Background()

	require.NoError(t, r.Answer(ctx, 2, model.OptionA))
	clock.Advance(3601 * time.Second)

	assert.Eventually(t, func() bool { return phaseOf(t, r) == PhaseCompleted }, waitFor, pollEvery)

	res, err := r.Submit(ctx)
	require.NoError(t, err)
	assert.True(t, res.AutoSubmitted)
	assert.Equal(t, 1, res.Score)
	assert.Equal(t, 3600, res.TimeSpentSeconds)
	require.Len(t, res.QuestionPerformance, 5)
	for i, p := range res.QuestionPerformance {
		if i == 2 {
			assert.True(t, p.IsCorrect)
			continue
		}
		assert.Nil(t, p.UserAnswer, "question %d", i)
		assert.False(t, p.IsCorrect, "question %d", i)
	}
}

func TestRunnerPracticeTimerStaysInactive(t *testing.T) {
	s := newSession(model.ExamTypePractice, 4, nil)
	store := newMemStore(s)
	clock := clockwork.NewFakeClockAt(s.StartedAt)
	r := startRunner(t, store, clock)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		clock.Advance(time.Hour)
		v, err := r.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, TimerInactive, v.TimerState)
		assert.Equal(t, UrgencyNone, v.Urgency)
		assert.Equal(t, PhaseInProgress, v.Phase)
	}

	_, finalizes := store.counts()
	assert.Zero(t, finalizes)
}

func TestRunnerPause(t *testing.T) {
	s := newSession(model.ExamTypePractice, 3, nil)
	store := newMemStore(s)
	r := startRunner(t, store, clockwork.NewFakeClockAt(s.StartedAt))
	ctx := context.Background()

	require.NoError(t, r.Answer(ctx, 2, model.OptionB))
	require.NoError(t, r.Pause(ctx))

	updates, _ := store.counts()
	assert.Equal(t, 1, updates)
	assert.Equal(t, model.Answers{2: model.OptionB}, store.answers())
	assert.Equal(t, PhaseInProgress, phaseOf(t, r))

	timed := newSession(model.ExamTypeStandard, 3, intPtr(5))
	tr := startRunner(t, newMemStore(timed), clockwork.NewFakeClockAt(timed.StartedAt))
	assert.ErrorIs(t, tr.Pause(ctx), ErrPauseNotAllowed)
}

func TestRunnerLoadsCompletedSession(t *testing.T) {
	s := newSession(model.ExamTypePractice, 2, nil)
	s.Answers = model.Answers{0: model.OptionA}
	complete(s, Finalize(s, 0, s.StartedAt.Add(time.Minute), false))
	store := newMemStore(s)
	r := startRunner(t, store, clockwork.NewFakeClockAt(s.StartedAt.Add(time.Hour)))
	ctx := context.Background()

	assert.Equal(t, PhaseCompleted, r.Phase())
	res, err := r.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Score)
	assert.ErrorIs(t, r.Answer(ctx, 1, model.OptionA), ErrSessionCompleted)

	_, finalizes := store.counts()
	assert.Equal(t, 0, finalizes)
}

func TestRunnerClose(t *testing.T) {
	s := newSession(model.ExamTypeStandard, 2, intPtr(5))
	r, err := Start(context.Background(), newMemStore(s), s.ID, WithClock(clockwork.NewFakeClockAt(s.StartedAt)))
	require.NoError(t, err)

	r.Close()
	r.Close()
	select {
	case <-r.Done():
	default:
		t.Fatal("runner not done after Close")
	}
	assert.ErrorIs(t, r.Answer(context.Background(), 0, model.OptionA), ErrRunnerClosed)
	_, err = r.Submit(context.Background())
	assert.ErrorIs(t, err, ErrRunnerClosed)
}

func TestRunnerStopsWithContext(t *testing.T) {
	s := newSession(model.ExamTypePractice, 2, nil)
	ctx, cancel := context.WithCancel(context.Background())
	r, err := Start(ctx, newMemStore(s), s.ID, WithClock(clockwork.NewFakeClockAt(s.StartedAt)))
	require.NoError(t, err)

	cancel()
	select {
	case <-r.Done():
	case <-time.After(waitFor):
		t.Fatal("runner did not stop on context cancel")
	}
}
