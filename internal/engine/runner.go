package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-practice/internal/model"
)

// DefaultPersistTimeout bounds a single persistence call made by the runner.
const DefaultPersistTimeout = 10 * time.Second

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clockwork.Clock) RunnerOption {
	return func(r *Runner) { r.clock = c }
}

// WithLogger sets the parent logger.
func WithLogger(log zerolog.Logger) RunnerOption {
	return func(r *Runner) { r.log = log }
}

// WithObserver registers the receiver of tick and grading notifications.
func WithObserver(o Observer) RunnerOption {
	return func(r *Runner) { r.observer = o }
}

// WithActivitySink registers the receiver of activity log entries.
func WithActivitySink(s ActivitySink) RunnerOption {
	return func(r *Runner) { r.activity = s }
}

// WithAutosaveSchedule overrides the 15s/30s autosave cadences.
func WithAutosaveSchedule(s AutosaveSchedule) RunnerOption {
	return func(r *Runner) { r.schedule = s }
}

// WithPersistTimeout bounds each store call.
func WithPersistTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.persistTimeout = d }
}

// Runner drives one exam session. A single goroutine owns all session
// state; timer ticks, autosave ticks and user actions reach it as events,
// so a timer-triggered and a user-triggered submission are ordered by the
// loop and exactly one of them performs the terminal write.
type Runner struct {
	id             uuid.UUID
	store          Store
	clock          clockwork.Clock
	log            zerolog.Logger
	observer       Observer
	activity       ActivitySink
	schedule       AutosaveSchedule
	persistTimeout time.Duration

	events chan Event
	done   chan struct{}
	cancel context.CancelFunc
	shown  atomic.Value // Phase, readable from any goroutine

	// Owned by the loop goroutine.
	session          *model.ExamSession
	nav              *Navigator
	timer            *Timer
	phase            Phase
	result           *Result
	autosavePeriod   time.Duration
	timerTicker      clockwork.Ticker
	autosaveTicker   clockwork.Ticker
	autosaveInFlight bool
	answersVersion   uint64 // bumped on every accepted answer
	savedVersion     uint64 // last version the store acknowledged
	savedPosition    int    // furthest strict pointer the store acknowledged
	autoRetry        bool
	expiredOnStart   bool
	waiters          []chan submitOutcome
}

// Start loads the session, starts its timer and autosave cadence, and
// returns a running Runner. A load failure leaves nothing running.
// The runner stops when ctx is cancelled or Close is called.
func Start(ctx context.Context, store Store, id uuid.UUID, opts ...RunnerOption) (*Runner, error) {
	r := &Runner{
		id:             id,
		store:          store,
		clock:          clockwork.NewRealClock(),
		log:            zerolog.Nop(),
		schedule:       DefaultAutosaveSchedule(),
		persistTimeout: DefaultPersistTimeout,
		events:         make(chan Event, 16),
		done:           make(chan struct{}),
	}
	r.setPhase(PhaseLoading)
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With().
		Str("component", "session_runner").
		Str("session_id", id.String()).
		Logger()

	sess, err := store.LoadSession(ctx, id)
	if err != nil {
		r.setPhase(PhaseError)
		return nil, fmt.Errorf("load session: %w", err)
	}
	if err := Validate(sess); err != nil {
		r.setPhase(PhaseError)
		r.log.Error().Err(err).Msg("Refusing to run inconsistent session")
		return nil, err
	}
	if sess.Answers == nil {
		sess.Answers = model.Answers{}
	}

	r.session = sess
	r.nav = NewNavigator(sess.ExamType, sess.TotalQuestions, resumeIndex(sess))
	r.savedPosition = r.nav.Current()
	r.timer = NewTimer(sess.StartedAt, sess.TimeLimitMinutes)
	r.autosavePeriod = r.schedule.Period(sess.TotalQuestions)

	if sess.Status == model.SessionStatusCompleted {
		r.setPhase(PhaseCompleted)
		r.result, _ = ResultFromSession(sess)
		r.timer.Stop()
	} else {
		r.setPhase(PhaseInProgress)
		if r.timer.Timed() {
			res := r.timer.Start(r.clock.Now())
			r.expiredOnStart = res.Expired
			r.timerTicker = r.clock.NewTicker(TickPeriod)
		}
		r.autosaveTicker = r.clock.NewTicker(r.autosavePeriod)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	go r.loop(loopCtx)
	return r, nil
}

// ID returns the session id.
func (r *Runner) ID() uuid.UUID {
	return r.id
}

// Phase returns the lifecycle phase as last published by the loop.
func (r *Runner) Phase() Phase {
	return r.shown.Load().(Phase)
}

// Done is closed once the runner has stopped and released its tickers.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Close stops the runner and waits for it to release its tickers.
// A submission already handed to the store still completes.
func (r *Runner) Close() {
	r.cancel()
	<-r.done
}

// Answer records option for question index.
func (r *Runner) Answer(ctx context.Context, index int, option model.Option) error {
	reply := make(chan error, 1)
	err, cerr := call(ctx, r, UserAnswer{Index: index, Option: option, reply: reply}, reply)
	if cerr != nil {
		return cerr
	}
	return err
}

// MoveTo asks the navigator to move to target. A move rejected by the
// mode rules is not an error; Position.Accepted reports it.
func (r *Runner) MoveTo(ctx context.Context, target int) (Position, error) {
	reply := make(chan navResult, 1)
	res, cerr := call(ctx, r, UserNavigate{Target: target, reply: reply}, reply)
	if cerr != nil {
		return Position{}, cerr
	}
	return res.pos, res.err
}

// MarkForReview flags or unflags a question.
func (r *Runner) MarkForReview(ctx context.Context, index int, flag bool) error {
	reply := make(chan error, 1)
	err, cerr := call(ctx, r, UserMark{Index: index, Flag: flag, reply: reply}, reply)
	if cerr != nil {
		return cerr
	}
	return err
}

// Submit finalizes the session. Submitting a completed session returns the
// existing result; a call made while a submission is in flight shares its outcome.
func (r *Runner) Submit(ctx context.Context) (*Result, error) {
	reply := make(chan submitOutcome, 1)
	out, cerr := call(ctx, r, UserSubmit{reply: reply}, reply)
	if cerr != nil {
		return nil, cerr
	}
	return out.result, out.err
}

// Pause persists the answers of a practice session and returns once the
// write has finished. The session stays in progress.
func (r *Runner) Pause(ctx context.Context) error {
	reply := make(chan error, 1)
	err, cerr := call(ctx, r, UserPause{reply: reply}, reply)
	if cerr != nil {
		return cerr
	}
	return err
}

// Snapshot returns a consistent view of the session.
func (r *Runner) Snapshot(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	return call(ctx, r, snapshotRequest{reply: reply}, reply)
}

func call[T any](ctx context.Context, r *Runner, ev Event, reply chan T) (T, error) {
	var zero T
	select {
	case r.events <- ev:
	case <-r.done:
		return zero, ErrRunnerClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-r.done:
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrRunnerClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// post delivers an internal event from a helper goroutine.
func (r *Runner) post(ev Event) {
	select {
	case r.events <- ev:
	case <-r.done:
	}
}

func tickerChan(t clockwork.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.Chan()
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)
	defer r.releaseTickers()

	r.log.Info().
		Str("exam_type", string(r.session.ExamType)).
		Str("phase", string(r.phase)).
		Int("total_questions", r.session.TotalQuestions).
		Dur("autosave_period", r.autosavePeriod).
		Msg("Session runner started")

	if r.expiredOnStart {
		r.log.Info().Msg("Deadline passed before load, auto-submitting")
		r.beginSubmit(ctx, true, nil)
	}

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return
		case now := <-tickerChan(r.timerTicker):
			r.handle(ctx, TimerTick{At: now})
		case now := <-tickerChan(r.autosaveTicker):
			r.handle(ctx, AutosaveTick{At: now})
		case ev := <-r.events:
			r.handle(ctx, ev)
		}
	}
}

func (r *Runner) handle(ctx context.Context, ev Event) {
	switch e := ev.(type) {
	case TimerTick:
		r.onTimerTick(ctx, e)
	case AutosaveTick:
		r.onAutosaveTick(ctx)
	case UserAnswer:
		e.reply <- r.onAnswer(e)
	case UserNavigate:
		r.onNavigate(ctx, e)
	case UserMark:
		e.reply <- r.onMark(e)
	case UserSubmit:
		r.beginSubmit(ctx, false, e.reply)
	case UserPause:
		r.onPause(ctx, e)
	case snapshotRequest:
		e.reply <- r.view()
	case autosaveDone:
		r.onAutosaveDone(e)
	case positionSaved:
		r.onPositionSaved(e)
	case answersSaved:
		r.savedVersion = max(r.savedVersion, e.version)
	case finalizeDone:
		r.onFinalizeDone(e)
	default:
		r.log.Warn().Str("event", ev.eventName()).Msg("Unhandled event")
	}
}

// ─── Timer ──────────────────────────────────────────────────────────

func (r *Runner) onTimerTick(ctx context.Context, e TimerTick) {
	// A delayed tick is evaluated at the current time, not when it fired.
	now := r.clock.Now()
	if e.At.After(now) {
		now = e.At
	}
	res := r.timer.Tick(now)
	r.notify(Notification{
		Kind:       NotifyTick,
		Remaining:  res.Remaining,
		Urgency:    r.timer.Urgency(),
		TimerState: r.timer.State(),
		Section:    SectionFor(r.nav.Current(), r.session.TotalQuestions),
	})

	switch {
	case res.Expired:
		r.log.Info().Msg("Time limit reached, auto-submitting")
		r.beginSubmit(ctx, true, nil)
	case r.autoRetry && r.phase == PhaseInProgress:
		r.log.Info().Msg("Retrying auto-submit")
		r.beginSubmit(ctx, true, nil)
	}
}

// ─── Autosave ───────────────────────────────────────────────────────

func (r *Runner) onAutosaveTick(ctx context.Context) {
	if r.phase != PhaseInProgress || r.autosaveInFlight {
		return
	}
	r.autosaveInFlight = true
	answers := r.session.Answers.Clone()
	version := r.answersVersion
	position, movePending := r.pendingPosition()
	if !movePending {
		position = -1
	}

	go func() {
		pctx, cancel := context.WithTimeout(ctx, r.persistTimeout)
		defer cancel()
		err := r.store.UpdateAnswers(pctx, r.id, answers)
		if err == nil && position >= 0 {
			err = r.store.UpdatePosition(pctx, r.id, position)
		}
		r.post(autosaveDone{answered: len(answers), version: version, position: position, err: err})
	}()
}

func (r *Runner) onAutosaveDone(e autosaveDone) {
	r.autosaveInFlight = false
	if e.err != nil {
		// Not surfaced; the next tick retries.
		r.log.Warn().Err(e.err).Msg("Autosave failed")
		return
	}
	r.savedVersion = max(r.savedVersion, e.version)
	r.savedPosition = max(r.savedPosition, e.position)
	r.log.Debug().Int("answered", e.answered).Msg("Autosaved")
}

// pendingPosition returns the strict pointer when the store lags behind it.
func (r *Runner) pendingPosition() (int, bool) {
	cur := r.nav.Current()
	return cur, r.session.ExamType == model.ExamTypeStrict && cur > r.savedPosition
}

func (r *Runner) onPositionSaved(e positionSaved) {
	if e.err != nil {
		// The next autosave or the close flush writes it again.
		r.log.Warn().Err(e.err).Int("index", e.index).Msg("Saving strict position failed")
		return
	}
	r.savedPosition = max(r.savedPosition, e.index)
}

// flush writes what the store has not acknowledged yet. It runs once on
// the way out so a disconnect between autosaves loses nothing.
func (r *Runner) flush() {
	if r.phase != PhaseInProgress {
		return
	}
	position, movePending := r.pendingPosition()
	dirty := r.answersVersion != r.savedVersion
	if !dirty && !movePending {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.persistTimeout)
	defer cancel()
	if dirty {
		if err := r.store.UpdateAnswers(ctx, r.id, r.session.Answers.Clone()); err != nil {
			r.log.Warn().Err(err).Msg("Final answer flush failed")
		} else {
			r.savedVersion = r.answersVersion
		}
	}
	if movePending {
		if err := r.store.UpdatePosition(ctx, r.id, position); err != nil {
			r.log.Warn().Err(err).Int("index", position).Msg("Final position flush failed")
		} else {
			r.savedPosition = position
		}
	}
}

func (r *Runner) onPause(ctx context.Context, e UserPause) {
	if r.session.ExamType != model.ExamTypePractice {
		e.reply <- ErrPauseNotAllowed
		return
	}
	if err := r.mutable(); err != nil {
		e.reply <- err
		return
	}
	answers := r.session.Answers.Clone()
	version := r.answersVersion
	r.record(ActivityPause, nil, "")

	go func() {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.persistTimeout)
		defer cancel()
		if err := r.store.UpdateAnswers(pctx, r.id, answers); err != nil {
			e.reply <- fmt.Errorf("pause: %w", err)
			return
		}
		r.post(answersSaved{version: version})
		e.reply <- nil
	}()
}

// ─── User actions ───────────────────────────────────────────────────

func (r *Runner) mutable() error {
	switch r.phase {
	case PhaseCompleted:
		return ErrSessionCompleted
	case PhaseSubmitting:
		return ErrSubmitting
	}
	return nil
}

func (r *Runner) onAnswer(e UserAnswer) error {
	if err := r.mutable(); err != nil {
		return err
	}
	if e.Index < 0 || e.Index >= r.session.TotalQuestions {
		return ErrIndexOutOfRange
	}
	if !e.Option.Valid() {
		return ErrInvalidOption
	}
	if !r.nav.CanAnswer(e.Index) {
		return ErrQuestionLocked
	}
	r.session.Answers[e.Index] = e.Option
	r.answersVersion++
	idx := e.Index
	r.record(ActivityAnswer, &idx, e.Option)
	return nil
}

// onNavigate moves the pointer. A strict move forward is acknowledged only
// after the store has the new pointer, so a reconnect cannot reopen
// questions the user already left behind.
func (r *Runner) onNavigate(ctx context.Context, e UserNavigate) {
	if err := r.mutable(); err != nil {
		e.reply <- navResult{pos: r.position(false), err: err}
		return
	}
	idx, accepted := r.nav.MoveTo(e.Target)
	if accepted {
		r.record(ActivityNavigate, &idx, "")
	}
	res := navResult{pos: r.position(accepted)}

	position, movePending := r.pendingPosition()
	if !movePending {
		e.reply <- res
		return
	}
	go func() {
		pctx, cancel := context.WithTimeout(ctx, r.persistTimeout)
		defer cancel()
		err := r.store.UpdatePosition(pctx, r.id, position)
		r.post(positionSaved{index: position, err: err})
		e.reply <- res
	}()
}

func (r *Runner) onMark(e UserMark) error {
	if err := r.mutable(); err != nil {
		return err
	}
	if err := r.nav.MarkForReview(e.Index, e.Flag); err != nil {
		return err
	}
	kind := ActivityMark
	if !e.Flag {
		kind = ActivityUnmark
	}
	idx := e.Index
	r.record(kind, &idx, "")
	return nil
}

func (r *Runner) position(accepted bool) Position {
	cur := r.nav.Current()
	return Position{
		Current:  cur,
		Accepted: accepted,
		Section:  SectionFor(cur, r.session.TotalQuestions),
	}
}

// ─── Submission ─────────────────────────────────────────────────────

// beginSubmit is the only path to the terminal write. reply may be nil
// for the timer path.
func (r *Runner) beginSubmit(ctx context.Context, auto bool, reply chan submitOutcome) {
	switch r.phase {
	case PhaseCompleted:
		if reply != nil {
			reply <- submitOutcome{result: r.result}
		}
		return
	case PhaseSubmitting:
		if reply != nil {
			r.waiters = append(r.waiters, reply)
		}
		return
	}

	if reply != nil {
		r.waiters = append(r.waiters, reply)
	}
	r.setPhase(PhaseSubmitting)
	r.autoRetry = false

	now := r.clock.Now()
	fin := Finalize(r.session, r.timer.Observe(now), now, auto)
	if auto {
		r.record(ActivityAutoSubmit, nil, "")
	} else {
		r.record(ActivitySubmit, nil, "")
	}

	r.log.Info().
		Bool("auto", auto).
		Int("score", fin.Score).
		Int("total", r.session.TotalQuestions).
		Int("time_spent_seconds", fin.TimeSpentSeconds).
		Msg("Submitting session")

	go func() {
		// The write outlives a closed view so a submit is never half-done.
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.persistTimeout)
		defer cancel()

		done := finalizeDone{fin: fin}
		err := r.store.FinalizeSession(pctx, r.id, fin)
		if errors.Is(err, ErrSessionCompleted) {
			// Finalized elsewhere first; adopt the stored outcome.
			stored, loadErr := r.store.LoadSession(pctx, r.id)
			switch {
			case loadErr != nil:
				err = loadErr
			case stored.Status == model.SessionStatusCompleted:
				done.stored = stored
				err = nil
			}
		}
		done.err = err
		r.post(done)
	}()
}

func (r *Runner) onFinalizeDone(e finalizeDone) {
	if e.err != nil {
		r.setPhase(PhaseInProgress)
		if r.timer.State() == TimerExpired {
			r.autoRetry = true
		}
		err := fmt.Errorf("%w: %w", ErrSubmitFailed, e.err)
		r.log.Error().Err(e.err).Bool("auto", e.fin.AutoSubmitted).Msg("Finalize failed, session stays in progress")
		r.record(ActivitySubmitFailed, nil, "")
		r.notify(Notification{Kind: NotifySubmitFailed, Err: err})
		r.replyWaiters(submitOutcome{err: err})
		return
	}

	if e.stored != nil {
		r.session = e.stored
	} else {
		complete(r.session, e.fin)
	}
	r.result, _ = ResultFromSession(r.session)
	r.setPhase(PhaseCompleted)
	r.timer.Stop()
	r.releaseTickers()

	r.log.Info().
		Int("score", r.result.Score).
		Bool("auto", r.result.AutoSubmitted).
		Msg("Session completed")

	r.notify(Notification{
		Kind:       NotifyGraded,
		Remaining:  r.timer.Remaining(),
		Urgency:    r.timer.Urgency(),
		TimerState: r.timer.State(),
		Result:     r.result,
	})
	r.replyWaiters(submitOutcome{result: r.result})
}

func (r *Runner) replyWaiters(out submitOutcome) {
	for _, w := range r.waiters {
		w <- out
	}
	r.waiters = nil
}

// ─── Helpers ────────────────────────────────────────────────────────

func (r *Runner) view() View {
	cur := r.nav.Current()
	return View{
		SessionID:             r.id,
		Module:                r.session.Module,
		ExamType:              r.session.ExamType,
		Phase:                 r.phase,
		Current:               cur,
		TotalQuestions:        r.session.TotalQuestions,
		Answers:               r.session.Answers.Clone(),
		Marked:                r.nav.Marked(),
		Remaining:             r.timer.Remaining(),
		TimerState:            r.timer.State(),
		Urgency:               r.timer.Urgency(),
		Section:               SectionFor(cur, r.session.TotalQuestions),
		AutosavePeriodSeconds: int(r.autosavePeriod / time.Second),
		Result:                r.result,
	}
}

func (r *Runner) setPhase(p Phase) {
	r.phase = p
	r.shown.Store(p)
}

func (r *Runner) notify(n Notification) {
	if r.observer != nil {
		r.observer.Notify(n)
	}
}

func (r *Runner) record(kind ActivityKind, index *int, option model.Option) {
	if r.activity == nil {
		return
	}
	r.activity.Record(Activity{
		SessionID: r.id,
		OwnerID:   r.session.OwnerID,
		Kind:      kind,
		Index:     index,
		Option:    option,
		At:        r.clock.Now(),
	})
}

func (r *Runner) releaseTickers() {
	if r.timerTicker != nil {
		r.timerTicker.Stop()
		r.timerTicker = nil
	}
	if r.autosaveTicker != nil {
		r.autosaveTicker.Stop()
		r.autosaveTicker = nil
	}
}

func (r *Runner) shutdown() {
	r.timer.Stop()
	r.flush()
	r.replyWaiters(submitOutcome{err: ErrRunnerClosed})
	r.log.Info().Str("phase", string(r.phase)).Msg("Session runner stopped")
}
