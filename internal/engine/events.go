package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-practice/internal/model"
)

// ─── Events (sources → Runner loop) ─────────────────────────────────

// Event is a typed input to the Runner's serialized loop.
type Event interface {
	eventName() string
}

// TimerTick is produced by the countdown ticker.
type TimerTick struct{ At time.Time }

// AutosaveTick is produced by the autosave ticker.
type AutosaveTick struct{ At time.Time }

// UserAnswer records a chosen option.
type UserAnswer struct {
	Index  int
	Option model.Option
	reply  chan error
}

// UserNavigate requests a pointer move.
type UserNavigate struct {
	Target int
	reply  chan navResult
}

// UserMark sets or clears the review flag of a question.
type UserMark struct {
	Index int
	Flag  bool
	reply chan error
}

// UserSubmit requests a manual submission.
type UserSubmit struct {
	reply chan submitOutcome
}

// UserPause persists answers synchronously before a practice session is left.
type UserPause struct {
	reply chan error
}

type snapshotRequest struct {
	reply chan View
}

type autosaveDone struct {
	answered int
	version  uint64
	position int // -1 when the pointer was not written
	err      error
}

type positionSaved struct {
	index int
	err   error
}

// answersSaved reports a write made outside the autosave cadence.
type answersSaved struct {
	version uint64
}

type finalizeDone struct {
	fin    model.Finalization
	stored *model.ExamSession
	err    error
}

func (TimerTick) eventName() string       { return "timer_tick" }
func (AutosaveTick) eventName() string    { return "autosave_tick" }
func (UserAnswer) eventName() string      { return "user_answer" }
func (UserNavigate) eventName() string    { return "user_navigate" }
func (UserMark) eventName() string        { return "user_mark" }
func (UserSubmit) eventName() string      { return "user_submit" }
func (UserPause) eventName() string       { return "user_pause" }
func (snapshotRequest) eventName() string { return "snapshot" }
func (autosaveDone) eventName() string    { return "autosave_done" }
func (positionSaved) eventName() string   { return "position_saved" }
func (answersSaved) eventName() string    { return "answers_saved" }
func (finalizeDone) eventName() string    { return "finalize_done" }

type navResult struct {
	pos Position
	err error
}

type submitOutcome struct {
	result *Result
	err    error
}

// ─── Outputs (Runner → observers) ───────────────────────────────────

// Phase is the lifecycle state of a session inside the runner.
type Phase string

const (
	PhaseLoading    Phase = "loading"
	PhaseInProgress Phase = "in_progress"
	PhaseSubmitting Phase = "submitting"
	PhaseCompleted  Phase = "completed"
	PhaseError      Phase = "error"
)

// Position is the pointer after a navigation request.
type Position struct {
	Current  int      `json:"current"`
	Accepted bool     `json:"accepted"`
	Section  *Section `json:"section,omitempty"`
}

// View is a consistent snapshot of the runner state.
type View struct {
	SessionID             uuid.UUID      `json:"session_id"`
	Module                string         `json:"module"`
	ExamType              model.ExamType `json:"exam_type"`
	Phase                 Phase          `json:"phase"`
	Current               int            `json:"current"`
	TotalQuestions        int            `json:"total_questions"`
	Answers               model.Answers  `json:"answers"`
	Marked                []int          `json:"marked"`
	Remaining             int            `json:"remaining_seconds"`
	TimerState            TimerState     `json:"timer_state"`
	Urgency               Urgency        `json:"urgency"`
	Section               *Section       `json:"section,omitempty"`
	AutosavePeriodSeconds int            `json:"autosave_period_seconds"`
	Result                *Result        `json:"result,omitempty"`
}

// NotificationKind names what an observer is told about.
type NotificationKind string

const (
	NotifyTick         NotificationKind = "tick"
	NotifyGraded       NotificationKind = "graded"
	NotifySubmitFailed NotificationKind = "submit_failed"
)

// Notification is pushed to the observer from the runner goroutine.
type Notification struct {
	Kind       NotificationKind
	Remaining  int
	Urgency    Urgency
	TimerState TimerState
	Section    *Section // set on ticks of a long exam
	Result     *Result
	Err        error
}

// Observer receives notifications. Notify is called on the runner
// goroutine and must not block.
type Observer interface {
	Notify(Notification)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Notification)

// Notify calls f(n).
func (f ObserverFunc) Notify(n Notification) { f(n) }

// ActivityKind names a recorded user or system action.
type ActivityKind string

const (
	ActivityAnswer       ActivityKind = "answer"
	ActivityNavigate     ActivityKind = "navigate"
	ActivityMark         ActivityKind = "mark"
	ActivityUnmark       ActivityKind = "unmark"
	ActivityPause        ActivityKind = "pause"
	ActivitySubmit       ActivityKind = "submit"
	ActivityAutoSubmit   ActivityKind = "auto_submit"
	ActivitySubmitFailed ActivityKind = "submit_failed"
)

// Activity is one entry of a session's activity log.
type Activity struct {
	SessionID uuid.UUID    `json:"session_id"`
	OwnerID   int          `json:"owner_id"`
	Kind      ActivityKind `json:"kind"`
	Index     *int         `json:"question_index,omitempty"`
	Option    model.Option `json:"option,omitempty"`
	At        time.Time    `json:"at"`
}

// ActivitySink receives activity entries. Record must not block.
type ActivitySink interface {
	Record(Activity)
}
