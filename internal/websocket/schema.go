package websocket

import (
	"github.com/stemsi/exstem-practice/internal/engine"
	"github.com/stemsi/exstem-practice/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer   Action = "answer"
	ActionNavigate Action = "navigate"
	ActionMark     Action = "mark"
	ActionSubmit   Action = "submit"
	ActionPause    Action = "pause"
	ActionState    Action = "state"
	ActionPing     Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest records an option for a question.
type AnswerRequest struct {
	Action Action       `json:"action"`
	Index  int          `json:"index"`
	Option model.Option `json:"option"`
}

// NavigateRequest moves the question pointer.
type NavigateRequest struct {
	Action Action `json:"action"`
	Target int    `json:"target"`
}

// MarkRequest sets or clears the review flag.
type MarkRequest struct {
	Action Action `json:"action"`
	Index  int    `json:"index"`
	Flag   bool   `json:"flag"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventTick    Event = "tick"
	EventSaved   Event = "saved"
	EventMoved   Event = "moved"
	EventState   Event = "state"
	EventPaused  Event = "paused"
	EventGraded  Event = "graded"
	EventEvicted Event = "evicted"
	EventPong    Event = "pong"
)

type TickResponse struct {
	Event      Event             `json:"event"`
	Remaining  int               `json:"remaining_seconds"`
	Urgency    engine.Urgency    `json:"urgency"`
	TimerState engine.TimerState `json:"timer_state"`
	Section    *engine.Section   `json:"section,omitempty"`
}

// SavedResponse acknowledges an answer or mark change.
type SavedResponse struct {
	Event Event `json:"event"`
	Index int   `json:"index"`
}

type MovedResponse struct {
	Event Event `json:"event"`
	engine.Position
}

type StateResponse struct {
	Event Event       `json:"event"`
	State engine.View `json:"state"`
}

type GradedResponse struct {
	Event  Event          `json:"event"`
	Result *engine.Result `json:"result"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type SimpleResponse struct {
	Event Event `json:"event"`
}
