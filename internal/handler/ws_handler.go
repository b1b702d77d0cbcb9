package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-practice/internal/engine"
	"github.com/stemsi/exstem-practice/internal/middleware"
	"github.com/stemsi/exstem-practice/internal/response"
	"github.com/stemsi/exstem-practice/internal/service"
	ws "github.com/stemsi/exstem-practice/internal/websocket"
)

// outboxSize bounds queued server events per connection.
const outboxSize = 64

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler runs the exam engine for a WebSocket connection.
type WSHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.ExamSessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// streamConn is the per-connection state. All writes go through out so the
// socket has a single writer.
type streamConn struct {
	conn       *websocket.Conn
	out        chan any
	log        zerolog.Logger
	gradedOnce sync.Once
	submitting atomic.Bool
}

// push queues v, giving up when ctx ends.
func (s *streamConn) push(ctx context.Context, v any) {
	select {
	case s.out <- v:
	case <-ctx.Done():
	}
}

// offer queues v without blocking; used from the runner goroutine.
func (s *streamConn) offer(v any) {
	select {
	case s.out <- v:
	default:
		s.log.Warn().Msg("Outbox full, dropping event")
	}
}

// sendGraded emits the graded event once per connection; a manual submit
// and the runner notification may both report the same result.
func (s *streamConn) sendGraded(res *engine.Result, send func(any)) {
	s.gradedOnce.Do(func() {
		send(ws.GradedResponse{Event: ws.EventGraded, Result: res})
	})
}

func errorEvent(err error) ws.ErrorResponse {
	_, code := sessionErrCode(err)
	return ws.ErrorResponse{Event: ws.EventError, Code: string(code), Error: response.GetMessage(code)}
}

// Notify forwards runner notifications to the client.
func (s *streamConn) Notify(n engine.Notification) {
	switch n.Kind {
	case engine.NotifyTick:
		s.offer(ws.TickResponse{
			Event:      ws.EventTick,
			Remaining:  n.Remaining,
			Urgency:    n.Urgency,
			TimerState: n.TimerState,
			Section:    n.Section,
		})
	case engine.NotifyGraded:
		s.sendGraded(n.Result, s.offer)
	case engine.NotifySubmitFailed:
		// A manual submit reports its own failure.
		if !s.submitting.Load() {
			s.offer(errorEvent(n.Err))
		}
	}
}

// SessionStream godoc
// WS /ws/v1/sessions/:id/stream?token=...
// Runs the exam engine for the session while the connection is open.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("user_id", claims.UserID).
		Str("session_id", id.String()).
		Logger()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sc := &streamConn{conn: conn, out: make(chan any, outboxSize), log: wsLog}

	live, err := h.sessionService.Open(ctx, claims.UserID, id, sc)
	if err != nil {
		if status, _ := sessionErrCode(err); status == http.StatusInternalServerError {
			wsLog.Error().Err(err).Msg("Failed to open session")
		}
		_ = ws.WriteJSON(conn, errorEvent(err))
		return
	}
	defer h.sessionService.Release(id, live)

	wsLog.Info().Msg("User connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(ctx, sc)
	}()

	go func() {
		select {
		case <-live.Evicted():
		case <-live.Done():
		case <-ctx.Done():
			return
		}
		select {
		case <-live.Evicted():
			sc.offer(ws.SimpleResponse{Event: ws.EventEvicted})
		default:
		}
		// Let the writer flush, then unblock the reader.
		cancel()
		<-writerDone
		_ = conn.Close()
	}()

	if view, err := live.Snapshot(ctx); err == nil {
		sc.push(ctx, ws.StateResponse{Event: ws.EventState, State: view})
	}

	h.readLoop(ctx, sc, live)

	cancel()
	<-writerDone
	wsLog.Info().Msg("User disconnected")
}

func (h *WSHandler) writeLoop(ctx context.Context, sc *streamConn) {
	for {
		select {
		case v := <-sc.out:
			if err := ws.WriteJSON(sc.conn, v); err != nil {
				sc.log.Debug().Err(err).Msg("Write failed")
				return
			}
		case <-ctx.Done():
			// Drain what is already queued, such as an eviction notice.
			for {
				select {
				case v := <-sc.out:
					if err := ws.WriteJSON(sc.conn, v); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (h *WSHandler) readLoop(ctx context.Context, sc *streamConn, live *service.LiveSession) {
	for {
		raw, err := ws.ReadMessage(sc.conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sc.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				sc.log.Debug().Msg("Connection closed")
			}
			return
		}
		if ctx.Err() != nil {
			return
		}

		var env ws.RequestEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			sc.push(ctx, ws.ErrorResponse{Event: ws.EventError, Code: string(response.ErrInvalidPayload), Error: response.GetMessage(response.ErrInvalidPayload)})
			continue
		}

		h.dispatch(ctx, sc, live, env.Action, raw)
	}
}

func (h *WSHandler) dispatch(ctx context.Context, sc *streamConn, live *service.LiveSession, action ws.Action, raw []byte) {
	switch action {
	case ws.ActionAnswer:
		var req ws.AnswerRequest
		if !decode(ctx, sc, raw, &req) {
			return
		}
		if err := live.Answer(ctx, req.Index, req.Option); err != nil {
			h.replyErr(ctx, sc, err)
			return
		}
		sc.push(ctx, ws.SavedResponse{Event: ws.EventSaved, Index: req.Index})

	case ws.ActionNavigate:
		var req ws.NavigateRequest
		if !decode(ctx, sc, raw, &req) {
			return
		}
		pos, err := live.MoveTo(ctx, req.Target)
		if err != nil {
			h.replyErr(ctx, sc, err)
			return
		}
		sc.push(ctx, ws.MovedResponse{Event: ws.EventMoved, Position: pos})

	case ws.ActionMark:
		var req ws.MarkRequest
		if !decode(ctx, sc, raw, &req) {
			return
		}
		if err := live.MarkForReview(ctx, req.Index, req.Flag); err != nil {
			h.replyErr(ctx, sc, err)
			return
		}
		sc.push(ctx, ws.SavedResponse{Event: ws.EventSaved, Index: req.Index})

	case ws.ActionSubmit:
		sc.submitting.Store(true)
		res, err := live.Submit(ctx)
		sc.submitting.Store(false)
		if err != nil {
			h.replyErr(ctx, sc, err)
			return
		}
		sc.sendGraded(res, func(v any) { sc.push(ctx, v) })

	case ws.ActionPause:
		if err := live.Pause(ctx); err != nil {
			h.replyErr(ctx, sc, err)
			return
		}
		sc.push(ctx, ws.SimpleResponse{Event: ws.EventPaused})

	case ws.ActionState:
		view, err := live.Snapshot(ctx)
		if err != nil {
			h.replyErr(ctx, sc, err)
			return
		}
		sc.push(ctx, ws.StateResponse{Event: ws.EventState, State: view})

	case ws.ActionPing:
		sc.push(ctx, ws.SimpleResponse{Event: ws.EventPong})

	default:
		sc.log.Warn().Str("action", string(action)).Msg("Unknown action")
		sc.push(ctx, ws.ErrorResponse{Event: ws.EventError, Code: string(response.ErrUnknownAction), Error: "unknown action: " + string(action)})
	}
}

func decode(ctx context.Context, sc *streamConn, raw []byte, v any) bool {
	if err := json.Unmarshal(raw, v); err != nil {
		sc.push(ctx, ws.ErrorResponse{Event: ws.EventError, Code: string(response.ErrInvalidPayload), Error: response.GetMessage(response.ErrInvalidPayload)})
		return false
	}
	return true
}

func (h *WSHandler) replyErr(ctx context.Context, sc *streamConn, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, engine.ErrRunnerClosed) {
		return
	}
	if status, _ := sessionErrCode(err); status == http.StatusInternalServerError {
		sc.log.Error().Err(err).Msg("Session action failed")
	}
	sc.push(ctx, errorEvent(err))
}
