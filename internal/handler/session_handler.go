package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-practice/internal/engine"
	"github.com/stemsi/exstem-practice/internal/middleware"
	"github.com/stemsi/exstem-practice/internal/model"
	"github.com/stemsi/exstem-practice/internal/response"
	"github.com/stemsi/exstem-practice/internal/service"
	"github.com/stemsi/exstem-practice/internal/validator"
)

// SessionHandler handles exam session endpoints.
type SessionHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.ExamSessionService, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "session_handler").Logger(),
	}
}

func (h *SessionHandler) fail(c *gin.Context, err error) {
	status, _ := sessionErrCode(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).
			Str("path", c.FullPath()).
			Str("request_id", response.RequestID(c)).
			Msg("Session request failed")
	}
	failSession(c, err)
}

// CreateSession godoc
// POST /api/v1/sessions
// Draws the questions and starts a new exam attempt.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.sessionService.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"session": sess.Paper()})
}

// ListSessions godoc
// GET /api/v1/sessions
// Returns the user's exam history, newest first.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	sessions, pagination, err := h.sessionService.List(c.Request.Context(), claims.UserID, page, perPage)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"sessions": sessions}, pagination)
}

// GetSession godoc
// GET /api/v1/sessions/:id
// Returns the session without correct answers.
func (h *SessionHandler) GetSession(c *gin.Context) {
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

	paper, err := h.sessionService.Paper(c.Request.Context(), claims.UserID, id)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": paper})
}

// GetResults godoc
// GET /api/v1/sessions/:id/results
// Returns the graded outcome of a completed session.
func (h *SessionHandler) GetResults(c *gin.Context) {
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

	result, err := h.sessionService.Results(c.Request.Context(), claims.UserID, id)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// GetActivity godoc
// GET /api/v1/sessions/:id/activity
// Returns the recorded activity log of a session.
func (h *SessionHandler) GetActivity(c *gin.Context) {
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

	activity, err := h.sessionService.Activity(c.Request.Context(), claims.UserID, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if activity == nil {
		activity = []engine.Activity{}
	}

	response.Success(c, http.StatusOK, gin.H{"activity": activity})
}

// GetModuleStats godoc
// GET /api/v1/modules/:module/stats
// Returns the user's aggregate for one module.
func (h *SessionHandler) GetModuleStats(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	stats, err := h.sessionService.ModuleStats(c.Request.Context(), claims.UserID, c.Param("module"))
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"stats":    stats,
		"accuracy": stats.Accuracy(),
	})
}

// ListModuleStats godoc
// GET /api/v1/modules/stats
// Returns every module aggregate of the user.
func (h *SessionHandler) ListModuleStats(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	stats, err := h.sessionService.AllModuleStats(c.Request.Context(), claims.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if stats == nil {
		stats = []model.ModuleStats{}
	}

	response.Success(c, http.StatusOK, gin.H{"stats": stats})
}
