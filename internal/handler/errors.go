package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-practice/internal/engine"
	"github.com/stemsi/exstem-practice/internal/response"
	"github.com/stemsi/exstem-practice/internal/service"
	"github.com/stemsi/exstem-practice/internal/setup"
)

// sessionErrCode maps engine, setup and service errors to an HTTP status
// and an API error code.
func sessionErrCode(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, engine.ErrSessionNotFound):
		return http.StatusNotFound, response.ErrSessionNotFound
	case errors.Is(err, service.ErrNotOwner):
		return http.StatusForbidden, response.ErrForbidden
	case errors.Is(err, engine.ErrInvalidSession):
		return http.StatusUnprocessableEntity, response.ErrSessionCorrupt
	case errors.Is(err, service.ErrSessionNotCompleted):
		return http.StatusConflict, response.ErrSessionNotCompleted
	case errors.Is(err, service.ErrSessionTakenOver):
		return http.StatusConflict, response.ErrSessionTakenOver
	case errors.Is(err, engine.ErrSessionCompleted):
		return http.StatusConflict, response.ErrSessionCompleted
	case errors.Is(err, engine.ErrSubmitting):
		return http.StatusConflict, response.ErrSubmitting
	case errors.Is(err, engine.ErrSubmitFailed):
		return http.StatusServiceUnavailable, response.ErrSubmitFailed
	case errors.Is(err, engine.ErrIndexOutOfRange):
		return http.StatusBadRequest, response.ErrIndexOutOfRange
	case errors.Is(err, engine.ErrInvalidOption):
		return http.StatusBadRequest, response.ErrInvalidOption
	case errors.Is(err, engine.ErrQuestionLocked):
		return http.StatusConflict, response.ErrQuestionLocked
	case errors.Is(err, engine.ErrPauseNotAllowed):
		return http.StatusConflict, response.ErrPauseNotAllowed
	case errors.Is(err, setup.ErrInsufficientQuestions):
		return http.StatusUnprocessableEntity, response.ErrInsufficientQuestions
	case errors.Is(err, setup.ErrInvalidTimeLimit):
		return http.StatusBadRequest, response.ErrInvalidTimeLimit
	case errors.Is(err, setup.ErrInvalidExamType), errors.Is(err, setup.ErrInvalidQuestionCount):
		return http.StatusBadRequest, response.ErrValidation
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// failSession writes the mapped error response for err.
func failSession(c *gin.Context, err error) {
	status, code := sessionErrCode(err)
	response.Fail(c, status, code)
}
