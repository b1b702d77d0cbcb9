package engine

import "errors"

// Domain Errors
var (
	ErrSessionNotFound  = errors.New("exam session not found")
	ErrInvalidSession   = errors.New("exam session is inconsistent")
	ErrSessionCompleted = errors.New("exam session is already completed")
	ErrSubmitting       = errors.New("exam session is being submitted")
	ErrIndexOutOfRange  = errors.New("question index out of range")
	ErrInvalidOption    = errors.New("invalid answer option")
	ErrQuestionLocked   = errors.New("question is behind the current position in strict mode")
	ErrPauseNotAllowed  = errors.New("pause is only available in practice mode")
	ErrSubmitFailed     = errors.New("submission did not take effect")
	ErrRunnerClosed     = errors.New("session runner is closed")
)
