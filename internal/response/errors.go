package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden ErrCode = "FORBIDDEN"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Exam session ──────────────────────────────────────────────────
	ErrSessionNotFound       ErrCode = "SESSION_NOT_FOUND"
	ErrSessionCorrupt        ErrCode = "SESSION_CORRUPT"
	ErrSessionCompleted      ErrCode = "SESSION_COMPLETED"
	ErrSessionNotCompleted   ErrCode = "SESSION_NOT_COMPLETED"
	ErrSessionTakenOver      ErrCode = "SESSION_TAKEN_OVER"
	ErrSubmitting            ErrCode = "SUBMISSION_IN_PROGRESS"
	ErrSubmitFailed          ErrCode = "SUBMIT_FAILED"
	ErrIndexOutOfRange       ErrCode = "QUESTION_INDEX_OUT_OF_RANGE"
	ErrInvalidOption         ErrCode = "INVALID_OPTION"
	ErrQuestionLocked        ErrCode = "QUESTION_LOCKED"
	ErrPauseNotAllowed       ErrCode = "PAUSE_NOT_ALLOWED"
	ErrInsufficientQuestions ErrCode = "INSUFFICIENT_QUESTIONS"
	ErrInvalidTimeLimit      ErrCode = "INVALID_TIME_LIMIT"
	ErrUnknownAction         ErrCode = "UNKNOWN_ACTION"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrSessionInvalidated:
		return "Your login has ended. Please sign in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have access to this resource."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."

	// ─── Exam session ──────────────────────────────────────────────────
	case ErrSessionNotFound:
		return "Exam session not found."
	case ErrSessionCorrupt:
		return "This exam session cannot be opened."
	case ErrSessionCompleted:
		return "This exam session is already completed."
	case ErrSessionNotCompleted:
		return "Results are available once the exam is submitted."
	case ErrSessionTakenOver:
		return "This exam session was opened on another device."
	case ErrSubmitting:
		return "The exam is being submitted."
	case ErrSubmitFailed:
		return "Submission failed. Your answers are kept, please try again."
	case ErrIndexOutOfRange:
		return "Question number is out of range."
	case ErrInvalidOption:
		return "Answer must be one of A, B, C or D."
	case ErrQuestionLocked:
		return "Earlier questions cannot be changed in strict mode."
	case ErrPauseNotAllowed:
		return "Only practice sessions can be paused."
	case ErrInsufficientQuestions:
		return "Not enough approved questions for this exam."
	case ErrInvalidTimeLimit:
		return "Timed exams need a time limit; practice exams must not have one."
	case ErrUnknownAction:
		return "Unknown action."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
