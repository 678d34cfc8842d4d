package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrLoginActive        ErrCode = "LOGIN_ALREADY_ACTIVE"
	ErrLoginInvalidated   ErrCode = "LOGIN_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrInvalidOTP         ErrCode = "INVALID_OTP"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrNotEligible       ErrCode = "NOT_ELIGIBLE"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidAnswers ErrCode = "INVALID_ANSWERS"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Session lifecycle ─────────────────────────────────────────────
	ErrQuizNotFound     ErrCode = "QUIZ_NOT_FOUND"
	ErrNoQuestions      ErrCode = "NO_QUESTIONS"
	ErrSessionActive    ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrAlreadyAttempted ErrCode = "ALREADY_ATTEMPTED"
	ErrAlreadySubmitted ErrCode = "ALREADY_SUBMITTED"
	ErrNoActiveSession  ErrCode = "NO_ACTIVE_SESSION"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrLoginActive:
		return "You are already logged in on another device."
	case ErrLoginInvalidated:
		return "Your login has ended. Please sign in again."
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid or expired."
	case ErrInvalidOTP:
		return "The OTP is invalid or has expired."
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrNotEligible:
		return "You are not eligible for this quiz."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidAnswers:
		return "The answers payload is malformed."
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."
	case ErrQuizNotFound:
		return "Quiz not found."
	case ErrNoQuestions:
		return "This quiz has no questions yet."
	case ErrSessionActive:
		return "An attempt for this quiz is already in progress."
	case ErrAlreadyAttempted:
		return "You have already attempted this quiz."
	case ErrAlreadySubmitted:
		return "This quiz has already been submitted."
	case ErrNoActiveSession:
		return "No active session for this quiz."
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
