package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrCandidateAccessOnly ErrCode = "CANDIDATE_ACCESS_ONLY"
	ErrReviewerAccessOnly  ErrCode = "REVIEWER_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Sessions ──────────────────────────────────────────────────────
	ErrNotFound         ErrCode = "NOT_FOUND"
	ErrSessionNotActive ErrCode = "SESSION_NOT_ACTIVE"

	// ─── Proctoring ────────────────────────────────────────────────────
	ErrDecodeFailure ErrCode = "DECODE_FAILURE"

	// ─── Upload ────────────────────────────────────────────────────────
	ErrFileRequired      ErrCode = "FILE_REQUIRED"
	ErrUnsupportedFile   ErrCode = "UNSUPPORTED_FILE_TYPE"
	ErrFileTooLarge      ErrCode = "FILE_TOO_LARGE"
	ErrCandidateNotFound ErrCode = "CANDIDATE_NOT_FOUND"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid or expired."

	case ErrCandidateAccessOnly:
		return "This resource is restricted to candidates."
	case ErrReviewerAccessOnly:
		return "This resource is restricted to reviewers."

	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	case ErrNotFound:
		return "Exam session not found."
	case ErrSessionNotActive:
		return "Exam session is not active."

	case ErrDecodeFailure:
		return "The camera frame could not be decoded."

	case ErrFileRequired:
		return "An image file is required."
	case ErrUnsupportedFile:
		return "Unsupported file type. Upload a JPEG or PNG image."
	case ErrFileTooLarge:
		return "File size exceeds the maximum allowed."
	case ErrCandidateNotFound:
		return "Candidate not found."

	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
