package errors

// ErrorCode represents a machine-readable error identifier for frontend error handling.
type ErrorCode string

// Validation errors (bad or missing request input).
const (
	ErrCodeMissingField    ErrorCode = "missing_field"
	ErrCodeInvalidField    ErrorCode = "invalid_field"
	ErrCodeInvalidAmount   ErrorCode = "invalid_amount"
	ErrCodeInvalidUsername ErrorCode = "invalid_username"
)

// Conflict errors (duplicate identity at signup or rename).
const (
	ErrCodeUsernameTaken ErrorCode = "username_taken"
	ErrCodeEmailTaken    ErrorCode = "email_taken"
)

// Auth errors. The same code and message are used for unknown identities and
// wrong credentials to avoid account enumeration.
const (
	ErrCodeInvalidCredentials ErrorCode = "invalid_credentials"
)

// Webhook errors.
const (
	ErrCodeInvalidSignature ErrorCode = "invalid_signature"
)

// Resource errors.
const (
	ErrCodeCreatorNotFound ErrorCode = "creator_not_found"
	ErrCodePaymentNotFound ErrorCode = "payment_not_found"
)

// External service errors. The raw provider error is logged, never returned.
const (
	ErrCodeStripeError ErrorCode = "stripe_error"
)

// Internal/system errors.
const (
	ErrCodeInternalError ErrorCode = "internal_error"
	ErrCodeDatabaseError ErrorCode = "database_error"
)

// IsRetryable returns whether an error code represents a retryable error.
// Retryable errors are transient upstream issues, not validation failures.
func (e ErrorCode) IsRetryable() bool {
	switch e {
	case ErrCodeStripeError, ErrCodeDatabaseError:
		return true
	default:
		return false
	}
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e ErrorCode) HTTPStatus() int {
	switch e {
	case ErrCodeMissingField,
		ErrCodeInvalidField,
		ErrCodeInvalidAmount,
		ErrCodeInvalidUsername,
		ErrCodeInvalidSignature:
		return 400

	case ErrCodeInvalidCredentials:
		return 401

	case ErrCodeCreatorNotFound,
		ErrCodePaymentNotFound:
		return 404

	case ErrCodeUsernameTaken,
		ErrCodeEmailTaken:
		return 409

	case ErrCodeStripeError:
		return 502

	default:
		return 500
	}
}
