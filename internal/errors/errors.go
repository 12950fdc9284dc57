package errors

import (
	"errors"
	"net/http"
)

// Kind classifies a domain error for the boundary layer.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindAccessDenied       Kind = "access_denied"
	KindConflict           Kind = "conflict"
	KindInvalidState       Kind = "invalid_state"
	KindInsufficientFunds  Kind = "insufficient_funds"
	KindEncoding           Kind = "encoding"
	KindPreconditionFailed Kind = "precondition_failed"
	KindInvalidArgument    Kind = "invalid_argument"
	KindUnauthorized       Kind = "unauthorized"
	KindRetryable          Kind = "retryable"
	KindInternal           Kind = "internal"
)

var (
	// ErrCardNotFound is returned when a card is absent or owned by someone else.
	ErrCardNotFound = errors.New("card not found")
	// ErrUserNotFound is returned when a user is absent.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccessDenied is returned when the actor lacks rights for the operation.
	ErrAccessDenied = errors.New("access denied")
	// ErrEmailTaken is returned when creating a user with an existing email.
	ErrEmailTaken = errors.New("email already in use")
	// ErrCardBlocked is returned when a blocked card is used for a transfer.
	ErrCardBlocked = errors.New("card is blocked")
	// ErrCardExpired is returned when an expired card is used for a transfer.
	ErrCardExpired = errors.New("card is expired")
	// ErrInvalidTransition is returned for a lifecycle event not allowed in the current state.
	ErrInvalidTransition = errors.New("card status transition not allowed")
	// ErrInsufficientFunds is returned when the source balance is lower than the amount.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrEncoding is returned when a card number cannot be encrypted or decrypted.
	ErrEncoding = errors.New("card number encoding failure")
	// ErrUserAlreadyBlocked is returned when blocking a user that is already blocked.
	ErrUserAlreadyBlocked = errors.New("user is already blocked")
	// ErrUserAlreadyActive is returned when unblocking a user that is already active.
	ErrUserAlreadyActive = errors.New("user is already active")
	// ErrInvalidAmount is returned when an amount is not positive.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrNegativeBalance is returned when a balance would drop below zero.
	ErrNegativeBalance = errors.New("balance must not be negative")
	// ErrInvalidExpiry is returned when a card would be issued already expired.
	ErrInvalidExpiry = errors.New("expiry date must not be in the past")
	// ErrSameCard is returned when source and destination of a transfer coincide.
	ErrSameCard = errors.New("source and destination card must differ")
	// ErrDescriptionTooLong is returned when a transfer description exceeds its bound.
	ErrDescriptionTooLong = errors.New("description too long")
	// ErrInvalidCredentials is returned when email or password is incorrect.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidRefreshToken is returned when a refresh token is invalid or expired.
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	// ErrUserInactive is returned when a blocked user tries to authenticate.
	ErrUserInactive = errors.New("user is blocked")
	// ErrLockTimeout is returned when a row lock could not be acquired in time.
	ErrLockTimeout = errors.New("resource busy, retry later")
)

type entry struct {
	err    error
	kind   Kind
	status int
	code   string
}

// table is the single place where domain errors meet HTTP.
var table = []entry{
	{ErrCardNotFound, KindNotFound, http.StatusNotFound, "CARD_NOT_FOUND"},
	{ErrUserNotFound, KindNotFound, http.StatusNotFound, "USER_NOT_FOUND"},
	{ErrAccessDenied, KindAccessDenied, http.StatusForbidden, "ACCESS_DENIED"},
	{ErrEmailTaken, KindConflict, http.StatusConflict, "EMAIL_TAKEN"},
	{ErrCardBlocked, KindInvalidState, http.StatusBadRequest, "CARD_BLOCKED"},
	{ErrCardExpired, KindInvalidState, http.StatusBadRequest, "CARD_EXPIRED"},
	{ErrInvalidTransition, KindInvalidState, http.StatusBadRequest, "INVALID_TRANSITION"},
	{ErrInsufficientFunds, KindInsufficientFunds, http.StatusBadRequest, "INSUFFICIENT_FUNDS"},
	{ErrEncoding, KindEncoding, http.StatusBadRequest, "ENCODING_ERROR"},
	{ErrUserAlreadyBlocked, KindPreconditionFailed, http.StatusBadRequest, "USER_ALREADY_BLOCKED"},
	{ErrUserAlreadyActive, KindPreconditionFailed, http.StatusBadRequest, "USER_ALREADY_ACTIVE"},
	{ErrInvalidAmount, KindInvalidArgument, http.StatusBadRequest, "INVALID_AMOUNT"},
	{ErrNegativeBalance, KindInvalidArgument, http.StatusBadRequest, "NEGATIVE_BALANCE"},
	{ErrInvalidExpiry, KindInvalidArgument, http.StatusBadRequest, "INVALID_EXPIRY_DATE"},
	{ErrSameCard, KindInvalidArgument, http.StatusBadRequest, "SAME_CARD"},
	{ErrDescriptionTooLong, KindInvalidArgument, http.StatusBadRequest, "DESCRIPTION_TOO_LONG"},
	{ErrInvalidCredentials, KindUnauthorized, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	{ErrInvalidRefreshToken, KindUnauthorized, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN"},
	{ErrUserInactive, KindUnauthorized, http.StatusUnauthorized, "USER_BLOCKED"},
	{ErrLockTimeout, KindRetryable, http.StatusServiceUnavailable, "RETRY_LATER"},
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
	Kind       Kind
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// KindOf returns the kind of err, or KindInternal when err is not a domain error.
func KindOf(err error) Kind {
	for _, e := range table {
		if errors.Is(err, e.err) {
			return e.kind
		}
	}
	return KindInternal
}

// IsRetryable reports whether err is a transient storage contention failure.
func IsRetryable(err error) bool {
	return KindOf(err) == KindRetryable
}

// MapErrorToHTTP maps domain errors to HTTP errors. Unknown errors map to a
// generic 500 so no internal detail leaks to the caller.
func MapErrorToHTTP(err error) *HTTPError {
	for _, e := range table {
		if errors.Is(err, e.err) {
			return &HTTPError{
				StatusCode: e.status,
				Message:    e.err.Error(),
				Code:       e.code,
				Kind:       e.kind,
			}
		}
	}
	return &HTTPError{
		StatusCode: http.StatusInternalServerError,
		Message:    "internal server error",
		Code:       "INTERNAL_ERROR",
		Kind:       KindInternal,
	}
}
