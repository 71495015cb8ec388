// Package apperr holds the typed outcomes returned by the service layer. Every
// rejection a caller can see is an *Error with a Kind, a stable machine code
// and a user-facing message; anything else is an infrastructure fault.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInfrastructure Kind = iota
	KindValidation
	KindNotFound
	KindExpired
	KindMismatch
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindExpired:
		return "expired"
	case KindMismatch:
		return "mismatch"
	case KindConflict:
		return "conflict"
	default:
		return "infrastructure"
	}
}

// HTTPStatus maps a kind to the status code the HTTP boundary answers with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindExpired:
		return http.StatusGone
	case KindMismatch:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code so that wrapped or re-messaged copies of a sentinel still
// satisfy errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Validation builds a validation outcome with a request-specific message.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Code: ErrValidation.Code, Message: message}
}

// Internal wraps an infrastructure fault. The cause is kept for operator logs
// and never rendered to callers.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInfrastructure, Code: ErrInternal.Code, Message: message, Err: err}
}

// With returns a copy of a sentinel carrying cause as its wrapped error.
func (e *Error) With(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

// KindOf reports the kind of err, treating anything that is not an *Error as
// an infrastructure fault.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInfrastructure
}

// PublicMessage is the text safe to show a caller for err. Only Message is
// used; a wrapped cause never leaves the process.
func PublicMessage(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}

// CodeOf returns the machine-readable code of err.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrInternal.Code
}

var (
	ErrValidation = New(KindValidation, "VALIDATION_FAILED", "Invalid request")
	ErrInternal   = New(KindInfrastructure, "OPERATION_FAILED", "Operation failed")

	ErrAlreadyRegistered    = New(KindConflict, "ALREADY_REGISTERED", "User already exists with this email")
	ErrUserNotFound         = New(KindNotFound, "USER_NOT_FOUND", "User not found")
	ErrWrongProvider        = New(KindConflict, "WRONG_PROVIDER", "This email is registered with Google. Please use Google login.")
	ErrNoPasswordSet        = New(KindConflict, "NO_PASSWORD_SET", "Invalid authentication method")
	ErrWrongPassword        = New(KindMismatch, "WRONG_PASSWORD", "Incorrect password")
	ErrNotVerified          = New(KindConflict, "NOT_VERIFIED", "Please verify your email first")
	ErrProviderConflict     = New(KindConflict, "PROVIDER_CONFLICT", "This email is already registered with email/password. Please use email login.")
	ErrExternalIDTaken      = New(KindConflict, "EXTERNAL_ID_TAKEN", "Google account already linked to another email")
	ErrLocalAccountNotFound = New(KindNotFound, "LOCAL_ACCOUNT_NOT_FOUND", "Local user account not found")

	ErrOTPNotFound        = New(KindNotFound, "OTP_NOT_FOUND", "OTP not found or expired")
	ErrOTPExpired         = New(KindExpired, "OTP_EXPIRED", "OTP has expired")
	ErrOTPMismatch        = New(KindMismatch, "OTP_MISMATCH", "Invalid OTP")
	ErrOTPTooManyAttempts = New(KindMismatch, "OTP_TOO_MANY_ATTEMPTS", "Too many invalid attempts, please request a new OTP")

	ErrDeliveryFailed = New(KindInfrastructure, "DELIVERY_FAILED", "Error sending OTP")

	ErrTopicNotFound = New(KindNotFound, "TOPIC_NOT_FOUND", "Topic not found")
)
