// Package apperr defines the error taxonomy shared by the auth service,
// middleware and handlers, and how each kind is surfaced over HTTP.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies an error class. Two errors match under errors.Is when
// their kinds are equal.
type Kind string

const (
	ValidationFailed        Kind = "validation_failed"
	InvalidCredentials      Kind = "invalid_credentials"
	AccountDeactivated      Kind = "account_deactivated"
	AccountLocked           Kind = "account_locked"
	EmailExists             Kind = "email_exists"
	MissingToken            Kind = "missing_token"
	MalformedToken          Kind = "malformed_token"
	ExpiredToken            Kind = "expired_token"
	RevokedToken            Kind = "revoked_token"
	InactiveOrMissingUser   Kind = "inactive_or_missing_user"
	InsufficientPermissions Kind = "insufficient_permissions"
	InvalidOrExpiredToken   Kind = "invalid_or_expired_reset_token"
	InvalidRefreshToken     Kind = "invalid_refresh_token"
	RateLimited             Kind = "rate_limited"
	StoreUnavailable        Kind = "store_unavailable"
	DeliveryFailed          Kind = "delivery_failed"
)

// Error is the concrete error type. Message is safe to show to clients;
// Cause holds internal detail and is only logged.
type Error struct {
	Kind    Kind
	Message string
	Cause   error

	// AttemptsRemaining is set on InvalidCredentials after a counted failure.
	AttemptsRemaining *int
	// RetryAfterSeconds is set on AccountLocked and RateLimited.
	RetryAfterSeconds int
	// Details holds per-field validation messages.
	Details []FieldError
}

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error with the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New builds an error of the given kind with a client-facing message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches an internal cause. A nil err yields nil.
func Wrap(err error, kind Kind, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Cause: err}
}

// Store wraps an infrastructure failure. The message never reveals detail.
func Store(err error, op string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: StoreUnavailable, Message: "an internal error occurred", Cause: fmt.Errorf("%s: %w", op, err)}
}

// Sentinel values for errors.Is comparisons.
var (
	ErrValidationFailed        = New(ValidationFailed, "")
	ErrInvalidCredentials      = New(InvalidCredentials, "")
	ErrAccountDeactivated      = New(AccountDeactivated, "")
	ErrAccountLocked           = New(AccountLocked, "")
	ErrEmailExists             = New(EmailExists, "")
	ErrMissingToken            = New(MissingToken, "")
	ErrMalformedToken          = New(MalformedToken, "")
	ErrExpiredToken            = New(ExpiredToken, "")
	ErrRevokedToken            = New(RevokedToken, "")
	ErrInactiveOrMissingUser   = New(InactiveOrMissingUser, "")
	ErrInsufficientPermissions = New(InsufficientPermissions, "")
	ErrInvalidOrExpiredToken   = New(InvalidOrExpiredToken, "")
	ErrInvalidRefreshToken     = New(InvalidRefreshToken, "")
	ErrRateLimited             = New(RateLimited, "")
	ErrStoreUnavailable        = New(StoreUnavailable, "")
	ErrDeliveryFailed          = New(DeliveryFailed, "")
)

// KindOf returns the kind of err, or StoreUnavailable for errors that did
// not come from this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return StoreUnavailable
}

// HTTPStatus maps a kind to its response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case ValidationFailed, InvalidOrExpiredToken:
		return http.StatusBadRequest
	case InvalidCredentials, AccountDeactivated, MissingToken, RevokedToken,
		InactiveOrMissingUser, InvalidRefreshToken:
		return http.StatusUnauthorized
	case MalformedToken, ExpiredToken, InsufficientPermissions:
		return http.StatusForbidden
	case EmailExists:
		return http.StatusConflict
	case AccountLocked:
		return http.StatusLocked
	case RateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Title is the short `error` string used in response bodies.
func Title(kind Kind) string {
	switch kind {
	case ValidationFailed:
		return "Validation failed"
	case InvalidCredentials:
		return "Invalid credentials"
	case AccountDeactivated:
		return "Account deactivated"
	case AccountLocked:
		return "Account locked"
	case EmailExists:
		return "User already exists"
	case MissingToken:
		return "Access token required"
	case MalformedToken:
		return "Invalid token"
	case ExpiredToken:
		return "Token expired"
	case RevokedToken:
		return "Token has been revoked"
	case InactiveOrMissingUser:
		return "Invalid or inactive user"
	case InsufficientPermissions:
		return "Insufficient permissions"
	case InvalidOrExpiredToken:
		return "Invalid or expired reset token"
	case InvalidRefreshToken:
		return "Invalid refresh token"
	case RateLimited:
		return "Too many requests"
	case DeliveryFailed:
		return "Email delivery failed"
	default:
		return "Internal error"
	}
}
