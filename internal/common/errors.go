// File: internal/common/errors.go
package common

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the backend or transport can surface.
// Callers branch on the kind, never on message text.
type ErrorKind string

const (
	// KindNetwork is a transport failure: no HTTP response was received.
	KindNetwork ErrorKind = "NETWORK_ERROR"
	// KindServer is a 5xx response or a malformed success body.
	KindServer ErrorKind = "SERVER_ERROR"
	// KindInvalidCredentials is a rejected email/password login.
	KindInvalidCredentials ErrorKind = "INVALID_CREDENTIALS"
	// KindFieldValidation is a structured per-field rejection (email, phone, names).
	KindFieldValidation ErrorKind = "FIELD_VALIDATION"
	// KindInvalidSession is a rejected refresh or access token.
	KindInvalidSession ErrorKind = "INVALID_SESSION"
	// KindInvalidToken is a rejected or expired password-reset token.
	KindInvalidToken ErrorKind = "INVALID_TOKEN"
	// KindValidation is a request rejected for non-field-specific reasons.
	KindValidation ErrorKind = "VALIDATION_ERROR"
)

// AuthError is the uniform error shape for the whole auth subsystem.
// Field is only set for KindFieldValidation.
type AuthError struct {
	Kind    ErrorKind
	Field   string
	Message string
}

func (e *AuthError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("AuthError: Kind=%s, Field=%s, Message=%s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("AuthError: Kind=%s, Message=%s", e.Kind, e.Message)
}

func NewAuthError(kind ErrorKind, message string) *AuthError {
	return &AuthError{Kind: kind, Message: message}
}

// NewFieldError reports a per-field backend rejection.
func NewFieldError(field, message string) *AuthError {
	return &AuthError{Kind: KindFieldValidation, Field: field, Message: message}
}

func NewNetworkError(cause error) *AuthError {
	return &AuthError{Kind: KindNetwork, Message: cause.Error()}
}

func NewServerError(message string) *AuthError {
	return &AuthError{Kind: KindServer, Message: message}
}

// IsAuthError unwraps err into an *AuthError when possible.
func IsAuthError(err error) (*AuthError, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

// IsKind reports whether err is an AuthError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	authErr, ok := IsAuthError(err)
	return ok && authErr.Kind == kind
}
