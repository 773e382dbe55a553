// Package gwerrors contains all common errors used by the dashboard.
package gwerrors

import (
	"errors"
	"fmt"
)

var ErrSessionExpired = fmt.Errorf("the session is expired")
var ErrTokenNotFound = fmt.Errorf("the token cannot be found")
var ErrInvalidCredentials = fmt.Errorf("the provided credentials are invalid")
var ErrMissingDBResource = fmt.Errorf("the requested resource cannot be found in the DB")
var ErrRefreshFailed = fmt.Errorf("the access token could not be refreshed")

// ErrorCode discriminates the kinds of GatewayError.
type ErrorCode string

const CodeSessionExpired ErrorCode = "SESSION_EXPIRED"

// GatewayError is an error raised by the authenticated request gateway. Callers match on Code
// instead of comparing messages.
type GatewayError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *GatewayError) Unwrap() []error {
	if e.Code == CodeSessionExpired {
		if e.Err != nil {
			return []error{ErrSessionExpired, e.Err}
		}
		return []error{ErrSessionExpired}
	}
	if e.Err != nil {
		return []error{e.Err}
	}
	return nil
}

// NewSessionExpiredError builds the session expired signal, cause may be nil.
func NewSessionExpiredError(message string, cause error) *GatewayError {
	return &GatewayError{Code: CodeSessionExpired, Message: message, Err: cause}
}

// IsSessionExpired reports whether err carries the session expired signal.
func IsSessionExpired(err error) bool {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Code == CodeSessionExpired
	}
	return false
}
