package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Common domain errors
var (
	ErrInvalidDeposit   = NewError("deposit amount must be positive", 400)
	ErrInvalidAmount    = NewError("trade amount must be positive", 400)
	ErrSessionOpen      = NewError("a session is already open", 409)
	ErrSessionBusy      = NewError("another session operation is in flight", 409)
	ErrNotConnected     = NewError("not connected to clearnode", 503)
	ErrNotAuthenticated = NewError("connection is not authenticated", 401)
)

// Error represents a domain error with an associated code.
type Error struct {
	Message string
	Code    int
}

// Error returns the error message.
func (e *Error) Error() string {
	return e.Message
}

// NewError creates a new domain error with the given message and code.
func NewError(message string, code int) *Error {
	return &Error{
		Message: message,
		Code:    code,
	}
}

// NoActiveSessionError indicates an operation that requires an active session
// was invoked while the session was in another state.
type NoActiveSessionError struct {
	Status SessionStatus
	Err    *Error
}

// Error returns the error message.
func (e *NoActiveSessionError) Error() string {
	return e.Err.Error()
}

// NewNoActiveSessionError creates a new NoActiveSessionError.
func NewNoActiveSessionError(status SessionStatus) *NoActiveSessionError {
	return &NoActiveSessionError{
		Status: status,
		Err: NewError(
			fmt.Sprintf("no active trading session (status: %s)", status),
			409,
		),
	}
}

// InsufficientBalanceError indicates a trade asked for more of an asset than
// the session holds.
type InsufficientBalanceError struct {
	Asset string
	Have  decimal.Decimal
	Need  decimal.Decimal
	Err   *Error
}

// Error returns the error message.
func (e *InsufficientBalanceError) Error() string {
	return e.Err.Error()
}

// NewInsufficientBalanceError creates a new InsufficientBalanceError.
func NewInsufficientBalanceError(asset string, have, need decimal.Decimal) *InsufficientBalanceError {
	return &InsufficientBalanceError{
		Asset: asset,
		Have:  have,
		Need:  need,
		Err: NewError(
			fmt.Sprintf("insufficient %s balance: have %s, need %s", asset, have, need),
			400,
		),
	}
}

// AuthenticationError indicates the challenge/verify exchange with the
// clearnode failed.
type AuthenticationError struct {
	Reason string
	Err    *Error
}

// Error returns the error message.
func (e *AuthenticationError) Error() string {
	return e.Err.Error()
}

// NewAuthenticationError creates a new AuthenticationError.
func NewAuthenticationError(reason string) *AuthenticationError {
	return &AuthenticationError{
		Reason: reason,
		Err: NewError(
			fmt.Sprintf("authentication failed: %s", reason),
			401,
		),
	}
}

// TradeLimitError indicates a trade violates a user preference bound.
type TradeLimitError struct {
	Limit string
	Value string
	Err   *Error
}

// Error returns the error message.
func (e *TradeLimitError) Error() string {
	return e.Err.Error()
}

// NewTradeLimitError creates a new TradeLimitError.
func NewTradeLimitError(limit, value string) *TradeLimitError {
	return &TradeLimitError{
		Limit: limit,
		Value: value,
		Err: NewError(
			fmt.Sprintf("trade exceeds %s (%s)", limit, value),
			400,
		),
	}
}
