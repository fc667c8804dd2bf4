// Package apperr classifies the failures reported back to the shopper.
// Every failure in the order flow is user-correctable; the kind tells the
// caller which controls to restore and how to present it.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the failure category.
type Kind int

const (
	KindValidation Kind = iota
	KindConfiguration
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindConfiguration:
		return "CONFIGURATION"
	case KindNetwork:
		return "NETWORK"
	default:
		return "UNKNOWN"
	}
}

// Error codes.
const (
	CodeQuantityStep      = "quantity_step"
	CodeItemMinimum       = "item_minimum"
	CodeOrderMinimum      = "order_minimum"
	CodeEmailInvalid      = "email_invalid"
	CodeRequiredFields    = "required_fields"
	CodeEmptyPayable      = "empty_payable"
	CodeMissingEndpoint   = "missing_endpoint"
	CodeMissingHandle     = "missing_handle"
	CodeUnknownProvider   = "unknown_provider"
	CodeInvalidCatalog    = "invalid_catalog"
	CodeTimeout           = "timeout"
	CodeTransport         = "transport"
	CodeHTTPStatus        = "http_status"
	CodeMalformedResponse = "malformed_response"
	CodeRejected          = "rejected"
)

// Error is a classified failure. Field names the form input that should take
// focus, if any. Status and Detail carry HTTP diagnostics for network errors.
type Error struct {
	Kind    Kind
	Code    string
	Field   string
	Message string
	Status  int
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation returns a KindValidation error.
func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// Configuration returns a KindConfiguration error.
func Configuration(code, message string) *Error {
	return &Error{Kind: KindConfiguration, Code: code, Message: message}
}

// Network returns a KindNetwork error wrapping cause.
func Network(code, message string, cause error) *Error {
	return &Error{Kind: KindNetwork, Code: code, Message: message, Err: cause}
}

// Networkf returns a KindNetwork error with a formatted message.
func Networkf(code, format string, args ...any) *Error {
	return &Error{Kind: KindNetwork, Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithField sets the field to focus and returns e.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	ae, ok := As(err)
	return ok && ae.Kind == k
}
