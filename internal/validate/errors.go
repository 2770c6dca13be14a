// Package validate gates form submissions: requester trust, request method
// and recipient checks.
package validate

import (
	"errors"
	"net/http"
)

// Kind classifies a rejected or failed submission.
type Kind int

const (
	// UntrustedRequester means the identity header is missing or not allowed.
	UntrustedRequester Kind = iota + 1
	// UnsupportedMethod means the request was not a POST.
	UnsupportedMethod
	// MissingRecipient means no recipient was supplied.
	MissingRecipient
	// InvalidEmailSyntax means the recipient is not a valid address.
	InvalidEmailSyntax
	// RecipientNotAllowed means the recipient is not in the allowlist.
	RecipientNotAllowed
	// DeliveryFailure means the mail transport rejected the message.
	DeliveryFailure
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case UntrustedRequester:
		return "UntrustedRequester"
	case UnsupportedMethod:
		return "UnsupportedMethod"
	case MissingRecipient:
		return "MissingRecipient"
	case InvalidEmailSyntax:
		return "InvalidEmailSyntax"
	case RecipientNotAllowed:
		return "RecipientNotAllowed"
	case DeliveryFailure:
		return "DeliveryFailure"
	default:
		return "Unknown"
	}
}

// StatusCode is the HTTP status a response for this kind is sent with.
// Only delivery failures are server errors.
func (k Kind) StatusCode() int {
	if k == DeliveryFailure {
		return http.StatusInternalServerError
	}
	return http.StatusOK
}

// Caller-facing messages.
const (
	MsgUntrustedRequester = "HTTP referer mismatch"
	MsgUnsupportedMethod  = "HTTP request method mismatch"
	MsgInvalidRecipient   = "Invalid recipient email address"
	MsgNotInContactList   = " not found in the Contact Form List"
	MsgDeliveryFailure    = "Error sending mail"
)

// Error is a classified submission error carrying its caller-facing message.
type Error struct {
	Kind    Kind
	Message string
	err     error
}

// NewError creates an Error of kind k with message msg.
func NewError(k Kind, msg string) *Error {
	return &Error{Kind: k, Message: msg}
}

// Wrap creates an Error of kind k that wraps cause.
func Wrap(k Kind, msg string, cause error) *Error {
	return &Error{Kind: k, Message: msg, err: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.err != nil {
		return e.Message + ": " + e.err.Error()
	}
	return e.Message
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.err
}

// KindOf returns the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
