package validate

import (
	"net/http"
	"strings"

	"github.com/samber/lo"

	"github.com/shineum/formmail-lite/internal/address"
)

// Config holds the allowlists a Validator checks against.
type Config struct {
	// TrustedAppIDs are the accepted identity header values.
	TrustedAppIDs []string
	// AllowedRecipients restricts recipients. An empty list allows any
	// syntactically valid recipient.
	AllowedRecipients []string
}

// Validator checks submissions before any message is built.
type Validator struct {
	appIDs     []string
	recipients []string
}

// New creates a Validator. Allowed recipients are compared in canonical
// (ASCII, lower-case) form.
func New(cfg Config) *Validator {
	return &Validator{
		appIDs:     lo.Compact(cfg.TrustedAppIDs),
		recipients: lo.Uniq(lo.Compact(lo.Map(cfg.AllowedRecipients, func(r string, _ int) string { return address.Canonical(r) }))),
	}
}

// IsTrustedRequester reports whether identity exactly matches an allowed app id.
func (v *Validator) IsTrustedRequester(identity string) bool {
	return identity != "" && lo.Contains(v.appIDs, identity)
}

// IsValidMethod reports whether method is POST, ignoring case.
func IsValidMethod(method string) bool {
	return strings.EqualFold(method, http.MethodPost)
}

// ValidateRecipient checks that recipient is present, valid and allowed.
func (v *Validator) ValidateRecipient(recipient string) error {
	if recipient == "" {
		return NewError(MissingRecipient, MsgInvalidRecipient)
	}
	if !address.IsValid(recipient, true) {
		return NewError(InvalidEmailSyntax, MsgInvalidRecipient)
	}
	if len(v.recipients) > 0 && !lo.Contains(v.recipients, address.Canonical(recipient)) {
		return NewError(RecipientNotAllowed, recipient+MsgNotInContactList)
	}
	return nil
}

// Check runs the request-level checks in order and returns the first failure.
func (v *Validator) Check(identity, method, recipient string) error {
	if !v.IsTrustedRequester(identity) {
		return NewError(UntrustedRequester, MsgUntrustedRequester)
	}
	if !IsValidMethod(method) {
		return NewError(UnsupportedMethod, MsgUnsupportedMethod)
	}
	return v.ValidateRecipient(recipient)
}
