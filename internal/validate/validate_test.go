package validate

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func newTestValidator() *Validator {
	return New(Config{
		TrustedAppIDs:     []string{"oneConnectFormmail", ""},
		AllowedRecipients: []string{"Support@Example.com", "info@münchen.de"},
	})
}

func TestIsTrustedRequester(t *testing.T) {
	t.Parallel()

	v := newTestValidator()
	tests := []struct {
		identity string
		want     bool
	}{
		{"oneConnectFormmail", true},
		{"", false},
		{"oneconnectformmail", false},
		{"oneConnectFormmail ", false},
		{"other", false},
	}
	for _, tt := range tests {
		if got := v.IsTrustedRequester(tt.identity); got != tt.want {
			t.Errorf("IsTrustedRequester(%q): got %v, want %v", tt.identity, got, tt.want)
		}
	}

	if New(Config{}).IsTrustedRequester("anything") {
		t.Error("empty allowlist should trust nobody")
	}
}

func TestIsValidMethod(t *testing.T) {
	t.Parallel()

	for _, m := range []string{"POST", "post", "Post"} {
		if !IsValidMethod(m) {
			t.Errorf("IsValidMethod(%q) should be true", m)
		}
	}
	for _, m := range []string{"GET", "PUT", "", "POSTS"} {
		if IsValidMethod(m) {
			t.Errorf("IsValidMethod(%q) should be false", m)
		}
	}
}

func TestValidateRecipient(t *testing.T) {
	t.Parallel()

	v := newTestValidator()
	tests := []struct {
		name      string
		recipient string
		kind      Kind
		message   string
	}{
		{name: "allowed", recipient: "support@example.com"},
		{name: "allowed case-insensitive", recipient: "SUPPORT@example.COM"},
		{name: "allowed idn", recipient: "info@xn--mnchen-3ya.de"},
		{name: "allowed idn unicode", recipient: "info@münchen.de"},
		{name: "missing", recipient: "", kind: MissingRecipient, message: MsgInvalidRecipient},
		{name: "invalid", recipient: "not-an-address", kind: InvalidEmailSyntax, message: MsgInvalidRecipient},
		{name: "header injection", recipient: "support@example.com\r\nBcc: x@example.com", kind: InvalidEmailSyntax, message: MsgInvalidRecipient},
		{name: "not allowed", recipient: "other@example.com", kind: RecipientNotAllowed, message: "other@example.com not found in the Contact Form List"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := v.ValidateRecipient(tt.recipient)
			if tt.kind == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if got := KindOf(err); got != tt.kind {
				t.Fatalf("kind: got %v, want %v", got, tt.kind)
			}
			if err.Error() != tt.message {
				t.Errorf("message: got %q, want %q", err.Error(), tt.message)
			}
		})
	}
}

func TestValidateRecipient_EmptyAllowlist(t *testing.T) {
	t.Parallel()

	v := New(Config{TrustedAppIDs: []string{"app"}})
	if err := v.ValidateRecipient("anyone@example.com"); err != nil {
		t.Errorf("empty allowlist should accept valid recipients: %v", err)
	}
}

func TestCheck_Order(t *testing.T) {
	t.Parallel()

	v := newTestValidator()

	tests := []struct {
		name      string
		identity  string
		method    string
		recipient string
		want      Kind
	}{
		{name: "untrusted before everything", identity: "", method: "POST", recipient: "support@example.com", want: UntrustedRequester},
		{name: "untrusted with bad method", identity: "x", method: "GET", recipient: "", want: UntrustedRequester},
		{name: "method before recipient", identity: "oneConnectFormmail", method: "GET", recipient: "", want: UnsupportedMethod},
		{name: "recipient", identity: "oneConnectFormmail", method: "POST", recipient: "", want: MissingRecipient},
		{name: "ok", identity: "oneConnectFormmail", method: "post", recipient: "support@example.com", want: 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := KindOf(v.Check(tt.identity, tt.method, tt.recipient)); got != tt.want {
				t.Errorf("Check: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKind_StatusCode(t *testing.T) {
	t.Parallel()

	for k := UntrustedRequester; k < DeliveryFailure; k++ {
		if k.StatusCode() != http.StatusOK {
			t.Errorf("%v: got %d, want 200", k, k.StatusCode())
		}
	}
	if DeliveryFailure.StatusCode() != http.StatusInternalServerError {
		t.Error("DeliveryFailure should map to 500")
	}
}

func TestWrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := fmt.Errorf("send: %w", Wrap(DeliveryFailure, MsgDeliveryFailure, cause))

	if KindOf(err) != DeliveryFailure {
		t.Errorf("KindOf: got %v", KindOf(err))
	}
	if !errors.Is(err, cause) {
		t.Error("wrapped cause should be reachable")
	}
	if KindOf(cause) != 0 {
		t.Error("plain errors have no kind")
	}
}
