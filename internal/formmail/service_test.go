package formmail

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/shineum/formmail-lite/internal/email"
	"github.com/shineum/formmail-lite/internal/envelope"
	"github.com/shineum/formmail-lite/internal/submission"
	"github.com/shineum/formmail-lite/internal/validate"
)

// mockProvider records sent messages and returns err.
type mockProvider struct {
	mu   sync.Mutex
	sent []*email.Email
	err  error
}

func (m *mockProvider) Send(_ context.Context, msg *email.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

func (m *mockProvider) Name() string {
	return "mock"
}

const testAppID = "siteForm"

func newTestService(prov *mockProvider, mutate func(*Config)) *Service {
	cfg := Config{
		Banner:         "You received a new message sent via the contact form on example.com.",
		DefaultSubject: "Contact form",
		SkipEmpty:      true,
		WrapThreshold:  60,
		DebugToken:     "debug-me",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	v := validate.New(validate.Config{
		TrustedAppIDs:     []string{testAppID},
		AllowedRecipients: []string{"support@example.com"},
	})
	env := envelope.New(envelope.Config{MessageIDDomain: "forms.example.com", Mailer: "formmail-lite/test"})
	return New(cfg, v, env, prov)
}

func fields(kv ...string) []submission.Field {
	out := make([]submission.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, submission.Field{Key: kv[i], Value: kv[i+1]})
	}
	return out
}

func validRequest(sub *submission.Submission) Request {
	return Request{ID: "req-1", Method: http.MethodPost, Identity: testAppID, Submission: sub}
}

func TestProcess_ValidationOrder(t *testing.T) {
	t.Parallel()

	valid := &submission.Submission{Fields: fields("recipient", "support@example.com", "Name", "Ada")}

	tests := []struct {
		name     string
		req      Request
		wantErr  string
		wantCode int
	}{
		{
			name:     "untrusted with valid payload",
			req:      Request{Method: http.MethodPost, Identity: "", Submission: valid},
			wantErr:  validate.MsgUntrustedRequester,
			wantCode: http.StatusOK,
		},
		{
			name:     "untrusted beats bad method",
			req:      Request{Method: http.MethodGet, Identity: "someone", Submission: &submission.Submission{}},
			wantErr:  validate.MsgUntrustedRequester,
			wantCode: http.StatusOK,
		},
		{
			name:     "bad method",
			req:      Request{Method: http.MethodPut, Identity: testAppID, Submission: valid},
			wantErr:  validate.MsgUnsupportedMethod,
			wantCode: http.StatusOK,
		},
		{
			name:     "missing recipient",
			req:      validRequest(&submission.Submission{Fields: fields("Name", "Ada")}),
			wantErr:  validate.MsgInvalidRecipient,
			wantCode: http.StatusOK,
		},
		{
			name:     "recipient not allowed",
			req:      validRequest(&submission.Submission{Fields: fields("recipient", "sales@example.com")}),
			wantErr:  "sales@example.com not found in the Contact Form List",
			wantCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			prov := &mockProvider{}
			out := newTestService(prov, nil).Process(context.Background(), tt.req)

			if out.Response.Success {
				t.Error("expected success=false")
			}
			if out.Response.Error != tt.wantErr {
				t.Errorf("error: got %q, want %q", out.Response.Error, tt.wantErr)
			}
			if out.StatusCode != tt.wantCode {
				t.Errorf("status: got %d, want %d", out.StatusCode, tt.wantCode)
			}
			if out.Response.Debug != "" {
				t.Errorf("validation failures carry no debug, got %q", out.Response.Debug)
			}
			if len(prov.sent) != 0 {
				t.Error("nothing should be sent after a validation failure")
			}
		})
	}
}

func TestProcess_Success(t *testing.T) {
	t.Parallel()

	prov := &mockProvider{}
	sub := &submission.Submission{Fields: fields(
		"recipient", "support@example.com",
		"subject", "Neue Anfrage",
		"replyto", " ada@example.org ",
		"Name", "Ada",
		"Message", "line one\nline two",
	)}

	out := newTestService(prov, nil).Process(context.Background(), validRequest(sub))

	if !out.Response.Success || out.Response.Error != "" || out.StatusCode != http.StatusOK {
		t.Fatalf("outcome: got %+v", out)
	}
	if len(prov.sent) != 1 {
		t.Fatalf("sent: got %d, want 1", len(prov.sent))
	}

	msg := prov.sent[0]
	if msg.From != "support@example.com" {
		t.Errorf("From: got %q (recipient should send to itself)", msg.From)
	}
	if msg.ReplyTo != "ada@example.org" {
		t.Errorf("ReplyTo: got %q", msg.ReplyTo)
	}
	if len(msg.To) != 1 || msg.To[0] != "support@example.com" {
		t.Errorf("To: got %v", msg.To)
	}
	if msg.Subject != "Neue Anfrage" {
		t.Errorf("Subject: got %q", msg.Subject)
	}
	if msg.Header("Content-Type") != envelope.ContentTypeHTML {
		t.Errorf("Content-Type: got %q", msg.Header("Content-Type"))
	}
	if !strings.Contains(msg.Body, "line one\nline two") {
		t.Errorf("body should keep the message text: %q", msg.Body)
	}
	for _, internal := range []string{"Neue Anfrage", "ada@example.org", ">Recipient<"} {
		if strings.Contains(msg.Body, internal) {
			t.Errorf("internal field value %q rendered into body", internal)
		}
	}
}

func TestProcess_DeliveryFailure(t *testing.T) {
	t.Parallel()

	prov := &mockProvider{err: errors.New("554 relay denied")}
	sub := &submission.Submission{Fields: fields("recipient", "support@example.com", "Name", "Ada")}

	out := newTestService(prov, nil).Process(context.Background(), validRequest(sub))

	if out.Response.Success {
		t.Error("expected success=false")
	}
	if out.StatusCode != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", out.StatusCode)
	}
	if out.Response.Error != validate.MsgDeliveryFailure {
		t.Errorf("error: got %q", out.Response.Error)
	}
	if out.Response.Debug != "Message: 554 relay denied" {
		t.Errorf("debug: got %q", out.Response.Debug)
	}
	if len(prov.sent) != 1 {
		t.Errorf("delivery attempts: got %d, want 1", len(prov.sent))
	}
}

func TestDebugAllowed(t *testing.T) {
	t.Parallel()

	s := newTestService(&mockProvider{}, nil)
	tests := []struct {
		name string
		req  Request
		want bool
	}{
		{name: "trusted", req: Request{Identity: testAppID}, want: true},
		{name: "untrusted", req: Request{Identity: "x"}, want: false},
		{name: "debug token", req: Request{DebugHeader: "debug-me"}, want: true},
		{name: "wrong token", req: Request{DebugHeader: "guess"}, want: false},
	}
	for _, tt := range tests {
		if got := s.debugAllowed(tt.req); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}

	noToken := newTestService(&mockProvider{}, func(c *Config) { c.DebugToken = "" })
	if noToken.debugAllowed(Request{}) {
		t.Error("empty token must not match an empty header")
	}

	out := noToken.deliveryFailure(Request{Identity: "x"}, errors.New("boom"))
	if out.Response.Debug != "" {
		t.Errorf("untrusted requester got debug %q", out.Response.Debug)
	}
}

func TestProcess_MarketingConsentLast(t *testing.T) {
	t.Parallel()

	prov := &mockProvider{}
	sub := &submission.Submission{Fields: fields(
		"recipient", "support@example.com",
		"Marketing_Consent", "yes",
		"Name", "Ada",
		"Phone", "0301234",
		"formLabels", "Marketing Consent====Name====Phone",
	)}

	out := newTestService(prov, nil).Process(context.Background(), validRequest(sub))
	if !out.Response.Success {
		t.Fatalf("outcome: %+v", out)
	}

	body := prov.sent[0].Body
	consent := strings.Index(body, "Marketing Consent")
	phone := strings.Index(body, "Phone")
	name := strings.Index(body, "Name")
	if consent < 0 || phone < 0 || name < 0 {
		t.Fatalf("missing rows in body: %q", body)
	}
	if !(name < phone && phone < consent) {
		t.Errorf("row order: Name %d, Phone %d, Marketing Consent %d", name, phone, consent)
	}
}

func TestProcess_Attachments(t *testing.T) {
	t.Parallel()

	prov := &mockProvider{}
	sub := &submission.Submission{
		Fields: fields("recipient", "support@example.com", "Name", "Ada"),
		Uploads: []submission.Upload{
			{Name: "cv.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.4"), Status: submission.UploadOK},
			{Name: "huge.zip", ContentType: "application/zip", Status: submission.UploadTooLarge},
		},
	}

	out := newTestService(prov, nil).Process(context.Background(), validRequest(sub))
	if !out.Response.Success {
		t.Fatalf("outcome: %+v", out)
	}

	msg := prov.sent[0]
	if !strings.HasPrefix(msg.Header("Content-Type"), envelope.ContentTypeMultipart) {
		t.Errorf("Content-Type: got %q", msg.Header("Content-Type"))
	}
	if len(msg.Attachments) != 1 || msg.Attachments[0].Filename != "cv.pdf" {
		t.Errorf("Attachments: got %+v", msg.Attachments)
	}
}

func TestReplyTo(t *testing.T) {
	t.Parallel()

	s := newTestService(&mockProvider{}, nil)
	tests := []struct {
		name string
		sub  *submission.Submission
		want string
	}{
		{
			name: "replyto field",
			sub:  &submission.Submission{Fields: fields("Contact", "bob@example.org", "replyto", "ada@example.org")},
			want: "ada@example.org",
		},
		{
			name: "first visible address",
			sub:  &submission.Submission{Fields: fields("email", "internal@example.org", "Name", "Ada", "Contact", " bob@example.org ")},
			want: "bob@example.org",
		},
		{
			name: "invalid replyto falls through",
			sub:  &submission.Submission{Fields: fields("replyto", "ada@example.org\r\nBcc: x@example.org", "Contact", "bob@example.org")},
			want: "bob@example.org",
		},
		{
			name: "fallback to from",
			sub:  &submission.Submission{Fields: fields("Name", "Ada")},
			want: "support@example.com",
		},
	}
	for _, tt := range tests {
		if got := s.ReplyTo(tt.sub, "support@example.com"); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	s := newTestService(&mockProvider{}, func(c *Config) {
		c.DefaultRecipient = "support@example.com"
		c.From = "forms@example.com"
	})
	sub := &submission.Submission{Fields: fields("Name", "Ada")}

	if got := s.Recipient(sub); got != "support@example.com" {
		t.Errorf("Recipient: got %q", got)
	}
	if got := s.Sender("support@example.com"); got != "forms@example.com" {
		t.Errorf("Sender: got %q", got)
	}
	if got := s.Subject(sub); got != "Contact form" {
		t.Errorf("Subject: got %q", got)
	}
}

func TestCompose(t *testing.T) {
	t.Parallel()

	prov := &mockProvider{}
	s := newTestService(prov, nil)

	msg, err := s.Compose(Request{Submission: &submission.Submission{Fields: fields("recipient", "support@example.com", "Name", "Ada")}})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !strings.Contains(msg.Body, "example.com.") || !strings.Contains(msg.Body, "Ada") {
		t.Errorf("body: %q", msg.Body)
	}
	if len(prov.sent) != 0 {
		t.Error("Compose must not deliver")
	}

	_, err = s.Compose(Request{Submission: &submission.Submission{Fields: fields("recipient", "nobody@example.net")}})
	if validate.KindOf(err) != validate.RecipientNotAllowed {
		t.Errorf("Compose with foreign recipient: got %v", err)
	}
}
