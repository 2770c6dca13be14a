package ses

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/shineum/formmail-lite/internal/email"
	"github.com/shineum/formmail-lite/internal/provider"
)

// mockSESClient implements SendEmailAPI for testing.
type mockSESClient struct {
	sendFn    func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
	callCount int
	lastInput *sesv2.SendEmailInput
}

func (m *mockSESClient) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	m.callCount++
	m.lastInput = params
	if m.sendFn != nil {
		return m.sendFn(ctx, params, optFns...)
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("test-message-id")}, nil
}

func testMessage() *email.Email {
	return &email.Email{
		From:    "support@example.com",
		ReplyTo: "ada@example.org",
		To:      []string{"support@example.com"},
		Subject: "Contact form",
		Headers: []email.Header{
			{Name: "From", Value: "support@example.com"},
			{Name: "Reply-To", Value: "ada@example.org"},
			{Name: "MIME-Version", Value: "1.0"},
			{Name: "Content-Type", Value: "text/html; charset=UTF-8"},
		},
		Body: "\r\n<html>hi</html>\r\n",
	}
}

func TestName(t *testing.T) {
	t.Parallel()
	p := NewWithClient("sender@example.com", &mockSESClient{})
	if got := p.Name(); got != "ses" {
		t.Errorf("Name(): got %q, want %q", got, "ses")
	}
}

func TestSend_RawMessage(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{}
	p := NewWithClient("", mock)

	if err := p.Send(context.Background(), testMessage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.callCount != 1 {
		t.Errorf("call count: got %d, want 1", mock.callCount)
	}

	input := mock.lastInput
	if input.Content.Raw == nil {
		t.Fatal("expected raw content")
	}
	if input.Content.Simple != nil {
		t.Error("expected no simple content")
	}
	if got := *input.FromEmailAddress; got != "support@example.com" {
		t.Errorf("FromEmailAddress: got %q, want message From", got)
	}
	if len(input.Destination.ToAddresses) != 1 || input.Destination.ToAddresses[0] != "support@example.com" {
		t.Errorf("ToAddresses: got %v", input.Destination.ToAddresses)
	}

	raw := string(input.Content.Raw.Data)
	for _, want := range []string{
		"To: support@example.com\r\n",
		"Subject: =?UTF-8?B?",
		"Reply-To: ada@example.org\r\n",
		"<html>hi</html>",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("raw message missing %q", want)
		}
	}
}

func TestSend_SenderOverride(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{}
	p := NewWithClient("verified@example.com", mock)

	if err := p.Send(context.Background(), testMessage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := *mock.lastInput.FromEmailAddress; got != "verified@example.com" {
		t.Errorf("FromEmailAddress: got %q", got)
	}
}

func TestSend_SingleAttemptOnError(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{
		sendFn: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			return nil, errors.New("MessageRejected: Email address is not verified")
		},
	}
	p := NewWithClient("sender@example.com", mock)

	err := p.Send(context.Background(), testMessage())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "not verified") {
		t.Errorf("error should wrap the SES error: %v", err)
	}
	if mock.callCount != 1 {
		t.Errorf("call count: got %d, want 1", mock.callCount)
	}
}

func TestProviderInterface(t *testing.T) {
	t.Parallel()

	var _ provider.Provider = (*SESProvider)(nil)
}
