// Package formmail runs a form submission through validation, rendering,
// envelope construction and delivery.
package formmail

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/shineum/formmail-lite/internal/address"
	"github.com/shineum/formmail-lite/internal/email"
	"github.com/shineum/formmail-lite/internal/envelope"
	"github.com/shineum/formmail-lite/internal/form"
	"github.com/shineum/formmail-lite/internal/htmlbody"
	"github.com/shineum/formmail-lite/internal/provider"
	"github.com/shineum/formmail-lite/internal/submission"
	"github.com/shineum/formmail-lite/internal/validate"
)

// Config holds the composition settings of a Service.
type Config struct {
	// Banner is the text shown above the field table.
	Banner string
	// From is the sender address. Empty means the recipient sends to itself.
	From string
	// DefaultRecipient is used when the form names no recipient.
	DefaultRecipient string
	// DefaultSubject is used when the form sends no subject.
	DefaultSubject string
	// InternalFields are never rendered. Nil means form.DefaultInternalFields.
	InternalFields []string
	// SkipEmpty drops fields with empty values from the message.
	SkipEmpty bool
	// WrapThreshold is the label/value length that switches the table layout.
	WrapThreshold int
	// DebugToken, when set, unlocks debug output for requests carrying it.
	DebugToken string
}

// Request is one submission together with its transport metadata.
type Request struct {
	// ID correlates log lines of one request.
	ID          string
	Method      string
	Identity    string
	DebugHeader string
	Submission  *submission.Submission
}

// Response is the JSON body returned to the caller.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Debug   string `json:"debug,omitempty"`
}

// Outcome is a Response and the HTTP status it is sent with.
type Outcome struct {
	Response   Response
	StatusCode int
}

// Service processes submissions. It is safe for concurrent use.
type Service struct {
	cfg       Config
	validator *validate.Validator
	extractor *form.Extractor
	body      *htmlbody.Builder
	envelope  *envelope.Builder
	provider  provider.Provider
}

// New creates a Service delivering through p.
func New(cfg Config, v *validate.Validator, env *envelope.Builder, p provider.Provider) *Service {
	if cfg.InternalFields == nil {
		cfg.InternalFields = form.DefaultInternalFields
	}
	return &Service{
		cfg:       cfg,
		validator: v,
		extractor: form.NewExtractor(cfg.InternalFields, cfg.SkipEmpty),
		body:      htmlbody.NewBuilder(cfg.WrapThreshold),
		envelope:  env,
		provider:  p,
	}
}

// Process validates and delivers req. Validation failures are answered with
// status 200 and success=false; delivery failures with status 500.
func (s *Service) Process(ctx context.Context, req Request) Outcome {
	start := time.Now()
	sub := submissionOf(req)
	recipient := s.Recipient(sub)

	logger := slog.With("request_id", req.ID, "recipient", recipient)

	if err := s.validator.Check(req.Identity, req.Method, recipient); err != nil {
		logger.Info("submission rejected", "kind", validate.KindOf(err).String(), "error", err)
		return reject(err)
	}

	msg, err := s.compose(sub, recipient)
	if err != nil {
		logger.Warn("failed to compose message", "error", err)
		return s.deliveryFailure(req, err)
	}

	if err := s.provider.Send(ctx, msg); err != nil {
		logger.Error("failed to deliver message",
			"provider", s.provider.Name(),
			"error", err,
			"duration", time.Since(start),
		)
		return s.deliveryFailure(req, err)
	}

	logger.Info("message delivered",
		"provider", s.provider.Name(),
		"fields", len(sub.Fields),
		"attachments", len(msg.Attachments),
		"duration", time.Since(start),
	)
	return Outcome{Response: Response{Success: true}, StatusCode: http.StatusOK}
}

// Compose builds the message req would deliver without sending it. Only the
// recipient is validated; requester and method checks are skipped.
func (s *Service) Compose(req Request) (*email.Email, error) {
	sub := submissionOf(req)
	recipient := s.Recipient(sub)
	if err := s.validator.ValidateRecipient(recipient); err != nil {
		return nil, err
	}
	return s.compose(sub, recipient)
}

// Recipient returns the form's recipient field, or the configured default.
func (s *Service) Recipient(sub *submission.Submission) string {
	if r := strings.TrimSpace(sub.Value(form.FieldRecipient)); r != "" {
		return r
	}
	return s.cfg.DefaultRecipient
}

// Sender returns the From address for a message to recipient.
func (s *Service) Sender(recipient string) string {
	if s.cfg.From != "" {
		return s.cfg.From
	}
	return recipient
}

// ReplyTo picks the address replies should go to: the replyto field when it
// is a valid address, else the first visible field value that is one, else from.
func (s *Service) ReplyTo(sub *submission.Submission, from string) string {
	if v := strings.TrimSpace(sub.Value(form.FieldReplyTo)); v != "" && address.IsValid(v, true) {
		return v
	}

	f, ok := lo.Find(sub.Fields, func(f submission.Field) bool {
		return !s.extractor.IsInternal(f.Key) && f.Value != "" && address.IsValid(strings.TrimSpace(f.Value), true)
	})
	if ok {
		return strings.TrimSpace(f.Value)
	}
	return from
}

// Subject returns the subject field, or the configured default.
func (s *Service) Subject(sub *submission.Submission) string {
	if v := sub.Value(form.FieldSubject); v != "" {
		return v
	}
	return s.cfg.DefaultSubject
}

// HTML renders the message body of sub.
func (s *Service) HTML(sub *submission.Submission) string {
	labels := form.ParseLabelManifest(sub.Value(form.FieldLabels))
	types := form.ParseTypeManifest(sub.Value(form.FieldTypeMappings))
	rows := s.extractor.Extract(sub.Fields, labels)
	return s.body.Document(s.cfg.Banner, rows, types)
}

func (s *Service) compose(sub *submission.Submission, recipient string) (*email.Email, error) {
	from := s.Sender(recipient)

	for _, u := range sub.Uploads {
		if !u.OK() {
			slog.Debug("skipping upload", "name", u.Name, "status", u.Status.String())
		}
	}

	return s.envelope.Build(envelope.Input{
		From:    from,
		ReplyTo: s.ReplyTo(sub, from),
		To:      recipient,
		Subject: s.Subject(sub),
		HTML:    s.HTML(sub),
		Uploads: sub.Uploads,
	})
}

func (s *Service) deliveryFailure(req Request, cause error) Outcome {
	err := validate.Wrap(validate.DeliveryFailure, validate.MsgDeliveryFailure, cause)
	resp := Response{Error: err.Message}
	if s.debugAllowed(req) {
		resp.Debug = "Message: " + cause.Error()
	}
	return Outcome{Response: resp, StatusCode: err.Kind.StatusCode()}
}

// debugAllowed reports whether diagnostics may be returned to the requester.
func (s *Service) debugAllowed(req Request) bool {
	if s.validator.IsTrustedRequester(req.Identity) {
		return true
	}
	return s.cfg.DebugToken != "" && req.DebugHeader == s.cfg.DebugToken
}

func reject(err error) Outcome {
	msg := err.Error()
	var verr *validate.Error
	if errors.As(err, &verr) {
		msg = verr.Message
	}
	return Outcome{
		Response:   Response{Error: msg},
		StatusCode: validate.KindOf(err).StatusCode(),
	}
}

func submissionOf(req Request) *submission.Submission {
	if req.Submission == nil {
		return &submission.Submission{}
	}
	return req.Submission
}
