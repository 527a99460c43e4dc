package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Request describes one message for the delivery path. Recipient hints are
// resolved against the user store; template fields resolve through the
// override chain.
type Request struct {
	UserID    string
	ToEmail   string
	FirstName string

	SequenceID      string
	FallbackSubject string
	FallbackHTML    string
	Vars            Vars

	SubjectOverride string
	HTMLOverride    string

	Tags        []string
	ScheduledAt time.Time
	IsTest      bool
}

// DispatchResult is the uniform outcome of one send attempt.
type DispatchResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
	Skipped   bool   `json:"skipped,omitempty"`
}

// Gateway sends one resolved message through the configured provider.
type Gateway interface {
	Send(ctx context.Context, msg Message) DispatchResult
}

// Sender is the delivery path: recipient resolution, template resolution,
// then the provider call.
type Sender struct {
	recipients *RecipientResolver
	templates  *TemplateResolver
	gateway    Gateway
	log        *zap.Logger
}

func NewSender(recipients *RecipientResolver, templates *TemplateResolver, gateway Gateway, log *zap.Logger) *Sender {
	return &Sender{recipients: recipients, templates: templates, gateway: gateway, log: log}
}

// Send resolves and dispatches one message. An unresolvable recipient is a
// skip, never an error; the returned error means a store lookup failed.
func (s *Sender) Send(ctx context.Context, req Request) (DispatchResult, error) {
	rcpt, err := s.recipients.Resolve(ctx, req.UserID, req.ToEmail, req.FirstName)
	if err != nil {
		return DispatchResult{Error: err.Error()}, err
	}
	if rcpt == nil {
		return DispatchResult{Skipped: true}, nil
	}

	vars := req.Vars
	if vars == nil {
		vars = Vars{}
	}
	if _, ok := vars["firstName"]; !ok {
		vars["firstName"] = rcpt.Name
	}

	subject, html := s.templates.Resolve(ctx, req.SequenceID,
		req.FallbackSubject, req.FallbackHTML, vars,
		req.SubjectOverride, req.HTMLOverride)

	tags := append([]string{req.SequenceID}, req.Tags...)
	if req.IsTest {
		tags = append(tags, "test")
	}

	res := s.gateway.Send(ctx, Message{
		ToEmail:     rcpt.Email,
		ToName:      rcpt.Name,
		Subject:     subject,
		HTML:        html,
		Tags:        tags,
		ScheduledAt: req.ScheduledAt,
	})
	if !res.Success {
		s.log.Warn("dispatch failed",
			zap.String("sequence", req.SequenceID),
			zap.String("error", res.Error),
		)
	}
	return res, nil
}
