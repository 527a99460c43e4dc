package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Message is one fully resolved outbound email.
type Message struct {
	ToEmail     string
	ToName      string
	Subject     string
	HTML        string
	Tags        []string
	ScheduledAt time.Time
}

// GatewayConfig carries provider credentials and sender identity.
type GatewayConfig struct {
	APIKey      string
	BaseURL     string
	SenderEmail string
	SenderName  string
	ReplyTo     string
	Timeout     time.Duration
}

// BrevoGateway sends transactional email through the Brevo SMTP API. Provider
// misconfiguration surfaces as a clean failure result, never a crash.
type BrevoGateway struct {
	cfg    GatewayConfig
	client *http.Client
}

func NewBrevoGateway(cfg GatewayConfig) *BrevoGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BrevoGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type brevoResponse struct {
	MessageID string `json:"messageId"`
}

// Send posts one message. Any transport or provider error is folded into the
// DispatchResult; callers never see a panic or a Go error from here.
func (g *BrevoGateway) Send(ctx context.Context, msg Message) DispatchResult {
	if g.cfg.APIKey == "" || g.cfg.SenderEmail == "" {
		return DispatchResult{Error: "email provider is not configured"}
	}
	if msg.ToEmail == "" {
		return DispatchResult{Error: "missing recipient address"}
	}

	payload := map[string]any{
		"sender":      map[string]string{"email": g.cfg.SenderEmail, "name": g.cfg.SenderName},
		"to":          []map[string]string{{"email": msg.ToEmail, "name": msg.ToName}},
		"subject":     msg.Subject,
		"htmlContent": msg.HTML,
	}
	if g.cfg.ReplyTo != "" {
		payload["replyTo"] = map[string]string{"email": g.cfg.ReplyTo}
	}
	if tags := filterTags(msg.Tags); len(tags) > 0 {
		payload["tags"] = tags
	}
	if !msg.ScheduledAt.IsZero() && msg.ScheduledAt.After(time.Now()) {
		payload["scheduledAt"] = msg.ScheduledAt.UTC().Format(time.RFC3339)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return DispatchResult{Error: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.cfg.BaseURL+"/v3/smtp/email", bytes.NewReader(body))
	if err != nil {
		return DispatchResult{Error: err.Error()}
	}
	req.Header.Set("api-key", g.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return DispatchResult{Error: err.Error()}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text := strings.TrimSpace(string(raw))
		if text == "" {
			text = resp.Status
		}
		return DispatchResult{Error: fmt.Sprintf("provider returned %d: %s", resp.StatusCode, text)}
	}

	var out brevoResponse
	_ = json.Unmarshal(raw, &out)
	return DispatchResult{Success: true, MessageID: out.MessageID}
}

// filterTags drops empty entries before the provider call.
func filterTags(tags []string) []string {
	out := tags[:0:0]
	for _, t := range tags {
		if strings.TrimSpace(t) != "" {
			out = append(out, t)
		}
	}
	return out
}
