package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"pressflow/internal/dispatch"
	"pressflow/internal/domain"
	"pressflow/internal/engine"
)

// Message is the JSON body posted to the mail relay.
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// RelayNotifier sends client email through an HTTP mail relay.
type RelayNotifier struct {
	endpoint  string
	apiKey    string
	from      string
	portalURL string
	client    *http.Client
}

var (
	_ dispatch.Notifier         = (*RelayNotifier)(nil)
	_ engine.OnboardingNotifier = (*RelayNotifier)(nil)
)

type RelayConfig struct {
	Endpoint  string
	APIKey    string
	From      string
	PortalURL string
	Timeout   time.Duration
}

func NewRelayNotifier(cfg RelayConfig) *RelayNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RelayNotifier{
		endpoint:  cfg.Endpoint,
		apiKey:    cfg.APIKey,
		from:      cfg.From,
		portalURL: strings.TrimRight(cfg.PortalURL, "/"),
		client:    &http.Client{Timeout: timeout},
	}
}

func (n *RelayNotifier) NotifyDraftReady(ctx context.Context, c domain.Client, rel domain.ReleaseRequest) error {
	return n.send(ctx, DraftReadyMessage(n.from, n.portalURL, c, rel))
}

func (n *RelayNotifier) NotifyOnboardingNudge(ctx context.Context, c domain.Client) error {
	return n.send(ctx, OnboardingMessage(n.from, n.portalURL, c))
}

func (n *RelayNotifier) send(ctx context.Context, msg Message) error {
	if n.endpoint == "" || n.from == "" || n.client == nil {
		return fmt.Errorf("mail relay misconfigured")
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.apiKey)
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("mail relay error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}
	return nil
}

func DraftReadyMessage(from, portalURL string, c domain.Client, rel domain.ReleaseRequest) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", greetingName(c))
	fmt.Fprintf(&b, "Your press release for %s is ready for review.\n", rel.CompanyName)
	if portalURL != "" {
		fmt.Fprintf(&b, "\nReview it here: %s/releases/%s\n", portalURL, rel.ID)
	}
	b.WriteString("\nReply with feedback or approve it from your dashboard.\n")
	return Message{
		From:    from,
		To:      c.Email,
		Subject: fmt.Sprintf("Your %s press release is ready to review", rel.CompanyName),
		Text:    b.String(),
	}
}

func OnboardingMessage(from, portalURL string, c domain.Client) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", greetingName(c))
	b.WriteString("You signed up but have not submitted your first announcement yet.\n")
	b.WriteString("It takes about five minutes and our team handles the rest.\n")
	if portalURL != "" {
		fmt.Fprintf(&b, "\nStart here: %s/releases/new\n", portalURL)
	}
	return Message{
		From:    from,
		To:      c.Email,
		Subject: "Ready to announce something?",
		Text:    b.String(),
	}
}

func greetingName(c domain.Client) string {
	if strings.TrimSpace(c.Name) != "" {
		return strings.TrimSpace(c.Name)
	}
	return "there"
}

// LogNotifier records messages instead of sending them. It is used when no
// relay is configured.
type LogNotifier struct {
	Logger    *slog.Logger
	From      string
	PortalURL string
}

func (n LogNotifier) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

func (n LogNotifier) NotifyDraftReady(ctx context.Context, c domain.Client, rel domain.ReleaseRequest) error {
	msg := DraftReadyMessage(n.From, n.PortalURL, c, rel)
	n.logger().InfoContext(ctx, "email not sent; relay disabled", "to", msg.To, "subject", msg.Subject, "release_id", rel.ID)
	return nil
}

func (n LogNotifier) NotifyOnboardingNudge(ctx context.Context, c domain.Client) error {
	msg := OnboardingMessage(n.From, n.PortalURL, c)
	n.logger().InfoContext(ctx, "email not sent; relay disabled", "to", msg.To, "subject", msg.Subject, "client_id", c.ID)
	return nil
}
