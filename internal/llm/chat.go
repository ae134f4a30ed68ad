package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pressflow/internal/domain"
	"pressflow/internal/engine"
)

// ChatClient drafts, critiques and rewrites releases through an
// OpenAI-compatible chat completions endpoint.
type ChatClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var (
	_ engine.DraftGenerator = (*ChatClient)(nil)
	_ engine.PanelCritic    = (*ChatClient)(nil)
	_ engine.Rewriter       = (*ChatClient)(nil)
)

type Config struct {
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

func NewChatClient(cfg Config) *ChatClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ChatClient{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

const (
	draftPrompt = `You are a senior PR writer. Write a press release from the facts given.
Respond with JSON only: {"content": "<full release text>", "headlines": ["<option>", ...]} with three headline options.`
	panelPrompt = `You are a panel of three business journalists. Critique the draft press release:
what would make you cover it, what would make you skip it, and concrete fixes. Be specific and brief.`
	rewritePrompt = `You are a senior PR writer. Rewrite the press release so it addresses every point of the panel feedback.
Keep all facts accurate. Respond with the rewritten release text only.`
)

func (c *ChatClient) GenerateDraft(ctx context.Context, rel domain.ReleaseRequest) (domain.Draft, error) {
	out, err := c.complete(ctx, draftPrompt, submissionFacts(rel))
	if err != nil {
		return domain.Draft{}, err
	}
	return parseDraft(out), nil
}

func (c *ChatClient) Critique(ctx context.Context, rel domain.ReleaseRequest) (string, error) {
	return c.complete(ctx, panelPrompt, deref(rel.AIDraftContent))
}

func (c *ChatClient) Rewrite(ctx context.Context, rel domain.ReleaseRequest) (string, error) {
	var b strings.Builder
	b.WriteString("DRAFT:\n")
	b.WriteString(deref(rel.AIDraftContent))
	b.WriteString("\n\nPANEL FEEDBACK:\n")
	b.WriteString(deref(rel.PanelFeedback))
	return c.complete(ctx, rewritePrompt, b.String())
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *ChatClient) complete(ctx context.Context, system, user string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("chat client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("chat client misconfigured")
	}
	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chat error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("chat response has no content")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func submissionFacts(rel domain.ReleaseRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s\n", rel.CompanyName)
	fmt.Fprintf(&b, "Announcement type: %s\n", rel.AnnouncementType)
	fmt.Fprintf(&b, "Details: %s\n", rel.AnnouncementDetails)
	if v := deref(rel.TargetAudience); v != "" {
		fmt.Fprintf(&b, "Target audience: %s\n", v)
	}
	if v := deref(rel.ContactName); v != "" {
		fmt.Fprintf(&b, "Media contact: %s %s\n", v, deref(rel.ContactEmail))
	}
	return b.String()
}

// parseDraft accepts the requested JSON shape, optionally fenced, and falls
// back to treating the whole reply as the release text.
func parseDraft(reply string) domain.Draft {
	raw := strings.TrimSpace(reply)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	var parsed struct {
		Content   string   `json:"content"`
		Headlines []string `json:"headlines"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err == nil && strings.TrimSpace(parsed.Content) != "" {
		return domain.Draft{Content: parsed.Content, HeadlineOptions: parsed.Headlines}
	}
	return domain.Draft{Content: reply}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
