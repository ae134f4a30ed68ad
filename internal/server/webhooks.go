package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"pressflow/internal/config"
	"pressflow/internal/domain"
	"pressflow/internal/repo"
	"pressflow/internal/scheduler"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

// WebhookRelay forwards activity log entries to configured hooks. Each hook
// has its own cursor, starting at the newest entry when the relay starts.
type WebhookRelay struct {
	repo     repo.Repo
	webhooks []config.WebhookConfig
	client   *http.Client
	logger   *slog.Logger
	ticker   *scheduler.Ticker
	mu       sync.Mutex
	cursors  map[int]int64
}

func NewWebhookRelay(r repo.Repo, hooks []config.WebhookConfig, logger *slog.Logger) *WebhookRelay {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookRelay{
		repo:     r,
		webhooks: hooks,
		client:   &http.Client{Timeout: defaultWebhookTimeout},
		logger:   logger.With("component", "webhooks"),
		cursors:  make(map[int]int64),
	}
}

// Start polls every interval until ctx ends or Stop is called. It does nothing
// when no hook is enabled.
func (d *WebhookRelay) Start(ctx context.Context, interval time.Duration) {
	if !d.anyEnabled() {
		return
	}
	if interval <= 0 {
		interval = defaultWebhookInterval
	}
	d.mu.Lock()
	if d.ticker == nil {
		d.ticker = scheduler.NewTicker(interval)
	}
	t := d.ticker
	d.mu.Unlock()
	t.Start(ctx, func(ctx context.Context, _ time.Time) {
		d.DeliverPending(ctx)
	})
}

func (d *WebhookRelay) Stop() {
	d.mu.Lock()
	t := d.ticker
	d.mu.Unlock()
	if t != nil {
		t.Stop()
	}
}

func (d *WebhookRelay) anyEnabled() bool {
	for _, hook := range d.webhooks {
		if hook.IsEnabled() && strings.TrimSpace(hook.URL) != "" {
			return true
		}
	}
	return false
}

// DeliverPending makes one delivery pass over every enabled hook.
func (d *WebhookRelay) DeliverPending(ctx context.Context) {
	for i, hook := range d.webhooks {
		if !hook.IsEnabled() {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		d.dispatchWebhook(ctx, i, hook)
	}
}

func (d *WebhookRelay) dispatchWebhook(ctx context.Context, idx int, hook config.WebhookConfig) {
	cursor := d.cursorFor(ctx, idx)
	entries, err := d.repo.ActivityAfter(ctx, defaultWebhookBatch, cursor)
	if err != nil {
		d.logger.Warn("fetch activity failed", "err", err)
		return
	}
	if len(entries) == 0 {
		return
	}
	filter := newEventFilter(hook.Events)
	for _, entry := range entries {
		if !filter.match(entry.Action) {
			d.setCursor(idx, entry.ID)
			continue
		}
		if err := d.postEvent(ctx, hook, entry); err != nil {
			d.logger.Warn("delivery failed", "url", hook.URL, "activity_id", entry.ID, "err", err)
			return
		}
		d.setCursor(idx, entry.ID)
	}
}

func (d *WebhookRelay) cursorFor(ctx context.Context, idx int) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.cursors[idx]; ok {
		return cur
	}
	cur, err := d.repo.LatestActivityID(ctx)
	if err != nil {
		d.logger.Warn("init cursor failed", "err", err)
		cur = 0
	}
	d.cursors[idx] = cur
	return cur
}

func (d *WebhookRelay) setCursor(idx int, value int64) {
	d.mu.Lock()
	d.cursors[idx] = value
	d.mu.Unlock()
}

type webhookEvent struct {
	ID         int64           `json:"id"`
	Action     string          `json:"action"`
	ReleaseID  string          `json:"release_id"`
	ActorID    string          `json:"actor_id"`
	CreatedAt  string          `json:"created_at"`
	Details    json.RawMessage `json:"details"`
	DetailsRaw string          `json:"details_raw,omitempty"`
}

func (d *WebhookRelay) postEvent(ctx context.Context, hook config.WebhookConfig, entry domain.ActivityLogEntry) error {
	details := json.RawMessage([]byte("{}"))
	var raw string
	if entry.Details != "" {
		if json.Valid([]byte(entry.Details)) {
			details = json.RawMessage([]byte(entry.Details))
		} else {
			raw = entry.Details
		}
	}
	body := webhookEvent{
		ID:         entry.ID,
		Action:     entry.Action,
		ReleaseID:  entry.ReleaseRequestID,
		ActorID:    entry.UserID,
		CreatedAt:  entry.CreatedAt,
		Details:    details,
		DetailsRaw: raw,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	timeout := defaultWebhookTimeout
	if hook.TimeoutSeconds > 0 {
		timeout = time.Duration(hook.TimeoutSeconds) * time.Second
	}
	client := d.client
	if timeout != d.client.Timeout {
		client = &http.Client{Timeout: timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Pressflow-Event", entry.Action)
	req.Header.Set("X-Pressflow-Delivery", fmt.Sprintf("%d", entry.ID))
	req.Header.Set("X-Pressflow-Release", entry.ReleaseRequestID)
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Pressflow-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}

// eventFilter matches action names exactly, or by prefix for entries ending in "*".
type eventFilter struct {
	all      bool
	set      map[string]struct{}
	prefixes []string
}

func newEventFilter(events []string) eventFilter {
	if len(events) == 0 {
		return eventFilter{all: true}
	}
	f := eventFilter{set: make(map[string]struct{}, len(events))}
	for _, evt := range events {
		key := strings.TrimSpace(evt)
		switch {
		case key == "":
			continue
		case key == "*":
			return eventFilter{all: true}
		case strings.HasSuffix(key, "*"):
			f.prefixes = append(f.prefixes, strings.TrimSuffix(key, "*"))
		default:
			f.set[key] = struct{}{}
		}
	}
	if len(f.set) == 0 && len(f.prefixes) == 0 {
		return eventFilter{all: true}
	}
	return f
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	if _, ok := f.set[evt]; ok {
		return true
	}
	for _, p := range f.prefixes {
		if strings.HasPrefix(evt, p) {
			return true
		}
	}
	return false
}
