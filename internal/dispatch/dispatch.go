package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"pressflow/internal/domain"
)

// SummaryLength is the number of characters kept in a showcase summary.
const SummaryLength = 200

// Notifier delivers client-facing messages.
type Notifier interface {
	NotifyDraftReady(ctx context.Context, client domain.Client, rel domain.ReleaseRequest) error
}

type ShowcaseStore interface {
	CreateShowcaseIfAbsent(ctx context.Context, s domain.ShowcaseRelease) (bool, error)
}

type ClientDirectory interface {
	GetClient(ctx context.Context, id string) (domain.Client, error)
}

// Dispatcher runs the side effects of committed status changes. Every effect
// is independent and failures are only logged.
type Dispatcher struct {
	Notifier  Notifier
	Showcases ShowcaseStore
	Clients   ClientDirectory
	Logger    *slog.Logger
	Timeout   time.Duration
	Now       func() time.Time
}

func (d Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// effectContext detaches from the request so a client disconnect does not
// abort work for a change that already committed.
func (d Dispatcher) effectContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

func (d Dispatcher) OnTransition(ctx context.Context, rel domain.ReleaseRequest, from, to domain.Status) {
	log := d.logger().With("release_id", rel.ID, "from", from, "to", to)
	switch to {
	case domain.StatusAwaitingClient:
		if err := d.sendDraftReady(ctx, rel); err != nil {
			log.Error("draft ready notification failed", "err", err)
			return
		}
		log.Info("draft ready notification sent")
	case domain.StatusPublished:
		created, err := d.createShowcase(ctx, rel)
		if err != nil {
			log.Error("showcase creation failed", "err", err)
			return
		}
		log.Info("release published", "showcase_created", created)
	case domain.StatusClientFeedback:
		log.Info("client feedback received")
	case domain.StatusRejected:
		log.Info("release rejected")
	default:
		log.Debug("status changed")
	}
}

func (d Dispatcher) sendDraftReady(ctx context.Context, rel domain.ReleaseRequest) error {
	if d.Notifier == nil || d.Clients == nil {
		return fmt.Errorf("notifier not configured")
	}
	ctx, cancel := d.effectContext(ctx)
	defer cancel()
	client, err := d.Clients.GetClient(ctx, rel.ClientID)
	if err != nil {
		return fmt.Errorf("load client %s: %w", rel.ClientID, err)
	}
	if strings.TrimSpace(client.Email) == "" {
		return fmt.Errorf("client %s has no email", client.ID)
	}
	return d.Notifier.NotifyDraftReady(ctx, client, rel)
}

func (d Dispatcher) createShowcase(ctx context.Context, rel domain.ReleaseRequest) (bool, error) {
	if d.Showcases == nil {
		return false, fmt.Errorf("showcase store not configured")
	}
	ctx, cancel := d.effectContext(ctx)
	defer cancel()
	return d.Showcases.CreateShowcaseIfAbsent(ctx, BuildShowcase(rel, d.now()))
}

// BuildShowcase derives the public projection of a published release.
func BuildShowcase(rel domain.ReleaseRequest, now time.Time) domain.ShowcaseRelease {
	ts := now.UTC().Format(time.RFC3339)
	published := ts
	if rel.PublishedAt != nil && *rel.PublishedAt != "" {
		published = *rel.PublishedAt
	}
	content := rel.BestContent()
	return domain.ShowcaseRelease{
		ID:               uuid.NewString(),
		ReleaseRequestID: rel.ID,
		CompanyName:      rel.CompanyName,
		Headline:         Headline(rel),
		Summary:          Summarize(content, SummaryLength),
		Content:          content,
		PublishedAt:      published,
		CreatedAt:        ts,
	}
}

// Headline picks the chosen headline, falling back to a generated one.
func Headline(rel domain.ReleaseRequest) string {
	if rel.Headline != nil && strings.TrimSpace(*rel.Headline) != "" {
		return strings.TrimSpace(*rel.Headline)
	}
	return fmt.Sprintf("%s announces %s", rel.CompanyName, rel.AnnouncementType)
}

// Summarize reduces content to plain text and keeps the first n characters,
// appending "..." when something was cut.
func Summarize(content string, n int) string {
	text := PlainText(content)
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n]) + "..."
}

// PlainText strips markup and collapses whitespace.
func PlainText(content string) string {
	text := content
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(content)); err == nil {
		text = doc.Text()
	}
	return strings.Join(strings.Fields(text), " ")
}
