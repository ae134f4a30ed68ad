package pressflowsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal Pressflow HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

// Release is the API release model. Optional text fields are empty when unset.
type Release struct {
	ID                  string `json:"id"`
	ClientID            string `json:"client_id"`
	CompanyName         string `json:"company_name"`
	AnnouncementType    string `json:"announcement_type"`
	AnnouncementDetails string `json:"announcement_details"`
	AIDraftContent      string `json:"ai_draft_content,omitempty"`
	PanelFeedback       string `json:"panel_feedback,omitempty"`
	FinalContent        string `json:"final_content,omitempty"`
	Headline            string `json:"headline,omitempty"`
	ClientFeedback      string `json:"client_feedback,omitempty"`
	QualityScore        *int   `json:"quality_score,omitempty"`
	Status              string `json:"status"`
	RewriteUsed         bool   `json:"rewrite_used"`
	SentToClientAt      string `json:"sent_to_client_at,omitempty"`
	PublishedAt         string `json:"published_at,omitempty"`
	CreatedAt           string `json:"created_at"`
	UpdatedAt           string `json:"updated_at"`
}

// Submission carries the fields of a new release request.
type Submission struct {
	ClientID            string `json:"client_id,omitempty"`
	CompanyName         string `json:"company_name"`
	AnnouncementType    string `json:"announcement_type"`
	AnnouncementDetails string `json:"announcement_details"`
	TargetAudience      string `json:"target_audience,omitempty"`
	ContactName         string `json:"contact_name,omitempty"`
	ContactEmail        string `json:"contact_email,omitempty"`
}

// Showcase is a published release on the public showcase.
type Showcase struct {
	ID               string `json:"id"`
	ReleaseRequestID string `json:"release_request_id"`
	CompanyName      string `json:"company_name"`
	Headline         string `json:"headline"`
	Summary          string `json:"summary"`
	Content          string `json:"content"`
	ViewCount        int64  `json:"view_count"`
	ShareCount       int64  `json:"share_count"`
	ClickCount       int64  `json:"click_count"`
	PublishedAt      string `json:"published_at"`
}

// Me describes the authenticated caller.
type Me struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role"`
	Source  string `json:"source,omitempty"`
}

// PaginatedReleases wraps list responses with cursors.
type PaginatedReleases struct {
	Items      []Release `json:"items"`
	NextCursor string    `json:"next_cursor"`
}

// PaginatedShowcases wraps showcase listings.
type PaginatedShowcases struct {
	Items      []Showcase `json:"items"`
	NextCursor string     `json:"next_cursor"`
}

// ListOptions filters release listings.
type ListOptions struct {
	Status   string
	ClientID string
	Limit    int
	Cursor   string
}

// APIError wraps non-2xx responses. Code is the error code from the response
// envelope when one could be decoded.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Retryable reports whether the server marked the failure as safe to retry.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusConflict && e.Code == "conflict" || e.StatusCode == http.StatusServiceUnavailable
}

// SubmitRelease creates a release request.
func (c *Client) SubmitRelease(ctx context.Context, s Submission) (Release, error) {
	var resp Release
	err := c.do(ctx, http.MethodPost, "releases", s, &resp)
	return resp, err
}

// ListReleases returns one page of releases, newest first.
func (c *Client) ListReleases(ctx context.Context, opts ListOptions) (PaginatedReleases, error) {
	q := url.Values{}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.ClientID != "" {
		q.Set("client_id", opts.ClientID)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		q.Set("cursor", opts.Cursor)
	}
	endpoint := "releases"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedReleases
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetRelease fetches a release by id.
func (c *Client) GetRelease(ctx context.Context, id string) (Release, error) {
	var resp Release
	err := c.do(ctx, http.MethodGet, "releases/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// UpdateRelease sends a partial update. A nil value clears the field; a
// "status" key requests a transition.
func (c *Client) UpdateRelease(ctx context.Context, id string, changes map[string]any) (Release, error) {
	var resp Release
	err := c.do(ctx, http.MethodPatch, "releases/"+url.PathEscape(id), changes, &resp)
	return resp, err
}

// SetStatus is UpdateRelease with only a status change.
func (c *Client) SetStatus(ctx context.Context, id, status string) (Release, error) {
	return c.UpdateRelease(ctx, id, map[string]any{"status": status})
}

// Publish publishes a release. An empty finalContent keeps the stored content.
func (c *Client) Publish(ctx context.Context, id, finalContent string) (Release, error) {
	body := map[string]any{}
	if finalContent != "" {
		body["final_content"] = finalContent
	}
	var resp Release
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("releases/%s/publish", url.PathEscape(id)), body, &resp)
	return resp, err
}

// RequestRewrite spends the release's one panel rewrite.
func (c *Client) RequestRewrite(ctx context.Context, id string) (Release, error) {
	var resp Release
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("releases/%s/request-rewrite", url.PathEscape(id)), nil, &resp)
	return resp, err
}

// Me returns the authenticated caller.
func (c *Client) Me(ctx context.Context) (Me, error) {
	var resp Me
	err := c.do(ctx, http.MethodGet, "me", nil, &resp)
	return resp, err
}

// Showcase returns one page of the public showcase.
func (c *Client) Showcase(ctx context.Context, limit int, cursor string) (PaginatedShowcases, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "showcase"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedShowcases
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return decodeAPIError(resp.StatusCode, b)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
