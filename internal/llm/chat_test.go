package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pressflow/internal/domain"
)

func chatServer(t *testing.T, reply string, seen *[]chatMessage) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req struct {
			Model    string        `json:"model"`
			Messages []chatMessage `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		if seen != nil {
			*seen = req.Messages
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": reply}}},
		})
	}))
}

func strPtr(s string) *string { return &s }

func TestGenerateDraftParsesJSON(t *testing.T) {
	var seen []chatMessage
	srv := chatServer(t, "```json\n{\"content\":\"Acme raised $5M.\",\"headlines\":[\"A\",\"B\"]}\n```", &seen)
	defer srv.Close()

	c := NewChatClient(Config{Endpoint: srv.URL, Model: "gpt-test", APIKey: "sk-test"})
	draft, err := c.GenerateDraft(context.Background(), domain.ReleaseRequest{
		CompanyName: "Acme", AnnouncementType: "funding", AnnouncementDetails: "Seed round",
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme raised $5M.", draft.Content)
	assert.Equal(t, []string{"A", "B"}, draft.HeadlineOptions)
	require.Len(t, seen, 2)
	assert.Contains(t, seen[1].Content, "Company: Acme")
}

func TestGenerateDraftFallsBackToPlainText(t *testing.T) {
	srv := chatServer(t, "Just a release body.", nil)
	defer srv.Close()

	c := NewChatClient(Config{Endpoint: srv.URL, Model: "gpt-test", APIKey: "sk-test"})
	draft, err := c.GenerateDraft(context.Background(), domain.ReleaseRequest{CompanyName: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "Just a release body.", draft.Content)
	assert.Empty(t, draft.HeadlineOptions)
}

func TestRewriteSendsDraftAndFeedback(t *testing.T) {
	var seen []chatMessage
	srv := chatServer(t, "Better release.", &seen)
	defer srv.Close()

	c := NewChatClient(Config{Endpoint: srv.URL, Model: "gpt-test", APIKey: "sk-test"})
	out, err := c.Rewrite(context.Background(), domain.ReleaseRequest{
		AIDraftContent: strPtr("Old draft"), PanelFeedback: strPtr("Too long"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Better release.", out)
	assert.True(t, strings.Contains(seen[1].Content, "Old draft") && strings.Contains(seen[1].Content, "Too long"))
}

func TestChatErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewChatClient(Config{Endpoint: srv.URL, Model: "gpt-test", APIKey: "sk-test"})
	_, err := c.Critique(context.Background(), domain.ReleaseRequest{AIDraftContent: strPtr("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")

	_, err = NewChatClient(Config{}).Critique(context.Background(), domain.ReleaseRequest{})
	assert.EqualError(t, err, "chat client misconfigured")
}
