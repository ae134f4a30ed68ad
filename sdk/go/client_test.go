package pressflowsdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendsCredentialsAndDecodes(t *testing.T) {
	var gotAuth, gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(PaginatedReleases{
			Items:      []Release{{ID: "r1", Status: "submitted"}},
			NextCursor: "2026-01-01T00:00:00Z|r1",
		})
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	c.BearerToken = "tok"
	page, err := c.ListReleases(context.Background(), ListOptions{Status: "submitted", Limit: 1})
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "/v0/releases", gotPath)
	assert.Equal(t, "limit=1&status=submitted", gotQuery)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "r1", page.Items[0].ID)
	assert.Equal(t, "2026-01-01T00:00:00Z|r1", page.NextCursor)
}

func TestUpdateReleaseSendsChanges(t *testing.T) {
	var got map[string]any
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(Release{ID: "r1", Status: "admin_approved"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.APIKey = "pk_test"
	rel, err := c.UpdateRelease(context.Background(), "r1", map[string]any{"status": "admin_approved", "admin_notes": nil})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPatch, method)
	assert.Equal(t, "admin_approved", got["status"])
	v, ok := got["admin_notes"]
	assert.True(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, "admin_approved", rel.Status)
}

func TestAPIErrorDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"code":"rewrite_already_used","message":"rewrite already used"}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).RequestRewrite(context.Background(), "r1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "rewrite_already_used", apiErr.Code)
	assert.False(t, apiErr.Retryable())
}

func TestPublishOmitsEmptyContent(t *testing.T) {
	var raw []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		raw, _ = json.Marshal(body)
		_ = json.NewEncoder(w).Encode(Release{ID: "r1", Status: "published"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.BasePath = ""
	rel, err := c.Publish(context.Background(), "r1", "")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw))
	assert.Equal(t, "published", rel.Status)
}
