package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"pressflow/internal/domain"
	"pressflow/internal/engine"
)

// registerShowcase mounts the public gallery of published releases. No
// credentials are required.
func registerShowcase(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-showcase",
		Method:      http.MethodGet,
		Path:        "/showcase",
		Summary:     "List published releases",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Limit  int    `query:"limit" default:"20"`
		Cursor string `query:"cursor"`
	}) (*struct {
		Body paginatedShowcases `json:"body"`
	}, error) {
		publishedAt, id, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		limit := normalizeLimit(input.Limit)
		items, err := e.Repo.ListShowcases(ctx, limit+1, publishedAt, id)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		resp := paginatedShowcases{Items: []domain.ShowcaseRelease{}}
		if len(items) > limit {
			items = items[:limit]
			last := items[limit-1]
			resp.NextCursor = composeCursor(last.PublishedAt, last.ID)
		}
		resp.Items = append(resp.Items, items...)
		return &struct {
			Body paginatedShowcases `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-showcase",
		Method:      http.MethodGet,
		Path:        "/showcase/{id}",
		Summary:     "Get a published release",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.ShowcaseRelease `json:"body"`
	}, error) {
		s, err := e.Repo.GetShowcase(ctx, input.ID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.ShowcaseRelease `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "record-showcase-engagement",
		Method:      http.MethodPost,
		Path:        "/showcase/{id}/{counter}",
		Summary:     "Count a view, share or click",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID      string `path:"id"`
		Counter string `path:"counter" enum:"view,share,click"`
	}) (*struct {
		Body domain.ShowcaseRelease `json:"body"`
	}, error) {
		s, err := e.RecordShowcaseEngagement(ctx, input.ID, input.Counter)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.ShowcaseRelease `json:"body"`
		}{Body: s}, nil
	})
}
