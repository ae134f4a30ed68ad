package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"pressflow/internal/domain"
	"pressflow/internal/engine"
	"pressflow/internal/repo"
)

type releasePath struct {
	ID string `path:"id"`
}

type releaseBody struct {
	Body domain.ReleaseRequest `json:"body"`
}

func registerReleases(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-releases",
		Method:      http.MethodGet,
		Path:        "/releases",
		Summary:     "List releases",
		Description: "Clients only see their own releases.",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Status   string `query:"status"`
		ClientID string `query:"client_id"`
		Limit    int    `query:"limit" default:"50"`
		Cursor   string `query:"cursor"`
	}) (*struct {
		Body paginatedReleases `json:"body"`
	}, error) {
		f := repo.ReleaseFilters{ClientID: input.ClientID}
		if input.Status != "" {
			st, err := domain.ParseStatus(input.Status)
			if err != nil {
				return nil, handleError(ctx, err)
			}
			f.Status = st
		}
		createdAt, id, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		limit := normalizeLimit(input.Limit)
		f.Limit = limit + 1
		f.CursorCreatedAt, f.CursorID = createdAt, id
		items, err := e.ListReleases(ctx, actorFromContext(ctx), f)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		resp := paginatedReleases{Items: []domain.ReleaseRequest{}}
		if len(items) > limit {
			items = items[:limit]
			last := items[limit-1]
			resp.NextCursor = composeCursor(last.CreatedAt, last.ID)
		}
		resp.Items = append(resp.Items, items...)
		return &struct {
			Body paginatedReleases `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "submit-release",
		Method:        http.MethodPost,
		Path:          "/releases",
		Summary:       "Submit a release request",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body SubmitReleaseRequest `json:"body"`
	}) (*releaseBody, error) {
		rel, err := e.SubmitRelease(ctx, actorFromContext(ctx), engine.SubmitOptions{
			ClientID:            input.Body.ClientID,
			CompanyName:         input.Body.CompanyName,
			AnnouncementType:    input.Body.AnnouncementType,
			AnnouncementDetails: input.Body.AnnouncementDetails,
			TargetAudience:      input.Body.TargetAudience,
			ContactName:         input.Body.ContactName,
			ContactEmail:        input.Body.ContactEmail,
		})
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &releaseBody{Body: rel}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-release",
		Method:      http.MethodGet,
		Path:        "/releases/{id}",
		Summary:     "Get release",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *releasePath) (*releaseBody, error) {
		rel, err := e.GetRelease(ctx, input.ID, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &releaseBody{Body: rel}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-release",
		Method:      http.MethodPatch,
		Path:        "/releases/{id}",
		Summary:     "Update release fields and status",
		Description: "Fields the caller may not write are ignored. A request where nothing survives filtering fails with no_valid_fields.",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   string         `path:"id"`
		Body map[string]any `json:"body"`
	}) (*releaseBody, error) {
		rel, err := e.ApplyTransition(ctx, input.ID, actorFromContext(ctx), input.Body)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &releaseBody{Body: rel}, nil
	})
}

func registerReleaseActions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "publish-release",
		Method:      http.MethodPost,
		Path:        "/releases/{id}/publish",
		Summary:     "Publish a release",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   string          `path:"id"`
		Body *PublishRequest `json:"body,omitempty" required:"false"`
	}) (*releaseBody, error) {
		var final *string
		if input.Body != nil {
			final = input.Body.FinalContent
		}
		rel, err := e.Publish(ctx, input.ID, actorFromContext(ctx), final)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &releaseBody{Body: rel}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "request-rewrite",
		Method:      http.MethodPost,
		Path:        "/releases/{id}/request-rewrite",
		Summary:     "Spend the one-time panel rewrite",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
			http.StatusServiceUnavailable,
		},
	}, func(ctx context.Context, input *releasePath) (*releaseBody, error) {
		rel, err := e.RequestPanelRewrite(ctx, input.ID, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &releaseBody{Body: rel}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "generate-draft",
		Method:      http.MethodPost,
		Path:        "/releases/{id}/generate-draft",
		Summary:     "Generate the AI draft",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
			http.StatusServiceUnavailable,
		},
	}, func(ctx context.Context, input *releasePath) (*releaseBody, error) {
		rel, err := e.GenerateDraft(ctx, input.ID, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &releaseBody{Body: rel}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "panel-critique",
		Method:      http.MethodPost,
		Path:        "/releases/{id}/panel-critique",
		Summary:     "Run the review panel critique",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
			http.StatusServiceUnavailable,
		},
	}, func(ctx context.Context, input *releasePath) (*releaseBody, error) {
		rel, err := e.RunPanelCritique(ctx, input.ID, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &releaseBody{Body: rel}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-transitions",
		Method:      http.MethodGet,
		Path:        "/releases/{id}/transitions",
		Summary:     "Statuses the caller may move the release to",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *releasePath) (*struct {
		Body TransitionsResponse `json:"body"`
	}, error) {
		rel, allowed, err := e.NextStatuses(ctx, input.ID, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body TransitionsResponse `json:"body"`
		}{Body: TransitionsResponse{ReleaseID: rel.ID, Status: rel.Status, Allowed: nonNilSlice(allowed)}}, nil
	})
}

func registerActivity(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-activity",
		Method:      http.MethodGet,
		Path:        "/releases/{id}/activity",
		Summary:     "Release activity log",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID     string `path:"id"`
		Limit  int    `query:"limit" default:"50"`
		Cursor string `query:"cursor"`
	}) (*struct {
		Body paginatedActivity `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := e.ListActivity(ctx, input.ID, actorFromContext(ctx), cursorID, limit+1)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		resp := paginatedActivity{Items: []ActivityResponse{}}
		if len(items) > limit {
			items = items[:limit]
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
		}
		for _, a := range items {
			resp.Items = append(resp.Items, activityResponse(a))
		}
		return &struct {
			Body paginatedActivity `json:"body"`
		}{Body: resp}, nil
	})
}

func registerStats(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "release-stats",
		Method:      http.MethodGet,
		Path:        "/stats",
		Summary:     "Release counts by status",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body StatsResponse `json:"body"`
	}, error) {
		counts, err := e.ReleaseCounts(ctx, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(ctx, err)
		}
		total := 0
		for _, n := range counts {
			total += n
		}
		return &struct {
			Body StatsResponse `json:"body"`
		}{Body: StatsResponse{Counts: counts, Total: total}}, nil
	})
}
