package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"pressflow/internal/domain"
	"pressflow/internal/engine"
)

func registerClients(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-client",
		Method:        http.MethodPost,
		Path:          "/clients",
		Summary:       "Register a client",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateClientRequest `json:"body"`
	}) (*struct {
		Body domain.Client `json:"body"`
	}, error) {
		c, err := e.CreateClient(ctx, actorFromContext(ctx), engine.ClientOptions{
			ID:    input.Body.ID,
			Email: input.Body.Email,
			Name:  input.Body.Name,
		})
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.Client `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-clients",
		Method:      http.MethodGet,
		Path:        "/clients",
		Summary:     "List clients",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Client `json:"body"`
	}, error) {
		items, err := e.ListClients(ctx, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body []domain.Client `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-client",
		Method:      http.MethodGet,
		Path:        "/clients/{id}",
		Summary:     "Get client",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Client `json:"body"`
	}, error) {
		c, err := e.GetClient(ctx, actorFromContext(ctx), input.ID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.Client `json:"body"`
		}{Body: c}, nil
	})
}

func registerAdmins(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-admins",
		Method:      http.MethodGet,
		Path:        "/admins",
		Summary:     "List admins",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Admin `json:"body"`
	}, error) {
		items, err := e.ListAdmins(ctx, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body []domain.Admin `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "grant-admin",
		Method:        http.MethodPost,
		Path:          "/admins",
		Summary:       "Grant the admin role",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body GrantAdminRequest `json:"body"`
	}) (*struct{}, error) {
		if input.Body.ActorID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		if err := e.GrantAdmin(ctx, actorFromContext(ctx), input.Body.ActorID); err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "revoke-admin",
		Method:        http.MethodDelete,
		Path:          "/admins/{actor_id}",
		Summary:       "Revoke the admin role",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ActorID string `path:"actor_id"`
	}) (*struct{}, error) {
		if err := e.RevokeAdmin(ctx, actorFromContext(ctx), input.ActorID); err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct{}{}, nil
	})
}

func registerMe(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors: []int{
			http.StatusUnauthorized,
		},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body WhoAmIResponse `json:"body"`
	}, error) {
		actor := actorFromContext(ctx)
		if !actor.Authenticated() {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		return &struct {
			Body WhoAmIResponse `json:"body"`
		}{Body: WhoAmIResponse{
			ActorID: actor.ID,
			Role:    actor.Role,
			Source:  actor.Source,
		}}, nil
	})
}
