package server

import (
	"encoding/json"

	"pressflow/internal/domain"
)

// Request payloads

type SubmitReleaseRequest struct {
	ClientID            string `json:"client_id,omitempty"`
	CompanyName         string `json:"company_name"`
	AnnouncementType    string `json:"announcement_type"`
	AnnouncementDetails string `json:"announcement_details"`
	TargetAudience      string `json:"target_audience,omitempty"`
	ContactName         string `json:"contact_name,omitempty"`
	ContactEmail        string `json:"contact_email,omitempty"`
}

type PublishRequest struct {
	FinalContent *string `json:"final_content,omitempty"`
}

type CreateClientRequest struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type GrantAdminRequest struct {
	ActorID string `json:"actor_id"`
}

// Responses

type ActivityResponse struct {
	ID        int64          `json:"id"`
	ReleaseID string         `json:"release_request_id"`
	UserID    string         `json:"user_id"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details"`
	CreatedAt string         `json:"created_at" format:"date-time"`
}

type TransitionsResponse struct {
	ReleaseID string          `json:"release_id"`
	Status    domain.Status   `json:"status"`
	Allowed   []domain.Status `json:"allowed"`
}

type StatsResponse struct {
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

type WhoAmIResponse struct {
	ActorID string      `json:"actor_id"`
	Role    domain.Role `json:"role"`
	Source  string      `json:"source,omitempty"`
}

type paginatedReleases struct {
	Items      []domain.ReleaseRequest `json:"items"`
	NextCursor string                  `json:"next_cursor,omitempty"`
}

type paginatedActivity struct {
	Items      []ActivityResponse `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

type paginatedShowcases struct {
	Items      []domain.ShowcaseRelease `json:"items"`
	NextCursor string                   `json:"next_cursor,omitempty"`
}

func activityResponse(a domain.ActivityLogEntry) ActivityResponse {
	return ActivityResponse{
		ID:        a.ID,
		ReleaseID: a.ReleaseRequestID,
		UserID:    a.UserID,
		Action:    a.Action,
		Details:   decodeJSONMap(a.Details),
		CreatedAt: a.CreatedAt,
	}
}

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]any{"raw": raw}
	}
	return out
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
