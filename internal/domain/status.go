package domain

import "fmt"

// Status is the lifecycle position of a release request.
type Status string

const (
	StatusSubmitted       Status = "submitted"
	StatusDraftGenerated  Status = "draft_generated"
	StatusPanelReviewed   Status = "panel_reviewed"
	StatusAdminApproved   Status = "admin_approved"
	StatusAwaitingClient  Status = "awaiting_client"
	StatusClientFeedback  Status = "client_feedback"
	StatusClientApproved  Status = "client_approved"
	StatusFinalPending    Status = "final_pending"
	StatusFinalApproved   Status = "final_approved"
	StatusQualityReview   Status = "quality_review"
	StatusQualityApproved Status = "quality_approved"
	StatusPublished       Status = "published"
	StatusNeedsRevision   Status = "needs_revision"
	StatusRejected        Status = "rejected"
)

// AllStatuses lists every status in narrative order.
var AllStatuses = []Status{
	StatusSubmitted,
	StatusDraftGenerated,
	StatusPanelReviewed,
	StatusAdminApproved,
	StatusAwaitingClient,
	StatusClientFeedback,
	StatusClientApproved,
	StatusFinalPending,
	StatusFinalApproved,
	StatusQualityReview,
	StatusQualityApproved,
	StatusPublished,
	StatusNeedsRevision,
	StatusRejected,
}

// InvalidStatusError reports a value outside the closed status set.
type InvalidStatusError struct {
	Value string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid status %q", e.Value)
}

// ParseStatus rejects anything that is not one of the known statuses.
func ParseStatus(v string) (Status, error) {
	for _, s := range AllStatuses {
		if string(s) == v {
			return s, nil
		}
	}
	return "", &InvalidStatusError{Value: v}
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusPublished || s == StatusRejected
}

func (s Status) String() string { return string(s) }

// Role is the caller's standing toward a release.
type Role string

const (
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
)

func ParseRole(v string) (Role, error) {
	switch Role(v) {
	case RoleClient, RoleAdmin:
		return Role(v), nil
	}
	return "", fmt.Errorf("invalid role %q", v)
}
