package auth

import (
	"sort"

	"pressflow/internal/domain"
)

// Field names a writable release column as it appears on the wire.
type Field string

const (
	FieldCompanyName           Field = "company_name"
	FieldAnnouncementType      Field = "announcement_type"
	FieldAnnouncementDetails   Field = "announcement_details"
	FieldTargetAudience        Field = "target_audience"
	FieldContactName           Field = "contact_name"
	FieldContactEmail          Field = "contact_email"
	FieldAIDraftContent        Field = "ai_draft_content"
	FieldAIHeadlineOptions     Field = "ai_headline_options"
	FieldPanelFeedback         Field = "panel_feedback"
	FieldAdminRefinedContent   Field = "admin_refined_content"
	FieldPendingRewriteContent Field = "pending_rewrite_content"
	FieldFinalContent          Field = "final_content"
	FieldHeadline              Field = "headline"
	FieldClientFeedback        Field = "client_feedback"
	FieldAdminNotes            Field = "admin_notes"
	FieldQualityScore          Field = "quality_score"
	FieldStatus                Field = "status"
)

// FieldKind tells the orchestrator how to coerce an incoming value.
type FieldKind int

const (
	// KindText is a nullable string column.
	KindText FieldKind = iota
	// KindRequiredText may be changed but never cleared.
	KindRequiredText
	KindScore
	KindStatus
)

var fieldKinds = map[Field]FieldKind{
	FieldCompanyName:           KindRequiredText,
	FieldAnnouncementType:      KindRequiredText,
	FieldAnnouncementDetails:   KindRequiredText,
	FieldTargetAudience:        KindText,
	FieldContactName:           KindText,
	FieldContactEmail:          KindText,
	FieldAIDraftContent:        KindText,
	FieldAIHeadlineOptions:     KindText,
	FieldPanelFeedback:         KindText,
	FieldAdminRefinedContent:   KindText,
	FieldPendingRewriteContent: KindText,
	FieldFinalContent:          KindText,
	FieldHeadline:              KindText,
	FieldClientFeedback:        KindText,
	FieldAdminNotes:            KindText,
	FieldQualityScore:          KindScore,
	FieldStatus:                KindStatus,
}

// KindOf reports the kind of a known field.
func KindOf(f Field) (FieldKind, bool) {
	k, ok := fieldKinds[f]
	return k, ok
}

// FieldSet is an immutable set of writable fields.
type FieldSet struct {
	m map[Field]struct{}
}

func newFieldSet(fields ...Field) FieldSet {
	m := make(map[Field]struct{}, len(fields))
	for _, f := range fields {
		m[f] = struct{}{}
	}
	return FieldSet{m: m}
}

func (s FieldSet) Has(f Field) bool {
	_, ok := s.m[f]
	return ok
}

func (s FieldSet) Len() int { return len(s.m) }

// Fields returns the members sorted by name.
func (s FieldSet) Fields() []Field {
	out := make([]Field, 0, len(s.m))
	for f := range s.m {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var (
	// ClientWritableFields is what an owning client may send.
	ClientWritableFields = newFieldSet(
		FieldClientFeedback,
		FieldStatus,
	)
	// AdminWritableFields covers every writable column. Review markers and
	// rewrite_used are never directly writable.
	AdminWritableFields = newFieldSet(
		FieldCompanyName,
		FieldAnnouncementType,
		FieldAnnouncementDetails,
		FieldTargetAudience,
		FieldContactName,
		FieldContactEmail,
		FieldAIDraftContent,
		FieldAIHeadlineOptions,
		FieldPanelFeedback,
		FieldAdminRefinedContent,
		FieldPendingRewriteContent,
		FieldFinalContent,
		FieldHeadline,
		FieldClientFeedback,
		FieldAdminNotes,
		FieldQualityScore,
		FieldStatus,
	)
)

// ResolveWritableFields returns the whitelist for a role and ownership.
// A client acting on someone else's release gets ForbiddenError.
func ResolveWritableFields(role domain.Role, isOwner bool) (FieldSet, error) {
	switch role {
	case domain.RoleAdmin:
		return AdminWritableFields, nil
	case domain.RoleClient:
		if !isOwner {
			return FieldSet{}, ForbiddenError{Action: "modify this release"}
		}
		return ClientWritableFields, nil
	}
	return FieldSet{}, ErrUnauthenticated
}

// StatusSet is a set of statuses a role may request.
type StatusSet map[domain.Status]struct{}

func (s StatusSet) Has(st domain.Status) bool {
	_, ok := s[st]
	return ok
}

var clientStatuses = []domain.Status{domain.StatusClientFeedback, domain.StatusClientApproved}

// ResolveAllowedStatuses lists the statuses a role may ever request. Graph
// legality is checked separately by the status policy.
func ResolveAllowedStatuses(role domain.Role) StatusSet {
	out := StatusSet{}
	switch role {
	case domain.RoleAdmin:
		for _, s := range domain.AllStatuses {
			out[s] = struct{}{}
		}
	case domain.RoleClient:
		for _, s := range clientStatuses {
			out[s] = struct{}{}
		}
	}
	return out
}

// RedactForRole hides admin-only fields from client reads.
func RedactForRole(rel domain.ReleaseRequest, role domain.Role) domain.ReleaseRequest {
	if role == domain.RoleAdmin {
		return rel
	}
	rel.AdminNotes = nil
	rel.QualityScore = nil
	return rel
}
