package engine

import (
	"fmt"

	"pressflow/internal/domain"
)

// TransitionRule is one legal edge of the release lifecycle.
type TransitionRule struct {
	From  domain.Status
	To    domain.Status
	Roles []domain.Role
}

var adminOnly = []domain.Role{domain.RoleAdmin}

var forwardTransitions = []TransitionRule{
	{From: domain.StatusSubmitted, To: domain.StatusDraftGenerated, Roles: adminOnly},
	{From: domain.StatusDraftGenerated, To: domain.StatusPanelReviewed, Roles: adminOnly},
	// the panel is optional; admins may approve a draft directly
	{From: domain.StatusDraftGenerated, To: domain.StatusAdminApproved, Roles: adminOnly},
	{From: domain.StatusPanelReviewed, To: domain.StatusAdminApproved, Roles: adminOnly},
	{From: domain.StatusAdminApproved, To: domain.StatusAwaitingClient, Roles: adminOnly},
	{From: domain.StatusAwaitingClient, To: domain.StatusClientFeedback, Roles: []domain.Role{domain.RoleClient, domain.RoleAdmin}},
	{From: domain.StatusAwaitingClient, To: domain.StatusClientApproved, Roles: []domain.Role{domain.RoleClient, domain.RoleAdmin}},
	{From: domain.StatusClientFeedback, To: domain.StatusAwaitingClient, Roles: adminOnly},
	{From: domain.StatusClientFeedback, To: domain.StatusAdminApproved, Roles: adminOnly},
	{From: domain.StatusClientApproved, To: domain.StatusFinalPending, Roles: adminOnly},
	{From: domain.StatusClientApproved, To: domain.StatusPublished, Roles: adminOnly},
	{From: domain.StatusFinalPending, To: domain.StatusFinalApproved, Roles: adminOnly},
	{From: domain.StatusFinalApproved, To: domain.StatusQualityReview, Roles: adminOnly},
	{From: domain.StatusQualityReview, To: domain.StatusQualityApproved, Roles: adminOnly},
	{From: domain.StatusQualityApproved, To: domain.StatusPublished, Roles: adminOnly},
}

// resumeTargets are where an admin may send a release out of needs_revision.
var resumeTargets = []domain.Status{
	domain.StatusSubmitted,
	domain.StatusDraftGenerated,
	domain.StatusPanelReviewed,
	domain.StatusAdminApproved,
	domain.StatusAwaitingClient,
	domain.StatusFinalPending,
	domain.StatusFinalApproved,
	domain.StatusQualityReview,
	domain.StatusQualityApproved,
}

// DefaultTransitions is the full lifecycle graph.
var DefaultTransitions = buildTransitions()

func buildTransitions() []TransitionRule {
	rules := append([]TransitionRule(nil), forwardTransitions...)
	for _, s := range domain.AllStatuses {
		if s.Terminal() {
			continue
		}
		if s != domain.StatusNeedsRevision {
			rules = append(rules, TransitionRule{From: s, To: domain.StatusNeedsRevision, Roles: adminOnly})
		}
		rules = append(rules, TransitionRule{From: s, To: domain.StatusRejected, Roles: adminOnly})
	}
	for _, to := range resumeTargets {
		rules = append(rules, TransitionRule{From: domain.StatusNeedsRevision, To: to, Roles: adminOnly})
	}
	return rules
}

type edge struct {
	from, to domain.Status
}

// Policy answers transition questions over a fixed rule table.
type Policy struct {
	rules map[edge][]domain.Role
}

// NewPolicy indexes rules by (from, to).
func NewPolicy(rules []TransitionRule) Policy {
	idx := make(map[edge][]domain.Role, len(rules))
	for _, r := range rules {
		k := edge{r.From, r.To}
		idx[k] = append(idx[k], r.Roles...)
	}
	return Policy{rules: idx}
}

// DefaultPolicy is the policy every engine uses unless told otherwise.
var DefaultPolicy = NewPolicy(DefaultTransitions)

// CanTransition reports whether role may move a release from one status to
// another in a single step. Staying in place is not an edge.
func (p Policy) CanTransition(from, to domain.Status, role domain.Role) bool {
	if from.Terminal() {
		return false
	}
	for _, r := range p.rules[edge{from, to}] {
		if r == role {
			return true
		}
	}
	return false
}

// AllowedTransitions lists the statuses role can reach from from, in narrative order.
func (p Policy) AllowedTransitions(from domain.Status, role domain.Role) []domain.Status {
	var out []domain.Status
	for _, to := range domain.AllStatuses {
		if p.CanTransition(from, to, role) {
			out = append(out, to)
		}
	}
	return out
}

// ValidateTransition returns a *TransitionError when the step is illegal.
func (p Policy) ValidateTransition(from, to domain.Status, role domain.Role) error {
	if p.CanTransition(from, to, role) {
		return nil
	}
	code := "invalid_transition"
	msg := fmt.Sprintf("no transition from %s to %s for %s", from, to, role)
	if from.Terminal() {
		code = "terminal_status"
		msg = fmt.Sprintf("%s is terminal; cannot move to %s", from, to)
	}
	return &TransitionError{Code: code, From: from, To: to, Role: role, Message: msg}
}

// TransitionError is the structured IllegalTransition error.
type TransitionError struct {
	Code    string        `json:"code"`
	From    domain.Status `json:"from"`
	To      domain.Status `json:"to"`
	Role    domain.Role   `json:"role"`
	Message string        `json:"message"`
}

func (e *TransitionError) Error() string {
	return e.Message
}
