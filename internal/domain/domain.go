package domain

type ReleaseRequest struct {
	ID       string `json:"id"`
	ClientID string `json:"client_id"`

	CompanyName         string  `json:"company_name"`
	AnnouncementType    string  `json:"announcement_type"`
	AnnouncementDetails string  `json:"announcement_details"`
	TargetAudience      *string `json:"target_audience,omitempty"`
	ContactName         *string `json:"contact_name,omitempty"`
	ContactEmail        *string `json:"contact_email,omitempty"`

	AIDraftContent        *string `json:"ai_draft_content,omitempty"`
	AIHeadlineOptions     *string `json:"ai_headline_options,omitempty"`
	PanelFeedback         *string `json:"panel_feedback,omitempty"`
	AdminRefinedContent   *string `json:"admin_refined_content,omitempty"`
	PendingRewriteContent *string `json:"pending_rewrite_content,omitempty"`
	FinalContent          *string `json:"final_content,omitempty"`
	Headline              *string `json:"headline,omitempty"`
	ClientFeedback        *string `json:"client_feedback,omitempty"`
	AdminNotes            *string `json:"admin_notes,omitempty"`
	QualityScore          *int    `json:"quality_score,omitempty"`

	Status      Status `json:"status" enum:"submitted,draft_generated,panel_reviewed,admin_approved,awaiting_client,client_feedback,client_approved,final_pending,final_approved,quality_review,quality_approved,published,needs_revision,rejected"`
	RewriteUsed bool   `json:"rewrite_used"`

	AdminReviewedBy   *string `json:"admin_reviewed_by,omitempty"`
	AdminReviewedAt   *string `json:"admin_reviewed_at,omitempty" format:"date-time"`
	QualityReviewedBy *string `json:"quality_reviewed_by,omitempty"`
	QualityReviewedAt *string `json:"quality_reviewed_at,omitempty" format:"date-time"`
	ClientFeedbackAt  *string `json:"client_feedback_at,omitempty" format:"date-time"`
	SentToClientAt    *string `json:"sent_to_client_at,omitempty" format:"date-time"`
	PublishedAt       *string `json:"published_at,omitempty" format:"date-time"`

	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

// BestContent returns the most refined body text available.
func (r ReleaseRequest) BestContent() string {
	for _, c := range []*string{r.FinalContent, r.AdminRefinedContent, r.AIDraftContent} {
		if c != nil && *c != "" {
			return *c
		}
	}
	return ""
}

type Client struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	Name      string  `json:"name,omitempty"`
	CreatedAt string  `json:"created_at" format:"date-time"`
	NudgedAt  *string `json:"nudged_at,omitempty" format:"date-time"`
}

// ActivityLogEntry is an append-only audit record for a release.
type ActivityLogEntry struct {
	ID               int64  `json:"id"`
	ReleaseRequestID string `json:"release_request_id"`
	UserID           string `json:"user_id"`
	Action           string `json:"action"`
	Details          string `json:"details"`
	CreatedAt        string `json:"created_at" format:"date-time"`
}

type ShowcaseRelease struct {
	ID               string `json:"id"`
	ReleaseRequestID string `json:"release_request_id"`
	CompanyName      string `json:"company_name"`
	Headline         string `json:"headline"`
	Summary          string `json:"summary"`
	Content          string `json:"content"`
	ViewCount        int64  `json:"view_count"`
	ShareCount       int64  `json:"share_count"`
	ClickCount       int64  `json:"click_count"`
	PublishedAt      string `json:"published_at" format:"date-time"`
	CreatedAt        string `json:"created_at" format:"date-time"`
}

type Admin struct {
	ActorID   string `json:"actor_id"`
	GrantedBy string `json:"granted_by"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Role      Role   `json:"role" enum:"client,admin"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"-"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Draft is the output of draft generation.
type Draft struct {
	Content         string   `json:"content"`
	HeadlineOptions []string `json:"headline_options"`
}
