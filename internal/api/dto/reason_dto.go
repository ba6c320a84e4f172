package dto

import "github.com/spec-kit/guest-requests/internal/domain"

// ReasonResponse is one catalog row offered to clients.
type ReasonResponse struct {
	Code             string            `json:"code"`
	Kind             domain.ReasonKind `json:"kind"`
	Label            string            `json:"label"`
	Icon             string            `json:"icon,omitempty"`
	RequiresComment  bool              `json:"requires_comment"`
	PausesSLA        bool              `json:"pauses_sla,omitempty"`
	RequiresResumeAt bool              `json:"requires_resume_at,omitempty"`
	SortOrder        int               `json:"sort_order"`
}

// UnblockReasonsResponse lists the unblock reasons offered for a block reason.
// When Required is false the ticket may be unblocked without a reason.
type UnblockReasonsResponse struct {
	BlockReason string           `json:"block_reason"`
	Required    bool             `json:"required"`
	Reasons     []ReasonResponse `json:"reasons"`
}

// NewReasonResponses converts catalog rows.
func NewReasonResponses(rows []domain.Reason) []ReasonResponse {
	out := make([]ReasonResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, ReasonResponse{
			Code:             r.Code,
			Kind:             r.Kind,
			Label:            r.Label,
			Icon:             r.Icon,
			RequiresComment:  r.RequiresComment,
			PausesSLA:        r.PausesSLA,
			RequiresResumeAt: r.RequiresResumeAt,
			SortOrder:        r.SortOrder,
		})
	}
	return out
}
