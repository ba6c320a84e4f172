package domain

// ReasonKind distinguishes the reason catalogs.
type ReasonKind string

const (
	ReasonKindBlock        ReasonKind = "BLOCK"
	ReasonKindUnblock      ReasonKind = "UNBLOCK"
	ReasonKindCancel       ReasonKind = "CANCEL"
	ReasonKindSLAException ReasonKind = "SLA_EXCEPTION"
)

// Reason is a static catalog row. PausesSLA and RequiresResumeAt only carry
// meaning for block reasons.
type Reason struct {
	Code             string
	Kind             ReasonKind
	Label            string
	Icon             string
	RequiresComment  bool
	PausesSLA        bool
	RequiresResumeAt bool
	Active           bool
	SortOrder        int
}
