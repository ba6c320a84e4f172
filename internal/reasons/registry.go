// Package reasons holds the static block, unblock, cancel and SLA-exception
// catalogs and the block to unblock compatibility matrix.
package reasons

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/guest-requests/internal/domain"
)

// CatchAll is the free-text block reason, always offered last.
const CatchAll = "something_else"

// AutoResume is the unblock reason used by the scheduled auto-resume worker.
const AutoResume = "auto_resumed"

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog is the raw reference data a Registry is built from. Slices are in
// registry order.
type Catalog struct {
	Block         []domain.Reason
	Unblock       []domain.Reason
	Cancel        []domain.Reason
	SLAException  []domain.Reason
	Compatibility map[string][]string
}

// Registry offers lookups over an immutable catalog. Safe for concurrent use.
type Registry struct {
	ordered map[domain.ReasonKind][]domain.Reason
	byCode  map[domain.ReasonKind]map[string]domain.Reason
	compat  map[string][]string
}

// New validates the catalog and builds a registry.
func New(c Catalog) (*Registry, error) {
	r := &Registry{
		ordered: make(map[domain.ReasonKind][]domain.Reason, 4),
		byCode:  make(map[domain.ReasonKind]map[string]domain.Reason, 4),
		compat:  make(map[string][]string, len(c.Compatibility)),
	}
	for kind, rows := range map[domain.ReasonKind][]domain.Reason{
		domain.ReasonKindBlock:        c.Block,
		domain.ReasonKindUnblock:      c.Unblock,
		domain.ReasonKindCancel:       c.Cancel,
		domain.ReasonKindSLAException: c.SLAException,
	} {
		index := make(map[string]domain.Reason, len(rows))
		ordered := make([]domain.Reason, 0, len(rows))
		for i, row := range rows {
			if row.Code == "" {
				return nil, fmt.Errorf("%s reason %d: empty code", kind, i)
			}
			if _, dup := index[row.Code]; dup {
				return nil, fmt.Errorf("%s reason %q: duplicate code", kind, row.Code)
			}
			row.Kind = kind
			if row.SortOrder == 0 {
				row.SortOrder = i + 1
			}
			index[row.Code] = row
			ordered = append(ordered, row)
		}
		r.ordered[kind] = ordered
		r.byCode[kind] = index
	}
	for blockCode, unblockCodes := range c.Compatibility {
		if _, ok := r.byCode[domain.ReasonKindBlock][blockCode]; !ok {
			return nil, fmt.Errorf("compatibility: unknown block reason %q", blockCode)
		}
		for _, code := range unblockCodes {
			if _, ok := r.byCode[domain.ReasonKindUnblock][code]; !ok {
				return nil, fmt.Errorf("compatibility %q: unknown unblock reason %q", blockCode, code)
			}
		}
		r.compat[blockCode] = append([]string(nil), unblockCodes...)
	}
	return r, nil
}

// Default returns the registry built from the embedded catalog.
func Default() (*Registry, error) {
	c, err := ParseYAML(defaultCatalog)
	if err != nil {
		return nil, err
	}
	return New(c)
}

// Lookup returns the reason of kind with code, active or not.
func (r *Registry) Lookup(kind domain.ReasonKind, code string) (domain.Reason, bool) {
	reason, ok := r.byCode[kind][code]
	return reason, ok
}

// Active returns the reason only when it exists and is active.
func (r *Registry) Active(kind domain.ReasonKind, code string) (domain.Reason, bool) {
	reason, ok := r.Lookup(kind, code)
	if !ok || !reason.Active {
		return domain.Reason{}, false
	}
	return reason, true
}

// PausesSLA reports whether a block reason pauses the clock. Unknown codes do not.
func (r *Registry) PausesSLA(blockCode string) bool {
	reason, ok := r.Lookup(domain.ReasonKindBlock, blockCode)
	return ok && reason.PausesSLA
}

// OrderedBlockReasons returns active block reasons in registry order with the
// catch-all moved to the end.
func (r *Registry) OrderedBlockReasons() []domain.Reason {
	rows := r.activeOf(domain.ReasonKindBlock)
	out := make([]domain.Reason, 0, len(rows))
	var catchAll *domain.Reason
	for i := range rows {
		if rows[i].Code == CatchAll {
			catchAll = &rows[i]
			continue
		}
		out = append(out, rows[i])
	}
	if catchAll != nil {
		out = append(out, *catchAll)
	}
	return out
}

// CompatibleUnblockReasons returns the active unblock reasons offered for a
// block reason, in registry order. required is false when the matrix has no
// active rows for blockCode: the ticket then unblocks without a reason.
func (r *Registry) CompatibleUnblockReasons(blockCode string) (compatible []domain.Reason, required bool) {
	codes := r.compat[blockCode]
	if len(codes) == 0 {
		return nil, false
	}
	allowed := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		allowed[code] = struct{}{}
	}
	for _, reason := range r.activeOf(domain.ReasonKindUnblock) {
		if _, ok := allowed[reason.Code]; ok {
			compatible = append(compatible, reason)
		}
	}
	return compatible, len(compatible) > 0
}

// IsCompatible reports whether unblockCode is offered for blockCode.
func (r *Registry) IsCompatible(blockCode, unblockCode string) bool {
	compatible, _ := r.CompatibleUnblockReasons(blockCode)
	for _, reason := range compatible {
		if reason.Code == unblockCode {
			return true
		}
	}
	return false
}

// UnblockReasons returns every active unblock reason in registry order.
func (r *Registry) UnblockReasons() []domain.Reason {
	return r.activeOf(domain.ReasonKindUnblock)
}

// CancelReasons returns active cancel reasons in registry order.
func (r *Registry) CancelReasons() []domain.Reason {
	return r.activeOf(domain.ReasonKindCancel)
}

// SLAExceptionReasons returns active SLA-exception reasons in registry order.
func (r *Registry) SLAExceptionReasons() []domain.Reason {
	return r.activeOf(domain.ReasonKindSLAException)
}

func (r *Registry) activeOf(kind domain.ReasonKind) []domain.Reason {
	rows := r.ordered[kind]
	out := make([]domain.Reason, 0, len(rows))
	for _, row := range rows {
		if row.Active {
			out = append(out, row)
		}
	}
	return out
}

type reasonRow struct {
	Code             string `yaml:"code"`
	Label            string `yaml:"label"`
	Icon             string `yaml:"icon"`
	RequiresComment  bool   `yaml:"requires_comment"`
	PausesSLA        bool   `yaml:"pauses_sla"`
	RequiresResumeAt bool   `yaml:"requires_resume_at"`
	Active           *bool  `yaml:"active"`
}

type catalogDocument struct {
	Block         []reasonRow         `yaml:"block_reasons"`
	Unblock       []reasonRow         `yaml:"unblock_reasons"`
	Cancel        []reasonRow         `yaml:"cancel_reasons"`
	SLAException  []reasonRow         `yaml:"sla_exception_reasons"`
	Compatibility map[string][]string `yaml:"compatibility"`
}

// ParseYAML decodes a catalog document. Rows default to active.
func ParseYAML(data []byte) (Catalog, error) {
	var doc catalogDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Catalog{}, fmt.Errorf("parse reason catalog: %w", err)
	}
	return Catalog{
		Block:         toReasons(doc.Block),
		Unblock:       toReasons(doc.Unblock),
		Cancel:        toReasons(doc.Cancel),
		SLAException:  toReasons(doc.SLAException),
		Compatibility: doc.Compatibility,
	}, nil
}

func toReasons(rows []reasonRow) []domain.Reason {
	out := make([]domain.Reason, 0, len(rows))
	for i, row := range rows {
		active := true
		if row.Active != nil {
			active = *row.Active
		}
		out = append(out, domain.Reason{
			Code:             row.Code,
			Label:            row.Label,
			Icon:             row.Icon,
			RequiresComment:  row.RequiresComment,
			PausesSLA:        row.PausesSLA,
			RequiresResumeAt: row.RequiresResumeAt,
			Active:           active,
			SortOrder:        i + 1,
		})
	}
	return out
}
