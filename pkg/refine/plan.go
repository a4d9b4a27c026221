package refine

import (
	"sort"

	"github.com/alessiagatto/documenter-agent/pkg/logx"
	"github.com/alessiagatto/documenter-agent/pkg/model"
)

// PlanItem is one view to document and the diagram type that depicts it.
type PlanItem struct {
	View        string
	DiagramType string
}

// ViewMapper resolves views to diagram types.
type ViewMapper interface {
	DiagramTypeFor(view string) (string, bool)
	MappedViews() []string
}

// canonicalViews is the order in which views appear in a document.
//
//nolint:gochecknoglobals // Fixed ordering table
var canonicalViews = []string{
	model.ViewContext,
	model.ViewLogical,
	model.ViewDeployment,
	model.ViewRuntime,
	model.ViewSecurity,
}

// Plan returns the views to document: canonical views the knowledge base
// maps to a diagram type, then any other mapped views in sorted order.
func Plan(kb ViewMapper) []PlanItem {
	var plan []PlanItem
	seen := make(map[string]bool)
	for _, view := range canonicalViews {
		if dt, ok := kb.DiagramTypeFor(view); ok {
			plan = append(plan, PlanItem{View: view, DiagramType: dt})
			seen[view] = true
		}
	}

	extra := kb.MappedViews()
	sort.Strings(extra)
	for _, view := range extra {
		if seen[view] {
			continue
		}
		if dt, ok := kb.DiagramTypeFor(view); ok {
			plan = append(plan, PlanItem{View: view, DiagramType: dt})
		}
	}
	return plan
}

// LayoutLimiter exposes the layout constraint checked before rendering.
type LayoutLimiter interface {
	MaxComponentsPerView() int
}

// CheckLayout logs a warning and returns false when the logical view holds
// more components than the knowledge base allows.
func CheckLayout(kb LayoutLimiter, m *model.ArchitectureModel) bool {
	logger := logx.NewLogger("refine")
	limit := kb.MaxComponentsPerView()
	n := len(m.LogicalComponents())
	if n > limit {
		logger.Warn("Logical view has %d components, exceeding max_components_per_view=%d", n, limit)
		return false
	}
	logger.Debug("Layout check passed (%d/%d components)", n, limit)
	return true
}
