// Package diagram renders architecture views as PlantUML source.
//
// Renderers build a Diagram, an ordered list of typed statements, and
// Diagram.String serializes it. Rendering is a pure function of the model
// and the rule set: map iteration is always sorted, and nothing depends on
// time or randomness, so identical inputs give byte-identical text.
//
// Connectors whose endpoints are not declared in the diagram are dropped.
// Unknown rule names are ignored.
package diagram

import (
	"errors"
	"fmt"
	"sort"

	"github.com/alessiagatto/documenter-agent/pkg/model"
	"github.com/alessiagatto/documenter-agent/pkg/rules"
	"github.com/alessiagatto/documenter-agent/pkg/utils"
)

// Diagram types.
const (
	TypeSequence   = "sequence_diagram"
	TypeComponent  = "component_diagram"
	TypeDeployment = "deployment_diagram"
	TypeContext    = "context_diagram"
	TypeSecurity   = "security_diagram"
)

// ErrUnsupportedType is returned for diagram types without a renderer.
var ErrUnsupportedType = errors.New("unsupported diagram type")

// RenderFunc renders one diagram type.
type RenderFunc func(m *model.ArchitectureModel, rs rules.RuleSet) *Diagram

//nolint:gochecknoglobals // read-only registry
var renderers = map[string]RenderFunc{
	TypeSequence:   RenderSequence,
	TypeComponent:  RenderComponent,
	TypeDeployment: RenderDeployment,
	TypeContext:    RenderContext,
	TypeSecurity:   RenderSecurity,
}

// Supports reports whether diagramType has a renderer.
func Supports(diagramType string) bool {
	_, ok := renderers[diagramType]
	return ok
}

// SupportedTypes returns the diagram types with renderers, sorted.
func SupportedTypes() []string {
	types := make([]string, 0, len(renderers))
	for t := range renderers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Render renders the diagram type for the model, honouring rs.
func Render(m *model.ArchitectureModel, diagramType string, rs rules.RuleSet) (*Diagram, error) {
	fn, ok := renderers[diagramType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, diagramType)
	}
	return fn(m, rs), nil
}

// aliases hands out unique diagram aliases per ID, in call order.
type aliases struct {
	byID  map[string]string
	taken map[string]bool
}

func newAliases() *aliases {
	return &aliases{byID: make(map[string]string), taken: make(map[string]bool)}
}

func (a *aliases) ref(id string) Ref {
	if alias, ok := a.byID[id]; ok {
		return Ref{ID: id, Alias: alias}
	}
	base := utils.SanitizeIdentifier(id)
	alias := base
	for n := 2; a.taken[alias]; n++ {
		alias = fmt.Sprintf("%s_%d", base, n)
	}
	a.byID[id] = alias
	a.taken[alias] = true
	return Ref{ID: id, Alias: alias}
}

func (a *aliases) known(id string) bool {
	_, ok := a.byID[id]
	return ok
}

// uniqueElements drops repeated IDs, keeping the first declaration.
func uniqueElements(elems []model.Element) []model.Element {
	seen := make(map[string]bool, len(elems))
	out := make([]model.Element, 0, len(elems))
	for _, e := range elems {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		out = append(out, e)
	}
	return out
}

// structuralLayout maps rules to directives for non-sequence diagrams.
func structuralLayout(rs rules.RuleSet) []Statement {
	var out []Statement
	if rs.Has(rules.LeftToRightOrder) {
		out = append(out, Directive{Text: "left to right direction"})
	}
	if rs.Has(rules.IncreaseSpacing) {
		out = append(out, SkinParam{Name: "nodesep", Value: "60"}, SkinParam{Name: "ranksep", Value: "60"})
	}
	if rs.Has(rules.ImproveAlignment) {
		out = append(out, SkinParam{Name: "linetype", Value: "ortho"})
	}
	return out
}

// connectorRelations turns connectors into relations between declared
// elements, dropping dangling ones. With dedupe, identical relations collapse.
func connectorRelations(conns []model.Connector, names *aliases, dedupe bool) []Statement {
	var out []Statement
	seen := make(map[Relationship]bool)
	for _, c := range conns {
		if c.Source == "" || c.Target == "" || !names.known(c.Source) || !names.known(c.Target) {
			continue
		}
		key := Relationship{From: c.Source, To: c.Target, Label: c.Label()}
		if dedupe && seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Relation{From: names.ref(c.Source), To: names.ref(c.Target), Label: c.Label()})
	}
	return out
}
