package diagram

import (
	"github.com/alessiagatto/documenter-agent/pkg/model"
	"github.com/alessiagatto/documenter-agent/pkg/rules"
)

// RenderSequence draws the logical view as a sequence diagram: one
// participant per component and one message per connector, in declaration
// order.
//
// Rules:
//   - left_to_right_order declares participants in first-interaction order
//   - no_duplicate_elements collapses repeated participants and identical messages
//   - increase_spacing widens participant and box padding
//   - improve_alignment centres message labels
//   - number_messages enables autonumbering
func RenderSequence(m *model.ArchitectureModel, rs rules.RuleSet) *Diagram {
	d := &Diagram{Type: TypeSequence}
	dedupe := rs.Has(rules.NoDuplicateElements)

	comps := m.LogicalComponents()
	if dedupe {
		comps = uniqueElements(comps)
	}

	declared := make(map[string]bool, len(comps))
	for _, c := range comps {
		declared[c.ID] = true
	}

	var conns []model.Connector
	for _, c := range m.LogicalConnectors() {
		if c.Source != "" && c.Target != "" && declared[c.Source] && declared[c.Target] {
			conns = append(conns, c)
		}
	}

	if rs.Has(rules.LeftToRightOrder) {
		comps = interactionOrder(comps, conns)
	}

	var header []Statement
	if rs.Has(rules.IncreaseSpacing) {
		header = append(header,
			SkinParam{Name: "ParticipantPadding", Value: "20"},
			SkinParam{Name: "BoxPadding", Value: "10"})
	}
	if rs.Has(rules.ImproveAlignment) {
		header = append(header, SkinParam{Name: "sequenceMessageAlign", Value: "center"})
	}
	if rs.Has(rules.NumberMessages) {
		header = append(header, Directive{Text: "autonumber"})
	}
	if len(header) > 0 {
		d.Add(header...)
		d.Add(Blank{})
	}

	names := newAliases()
	for _, c := range comps {
		d.Add(Participant{Ref: names.ref(c.ID)})
	}
	d.Add(Blank{})

	seen := make(map[Relationship]bool)
	for _, c := range conns {
		key := Relationship{From: c.Source, To: c.Target, Label: c.Label()}
		if dedupe && seen[key] {
			continue
		}
		seen[key] = true
		d.Add(Message{From: names.ref(c.Source), To: names.ref(c.Target), Label: c.Label()})
	}
	return d
}

// interactionOrder puts components that take part in a connector first, in
// the order they first appear, followed by the rest in declaration order.
// Repeated declarations stay next to their first occurrence.
func interactionOrder(comps []model.Element, conns []model.Connector) []model.Element {
	byID := make(map[string][]model.Element, len(comps))
	for _, c := range comps {
		byID[c.ID] = append(byID[c.ID], c)
	}

	out := make([]model.Element, 0, len(comps))
	placed := make(map[string]bool, len(comps))
	place := func(id string) {
		if placed[id] {
			return
		}
		placed[id] = true
		out = append(out, byID[id]...)
	}

	for _, c := range conns {
		place(c.Source)
		place(c.Target)
	}
	for _, c := range comps {
		place(c.ID)
	}
	return out
}
