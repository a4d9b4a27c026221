package diagram

import (
	"github.com/alessiagatto/documenter-agent/pkg/model"
	"github.com/alessiagatto/documenter-agent/pkg/rules"
)

// RenderComponent draws logical components and their connectors.
func RenderComponent(m *model.ArchitectureModel, rs rules.RuleSet) *Diagram {
	d := &Diagram{Type: TypeComponent}
	d.Add(SkinParam{Name: "componentStyle", Value: "rectangle"})
	d.Add(structuralLayout(rs)...)
	d.Add(Blank{})

	names := newAliases()
	for _, c := range uniqueElements(m.LogicalComponents()) {
		d.Add(Element{Keyword: "component", Ref: names.ref(c.ID)})
	}
	d.Add(Blank{})
	d.Add(connectorRelations(m.LogicalConnectors(), names, rs.Has(rules.NoDuplicateElements))...)
	return d
}

// RenderDeployment draws deployment nodes with the components placed on
// them. A component placed on several nodes is drawn on the first one only.
func RenderDeployment(m *model.ArchitectureModel, rs rules.RuleSet) *Diagram {
	d := &Diagram{Type: TypeDeployment}
	d.Add(structuralLayout(rs)...)
	if len(d.Statements) > 0 {
		d.Add(Blank{})
	}

	view := m.View(model.ViewDeployment)
	nodeTypes := make(map[string]string)
	var order []string
	for _, n := range uniqueElements(view.Nodes) {
		nodeTypes[n.ID] = n.Type
		order = append(order, n.ID)
	}
	placed := make(map[string][]string)
	for _, p := range view.Placements {
		if _, ok := nodeTypes[p.Node]; !ok {
			nodeTypes[p.Node] = ""
			order = append(order, p.Node)
		}
		placed[p.Node] = append(placed[p.Node], p.Components...)
	}

	names := newAliases()
	// Node aliases are reserved first so components can't take them.
	for _, node := range order {
		names.ref(node)
	}
	for _, node := range order {
		var body []Statement
		for _, comp := range placed[node] {
			if names.known(comp) {
				continue
			}
			body = append(body, Element{Keyword: "component", Ref: names.ref(comp)})
		}
		d.Add(Group{Keyword: nodeKeyword(nodeTypes[node]), Ref: names.ref(node), Body: body})
	}

	rels := connectorRelations(m.LogicalConnectors(), names, rs.Has(rules.NoDuplicateElements))
	if len(rels) > 0 {
		d.Add(Blank{})
		d.Add(rels...)
	}
	return d
}

func nodeKeyword(nodeType string) string {
	switch nodeType {
	case "database", "db":
		return "database"
	case "cloud":
		return "cloud"
	default:
		return "node"
	}
}

// RenderContext draws the system as one box surrounded by its actors and
// external systems. Without declared context connectors, actors use the
// system and the system integrates with every external system.
func RenderContext(m *model.ArchitectureModel, rs rules.RuleSet) *Diagram {
	d := &Diagram{Type: TypeContext}
	d.Add(structuralLayout(rs)...)
	if len(d.Statements) > 0 {
		d.Add(Blank{})
	}

	view := m.View(model.ViewContext)
	names := newAliases()
	system := names.ref(systemName(m))
	d.Add(Element{Keyword: "rectangle", Stereotype: "system", Ref: system})

	actors := uniqueElements(view.Actors)
	for _, a := range actors {
		if names.known(a.ID) {
			continue
		}
		if a.Type == model.TypeExternalSystem {
			d.Add(Element{Keyword: "rectangle", Stereotype: "external", Ref: names.ref(a.ID)})
		} else {
			d.Add(Element{Keyword: "actor", Ref: names.ref(a.ID)})
		}
	}
	d.Add(Blank{})

	if len(view.Connectors) > 0 {
		d.Add(connectorRelations(view.Connectors, names, rs.Has(rules.NoDuplicateElements))...)
		return d
	}
	for _, a := range actors {
		if a.ID == system.ID {
			continue
		}
		if a.Type == model.TypeExternalSystem {
			d.Add(Relation{From: system, To: names.ref(a.ID), Label: "integrates with"})
		} else {
			d.Add(Relation{From: names.ref(a.ID), To: system, Label: "uses"})
		}
	}
	return d
}

// RenderSecurity draws the system's components inside the system boundary,
// trust boundaries as separate zones, and each security measure protecting
// the system. Declared security connectors are drawn when both ends exist.
func RenderSecurity(m *model.ArchitectureModel, rs rules.RuleSet) *Diagram {
	d := &Diagram{Type: TypeSecurity}
	d.Add(structuralLayout(rs)...)
	if len(d.Statements) > 0 {
		d.Add(Blank{})
	}

	view := m.View(model.ViewSecurity)
	names := newAliases()
	system := names.ref(systemName(m))

	var body []Statement
	for _, c := range uniqueElements(m.LogicalComponents()) {
		if names.known(c.ID) {
			continue
		}
		body = append(body, Element{Keyword: "component", Ref: names.ref(c.ID)})
	}
	d.Add(Group{Keyword: "rectangle", Stereotype: "system", Ref: system, Body: body})

	var measures []Ref
	for _, c := range uniqueElements(view.Controls) {
		if names.known(c.ID) {
			continue
		}
		ref := names.ref(c.ID)
		if c.Type == model.TypeTrustBoundary {
			d.Add(Group{Keyword: "rectangle", Stereotype: "trust boundary", Ref: ref})
			continue
		}
		d.Add(Element{Keyword: "rectangle", Stereotype: "control", Ref: ref})
		measures = append(measures, ref)
	}

	d.Add(Blank{})
	for _, ref := range measures {
		d.Add(Relation{Arrow: "..>", From: ref, To: system, Label: "protects"})
	}
	d.Add(connectorRelations(view.Connectors, names, rs.Has(rules.NoDuplicateElements))...)
	return d
}

func systemName(m *model.ArchitectureModel) string {
	if m.Name() != "" {
		return m.Name()
	}
	if m.ID() != "" {
		return m.ID()
	}
	return "System"
}
