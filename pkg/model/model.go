// Package model provides a read-only view over a selected architecture description.
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
)

// Well-known view names.
const (
	ViewContext    = "context_view"
	ViewLogical    = "logical_view"
	ViewDeployment = "deployment_view"
	ViewRuntime    = "runtime_view"
	ViewSecurity   = "security_view"
)

// Element types implied by the list an element is declared in.
const (
	TypeActor           = "actor"
	TypeExternalSystem  = "external_system"
	TypeSecurityMeasure = "security_measure"
	TypeControl         = "control"
	TypeTrustBoundary   = "trust_boundary"
)

// ErrArchitectureNotFound is returned when the requested architecture id is absent from the input.
var ErrArchitectureNotFound = errors.New("architecture not found")

// Placement assigns components to a deployment node.
type Placement struct {
	Node       string
	Components []string
}

// View is the normalised payload of one architecture view.
type View struct {
	Name       string
	Components []Element
	Connectors []Connector
	Nodes      []Element
	Placements []Placement
	Actors     []Element
	Controls   []Element
}

type rawView struct {
	ComponentMapping json.RawMessage `json:"component_mapping"`
	Components       []Element       `json:"components"`
	Connectors       []Connector     `json:"connectors"`
	Nodes            []Element       `json:"nodes"`
	Actors           []Element       `json:"actors"`
	ExternalSystems  []Element       `json:"external_systems"`
	SecurityMeasures []Element       `json:"security_measures"`
	Controls         []Element       `json:"controls"`
	TrustBoundaries  []Element       `json:"trust_boundaries"`
}

type rawArchitecture struct {
	Views map[string]json.RawMessage `json:"views"`
	ID    string                     `json:"architecture_id"`
	Name  string                     `json:"name"`
}

type rawInput struct {
	Architectures []rawArchitecture `json:"architectural_views"`
}

// ArchitectureModel is an immutable architecture selected for documentation.
type ArchitectureModel struct {
	views map[string]View
	id    string
	name  string
}

// New builds a model from already normalised views. Used by tests and callers
// that construct models in code.
func New(id, name string, views ...View) *ArchitectureModel {
	m := &ArchitectureModel{id: id, name: name, views: make(map[string]View, len(views))}
	for _, v := range views {
		m.views[v.Name] = cloneView(v)
	}
	return m
}

func (m *ArchitectureModel) ID() string   { return m.id }
func (m *ArchitectureModel) Name() string { return m.name }

// ViewNames returns the declared view names in sorted order.
func (m *ArchitectureModel) ViewNames() []string {
	names := make([]string, 0, len(m.views))
	for name := range m.views {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// View returns a copy of the named view, or an empty view when absent.
func (m *ArchitectureModel) View(name string) View {
	v, ok := m.views[name]
	if !ok {
		return View{Name: name}
	}
	return cloneView(v)
}

// LogicalComponents returns the logical view's components in declaration order.
func (m *ArchitectureModel) LogicalComponents() []Element {
	return slices.Clone(m.views[ViewLogical].Components)
}

// LogicalConnectors returns the logical view's connectors in declaration order.
func (m *ArchitectureModel) LogicalConnectors() []Connector {
	return slices.Clone(m.views[ViewLogical].Connectors)
}

func cloneView(v View) View {
	out := View{
		Name:       v.Name,
		Components: slices.Clone(v.Components),
		Connectors: slices.Clone(v.Connectors),
		Nodes:      slices.Clone(v.Nodes),
		Actors:     slices.Clone(v.Actors),
		Controls:   slices.Clone(v.Controls),
	}
	if v.Placements != nil {
		out.Placements = make([]Placement, len(v.Placements))
		for i, p := range v.Placements {
			out.Placements[i] = Placement{Node: p.Node, Components: slices.Clone(p.Components)}
		}
	}
	return out
}

// LoadArchitectures reads every architecture from an architecture description file.
func LoadArchitectures(path string) ([]*ArchitectureModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read architecture input %s: %w", path, err)
	}
	return ParseArchitectures(data)
}

// ParseArchitectures decodes an architecture description document.
func ParseArchitectures(data []byte) ([]*ArchitectureModel, error) {
	var in rawInput
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("failed to parse architecture input: %w", err)
	}

	models := make([]*ArchitectureModel, 0, len(in.Architectures))
	for i := range in.Architectures {
		m, err := fromRaw(&in.Architectures[i])
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, nil
}

// Select returns the architecture with the given id.
func Select(models []*ArchitectureModel, id string) (*ArchitectureModel, error) {
	for _, m := range models {
		if m.id == id {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrArchitectureNotFound, id)
}

// LoadAndSelect is LoadArchitectures followed by Select.
func LoadAndSelect(path, id string) (*ArchitectureModel, error) {
	models, err := LoadArchitectures(path)
	if err != nil {
		return nil, err
	}
	return Select(models, id)
}

func fromRaw(raw *rawArchitecture) (*ArchitectureModel, error) {
	m := &ArchitectureModel{id: raw.ID, name: raw.Name, views: make(map[string]View, len(raw.Views))}
	for name, payload := range raw.Views {
		v, err := decodeView(name, payload)
		if err != nil {
			return nil, fmt.Errorf("architecture %q: view %s: %w", raw.ID, name, err)
		}
		m.views[name] = v
	}
	return m, nil
}

func decodeView(name string, payload json.RawMessage) (View, error) {
	v := View{Name: name}
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		// Non-object views carry nothing we can draw.
		return v, nil
	}

	var rv rawView
	if err := json.Unmarshal(trimmed, &rv); err != nil {
		return v, err
	}

	v.Components = dropAnonymous(rv.Components)
	v.Connectors = rv.Connectors
	v.Nodes = dropAnonymous(rv.Nodes)
	v.Actors = dropAnonymous(append(tagType(rv.Actors, TypeActor), tagType(rv.ExternalSystems, TypeExternalSystem)...))
	v.Controls = dropAnonymous(append(append(
		tagType(rv.SecurityMeasures, TypeSecurityMeasure),
		tagType(rv.Controls, TypeControl)...),
		tagType(rv.TrustBoundaries, TypeTrustBoundary)...))

	placements, err := decodePlacements(rv.ComponentMapping)
	if err != nil {
		return v, fmt.Errorf("component_mapping: %w", err)
	}
	v.Placements = placements
	return v, nil
}

// tagType fills in the element type implied by the list it was declared in.
func tagType(elems []Element, t string) []Element {
	for i := range elems {
		if elems[i].Type == "" {
			elems[i].Type = t
		}
	}
	return elems
}

func dropAnonymous(elems []Element) []Element {
	out := elems[:0:0]
	for _, e := range elems {
		if e.ID != "" {
			out = append(out, e)
		}
	}
	return out
}

// decodePlacements accepts node->[components], component->node, or a list of
// {component, node} records, and returns placements sorted by node.
func decodePlacements(raw json.RawMessage) ([]Placement, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	byNode := make(map[string][]string)
	switch trimmed[0] {
	case '{':
		var generic map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &generic); err != nil {
			return nil, err
		}
		for key, value := range generic {
			var list []string
			if err := json.Unmarshal(value, &list); err == nil {
				byNode[key] = append(byNode[key], list...)
				continue
			}
			var node string
			if err := json.Unmarshal(value, &node); err == nil && node != "" {
				byNode[node] = append(byNode[node], key)
			}
		}
	case '[':
		var records []struct {
			Component string `json:"component"`
			Node      string `json:"node"`
		}
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, err
		}
		for _, r := range records {
			if r.Component != "" && r.Node != "" {
				byNode[r.Node] = append(byNode[r.Node], r.Component)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported shape")
	}

	nodes := make([]string, 0, len(byNode))
	for node := range byNode {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)

	placements := make([]Placement, 0, len(nodes))
	for _, node := range nodes {
		comps := byNode[node]
		// Map inputs have random order; keep it stable.
		sort.Strings(comps)
		placements = append(placements, Placement{Node: node, Components: comps})
	}
	return placements, nil
}
