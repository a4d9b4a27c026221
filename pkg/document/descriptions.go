package document

import (
	"fmt"
	"strings"

	"github.com/alessiagatto/documenter-agent/pkg/model"
)

// maxListedConnectors bounds the dependency list in the logical description.
const maxListedConnectors = 12

//nolint:gochecknoglobals // Lookup tables
var (
	viewTitles = map[string]string{
		model.ViewContext:    "Context Diagram",
		model.ViewLogical:    "Component Diagram",
		model.ViewDeployment: "Deployment Diagram",
		model.ViewRuntime:    "Sequence Diagram",
		model.ViewSecurity:   "Security Diagram",
	}

	fallbackDescriptions = map[string]string{
		model.ViewContext:    "The context diagram shows the system and its interactions with external actors.",
		model.ViewLogical:    "The diagram shows how the system is decomposed into independent services.",
		model.ViewDeployment: "The diagram shows how components are distributed across infrastructure nodes.",
		model.ViewRuntime:    "The diagram describes the order of operations during the main process.",
		model.ViewSecurity:   "The diagram highlights security measures and trust boundaries.",
	}
)

// ViewTitle returns the section title for a view.
func ViewTitle(view string) string {
	if t, ok := viewTitles[view]; ok {
		return t
	}
	return view
}

// Describe returns a deterministic description of view built from the model.
// Views with nothing to list fall back to a fixed sentence.
func Describe(m *model.ArchitectureModel, view string) string {
	var desc string
	switch view {
	case model.ViewContext:
		desc = "The context diagram presents the system as a **black box** together with the actors and external systems it interacts with. It clarifies **boundaries**, **responsibilities** and integrations with external providers."
	case model.ViewLogical:
		desc = describeLogical(m)
	case model.ViewDeployment:
		desc = describeDeployment(m)
	case model.ViewRuntime:
		desc = "The sequence diagram describes the dynamic behaviour of the system, showing the temporal order of interactions between services."
	case model.ViewSecurity:
		desc = "The security diagram shows the main trust boundaries and protection measures: transport encryption, authentication and authorization, input validation, logging and auditing."
	}
	if strings.TrimSpace(desc) == "" {
		if fb, ok := fallbackDescriptions[view]; ok {
			return fb
		}
		return "No description is available for this view."
	}
	return desc
}

func describeLogical(m *model.ArchitectureModel) string {
	comps := m.LogicalComponents()
	if len(comps) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("The component diagram shows the logical decomposition of the system into services and modules. The main elements are:\n\n")
	for _, c := range comps {
		if names := c.InterfaceNames(); len(names) > 0 {
			fmt.Fprintf(&b, "- %s (interfaces: %s)\n", c.Label(), strings.Join(names, ", "))
			continue
		}
		fmt.Fprintf(&b, "- %s\n", c.Label())
	}

	b.WriteString("\nThe main dependencies (partial) are:\n\n")
	listed := 0
	for _, c := range m.LogicalConnectors() {
		if listed == maxListedConnectors {
			break
		}
		if c.Source == "" || c.Target == "" {
			continue
		}
		label := c.Type
		if label == "" {
			label = "interaction"
		}
		fmt.Fprintf(&b, "- %s → %s (%s)\n", c.Source, c.Target, label)
		listed++
	}
	if listed == 0 {
		b.WriteString("- (no dependencies declared)\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func describeDeployment(m *model.ArchitectureModel) string {
	v := m.View(model.ViewDeployment)
	var b strings.Builder
	b.WriteString("The deployment diagram shows the physical distribution of components across infrastructure nodes, highlighting **tier separation**, scalability and failure isolation.")
	if len(v.Placements) == 0 {
		return b.String()
	}
	b.WriteString("\n\n")
	for _, p := range v.Placements {
		if len(p.Components) == 0 {
			fmt.Fprintf(&b, "- %s\n", p.Node)
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", p.Node, strings.Join(p.Components, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}
