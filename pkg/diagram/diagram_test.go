package diagram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alessiagatto/documenter-agent/pkg/model"
	"github.com/alessiagatto/documenter-agent/pkg/rules"
)

func el(id string) model.Element {
	return model.Element{ID: id, Kind: model.KindReference}
}

func conn(src, dst, label string) model.Connector {
	return model.Connector{Source: src, Target: dst, Type: label}
}

func twoComponentModel() *model.ArchitectureModel {
	return model.New("arch", "Arch", model.View{
		Name:       model.ViewLogical,
		Components: []model.Element{el("A"), el("B")},
		Connectors: []model.Connector{conn("A", "B", "calls")},
	})
}

func shopModel() *model.ArchitectureModel {
	return model.New("Microservices Architecture", "Shop",
		model.View{
			Name: model.ViewLogical,
			Components: []model.Element{
				el("Catalog"), el("API Gateway"), el("Orders"), el("Catalog"), el("Audit Log"),
			},
			Connectors: []model.Connector{
				conn("API Gateway", "Orders", "place order"),
				conn("Orders", "Catalog", "reserve"),
				conn("Orders", "Catalog", "reserve"),
				conn("Orders", "Ghost", "haunts"),
				conn("", "Orders", "anonymous"),
				conn("Phantom", "Catalog", "reads"),
			},
		},
		model.View{
			Name:  model.ViewDeployment,
			Nodes: []model.Element{el("web"), {ID: "db", Type: "database"}},
			Placements: []model.Placement{
				{Node: "db", Components: []string{"Catalog"}},
				{Node: "k8s", Components: []string{"API Gateway", "Orders"}},
				{Node: "web", Components: []string{"API Gateway"}},
			},
		},
		model.View{
			Name: model.ViewContext,
			Actors: []model.Element{
				{ID: "Customer", Type: model.TypeActor},
				{ID: "Payments", Type: model.TypeExternalSystem},
			},
		},
		model.View{
			Name: model.ViewSecurity,
			Controls: []model.Element{
				{ID: "TLS", Type: model.TypeSecurityMeasure},
				{ID: "DMZ", Type: model.TypeTrustBoundary},
			},
		},
	)
}

func lines(text string) []string {
	return strings.Split(strings.TrimRight(text, "\n"), "\n")
}

func countLines(text, line string) int {
	n := 0
	for _, l := range lines(text) {
		if l == line {
			n++
		}
	}
	return n
}

func TestSequenceTwoParticipants(t *testing.T) {
	d, err := Render(twoComponentModel(), TypeSequence, nil)
	require.NoError(t, err)
	text := d.String()

	assert.Equal(t, "@startuml\nparticipant A\nparticipant B\n\nA -> B : calls\n@enduml\n", text)
	assert.Equal(t, 1, countLines(text, "A -> B : calls"))

	var messages int
	for _, l := range lines(text) {
		if strings.Contains(l, " -> ") {
			messages++
		}
	}
	assert.Equal(t, 1, messages)
}

func TestRenderingIsDeterministic(t *testing.T) {
	ruleSets := []rules.RuleSet{
		nil,
		rules.NewRuleSet(rules.LeftToRightOrder),
		rules.NewRuleSet(rules.NoDuplicateElements, rules.IncreaseSpacing, rules.ImproveAlignment, rules.NumberMessages, "mystery_rule"),
	}
	for _, diagramType := range SupportedTypes() {
		for _, rs := range ruleSets {
			first, err := Render(shopModel(), diagramType, rs)
			require.NoError(t, err)
			for i := 0; i < 5; i++ {
				again, err := Render(shopModel(), diagramType, rs)
				require.NoError(t, err)
				assert.Equal(t, first.String(), again.String(), "%s with %v", diagramType, rs)
			}
		}
	}
}

func TestRenderingDropsDanglingConnectors(t *testing.T) {
	rs := rules.NewRuleSet(rules.LeftToRightOrder, rules.NoDuplicateElements)
	for _, diagramType := range SupportedTypes() {
		d, err := Render(shopModel(), diagramType, rs)
		require.NoError(t, err)
		text := d.String()
		assert.NotContains(t, text, "Ghost", diagramType)
		assert.NotContains(t, text, "haunts", diagramType)
		assert.NotContains(t, text, "Phantom", diagramType)
		assert.NotContains(t, text, "anonymous", diagramType)
	}
}

func TestSequenceQuotesNamesWithSpaces(t *testing.T) {
	d := RenderSequence(shopModel(), nil)
	text := d.String()
	assert.Contains(t, text, "participant \"API Gateway\" as API_Gateway\n")
	assert.Contains(t, text, "API_Gateway -> Orders : place order\n")
}

func TestSequenceRules(t *testing.T) {
	plain := RenderSequence(shopModel(), nil).String()
	assert.Equal(t, 2, countLines(plain, "participant Catalog"))
	assert.Equal(t, 2, countLines(plain, "Orders -> Catalog : reserve"))
	assert.NotContains(t, plain, "skinparam")

	deduped := RenderSequence(shopModel(), rules.NewRuleSet(rules.NoDuplicateElements)).String()
	assert.Equal(t, 1, countLines(deduped, "participant Catalog"))
	assert.Equal(t, 1, countLines(deduped, "Orders -> Catalog : reserve"))

	styled := RenderSequence(shopModel(), rules.NewRuleSet(rules.IncreaseSpacing, rules.ImproveAlignment, rules.NumberMessages)).String()
	assert.Contains(t, styled, "skinparam ParticipantPadding 20\n")
	assert.Contains(t, styled, "skinparam BoxPadding 10\n")
	assert.Contains(t, styled, "skinparam sequenceMessageAlign center\n")
	assert.Contains(t, styled, "autonumber\n")
}

func TestSequenceLeftToRightOrder(t *testing.T) {
	d := RenderSequence(shopModel(), rules.NewRuleSet(rules.LeftToRightOrder, rules.NoDuplicateElements))

	var order []string
	for _, s := range d.Statements {
		if p, ok := s.(Participant); ok {
			order = append(order, p.ID)
		}
	}
	assert.Equal(t, []string{"API Gateway", "Orders", "Catalog", "Audit Log"}, order)
}

func TestLayoutRulesPreserveContent(t *testing.T) {
	base := RenderSequence(shopModel(), nil)
	for _, rs := range []rules.RuleSet{
		rules.NewRuleSet(rules.LeftToRightOrder),
		rules.NewRuleSet(rules.NoDuplicateElements),
		rules.NewRuleSet(rules.IncreaseSpacing, rules.ImproveAlignment, rules.NumberMessages),
	} {
		assert.True(t, SameContent(base, RenderSequence(shopModel(), rs)), "rules %v changed content", rs)
	}

	other := RenderSequence(twoComponentModel(), nil)
	assert.False(t, SameContent(base, other))
}

func TestRelationships(t *testing.T) {
	d := RenderSequence(shopModel(), nil)
	assert.Equal(t, []Relationship{
		{From: "API Gateway", To: "Orders", Label: "place order"},
		{From: "Orders", To: "Catalog", Label: "reserve"},
	}, d.Relationships())
	assert.Equal(t, []string{"API Gateway", "Audit Log", "Catalog", "Orders"}, d.Elements())
}

func TestComponentDiagram(t *testing.T) {
	text := RenderComponent(shopModel(), rules.NewRuleSet(rules.LeftToRightOrder, rules.IncreaseSpacing, rules.ImproveAlignment)).String()
	assert.Contains(t, text, "skinparam componentStyle rectangle\n")
	assert.Contains(t, text, "left to right direction\n")
	assert.Contains(t, text, "skinparam nodesep 60\n")
	assert.Contains(t, text, "skinparam ranksep 60\n")
	assert.Contains(t, text, "skinparam linetype ortho\n")
	assert.Equal(t, 1, countLines(text, "component Catalog"))
	assert.Contains(t, text, "component \"API Gateway\" as API_Gateway\n")
	assert.Contains(t, text, "API_Gateway --> Orders : place order\n")
}

func TestDeploymentDiagram(t *testing.T) {
	text := RenderDeployment(shopModel(), nil).String()
	want := strings.Join([]string{
		"@startuml",
		"node web {",
		"  component \"API Gateway\" as API_Gateway",
		"}",
		"database db {",
		"  component Catalog",
		"}",
		"node k8s {",
		"  component Orders",
		"}",
		"",
		"API_Gateway --> Orders : place order",
		"Orders --> Catalog : reserve",
		"Orders --> Catalog : reserve",
		"@enduml",
		"",
	}, "\n")
	assert.Equal(t, want, text)
}

func TestContextDiagram(t *testing.T) {
	text := RenderContext(shopModel(), nil).String()
	assert.Contains(t, text, "rectangle Shop <<system>>\n")
	assert.Contains(t, text, "actor Customer\n")
	assert.Contains(t, text, "rectangle Payments <<external>>\n")
	assert.Contains(t, text, "Customer --> Shop : uses\n")
	assert.Contains(t, text, "Shop --> Payments : integrates with\n")

	withConnectors := model.New("x", "Shop", model.View{
		Name:       model.ViewContext,
		Actors:     []model.Element{{ID: "Customer", Type: model.TypeActor}},
		Connectors: []model.Connector{conn("Customer", "Shop", "browses"), conn("Customer", "Nowhere", "lost")},
	})
	text = RenderContext(withConnectors, nil).String()
	assert.Contains(t, text, "Customer --> Shop : browses\n")
	assert.NotContains(t, text, "Nowhere")
	assert.NotContains(t, text, ": uses")
}

func TestSecurityDiagram(t *testing.T) {
	text := RenderSecurity(shopModel(), nil).String()
	assert.Contains(t, text, "rectangle Shop <<system>> {\n")
	assert.Contains(t, text, "  component Orders\n")
	assert.Contains(t, text, "rectangle TLS <<control>>\n")
	assert.Contains(t, text, "rectangle DMZ <<trust boundary>>\n")
	assert.Contains(t, text, "TLS ..> Shop : protects\n")
}

func TestUnsupportedType(t *testing.T) {
	_, err := Render(shopModel(), "class_diagram", nil)
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.False(t, Supports("class_diagram"))
	assert.True(t, Supports(TypeSequence))
}

func TestAliasCollisions(t *testing.T) {
	m := model.New("x", "x", model.View{
		Name:       model.ViewLogical,
		Components: []model.Element{el("Order Service"), el("Order-Service")},
		Connectors: []model.Connector{conn("Order Service", "Order-Service", "syncs")},
	})
	text := RenderSequence(m, nil).String()
	assert.Contains(t, text, "participant \"Order Service\" as Order_Service\n")
	assert.Contains(t, text, "participant \"Order-Service\" as Order_Service_2\n")
	assert.Contains(t, text, "Order_Service -> Order_Service_2 : syncs\n")
}

func TestSerializerEscapesText(t *testing.T) {
	d := &Diagram{}
	d.Add(
		Participant{Ref: Ref{ID: `Say "hi"`, Alias: "Say_hi"}},
		Note{Target: Ref{ID: "Say_hi", Alias: "Say_hi"}, Text: "line one\nline two"},
		Message{From: Ref{ID: "a", Alias: "a"}, To: Ref{ID: "b", Alias: "b"}},
	)
	assert.Equal(t, "@startuml\nparticipant \"Say 'hi'\" as Say_hi\nnote right of Say_hi : line one\\nline two\na -> b\n@enduml\n", d.String())
}
