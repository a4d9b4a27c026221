package diagram

import (
	"slices"
	"sort"
	"strings"
)

// Ref names a diagram element: ID is the architecture identifier, Alias the
// token used to reference it in the diagram text.
type Ref struct {
	ID    string
	Alias string
}

// Statement is one line (or block) of diagram source. The set of statement
// types is closed; Diagram.String is the only serializer.
type Statement interface {
	write(b *strings.Builder, indent string)
}

// Participant declares a sequence diagram lifeline.
type Participant struct {
	Keyword string // participant, actor, database, ...
	Ref
}

// Message is a sequence diagram interaction.
type Message struct {
	Label string
	From  Ref
	To    Ref
}

// Element declares a box in a structural diagram.
type Element struct {
	Keyword    string // component, node, actor, rectangle, database
	Stereotype string
	Ref
}

// Relation is an arrow between structural elements.
type Relation struct {
	Arrow string // defaults to -->
	Label string
	From  Ref
	To    Ref
}

// Group declares a container element with nested statements.
type Group struct {
	Keyword    string
	Stereotype string
	Ref
	Body []Statement
}

// Note attaches text to an element.
type Note struct {
	Position string // "right of", "left of", "over"
	Text     string
	Target   Ref
}

// SkinParam sets a rendering parameter.
type SkinParam struct {
	Name  string
	Value string
}

// Directive is a bare keyword line such as "autonumber" or "left to right direction".
type Directive struct {
	Text string
}

// Blank separates statement groups.
type Blank struct{}

func (p Participant) write(b *strings.Builder, indent string) {
	b.WriteString(indent)
	b.WriteString(keywordOr(p.Keyword, "participant"))
	b.WriteByte(' ')
	writeDeclaration(b, p.Ref)
	b.WriteByte('\n')
}

func (m Message) write(b *strings.Builder, indent string) {
	b.WriteString(indent)
	b.WriteString(m.From.Alias)
	b.WriteString(" -> ")
	b.WriteString(m.To.Alias)
	writeLabel(b, m.Label)
	b.WriteByte('\n')
}

func (e Element) write(b *strings.Builder, indent string) {
	b.WriteString(indent)
	b.WriteString(keywordOr(e.Keyword, "component"))
	b.WriteByte(' ')
	writeDeclaration(b, e.Ref)
	writeStereotype(b, e.Stereotype)
	b.WriteByte('\n')
}

func (r Relation) write(b *strings.Builder, indent string) {
	b.WriteString(indent)
	b.WriteString(r.From.Alias)
	b.WriteByte(' ')
	b.WriteString(keywordOr(r.Arrow, "-->"))
	b.WriteByte(' ')
	b.WriteString(r.To.Alias)
	writeLabel(b, r.Label)
	b.WriteByte('\n')
}

func (g Group) write(b *strings.Builder, indent string) {
	b.WriteString(indent)
	b.WriteString(keywordOr(g.Keyword, "node"))
	b.WriteByte(' ')
	writeDeclaration(b, g.Ref)
	writeStereotype(b, g.Stereotype)
	if len(g.Body) == 0 {
		b.WriteByte('\n')
		return
	}
	b.WriteString(" {\n")
	for _, s := range g.Body {
		s.write(b, indent+"  ")
	}
	b.WriteString(indent)
	b.WriteString("}\n")
}

func (n Note) write(b *strings.Builder, indent string) {
	b.WriteString(indent)
	b.WriteString("note ")
	b.WriteString(keywordOr(n.Position, "right of"))
	b.WriteByte(' ')
	b.WriteString(n.Target.Alias)
	b.WriteString(" : ")
	b.WriteString(escapeText(n.Text))
	b.WriteByte('\n')
}

func (s SkinParam) write(b *strings.Builder, indent string) {
	b.WriteString(indent)
	b.WriteString("skinparam ")
	b.WriteString(s.Name)
	b.WriteByte(' ')
	b.WriteString(s.Value)
	b.WriteByte('\n')
}

func (d Directive) write(b *strings.Builder, indent string) {
	b.WriteString(indent)
	b.WriteString(d.Text)
	b.WriteByte('\n')
}

func (Blank) write(b *strings.Builder, _ string) {
	b.WriteByte('\n')
}

func keywordOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// writeDeclaration emits a bare identifier when the ID is its own alias,
// and `"Display Name" as Alias` otherwise.
func writeDeclaration(b *strings.Builder, r Ref) {
	if r.ID == r.Alias {
		b.WriteString(r.Alias)
		return
	}
	b.WriteByte('"')
	b.WriteString(strings.ReplaceAll(escapeText(r.ID), `"`, "'"))
	b.WriteString(`" as `)
	b.WriteString(r.Alias)
}

func writeStereotype(b *strings.Builder, stereotype string) {
	if stereotype == "" {
		return
	}
	b.WriteString(" <<")
	b.WriteString(stereotype)
	b.WriteString(">>")
}

func writeLabel(b *strings.Builder, label string) {
	if label = escapeText(label); label == "" {
		return
	}
	b.WriteString(" : ")
	b.WriteString(label)
}

// escapeText keeps free text on one source line.
func escapeText(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", `\n`)
}

// Relationship is the semantic identity of an arrow: endpoints by
// architecture ID plus label.
type Relationship struct {
	From  string
	To    string
	Label string
}

// Diagram is an ordered list of statements for one diagram type.
type Diagram struct {
	Type       string
	Statements []Statement
}

// Add appends statements.
func (d *Diagram) Add(stmts ...Statement) {
	d.Statements = append(d.Statements, stmts...)
}

// String serializes the diagram as PlantUML source.
func (d *Diagram) String() string {
	var b strings.Builder
	b.WriteString("@startuml\n")
	for _, s := range d.Statements {
		s.write(&b, "")
	}
	b.WriteString("@enduml\n")
	return b.String()
}

// Relationships returns the distinct relationships drawn, sorted.
func (d *Diagram) Relationships() []Relationship {
	seen := make(map[Relationship]struct{})
	walk(d.Statements, func(s Statement) {
		switch v := s.(type) {
		case Message:
			seen[Relationship{From: v.From.ID, To: v.To.ID, Label: escapeText(v.Label)}] = struct{}{}
		case Relation:
			seen[Relationship{From: v.From.ID, To: v.To.ID, Label: escapeText(v.Label)}] = struct{}{}
		}
	})
	out := make([]Relationship, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		if out[i].To != out[j].To {
			return out[i].To < out[j].To
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// Elements returns the distinct IDs of every declared participant,
// element and group, sorted.
func (d *Diagram) Elements() []string {
	seen := make(map[string]struct{})
	walk(d.Statements, func(s Statement) {
		switch v := s.(type) {
		case Participant:
			seen[v.ID] = struct{}{}
		case Element:
			seen[v.ID] = struct{}{}
		case Group:
			seen[v.ID] = struct{}{}
		}
	})
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func walk(stmts []Statement, fn func(Statement)) {
	for _, s := range stmts {
		fn(s)
		if g, ok := s.(Group); ok {
			walk(g.Body, fn)
		}
	}
}

// SameContent reports whether two diagrams declare the same elements and
// draw the same relationships, ignoring order, duplicates and styling.
func SameContent(a, b *Diagram) bool {
	return slices.Equal(a.Elements(), b.Elements()) &&
		slices.Equal(a.Relationships(), b.Relationships())
}
