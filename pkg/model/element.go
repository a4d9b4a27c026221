package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ElementKind tags the shape an element was declared with in the input.
type ElementKind string

const (
	// KindReference is an element declared as a bare identifier string.
	KindReference ElementKind = "reference"
	// KindRecord is an element declared as an object with fields.
	KindRecord ElementKind = "record"
)

// Element is the normalised form of every named thing in a view: components,
// deployment nodes, actors, external systems and security controls. The input
// declares these either as plain strings or as objects; both decode into this
// one shape so renderers never branch on it.
type Element struct {
	Interfaces       map[string]any
	ID               string
	Type             string
	Description      string
	Kind             ElementKind
	Responsibilities []string
}

// Label returns the text a diagram should display for the element.
func (e Element) Label() string {
	return e.ID
}

// InterfaceNames returns the element's interface descriptor keys in sorted order.
func (e Element) InterfaceNames() []string {
	names := make([]string, 0, len(e.Interfaces))
	for name := range e.Interfaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type elementRecord struct {
	Interfaces       map[string]any `json:"interfaces"`
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Component        string         `json:"component"`
	Type             string         `json:"type"`
	Kind             string         `json:"kind"`
	Description      string         `json:"description"`
	Responsibilities []string       `json:"responsibilities"`
}

// UnmarshalJSON accepts a string, an object, or any other scalar.
func (e *Element) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*e = Element{}
		return nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("decode element reference: %w", err)
		}
		*e = Element{ID: strings.TrimSpace(s), Kind: KindReference}
		return nil
	case '{':
		var rec elementRecord
		if err := json.Unmarshal(trimmed, &rec); err != nil {
			return fmt.Errorf("decode element record: %w", err)
		}
		*e = Element{
			ID:               firstNonEmpty(rec.ID, rec.Name, rec.Component),
			Type:             firstNonEmpty(rec.Type, rec.Kind),
			Description:      rec.Description,
			Responsibilities: rec.Responsibilities,
			Interfaces:       rec.Interfaces,
			Kind:             KindRecord,
		}
		return nil
	case '[':
		return fmt.Errorf("element cannot be a list")
	default:
		// Numbers and booleans are kept as their literal text.
		*e = Element{ID: string(trimmed), Kind: KindReference}
		return nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// Connector is a directed relationship between two elements.
type Connector struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

type connectorRecord struct {
	Source   string `json:"source"`
	From     string `json:"from"`
	Target   string `json:"target"`
	To       string `json:"to"`
	Type     string `json:"type"`
	Label    string `json:"label"`
	Protocol string `json:"protocol"`
}

// UnmarshalJSON accepts source/target or from/to, and type, label or protocol.
func (c *Connector) UnmarshalJSON(data []byte) error {
	var rec connectorRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("decode connector: %w", err)
	}
	*c = Connector{
		Source: firstNonEmpty(rec.Source, rec.From),
		Target: firstNonEmpty(rec.Target, rec.To),
		Type:   firstNonEmpty(rec.Type, rec.Label, rec.Protocol),
	}
	return nil
}

// Label returns the connector type, or a neutral verb when none was declared.
func (c Connector) Label() string {
	if c.Type == "" {
		return "interacts"
	}
	return c.Type
}
