// Package knowledge holds the documentation knowledge base: which diagram
// type documents each view, layout limits, and the per-diagram-type quality
// rules accumulated from critique.
//
// A Store is an explicit handle loaded once per run and passed to every
// component that needs it. Merge is the only mutation; it is serialized and
// persists the whole document atomically before returning.
package knowledge

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"

	"github.com/alessiagatto/documenter-agent/pkg/logx"
	"github.com/alessiagatto/documenter-agent/pkg/rules"
	"github.com/alessiagatto/documenter-agent/pkg/utils"
)

// Top-level document keys.
const (
	KeyViewToDiagram = "view_to_diagram_mapping"
	KeyLayoutRules   = "layout_rules"
	KeyQualityRules  = "diagram_quality_rules"
)

// Layout rule names.
const (
	LayoutMaxComponentsPerView = "max_components_per_view"
	DefaultMaxComponents       = 10
)

// ErrNotFound is returned when the knowledge base file does not exist.
var ErrNotFound = errors.New("knowledge base not found")

// Document is the decoded knowledge base.
type Document struct {
	ViewToDiagram map[string]string         `json:"view_to_diagram_mapping"`
	LayoutRules   map[string]any            `json:"layout_rules"`
	QualityRules  map[string]map[string]any `json:"diagram_quality_rules"`
}

// Store is a concurrency-safe knowledge base handle.
type Store struct {
	doc   Document
	extra map[string]json.RawMessage // unknown top-level keys, written back untouched
	path  string                     // empty for an in-memory store
	mu    sync.Mutex
}

// New creates a store around doc. An empty path keeps the store in memory.
func New(path string, doc Document) *Store {
	s := &Store{path: path, doc: cloneDocument(&doc)}
	s.ensureTables()
	return s
}

// Load reads the knowledge base at path.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read knowledge base %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse knowledge base %s: %w", path, err)
	}
	s.path = path
	logger.Info("loaded knowledge base %s (%d view mappings, %d diagram types with rules)",
		path, len(s.doc.ViewToDiagram), len(s.doc.QualityRules))
	return s, nil
}

// Parse decodes a knowledge base document into an in-memory store.
func Parse(data []byte) (*Store, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("knowledge base is not a JSON object: %w", err)
	}

	s := &Store{extra: make(map[string]json.RawMessage)}
	for key, value := range raw {
		var err error
		switch key {
		case KeyViewToDiagram:
			err = json.Unmarshal(value, &s.doc.ViewToDiagram)
		case KeyLayoutRules:
			err = json.Unmarshal(value, &s.doc.LayoutRules)
		case KeyQualityRules:
			err = json.Unmarshal(value, &s.doc.QualityRules)
		default:
			s.extra[key] = value
		}
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	s.ensureTables()
	return s, nil
}

func (s *Store) ensureTables() {
	if s.doc.ViewToDiagram == nil {
		s.doc.ViewToDiagram = make(map[string]string)
	}
	if s.doc.LayoutRules == nil {
		s.doc.LayoutRules = make(map[string]any)
	}
	if s.doc.QualityRules == nil {
		s.doc.QualityRules = make(map[string]map[string]any)
	}
}

// Path returns the backing file path, or "" for an in-memory store.
func (s *Store) Path() string {
	return s.path
}

// DiagramTypeFor returns the diagram type mapped to a view.
func (s *Store) DiagramTypeFor(view string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.doc.ViewToDiagram[view]
	return t, ok && t != ""
}

// MappedViews returns every view with a diagram type, sorted.
func (s *Store) MappedViews() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	views := make([]string, 0, len(s.doc.ViewToDiagram))
	for view, t := range s.doc.ViewToDiagram {
		if t != "" {
			views = append(views, view)
		}
	}
	sort.Strings(views)
	return views
}

// LayoutInt returns an integer layout rule, or def when it is absent or not a whole number.
func (s *Store) LayoutInt(name string, def int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := utils.AsInt(s.doc.LayoutRules[name]); ok {
		return n
	}
	return def
}

// MaxComponentsPerView returns the layout limit on logical components.
func (s *Store) MaxComponentsPerView() int {
	return s.LayoutInt(LayoutMaxComponentsPerView, DefaultMaxComponents)
}

// QualityRules returns the rules currently set for a diagram type.
// Non-boolean values count as set when they are truthy.
func (s *Store) QualityRules(diagramType string) rules.RuleSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := rules.RuleSet{}
	for name, value := range s.doc.QualityRules[diagramType] {
		if utils.Truthy(value) {
			set.Add(name)
		}
	}
	return set
}

// Merge sets every rule in incoming to true for diagramType, creating the
// table if absent, and persists the document. It returns the rules that were
// not already set. Merging never clears a rule, and a merge that changes
// nothing does not touch the file.
//
// On a write failure the in-memory state keeps the merged rules and the
// error is returned.
func (s *Store) Merge(diagramType string, incoming rules.RuleSet) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table := s.doc.QualityRules[diagramType]
	if table == nil {
		table = make(map[string]any)
	}

	var added []string
	for _, name := range incoming.Names() {
		if utils.Truthy(table[name]) {
			continue
		}
		table[name] = true
		added = append(added, name)
	}
	if len(added) == 0 {
		return nil, nil
	}
	s.doc.QualityRules[diagramType] = table

	if err := s.saveLocked(); err != nil {
		return added, err
	}
	logger.Info("merged %d new rules for %s: %v", len(added), diagramType, added)
	return added, nil
}

func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}
	data, err := s.marshalLocked()
	if err != nil {
		return err
	}
	if err := utils.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write knowledge base %s: %w", s.path, err)
	}
	return nil
}

// Bytes returns the document as it would be written to disk.
func (s *Store) Bytes() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marshalLocked()
}

func (s *Store) marshalLocked() ([]byte, error) {
	out := make(map[string]any, len(s.extra)+3)
	for key, value := range s.extra {
		out[key] = value
	}
	out[KeyViewToDiagram] = s.doc.ViewToDiagram
	out[KeyLayoutRules] = s.doc.LayoutRules
	out[KeyQualityRules] = s.doc.QualityRules

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode knowledge base: %w", err)
	}
	return append(data, '\n'), nil
}

// Snapshot returns a deep copy of the document.
func (s *Store) Snapshot() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneDocument(&s.doc)
}

func cloneDocument(doc *Document) Document {
	out := Document{
		ViewToDiagram: make(map[string]string, len(doc.ViewToDiagram)),
		LayoutRules:   make(map[string]any, len(doc.LayoutRules)),
		QualityRules:  make(map[string]map[string]any, len(doc.QualityRules)),
	}
	for k, v := range doc.ViewToDiagram {
		out.ViewToDiagram[k] = v
	}
	for k, v := range doc.LayoutRules {
		out.LayoutRules[k] = v
	}
	for t, table := range doc.QualityRules {
		copied := make(map[string]any, len(table))
		for k, v := range table {
			copied[k] = v
		}
		out.QualityRules[t] = copied
	}
	return out
}

//nolint:gochecknoglobals // package logger
var logger = logx.NewLogger("knowledge")
