package knowledge

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alessiagatto/documenter-agent/pkg/rules"
)

const sampleKB = `{
  "view_to_diagram_mapping": {
    "logical_view": "component_diagram",
    "runtime_view": "sequence_diagram",
    "deployment_view": "deployment_diagram",
    "notes_view": ""
  },
  "layout_rules": {"max_components_per_view": 8},
  "diagram_quality_rules": {
    "sequence_diagram": {"increase_spacing": true, "improve_alignment": false, "legacy_flag": "yes"}
  },
  "authors": ["docs team"]
}`

func writeKB(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "documentation_rules.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	store, err := Load(writeKB(t, sampleKB))
	require.NoError(t, err)

	diagramType, ok := store.DiagramTypeFor("runtime_view")
	assert.True(t, ok)
	assert.Equal(t, "sequence_diagram", diagramType)

	_, ok = store.DiagramTypeFor("notes_view")
	assert.False(t, ok, "empty mappings are not documented")

	assert.Equal(t, []string{"deployment_view", "logical_view", "runtime_view"}, store.MappedViews())
	assert.Equal(t, 8, store.MaxComponentsPerView())
	assert.Equal(t, []string{"increase_spacing", "legacy_flag"}, store.QualityRules("sequence_diagram").Names())
	assert.Zero(t, store.QualityRules("component_diagram").Len())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Load(writeKB(t, `[1, 2]`))
	assert.Error(t, err)

	_, err = Load(writeKB(t, `{"view_to_diagram_mapping": ["x"]}`))
	assert.Error(t, err)
}

func TestDefaultLayoutLimit(t *testing.T) {
	store := New("", Document{LayoutRules: map[string]any{LayoutMaxComponentsPerView: "lots"}})
	assert.Equal(t, DefaultMaxComponents, store.MaxComponentsPerView())
}

func TestMergeCreatesTableAndPersists(t *testing.T) {
	path := writeKB(t, `{"view_to_diagram_mapping": {"runtime_view": "sequence_diagram"}}`)
	store, err := Load(path)
	require.NoError(t, err)

	added, err := store.Merge("sequence_diagram", rules.NewRuleSet(rules.LeftToRightOrder))
	require.NoError(t, err)
	assert.Equal(t, []string{rules.LeftToRightOrder}, added)

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.True(t, reloaded.QualityRules("sequence_diagram").Has(rules.LeftToRightOrder))
}

func TestMergeIsIdempotent(t *testing.T) {
	path := writeKB(t, sampleKB)
	store, err := Load(path)
	require.NoError(t, err)

	incoming := rules.NewRuleSet(rules.LeftToRightOrder, rules.NoDuplicateElements)

	_, err = store.Merge("sequence_diagram", incoming)
	require.NoError(t, err)
	once, err := os.ReadFile(path)
	require.NoError(t, err)

	added, err := store.Merge("sequence_diagram", incoming)
	require.NoError(t, err)
	assert.Empty(t, added)
	twice, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, string(once), string(twice))
}

func TestMergeIsMonotonic(t *testing.T) {
	store, err := Load(writeKB(t, sampleKB))
	require.NoError(t, err)

	before := store.QualityRules("sequence_diagram")

	_, err = store.Merge("sequence_diagram", rules.NewRuleSet(rules.ImproveAlignment))
	require.NoError(t, err)
	_, err = store.Merge("sequence_diagram", rules.RuleSet{})
	require.NoError(t, err)
	_, err = store.Merge("component_diagram", rules.NewRuleSet(rules.NumberMessages))
	require.NoError(t, err)

	after := store.QualityRules("sequence_diagram")
	for _, name := range before.Names() {
		assert.True(t, after.Has(name), "rule %s was cleared", name)
	}
	assert.True(t, after.Has(rules.ImproveAlignment), "false flags are set by merge")
	assert.False(t, after.Has(rules.NumberMessages), "rules must not cross diagram types")
}

func TestMergePreservesUnknownKeys(t *testing.T) {
	path := writeKB(t, sampleKB)
	store, err := Load(path)
	require.NoError(t, err)

	_, err = store.Merge("sequence_diagram", rules.NewRuleSet(rules.NumberMessages))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"authors"`)
	assert.Contains(t, string(data), `"docs team"`)
	assert.Contains(t, string(data), `"legacy_flag": "yes"`)
}

func TestConcurrentMerges(t *testing.T) {
	path := writeKB(t, `{}`)
	store, err := Load(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, mergeErr := store.Merge("sequence_diagram", rules.NewRuleSet(fmt.Sprintf("rule_%02d", i)))
			assert.NoError(t, mergeErr)
		}(i)
	}
	wg.Wait()

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20, reloaded.QualityRules("sequence_diagram").Len())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestMergeWriteFailureKeepsMemoryState(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	store := New(filepath.Join(blocker, "kb.json"), Document{})
	added, err := store.Merge("sequence_diagram", rules.NewRuleSet(rules.IncreaseSpacing))
	assert.Error(t, err)
	assert.Equal(t, []string{rules.IncreaseSpacing}, added)
	assert.True(t, store.QualityRules("sequence_diagram").Has(rules.IncreaseSpacing))
}

func TestSnapshotIsACopy(t *testing.T) {
	store := New("", Document{ViewToDiagram: map[string]string{"runtime_view": "sequence_diagram"}})
	snap := store.Snapshot()
	snap.ViewToDiagram["runtime_view"] = "changed"
	snap.QualityRules["sequence_diagram"] = map[string]any{"x": true}

	diagramType, _ := store.DiagramTypeFor("runtime_view")
	assert.Equal(t, "sequence_diagram", diagramType)
	assert.Zero(t, store.QualityRules("sequence_diagram").Len())
}
