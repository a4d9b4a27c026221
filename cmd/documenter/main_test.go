package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alessiagatto/documenter-agent/pkg/knowledge"
	"github.com/alessiagatto/documenter-agent/pkg/refine"
)

func TestLoadConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	configPath = filepath.Join(dir, "missing.yaml")
	kbPath = "kb.json"
	inputPath = "arch.json"
	outputDir = "out"
	architectureID = "ARCH-2"
	t.Cleanup(func() {
		configPath, kbPath, inputPath, outputDir, architectureID = "documenter.yaml", "", "", "", ""
	})

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "kb.json", cfg.Paths.KB)
	assert.Equal(t, "arch.json", cfg.Paths.Input)
	assert.Equal(t, "out", cfg.Paths.OutputDir)
	assert.Equal(t, "ARCH-2", cfg.ArchitectureID)
}

func TestResultRows(t *testing.T) {
	rows := resultRows([]*refine.Result{
		{
			DiagramType:    "sequence_diagram",
			View:           "runtime_view",
			State:          refine.StateFinal,
			Refined:        true,
			Changed:        true,
			ImageAvailable: true,
			ImagePath:      "out/sequence_diagram.png",
			RulesAdded:     []string{"left_to_right_order"},
		},
		{
			DiagramType:  "component_diagram",
			View:         "logical_view",
			State:        refine.StateFinal,
			Partial:      true,
			ImagePath:    "out/component_diagram.png",
			CompileError: errors.New("plantuml not found"),
		},
	})

	require.Len(t, rows, 2)
	assert.Equal(t, "refined", rows[0].Outcome)
	assert.Equal(t, "out/sequence_diagram.png", rows[0].Image)
	assert.Equal(t, "partial", rows[1].Outcome)
	assert.Empty(t, rows[1].Image, "unavailable images are not reported")
	assert.Equal(t, "plantuml not found", rows[1].CompileError)
}

func TestPrintBuildSummary(t *testing.T) {
	var buf bytes.Buffer
	printBuildSummary(&buf, &buildSummary{
		MarkdownPath: "out/documentation.md",
		Results: []resultRow{
			{DiagramType: "context_diagram", View: "context_view", State: "FINAL", Outcome: "skipped"},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "context_diagram\tcontext_view\tFINAL\tskipped\t-\tunavailable")
	assert.Contains(t, out, "Document: out/documentation.md")
	assert.NotContains(t, out, "PDF:")
}

func TestCollectRules(t *testing.T) {
	kb := knowledge.New("", knowledge.Document{
		QualityRules: map[string]map[string]any{
			"sequence_diagram":  {"left_to_right_order": true, "increase_spacing": false},
			"component_diagram": {"improve_alignment": "yes"},
		},
	})

	assert.Equal(t, map[string][]string{
		"sequence_diagram":  {"left_to_right_order"},
		"component_diagram": {"improve_alignment"},
	}, collectRules(kb, ""))
	assert.Equal(t, map[string][]string{"context_diagram": {}}, collectRules(kb, "context_diagram"))
}
