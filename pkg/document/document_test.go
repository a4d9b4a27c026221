package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alessiagatto/documenter-agent/pkg/artifact"
	"github.com/alessiagatto/documenter-agent/pkg/compiler"
	"github.com/alessiagatto/documenter-agent/pkg/config"
	"github.com/alessiagatto/documenter-agent/pkg/exec"
	"github.com/alessiagatto/documenter-agent/pkg/model"
	"github.com/alessiagatto/documenter-agent/pkg/refine"
)

type fakeCompiler struct {
	fail  bool
	calls int
}

func (f *fakeCompiler) ImageExt() string { return ".png" }

func (f *fakeCompiler) Compile(_ context.Context, a *artifact.Artifact) error {
	f.calls++
	if f.fail {
		return &compiler.CompileError{Reason: compiler.ReasonMissingTool, Source: a.SourcePath}
	}
	if err := os.WriteFile(a.ImagePath, []byte("png"), 0o644); err != nil {
		return err
	}
	return a.MarkCompiled()
}

// fakePandoc writes the requested output file unless fail is set.
type fakePandoc struct {
	cmd  []string
	fail bool
}

func (f *fakePandoc) Run(_ context.Context, cmd []string, _ *exec.Opts) (exec.Result, error) {
	f.cmd = cmd
	if f.fail {
		return exec.Result{}, exec.ErrNotFound
	}
	for i, arg := range cmd {
		if arg == "-o" {
			return exec.Result{}, os.WriteFile(cmd[i+1], []byte("%PDF"), 0o644)
		}
	}
	return exec.Result{}, errors.New("no output flag")
}

func (f *fakePandoc) LookPath(name string) (string, error) { return name, nil }
func (f *fakePandoc) Name() string                         { return "fake" }

func shop() *model.ArchitectureModel {
	return model.New("shop", "Shop", model.View{
		Name:       model.ViewLogical,
		Components: []model.Element{{ID: "A"}, {ID: "B"}},
		Connectors: []model.Connector{{Source: "A", Target: "B", Type: "calls"}},
	})
}

func docConfig(disablePDF bool) config.DocumentConfig {
	return config.DocumentConfig{
		Title:         "Architecture Documentation",
		PandocCommand: "pandoc",
		PDFEngine:     "xelatex",
		DisablePDF:    disablePDF,
	}
}

func writeSource(t *testing.T, b *Builder, diagramType string) {
	t.Helper()
	art := artifact.New(b.DiagramsPath(), diagramType, ".png")
	require.NoError(t, art.WriteSource("@startuml\n@enduml\n"))
}

func TestMissingCompilerUsesPlaceholder(t *testing.T) {
	comp := &fakeCompiler{fail: true}
	b, err := NewBuilder(docConfig(true), t.TempDir(), comp, &fakePandoc{})
	require.NoError(t, err)
	writeSource(t, b, "sequence_diagram")

	plan := []refine.PlanItem{
		{View: model.ViewRuntime, DiagramType: "sequence_diagram"},
		{View: "runtime_view_2", DiagramType: "sequence_diagram"},
	}
	out, err := b.Build(context.Background(), shop(), plan)
	require.NoError(t, err)

	md, err := os.ReadFile(out.MarkdownPath)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(md), "_Diagram unavailable_"))
	assert.NotContains(t, string(md), "![")
	assert.Equal(t, 1, comp.calls, "a missing image is recompiled at most once")
	assert.False(t, out.Sections[0].Available)
	assert.Empty(t, out.PDFPath)
}

func TestPartialResultsAreNotRecompiled(t *testing.T) {
	comp := &fakeCompiler{}
	b, err := NewBuilder(docConfig(true), t.TempDir(), comp, &fakePandoc{})
	require.NoError(t, err)
	writeSource(t, b, "sequence_diagram")
	writeSource(t, b, "component_diagram")

	plan := []refine.PlanItem{
		{View: model.ViewLogical, DiagramType: "component_diagram"},
		{View: model.ViewRuntime, DiagramType: "sequence_diagram"},
	}
	results := []*refine.Result{
		{DiagramType: "component_diagram", State: refine.StateFinal},
		{DiagramType: "sequence_diagram", State: refine.StateFinal, Partial: true},
	}
	out, err := b.Build(context.Background(), shop(), plan, results...)
	require.NoError(t, err)

	assert.Equal(t, 1, comp.calls, "only the non-partial diagram is recompiled")
	assert.True(t, out.Sections[0].Available)
	assert.False(t, out.Sections[1].Available)
}

func TestAvailableImageIsLinked(t *testing.T) {
	comp := &fakeCompiler{}
	b, err := NewBuilder(docConfig(true), t.TempDir(), comp, &fakePandoc{})
	require.NoError(t, err)
	writeSource(t, b, "component_diagram")

	out, err := b.Build(context.Background(), shop(), []refine.PlanItem{
		{View: model.ViewLogical, DiagramType: "component_diagram"},
		{View: model.ViewSecurity, DiagramType: "security_diagram"},
	})
	require.NoError(t, err)

	md, err := os.ReadFile(out.MarkdownPath)
	require.NoError(t, err)
	text := string(md)
	assert.Contains(t, text, "# Architecture Documentation")
	assert.Contains(t, text, "## 2. Component Diagram")
	assert.Contains(t, text, "![Component Diagram](diagrams/component_diagram.png)")
	assert.Contains(t, text, "- A → B (calls)")
	assert.Contains(t, text, "## 3. Security Diagram")
	assert.Contains(t, text, "_Diagram unavailable_", "no source for the security diagram")
	assert.Contains(t, text, "## 4. Conclusions")
	assert.Less(t, strings.Index(text, "## 2."), strings.Index(text, "![Component Diagram]"))
}

func TestPDFGeneration(t *testing.T) {
	dir := t.TempDir()
	pandoc := &fakePandoc{}
	b, err := NewBuilder(docConfig(false), dir, &fakeCompiler{}, pandoc)
	require.NoError(t, err)

	out, err := b.Build(context.Background(), shop(), nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, PDFFile), out.PDFPath)
	assert.Contains(t, pandoc.cmd, "--pdf-engine=xelatex")
	assert.Contains(t, pandoc.cmd, "--resource-path")
}

func TestPDFFailureIsNotFatal(t *testing.T) {
	b, err := NewBuilder(docConfig(false), t.TempDir(), &fakeCompiler{}, &fakePandoc{fail: true})
	require.NoError(t, err)

	out, err := b.Build(context.Background(), shop(), []refine.PlanItem{{View: model.ViewContext, DiagramType: "context_diagram"}})
	require.NoError(t, err)
	assert.Empty(t, out.PDFPath)
	assert.FileExists(t, out.MarkdownPath)
}

func TestDescribe(t *testing.T) {
	var conns []model.Connector
	for i := range 15 {
		conns = append(conns, model.Connector{Source: fmt.Sprintf("S%d", i), Target: "T", Type: "uses"})
	}
	m := model.New("a", "a",
		model.View{Name: model.ViewLogical, Components: []model.Element{
			{ID: "T"},
			{ID: "Gateway", Interfaces: map[string]any{"rest": "/api", "grpc": ":9090"}},
		}, Connectors: conns},
		model.View{Name: model.ViewDeployment, Placements: []model.Placement{{Node: "k8s", Components: []string{"T"}}}},
	)

	logical := Describe(m, model.ViewLogical)
	assert.Equal(t, 12, strings.Count(logical, "→"))
	assert.Contains(t, logical, "- T\n")
	assert.Contains(t, logical, "- Gateway (interfaces: grpc, rest)\n")

	assert.Contains(t, Describe(m, model.ViewDeployment), "- k8s: T")
	assert.Equal(t, fallbackDescriptions[model.ViewLogical], Describe(model.New("e", "e"), model.ViewLogical))
	assert.Equal(t, "No description is available for this view.", Describe(m, "custom_view"))
	assert.Equal(t, "custom_view", ViewTitle("custom_view"))
}
