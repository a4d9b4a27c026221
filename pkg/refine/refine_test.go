package refine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alessiagatto/documenter-agent/pkg/artifact"
	"github.com/alessiagatto/documenter-agent/pkg/compiler"
	"github.com/alessiagatto/documenter-agent/pkg/diagram"
	"github.com/alessiagatto/documenter-agent/pkg/knowledge"
	"github.com/alessiagatto/documenter-agent/pkg/logx"
	"github.com/alessiagatto/documenter-agent/pkg/metrics"
	"github.com/alessiagatto/documenter-agent/pkg/model"
	"github.com/alessiagatto/documenter-agent/pkg/persistence"
	"github.com/alessiagatto/documenter-agent/pkg/rules"
)

// fakeCompiler writes a placeholder image for every compile. Calls listed in
// failOn (1-based) fail as if the tool were missing.
type fakeCompiler struct {
	failOn map[int]bool
	mu     sync.Mutex
	calls  int
}

func (f *fakeCompiler) ImageExt() string { return ".png" }

func (f *fakeCompiler) Compile(_ context.Context, a *artifact.Artifact) error {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	if err := a.Invalidate(); err != nil {
		return err
	}
	if f.failOn[n] {
		return &compiler.CompileError{Reason: compiler.ReasonMissingTool, Source: a.SourcePath, Err: errors.New("plantuml not found")}
	}
	if err := os.WriteFile(a.ImagePath, []byte("png"), 0o644); err != nil {
		return err
	}
	return a.MarkCompiled()
}

func (f *fakeCompiler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeCritic struct {
	feedback  string
	component any
	mu        sync.Mutex
	calls     int
}

func (f *fakeCritic) Critique(ctx context.Context, imagePath, _ string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.component = ctx.Value(logx.ComponentKey)
	if _, err := os.Stat(imagePath); err != nil {
		return ""
	}
	return f.feedback
}

type countingExtractor struct {
	rules.Extractor
	component any
	calls     int
}

func (c *countingExtractor) Extract(ctx context.Context, diagramType, feedback string) rules.RuleSet {
	c.calls++
	c.component = ctx.Value(logx.ComponentKey)
	return c.Extractor.Extract(ctx, diagramType, feedback)
}

func el(id string) model.Element { return model.Element{ID: id, Kind: model.KindReference} }

// reversedModel declares B before A, so first-interaction ordering changes the text.
func reversedModel() *model.ArchitectureModel {
	return model.New("shop", "Shop", model.View{
		Name:       model.ViewLogical,
		Components: []model.Element{el("B"), el("A")},
		Connectors: []model.Connector{{Source: "A", Target: "B", Type: "calls"}},
	})
}

type fixture struct {
	orch      *Orchestrator
	compiler  *fakeCompiler
	critic    *fakeCritic
	extractor *countingExtractor
	store     *knowledge.Store
	recorder  *metrics.Recorder
	dir       string
	kbPath    string
}

func newFixture(t *testing.T, feedback string, mutate func(*Deps)) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		compiler:  &fakeCompiler{},
		critic:    &fakeCritic{feedback: feedback},
		extractor: &countingExtractor{Extractor: rules.NewKeywordExtractor()},
		recorder:  metrics.NewRecorder(false),
		dir:       filepath.Join(dir, "diagrams"),
		kbPath:    filepath.Join(dir, "kb.json"),
	}
	f.store = knowledge.New(f.kbPath, knowledge.Document{
		ViewToDiagram: map[string]string{
			model.ViewLogical:    diagram.TypeComponent,
			model.ViewRuntime:    diagram.TypeSequence,
			model.ViewDeployment: diagram.TypeDeployment,
		},
	})

	deps := Deps{
		Compiler:  f.compiler,
		Critic:    f.critic,
		Extractor: f.extractor,
		Rules:     f.store,
		Metrics:   f.recorder,
	}
	if mutate != nil {
		mutate(&deps)
	}
	orch, err := New(deps, Options{
		OutputDir:    f.dir,
		ShouldRefine: func(dt string) bool { return dt == diagram.TypeSequence },
	})
	require.NoError(t, err)
	f.orch = orch
	return f
}

var sequenceItem = PlanItem{View: model.ViewRuntime, DiagramType: diagram.TypeSequence}

func TestSuccessfulRefinement(t *testing.T) {
	f := newFixture(t, "Enforce left to right order and avoid duplicates.", nil)
	m := reversedModel()

	firstPass, err := diagram.Render(m, diagram.TypeSequence, rules.NewRuleSet())
	require.NoError(t, err)

	res, err := f.orch.Run(context.Background(), m, sequenceItem)
	require.NoError(t, err)

	assert.Equal(t, []State{
		StateInitial, StateRendered, StateCompiled, StateCritiqued,
		StateExtracted, StateMerged, StateRendered2, StateFinal,
	}, res.Trace)
	assert.True(t, res.Refined)
	assert.True(t, res.Changed)
	assert.False(t, res.Partial)
	assert.True(t, res.ImageAvailable)
	assert.Equal(t, metrics.OutcomeRefined, res.Outcome())
	assert.Equal(t, []string{rules.LeftToRightOrder, rules.NoDuplicateElements}, res.RulesAdded)
	assert.Equal(t, 2, f.compiler.count())
	assert.Positive(t, res.FeedbackTokens)
	assert.Equal(t, "refine", f.critic.component, "critic runs under the refine component")
	assert.Equal(t, "refine", f.extractor.component, "extractor runs under the refine component")

	src, err := os.ReadFile(res.SourcePath)
	require.NoError(t, err)
	assert.NotEqual(t, firstPass.String(), string(src))
	assert.Less(t, indexOf(string(src), "participant A"), indexOf(string(src), "participant B"))

	// Persisted to the knowledge base file.
	reloaded, err := knowledge.Load(f.kbPath)
	require.NoError(t, err)
	assert.True(t, reloaded.QualityRules(diagram.TypeSequence).Has(rules.LeftToRightOrder))

	samples, err := f.recorder.Counters()
	require.NoError(t, err)
	assert.Contains(t, samples, metrics.Sample{
		Name: "documenter_rules_merged_total", Labels: `diagram_type="sequence_diagram"`, Value: 2,
	})
}

func TestEmptyFeedbackKeepsFirstPass(t *testing.T) {
	f := newFixture(t, "", nil)
	m := reversedModel()

	res, err := f.orch.Run(context.Background(), m, sequenceItem)
	require.NoError(t, err)

	assert.Equal(t, []State{StateInitial, StateRendered, StateCompiled, StateCritiqued, StateFinal}, res.Trace)
	assert.Equal(t, StateFinal, res.State)
	assert.False(t, res.Refined)
	assert.Zero(t, f.extractor.calls, "extractor must not run without feedback")
	assert.Equal(t, 1, f.compiler.count(), "no regeneration, no recompile")
	assert.True(t, res.ImageAvailable)

	firstPass, err := diagram.Render(m, diagram.TypeSequence, rules.NewRuleSet())
	require.NoError(t, err)
	src, err := os.ReadFile(res.SourcePath)
	require.NoError(t, err)
	assert.Equal(t, firstPass.String(), string(src))
	assert.Equal(t, metrics.OutcomeSkipped, res.Outcome())
}

func TestMissingCompilerEndsPartial(t *testing.T) {
	f := newFixture(t, "avoid duplicates", nil)
	f.compiler.failOn = map[int]bool{1: true}

	res, err := f.orch.Run(context.Background(), reversedModel(), sequenceItem)
	require.NoError(t, err)

	assert.Equal(t, []State{StateInitial, StateRendered, StateFinal}, res.Trace)
	assert.True(t, res.Partial)
	assert.False(t, res.ImageAvailable)
	assert.Empty(t, res.ImagePath)
	assert.Equal(t, compiler.ReasonMissingTool, compiler.ReasonOf(res.CompileError))
	assert.Zero(t, f.critic.calls)
	assert.FileExists(t, res.SourcePath)
	assert.NoFileExists(t, artifact.ImagePathFor(res.SourcePath, ".png"))
}

func TestRecompileFailureEndsPartial(t *testing.T) {
	f := newFixture(t, "left to right please", nil)
	f.compiler.failOn = map[int]bool{2: true}

	res, err := f.orch.Run(context.Background(), reversedModel(), sequenceItem)
	require.NoError(t, err)

	assert.Equal(t, StateRendered2, res.Trace[len(res.Trace)-2])
	assert.Equal(t, StateFinal, res.State)
	assert.True(t, res.Partial)
	assert.False(t, res.Refined)
	assert.False(t, res.ImageAvailable, "the first-pass image must not survive as a stale image")
}

func TestRegenerationChangingContentIsRejected(t *testing.T) {
	calls := 0
	f := newFixture(t, "left to right", func(d *Deps) {
		d.Render = func(m *model.ArchitectureModel, dt string, rs rules.RuleSet) (*diagram.Diagram, error) {
			calls++
			out, err := diagram.Render(m, dt, rs)
			if err != nil || calls == 1 {
				return out, err
			}
			// Retarget the only relationship.
			out.Add(diagram.Message{From: diagram.Ref{ID: "B", Alias: "B"}, To: diagram.Ref{ID: "A", Alias: "A"}, Label: "extra"})
			return out, nil
		}
	})
	m := reversedModel()

	res, err := f.orch.Run(context.Background(), m, sequenceItem)
	require.NoError(t, err)

	assert.True(t, res.Rejected)
	assert.False(t, res.Refined)
	assert.False(t, res.Changed)
	assert.True(t, res.ImageAvailable)
	assert.Equal(t, StateFinal, res.State)
	assert.Equal(t, 2, f.compiler.count(), "restored first pass is recompiled")

	firstPass, err := diagram.Render(m, diagram.TypeSequence, rules.NewRuleSet())
	require.NoError(t, err)
	src, err := os.ReadFile(res.SourcePath)
	require.NoError(t, err)
	assert.Equal(t, firstPass.String(), string(src))
	assert.Equal(t, metrics.OutcomeRejected, res.Outcome())
}

func TestNonRefinedTypeSkipsCritique(t *testing.T) {
	f := newFixture(t, "avoid duplicates", nil)

	res, err := f.orch.Run(context.Background(), reversedModel(), PlanItem{View: model.ViewLogical, DiagramType: diagram.TypeComponent})
	require.NoError(t, err)

	assert.Equal(t, []State{StateInitial, StateRendered, StateCompiled, StateFinal}, res.Trace)
	assert.Zero(t, f.critic.calls)
	assert.True(t, res.ImageAvailable)
	assert.Equal(t, filepath.Join(f.dir, "component_diagram.png"), res.ImagePath)
}

func TestUnsupportedType(t *testing.T) {
	f := newFixture(t, "", nil)
	_, err := f.orch.Run(context.Background(), reversedModel(), PlanItem{View: "x", DiagramType: "activity_diagram"})
	assert.ErrorIs(t, err, diagram.ErrUnsupportedType)
}

func TestMergeFailureStillRegenerates(t *testing.T) {
	f := newFixture(t, "left to right", nil)
	// A directory where the file should be makes the atomic rename fail.
	require.NoError(t, os.MkdirAll(f.kbPath, 0o755))

	res, err := f.orch.Run(context.Background(), reversedModel(), sequenceItem)
	require.NoError(t, err)
	assert.True(t, res.Refined)
	assert.Contains(t, res.Rules, rules.LeftToRightOrder)
}

func TestHistoryIsRecorded(t *testing.T) {
	db, err := persistence.Open(persistence.MemoryPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	f := newFixture(t, "avoid duplicates", func(d *Deps) { d.History = db })

	_, err = f.orch.Run(context.Background(), reversedModel(), sequenceItem)
	require.NoError(t, err)

	recs, err := db.ListRefinements(context.Background(), persistence.ListFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "shop", recs[0].ArchitectureID)
	assert.Equal(t, "FINAL", recs[0].FinalState)
	assert.Equal(t, "avoid duplicates", recs[0].Feedback)
	assert.Equal(t, []string{rules.NoDuplicateElements}, recs[0].RulesAdded)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Deps{}, Options{})
	assert.Error(t, err)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
