// Package refine drives diagrams through the render, compile, critique,
// extract, merge and regenerate pipeline.
package refine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alessiagatto/documenter-agent/pkg/artifact"
	"github.com/alessiagatto/documenter-agent/pkg/compiler"
	"github.com/alessiagatto/documenter-agent/pkg/diagram"
	"github.com/alessiagatto/documenter-agent/pkg/logx"
	"github.com/alessiagatto/documenter-agent/pkg/metrics"
	"github.com/alessiagatto/documenter-agent/pkg/model"
	"github.com/alessiagatto/documenter-agent/pkg/persistence"
	"github.com/alessiagatto/documenter-agent/pkg/rules"
	"github.com/alessiagatto/documenter-agent/pkg/utils"
)

// Stage names used for timing.
const (
	StageRender    = "render"
	StageCompile   = "compile"
	StageCritique  = "critique"
	StageExtract   = "extract"
	StageMerge     = "merge"
	StageRerender  = "rerender"
	StageRecompile = "recompile"
)

// Compiler turns an artifact's source into its image.
type Compiler interface {
	Compile(ctx context.Context, a *artifact.Artifact) error
	ImageExt() string
}

// Critic returns feedback for a compiled image, or "" when none is available.
type Critic interface {
	Critique(ctx context.Context, imagePath, diagramType string) string
}

// RuleStore is the knowledge base as seen by the pipeline.
type RuleStore interface {
	QualityRules(diagramType string) rules.RuleSet
	Merge(diagramType string, incoming rules.RuleSet) ([]string, error)
}

// History persists one record per finished diagram.
type History interface {
	SaveRefinement(ctx context.Context, r *persistence.Refinement) error
}

// Metrics receives pipeline observations.
type Metrics interface {
	ObserveStage(diagramType, stage string, duration time.Duration)
	IncRefinement(diagramType, outcome string)
	AddRulesMerged(diagramType string, n int)
	IncCompileFailure(diagramType, reason string)
}

// RenderFunc renders a diagram type with a rule set.
type RenderFunc func(m *model.ArchitectureModel, diagramType string, rs rules.RuleSet) (*diagram.Diagram, error)

// Deps are the collaborators of an Orchestrator. Compiler, Critic, Extractor
// and Rules are required; Render defaults to diagram.Render and History,
// Metrics and Tokens may be nil.
type Deps struct {
	Render    RenderFunc
	Compiler  Compiler
	Critic    Critic
	Extractor rules.Extractor
	Rules     RuleStore
	History   History
	Metrics   Metrics
	Tokens    *utils.TokenCounter
}

// Options configure an Orchestrator.
type Options struct {
	// ShouldRefine selects the diagram types that go through critique.
	// Nil refines nothing.
	ShouldRefine func(diagramType string) bool
	OutputDir    string
	RunID        string
}

// Result is the outcome of one diagram's pipeline.
type Result struct {
	DiagramType    string
	View           string
	State          State
	Trace          []State
	Feedback       string
	Rules          []string
	RulesAdded     []string
	SourcePath     string
	ImagePath      string
	CompileError   error
	FeedbackTokens int
	// Refined is set when a regenerated rendering was published.
	Refined bool
	// Changed is set when the published text differs from the first pass.
	Changed bool
	// Rejected is set when the regenerated rendering altered the diagram's
	// content and the first pass was restored.
	Rejected       bool
	Partial        bool
	ImageAvailable bool
}

// Outcome summarises the result as a metrics outcome label.
func (r *Result) Outcome() string {
	switch {
	case r.Partial:
		return metrics.OutcomePartial
	case r.Rejected:
		return metrics.OutcomeRejected
	case r.Refined && r.Changed:
		return metrics.OutcomeRefined
	case r.Refined:
		return metrics.OutcomeUnchanged
	default:
		return metrics.OutcomeSkipped
	}
}

// Orchestrator runs the refinement state machine, one diagram per call.
// It is safe for concurrent use across distinct diagram types.
type Orchestrator struct {
	deps   Deps
	opts   Options
	logger *logx.Logger
}

// New creates an Orchestrator.
func New(deps Deps, opts Options) (*Orchestrator, error) {
	switch {
	case deps.Compiler == nil:
		return nil, errors.New("refine: compiler is required")
	case deps.Critic == nil:
		return nil, errors.New("refine: critic is required")
	case deps.Extractor == nil:
		return nil, errors.New("refine: extractor is required")
	case deps.Rules == nil:
		return nil, errors.New("refine: rule store is required")
	}
	if deps.Render == nil {
		deps.Render = diagram.Render
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	if opts.ShouldRefine == nil {
		opts.ShouldRefine = func(string) bool { return false }
	}
	return &Orchestrator{deps: deps, opts: opts, logger: logx.NewLogger("refine")}, nil
}

// Artifact returns the artifact location for a diagram type.
func (o *Orchestrator) Artifact(diagramType string) *artifact.Artifact {
	return artifact.New(o.opts.OutputDir, diagramType, o.deps.Compiler.ImageExt())
}

type run struct {
	o      *Orchestrator
	res    *Result
	ctx    context.Context //nolint:containedctx // scoped to a single Run call
	archID string
}

func (r *run) transition(to State) {
	from := r.res.State
	if !IsValidTransition(from, to) {
		// Programming error; the state machine is closed over this file.
		panic(fmt.Sprintf("refine: invalid transition %s -> %s", from, to))
	}
	r.res.State = to
	r.res.Trace = append(r.res.Trace, to)
	logx.DebugState(r.ctx, "refine", "transition", string(to), r.res.DiagramType)
}

func (r *run) timed(stage string, fn func()) {
	start := time.Now()
	fn()
	r.o.deps.Metrics.ObserveStage(r.res.DiagramType, stage, time.Since(start))
}

// Run drives one diagram to FINAL. An error is returned only when the
// diagram cannot be rendered or its source cannot be written; every other
// fault ends in FINAL with the appropriate flags set.
func (o *Orchestrator) Run(ctx context.Context, m *model.ArchitectureModel, item PlanItem) (*Result, error) {
	if !diagram.Supports(item.DiagramType) {
		return nil, fmt.Errorf("%w: %s", diagram.ErrUnsupportedType, item.DiagramType)
	}

	res := &Result{DiagramType: item.DiagramType, View: item.View, State: StateInitial, Trace: []State{StateInitial}}
	r := &run{o: o, res: res, ctx: logx.WithComponent(ctx, "refine"), archID: m.ID()}
	art := o.Artifact(item.DiagramType)
	res.SourcePath = art.SourcePath

	// First pass with whatever rules earlier runs accumulated.
	var (
		first     *diagram.Diagram
		renderErr error
	)
	r.timed(StageRender, func() {
		first, renderErr = o.deps.Render(m, item.DiagramType, o.deps.Rules.QualityRules(item.DiagramType))
		if renderErr == nil {
			renderErr = art.WriteSource(first.String())
		}
	})
	if renderErr != nil {
		return nil, fmt.Errorf("failed to render %s: %w", item.DiagramType, renderErr)
	}
	r.transition(StateRendered)

	if !r.compile(art, StageCompile) {
		return o.finish(r, art), nil
	}
	r.transition(StateCompiled)

	if !o.opts.ShouldRefine(item.DiagramType) {
		r.transition(StateFinal)
		return o.finish(r, art), nil
	}

	r.timed(StageCritique, func() {
		res.Feedback = o.deps.Critic.Critique(r.ctx, art.ImagePath, item.DiagramType)
	})
	r.transition(StateCritiqued)
	if res.Feedback == "" {
		o.logger.Info("No vision feedback for %s; keeping first-pass rendering", item.DiagramType)
		r.transition(StateFinal)
		return o.finish(r, art), nil
	}
	res.FeedbackTokens = o.deps.Tokens.CountTokens(res.Feedback)

	var extracted rules.RuleSet
	r.timed(StageExtract, func() {
		extracted = o.deps.Extractor.Extract(r.ctx, item.DiagramType, res.Feedback)
	})
	r.transition(StateExtracted)

	r.timed(StageMerge, func() {
		added, err := o.deps.Rules.Merge(item.DiagramType, extracted)
		if err != nil {
			o.logger.Warn("Failed to persist rules for %s: %v", item.DiagramType, err)
		}
		res.RulesAdded = added
		o.deps.Metrics.AddRulesMerged(item.DiagramType, len(added))
	})
	r.transition(StateMerged)

	// The store keeps merged rules in memory even when persisting failed; the
	// union covers stores that do not.
	merged := o.deps.Rules.QualityRules(item.DiagramType).Union(extracted)
	res.Rules = merged.Names()

	var second *diagram.Diagram
	r.timed(StageRerender, func() {
		second, renderErr = o.deps.Render(m, item.DiagramType, merged)
		if renderErr != nil {
			return
		}
		if !diagram.SameContent(first, second) {
			o.logger.Warn("Regenerated %s changed its elements or relationships; restoring first pass", item.DiagramType)
			res.Rejected = true
			second = first
		}
		renderErr = art.WriteSource(second.String())
	})
	if renderErr != nil {
		return nil, fmt.Errorf("failed to regenerate %s: %w", item.DiagramType, renderErr)
	}
	res.Changed = second.String() != first.String()
	r.transition(StateRendered2)

	if r.compile(art, StageRecompile) {
		res.Refined = !res.Rejected
	}
	r.transition(StateFinal)
	return o.finish(r, art), nil
}

// compile runs the compiler, recording failure as a partial result.
// A failure moves straight to FINAL only from RENDERED; from RENDERED2 the
// caller performs the final transition.
func (r *run) compile(art *artifact.Artifact, stage string) bool {
	var err error
	r.timed(stage, func() { err = r.o.deps.Compiler.Compile(r.ctx, art) })
	if err == nil {
		return true
	}

	r.res.Partial = true
	r.res.CompileError = err
	reason := compiler.ReasonOf(err)
	r.o.deps.Metrics.IncCompileFailure(r.res.DiagramType, string(reason))
	r.o.logger.Warn("Diagram %s unavailable (%s): %v", r.res.DiagramType, reason, err)
	if r.res.State == StateRendered {
		r.transition(StateFinal)
	}
	return false
}

func (o *Orchestrator) finish(r *run, art *artifact.Artifact) *Result {
	res := r.res
	if !IsTerminalState(res.State) {
		panic(fmt.Sprintf("refine: %s finished in non-terminal state %s", res.DiagramType, res.State))
	}
	res.ImageAvailable = art.ImageAvailable()
	if res.ImageAvailable {
		res.ImagePath = art.ImagePath
	}
	o.deps.Metrics.IncRefinement(res.DiagramType, res.Outcome())
	o.logger.Info("%s finished: %s (trace %v)", res.DiagramType, res.Outcome(), res.Trace)

	if o.deps.History != nil {
		rec := &persistence.Refinement{
			RunID:          o.opts.RunID,
			ArchitectureID: r.archID,
			DiagramType:    res.DiagramType,
			View:           res.View,
			FinalState:     res.State.String(),
			Feedback:       res.Feedback,
			Rules:          res.Rules,
			RulesAdded:     res.RulesAdded,
			FeedbackTokens: res.FeedbackTokens,
			Refined:        res.Refined,
			Partial:        res.Partial,
			ImageAvailable: res.ImageAvailable,
		}
		if err := o.deps.History.SaveRefinement(r.ctx, rec); err != nil {
			o.logger.Warn("Failed to record history for %s: %v", res.DiagramType, err)
		}
	}
	return res
}

type noopMetrics struct{}

func (noopMetrics) ObserveStage(string, string, time.Duration) {}
func (noopMetrics) IncRefinement(string, string)               {}
func (noopMetrics) AddRulesMerged(string, int)                 {}
func (noopMetrics) IncCompileFailure(string, string)           {}
