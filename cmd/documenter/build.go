package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alessiagatto/documenter-agent/pkg/compiler"
	"github.com/alessiagatto/documenter-agent/pkg/config"
	"github.com/alessiagatto/documenter-agent/pkg/critic"
	"github.com/alessiagatto/documenter-agent/pkg/document"
	"github.com/alessiagatto/documenter-agent/pkg/inference"
	"github.com/alessiagatto/documenter-agent/pkg/knowledge"
	"github.com/alessiagatto/documenter-agent/pkg/logx"
	"github.com/alessiagatto/documenter-agent/pkg/metrics"
	"github.com/alessiagatto/documenter-agent/pkg/model"
	"github.com/alessiagatto/documenter-agent/pkg/persistence"
	"github.com/alessiagatto/documenter-agent/pkg/refine"
	"github.com/alessiagatto/documenter-agent/pkg/rules"
	"github.com/alessiagatto/documenter-agent/pkg/utils"
)

//nolint:gochecknoglobals // cobra flag bindings
var (
	buildNoPDF       bool
	buildStrategy    string
	buildConcurrency int
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Generate every diagram in the documentation plan and the document bundle",
	Long: `Generate every diagram in the documentation plan, refine the configured
diagram types against vision feedback, and write the Markdown (and PDF) document.

Unavailable diagrams never fail the build: they appear as placeholders.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("no-pdf") {
			cfg.Document.DisablePDF = buildNoPDF
		}
		if buildStrategy != "" {
			cfg.Extractor.Strategy = buildStrategy
		}
		if buildConcurrency > 0 {
			cfg.Concurrency = buildConcurrency
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		summary, err := runBuild(ctx, cfg)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(os.Stdout, summary)
		}
		printBuildSummary(os.Stdout, summary)
		return nil
	},
}

func init() {
	buildCmd.Flags().BoolVar(&buildNoPDF, "no-pdf", false, "skip PDF generation")
	buildCmd.Flags().StringVar(&buildStrategy, "strategy", "", "rule extraction strategy: model or keyword")
	buildCmd.Flags().IntVar(&buildConcurrency, "concurrency", 0, "diagram types processed in parallel")
}

// buildSummary is what a build reports to the user.
type buildSummary struct {
	ArchitectureID string      `json:"architecture_id"`
	RunID          string      `json:"run_id,omitempty"`
	MarkdownPath   string      `json:"markdown"`
	PDFPath        string      `json:"pdf,omitempty"`
	Results        []resultRow `json:"results"`
}

// runBuild wires the pipeline from cfg and runs it end to end.
func runBuild(ctx context.Context, cfg *config.Config) (*buildSummary, error) {
	logger := logx.NewLogger("build")

	kb, err := knowledge.Load(cfg.Paths.KB)
	if err != nil {
		return nil, fmt.Errorf("failed to load knowledge base: %w", err)
	}
	m, err := model.LoadAndSelect(cfg.Paths.Input, cfg.ArchitectureID)
	if err != nil {
		return nil, fmt.Errorf("failed to load architecture: %w", err)
	}
	logger.Info("Selected architecture: %s", m.ID())

	plan := refine.Plan(kb)
	for _, item := range plan {
		logger.Info("Plan: %s -> %s", item.View, item.DiagramType)
	}
	refine.CheckLayout(kb, m)

	recorder := metrics.NewRecorder(true)
	metricsMW := inference.MetricsMiddleware(recorder)

	comp := compiler.New(cfg.Compiler, nil)
	if err := comp.Check(); err != nil {
		// Configuration fault: reported once, diagrams degrade to placeholders.
		logger.Warn("Diagram compiler unavailable, diagrams will be marked unavailable: %v", err)
	}

	vision, err := critic.NewFromConfig(cfg.Vision, metricsMW)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision critic: %w", err)
	}
	extractor, err := rules.NewExtractor(cfg.Extractor, metricsMW)
	if err != nil {
		return nil, fmt.Errorf("failed to create rule extractor: %w", err)
	}
	tokens, err := utils.NewTokenCounter()
	if err != nil {
		logger.Warn("Token counting disabled: %v", err)
	}

	deps := refine.Deps{
		Compiler:  comp,
		Critic:    vision,
		Extractor: extractor,
		Rules:     kb,
		Metrics:   recorder,
		Tokens:    tokens,
	}

	summary := &buildSummary{ArchitectureID: m.ID()}
	var (
		db  *persistence.DB
		run *persistence.Run
	)
	if cfg.HistoryEnabled() {
		db, err = persistence.Open(cfg.Paths.HistoryDB)
		if err != nil {
			logger.Warn("Refinement history disabled: %v", err)
		} else {
			defer func() { _ = db.Close() }()
			deps.History = db
			if run, err = db.StartRun(ctx, m.ID()); err != nil {
				logger.Warn("Failed to record run: %v", err)
				run = nil
			} else {
				summary.RunID = run.ID
			}
		}
	}

	orch, err := refine.New(deps, refine.Options{
		OutputDir:    filepath.Join(cfg.Paths.OutputDir, document.DiagramsDir),
		ShouldRefine: cfg.ShouldRefine,
		RunID:        summary.RunID,
	})
	if err != nil {
		return nil, err
	}

	results, runErr := refine.NewRunner(orch, cfg.Concurrency).Run(ctx, m, plan)
	summary.Results = resultRows(results)
	if run != nil {
		status := persistence.RunStatusCompleted
		if runErr != nil {
			status = persistence.RunStatusFailed
		}
		// The run context may be cancelled; record the outcome regardless.
		if err := db.FinishRun(context.WithoutCancel(ctx), run.ID, status); err != nil {
			logger.Warn("Failed to finish run: %v", err)
		}
	}
	if runErr != nil {
		return summary, fmt.Errorf("diagram generation failed: %w", runErr)
	}

	builder, err := document.NewBuilder(cfg.Document, cfg.Paths.OutputDir, comp, nil)
	if err != nil {
		return summary, err
	}
	out, err := builder.Build(ctx, m, plan, results...)
	if err != nil {
		return summary, err
	}
	summary.MarkdownPath = out.MarkdownPath
	summary.PDFPath = out.PDFPath

	if cfg.Paths.MetricsFile != "" {
		if err := recorder.WriteTextfile(cfg.Paths.MetricsFile); err != nil {
			logger.Warn("Failed to export metrics: %v", err)
		}
	}
	return summary, nil
}
