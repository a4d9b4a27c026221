package refine

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/alessiagatto/documenter-agent/pkg/diagram"
	"github.com/alessiagatto/documenter-agent/pkg/logx"
	"github.com/alessiagatto/documenter-agent/pkg/model"
)

// Runner executes a documentation plan.
type Runner struct {
	orch        *Orchestrator
	logger      *logx.Logger
	concurrency int
}

// NewRunner creates a Runner. Concurrency below 2 processes the plan in
// order on the calling goroutine.
func NewRunner(orch *Orchestrator, concurrency int) *Runner {
	return &Runner{orch: orch, concurrency: concurrency, logger: logx.NewLogger("refine")}
}

// Run processes every plan item and returns results in plan order. Items
// whose diagram type has no renderer are skipped. Each diagram type is
// processed once even when several views map to it, since they share
// artifact paths.
func (r *Runner) Run(ctx context.Context, m *model.ArchitectureModel, plan []PlanItem) ([]*Result, error) {
	var items []PlanItem
	seen := make(map[string]bool)
	for _, item := range plan {
		if !diagram.Supports(item.DiagramType) {
			r.logger.Info("Diagram type %q for %s is not implemented; skipping", item.DiagramType, item.View)
			continue
		}
		if seen[item.DiagramType] {
			r.logger.Debug("%s already produced for an earlier view; reusing it for %s", item.DiagramType, item.View)
			continue
		}
		seen[item.DiagramType] = true
		items = append(items, item)
	}

	results := make([]*Result, len(items))
	if r.concurrency < 2 {
		for i, item := range items {
			if err := ctx.Err(); err != nil {
				return compact(results), fmt.Errorf("plan interrupted: %w", err)
			}
			res, err := r.orch.Run(ctx, m, item)
			if err != nil {
				return compact(results), err
			}
			results[i] = res
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err //nolint:wrapcheck // context error
			}
			res, err := r.orch.Run(gctx, m, item)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return compact(results), fmt.Errorf("plan interrupted: %w", err)
		}
		return compact(results), err
	}
	return results, nil
}

func compact(results []*Result) []*Result {
	out := results[:0:0]
	for _, res := range results {
		if res != nil {
			out = append(out, res)
		}
	}
	return out
}
