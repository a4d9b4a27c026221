// Package preflight detects configuration faults before a build starts:
// missing compiler tool, missing inputs, unreachable inference endpoints.
// Each fault is reported once, with guidance, and never retried.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alessiagatto/documenter-agent/pkg/config"
	"github.com/alessiagatto/documenter-agent/pkg/exec"
)

// Check identifies one preflight check.
type Check string

// Check constants.
const (
	CheckCompiler      Check = "compiler"
	CheckKnowledgeBase Check = "knowledge_base"
	CheckInput         Check = "input"
	CheckVision        Check = "vision"
	CheckExtractor     Check = "extractor"
	CheckPandoc        Check = "pandoc"
)

// CheckResult represents the outcome of a single preflight check.
type CheckResult struct {
	Error   error
	Message string
	Check   Check
	Passed  bool
	// Optional checks are reported but do not fail the run.
	Optional bool
}

// Results contains all preflight check results.
type Results struct {
	Summary string
	Checks  []CheckResult
	Passed  bool
}

// Checker runs preflight checks. The zero value is not usable; use New.
type Checker struct {
	executor exec.Executor
	probe    ProbeFunc
}

// ProbeFunc verifies an inference endpoint.
type ProbeFunc func(ctx context.Context, cfg config.InferenceConfig) (string, error)

// New creates a Checker. A nil executor uses the local one.
func New(executor exec.Executor, probe ProbeFunc) *Checker {
	if executor == nil {
		executor = exec.NewLocalExec()
	}
	return &Checker{executor: executor, probe: probe}
}

// RequiredChecks determines which checks apply to cfg.
func RequiredChecks(cfg *config.Config) []Check {
	checks := []Check{CheckKnowledgeBase, CheckInput, CheckCompiler}
	if len(cfg.RefineTypes) > 0 {
		checks = append(checks, CheckVision)
		if cfg.Extractor.Strategy == config.StrategyModel {
			checks = append(checks, CheckExtractor)
		}
	}
	if !cfg.Document.DisablePDF {
		checks = append(checks, CheckPandoc)
	}
	return checks
}

// Run executes all preflight checks required by cfg.
func (c *Checker) Run(ctx context.Context, cfg *config.Config) *Results {
	required := RequiredChecks(cfg)
	results := &Results{Checks: make([]CheckResult, 0, len(required)), Passed: true}

	failed := 0
	for _, check := range required {
		result := c.runCheck(ctx, check, cfg)
		results.Checks = append(results.Checks, result)
		if !result.Passed && !result.Optional {
			results.Passed = false
			failed++
		}
	}

	if results.Passed {
		results.Summary = fmt.Sprintf("All %d preflight checks passed", len(results.Checks))
	} else {
		results.Summary = fmt.Sprintf("%d of %d preflight checks failed", failed, len(results.Checks))
	}
	return results
}

// runCheck executes a single check.
func (c *Checker) runCheck(ctx context.Context, check Check, cfg *config.Config) CheckResult {
	switch check {
	case CheckCompiler:
		return c.checkCompiler(cfg)
	case CheckKnowledgeBase:
		return checkKnowledgeBase(cfg)
	case CheckInput:
		return checkInput(cfg)
	case CheckVision:
		return c.checkEndpoint(ctx, CheckVision, cfg.Vision)
	case CheckExtractor:
		return c.checkEndpoint(ctx, CheckExtractor, cfg.Extractor.Endpoint())
	case CheckPandoc:
		return c.checkPandoc(cfg)
	default:
		return CheckResult{
			Check:   check,
			Message: "Unknown check",
			Error:   fmt.Errorf("unknown check: %s", check),
		}
	}
}

// Validate runs preflight checks and returns an error describing every
// failed mandatory check.
func (c *Checker) Validate(ctx context.Context, cfg *config.Config) error {
	results := c.Run(ctx, cfg)
	if results.Passed {
		return nil
	}
	var failed []string
	for i := range results.Checks {
		if !results.Checks[i].Passed && !results.Checks[i].Optional {
			failed = append(failed, FormatCheckError(results.Checks[i]))
		}
	}
	return errors.New(strings.Join(failed, "\n"))
}
