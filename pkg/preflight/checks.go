package preflight

import (
	"context"
	"fmt"

	"github.com/alessiagatto/documenter-agent/pkg/compiler"
	"github.com/alessiagatto/documenter-agent/pkg/config"
	"github.com/alessiagatto/documenter-agent/pkg/knowledge"
	"github.com/alessiagatto/documenter-agent/pkg/model"
)

// checkCompiler verifies the diagram compiler is on PATH.
func (c *Checker) checkCompiler(cfg *config.Config) CheckResult {
	result := CheckResult{Check: CheckCompiler}
	if err := compiler.New(cfg.Compiler, c.executor).Check(); err != nil {
		result.Message = fmt.Sprintf("%s not found; diagrams will be marked unavailable", cfg.Compiler.Command)
		result.Error = err
		return result
	}
	result.Passed = true
	result.Message = fmt.Sprintf("%s is available", cfg.Compiler.Command)
	return result
}

// checkKnowledgeBase verifies the knowledge base exists and parses.
func checkKnowledgeBase(cfg *config.Config) CheckResult {
	result := CheckResult{Check: CheckKnowledgeBase}
	kb, err := knowledge.Load(cfg.Paths.KB)
	if err != nil {
		result.Message = fmt.Sprintf("Cannot load %s", cfg.Paths.KB)
		result.Error = err
		return result
	}
	views := kb.MappedViews()
	if len(views) == 0 {
		result.Message = "Knowledge base maps no views to diagram types"
		result.Error = fmt.Errorf("empty view_to_diagram_mapping in %s", cfg.Paths.KB)
		return result
	}
	result.Passed = true
	result.Message = fmt.Sprintf("%s maps %d views", cfg.Paths.KB, len(views))
	return result
}

// checkInput verifies the architecture description holds the selected architecture.
func checkInput(cfg *config.Config) CheckResult {
	result := CheckResult{Check: CheckInput}
	m, err := model.LoadAndSelect(cfg.Paths.Input, cfg.ArchitectureID)
	if err != nil {
		result.Message = fmt.Sprintf("Cannot load architecture %q from %s", cfg.ArchitectureID, cfg.Paths.Input)
		result.Error = err
		return result
	}
	result.Passed = true
	result.Message = fmt.Sprintf("Architecture %q with %d views", m.ID(), len(m.ViewNames()))
	return result
}

// checkEndpoint verifies an inference endpoint. Failures are optional: the
// pipeline falls back to its empty sentinels when an endpoint is down.
func (c *Checker) checkEndpoint(ctx context.Context, check Check, cfg config.InferenceConfig) CheckResult {
	result := CheckResult{Check: check, Optional: true}
	if c.probe == nil {
		result.Passed = true
		result.Message = "Endpoint probing disabled"
		return result
	}
	msg, err := c.probe(ctx, cfg)
	if err != nil {
		result.Message = fmt.Sprintf("%s endpoint unavailable; refinement will be skipped", cfg.Provider)
		result.Error = err
		return result
	}
	result.Passed = true
	result.Message = msg
	return result
}

// checkPandoc verifies pandoc is available for PDF output.
func (c *Checker) checkPandoc(cfg *config.Config) CheckResult {
	result := CheckResult{Check: CheckPandoc, Optional: true}
	path, err := c.executor.LookPath(cfg.Document.PandocCommand)
	if err != nil {
		result.Message = fmt.Sprintf("%s not found; only Markdown will be produced", cfg.Document.PandocCommand)
		result.Error = err
		return result
	}
	result.Passed = true
	result.Message = fmt.Sprintf("%s found at %s", cfg.Document.PandocCommand, path)
	return result
}
