// Package compiler turns diagram source files into images by running an
// external tool such as plantuml. Failures are never retried: a missing tool,
// a timeout or a non-zero exit is reported once as a *CompileError.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alessiagatto/documenter-agent/pkg/artifact"
	"github.com/alessiagatto/documenter-agent/pkg/config"
	"github.com/alessiagatto/documenter-agent/pkg/exec"
	"github.com/alessiagatto/documenter-agent/pkg/logx"
	"github.com/alessiagatto/documenter-agent/pkg/utils"
)

// Reason classifies a compile failure.
type Reason string

// Compile failure reasons.
const (
	ReasonMissingTool Reason = "missing_tool"
	ReasonTimeout     Reason = "timeout"
	ReasonExitStatus  Reason = "exit_status"
	ReasonNoOutput    Reason = "no_output"
	ReasonNoSource    Reason = "no_source"
	ReasonFailed      Reason = "failed"
)

// maxStderr bounds the tool output kept in an error.
const maxStderr = 500

// CompileError reports why a source could not be compiled.
type CompileError struct {
	Err      error
	Reason   Reason
	Source   string
	Stderr   string
	ExitCode int
}

func (e *CompileError) Error() string {
	msg := fmt.Sprintf("compile %s: %s", e.Source, e.Reason)
	if e.Reason == ReasonExitStatus {
		msg += fmt.Sprintf(" %d", e.ExitCode)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// ReasonOf returns the reason of a *CompileError in err's chain, or "".
func ReasonOf(err error) Reason {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Reason
	}
	return ""
}

// Compiler runs the configured diagram tool.
type Compiler struct {
	executor exec.Executor
	logger   *logx.Logger
	command  string
	imageExt string
	args     []string
	timeout  time.Duration
}

// New creates a compiler from configuration.
func New(cfg config.CompilerConfig, executor exec.Executor) *Compiler {
	if executor == nil {
		executor = exec.NewLocalExec()
	}
	ext := cfg.ImageExt
	if ext == "" {
		ext = config.DefaultImageExt
	}
	return &Compiler{
		executor: executor,
		logger:   logx.NewLogger("compiler"),
		command:  cfg.Command,
		imageExt: ext,
		args:     append([]string(nil), cfg.Args...),
		timeout:  time.Duration(cfg.TimeoutSec) * time.Second,
	}
}

// ImageExt returns the extension of produced images.
func (c *Compiler) ImageExt() string {
	return c.imageExt
}

// Check verifies the tool can be found.
func (c *Compiler) Check() error {
	if _, err := c.executor.LookPath(c.command); err != nil {
		return &CompileError{Reason: ReasonMissingTool, Source: c.command, Err: err}
	}
	return nil
}

// CompilePath compiles the source at sourcePath and returns the image path
// derived by replacing its extension.
func (c *Compiler) CompilePath(ctx context.Context, sourcePath string) (string, error) {
	imagePath := artifact.ImagePathFor(sourcePath, c.imageExt)
	if !utils.FileExists(sourcePath) {
		return "", &CompileError{Reason: ReasonNoSource, Source: sourcePath}
	}

	cmd := make([]string, 0, len(c.args)+2)
	cmd = append(cmd, c.command)
	cmd = append(cmd, c.args...)
	cmd = append(cmd, sourcePath)

	result, err := c.executor.Run(ctx, cmd, &exec.Opts{Timeout: c.timeout})
	switch {
	case errors.Is(err, exec.ErrNotFound):
		return "", &CompileError{Reason: ReasonMissingTool, Source: sourcePath, Err: err}
	case errors.Is(err, exec.ErrTimeout):
		return "", &CompileError{Reason: ReasonTimeout, Source: sourcePath, Err: err}
	case err != nil:
		return "", &CompileError{Reason: ReasonFailed, Source: sourcePath, Err: err}
	case result.ExitCode != 0:
		return "", &CompileError{
			Reason:   ReasonExitStatus,
			Source:   sourcePath,
			ExitCode: result.ExitCode,
			Stderr:   truncate(strings.TrimSpace(result.Stderr), maxStderr),
		}
	}

	if !utils.FileExists(imagePath) {
		return "", &CompileError{Reason: ReasonNoOutput, Source: sourcePath}
	}
	c.logger.Debug("compiled %s in %s", sourcePath, result.Duration.Round(time.Millisecond))
	return imagePath, nil
}

// Compile compiles the artifact's current source and stamps the image.
// Any previous image is removed first, so a failure leaves no image behind.
func (c *Compiler) Compile(ctx context.Context, a *artifact.Artifact) error {
	if err := a.Invalidate(); err != nil {
		return &CompileError{Reason: ReasonFailed, Source: a.SourcePath, Err: err}
	}
	if _, err := c.CompilePath(ctx, a.SourcePath); err != nil {
		return err
	}
	if err := a.MarkCompiled(); err != nil {
		return &CompileError{Reason: ReasonFailed, Source: a.SourcePath, Err: err}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
