// Package document assembles the Markdown documentation bundle and, when
// pandoc is available, a PDF rendering of it.
package document

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"path/filepath"
	"text/template"
	"time"

	"github.com/alessiagatto/documenter-agent/pkg/artifact"
	"github.com/alessiagatto/documenter-agent/pkg/config"
	"github.com/alessiagatto/documenter-agent/pkg/exec"
	"github.com/alessiagatto/documenter-agent/pkg/logx"
	"github.com/alessiagatto/documenter-agent/pkg/model"
	"github.com/alessiagatto/documenter-agent/pkg/refine"
	"github.com/alessiagatto/documenter-agent/pkg/utils"
)

//go:embed templates/*.tpl.md
var templateFS embed.FS

// File and directory names inside the output directory.
const (
	MarkdownFile = "documentation.md"
	PDFFile      = "documentation.pdf"
	DiagramsDir  = "diagrams"
	pdfTimeout   = 5 * time.Minute
)

// Compiler recompiles an artifact whose image is missing.
type Compiler interface {
	Compile(ctx context.Context, a *artifact.Artifact) error
	ImageExt() string
}

// Section is one view of the document.
type Section struct {
	View        string
	DiagramType string
	Title       string
	ImageLink   string
	Description string
	Number      int
	Available   bool
}

// Output describes the files a build produced.
type Output struct {
	MarkdownPath string
	PDFPath      string // empty when PDF generation was skipped or failed
	Sections     []Section
}

type templateData struct {
	Title            string
	ArchitectureID   string
	ArchitectureName string
	Sections         []Section
	ConclusionNumber int
}

// Builder writes the document bundle under an output directory whose
// diagrams live in the DiagramsDir subdirectory.
type Builder struct {
	cfg       config.DocumentConfig
	compiler  Compiler
	executor  exec.Executor
	tmpl      *template.Template
	logger    *logx.Logger
	outputDir string
}

// NewBuilder creates a Builder. A nil executor uses the local one.
func NewBuilder(cfg config.DocumentConfig, outputDir string, compiler Compiler, executor exec.Executor) (*Builder, error) {
	content, err := templateFS.ReadFile("templates/document.tpl.md")
	if err != nil {
		return nil, fmt.Errorf("failed to read document template: %w", err)
	}
	tmpl, err := template.New("document").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document template: %w", err)
	}
	if executor == nil {
		executor = exec.NewLocalExec()
	}
	return &Builder{
		cfg:       cfg,
		compiler:  compiler,
		executor:  executor,
		tmpl:      tmpl,
		outputDir: outputDir,
		logger:    logx.NewLogger("document"),
	}, nil
}

// DiagramsPath returns the directory diagrams are read from.
func (b *Builder) DiagramsPath() string {
	return filepath.Join(b.outputDir, DiagramsDir)
}

// Build renders the Markdown document for plan and attempts the PDF.
// Missing images are recompiled once, except for diagram types whose result
// is already partial: their compile fault has been reported.
// Only a failure to write the Markdown is an error.
func (b *Builder) Build(ctx context.Context, m *model.ArchitectureModel, plan []refine.PlanItem, results ...*refine.Result) (*Output, error) {
	out := &Output{MarkdownPath: filepath.Join(b.outputDir, MarkdownFile)}
	attempted := make(map[string]bool)
	for _, r := range results {
		if r != nil && r.Partial {
			attempted[r.DiagramType] = true
		}
	}

	for i, item := range plan {
		sec := Section{
			View:        item.View,
			DiagramType: item.DiagramType,
			Title:       ViewTitle(item.View),
			Description: Describe(m, item.View),
			Number:      i + 2,
		}
		if item.DiagramType != "" && b.ensureImage(ctx, item.DiagramType, attempted) {
			sec.Available = true
			sec.ImageLink = filepath.ToSlash(filepath.Join(DiagramsDir, item.DiagramType+b.imageExt()))
		}
		out.Sections = append(out.Sections, sec)
	}

	data := templateData{
		Title:            b.cfg.Title,
		ArchitectureID:   m.ID(),
		ArchitectureName: firstNonEmpty(m.Name(), m.ID()),
		Sections:         out.Sections,
		ConclusionNumber: len(plan) + 2,
	}
	var buf bytes.Buffer
	if err := b.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render document: %w", err)
	}
	if err := utils.WriteFileAtomic(out.MarkdownPath, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write document: %w", err)
	}
	b.logger.Info("Document written to %s", out.MarkdownPath)

	if !b.cfg.DisablePDF {
		out.PDFPath = b.renderPDF(ctx, out.MarkdownPath)
	}
	return out, nil
}

func (b *Builder) imageExt() string {
	if b.compiler != nil {
		return b.compiler.ImageExt()
	}
	return config.DefaultImageExt
}

// ensureImage reports whether the diagram's image is usable, recompiling it
// from its source at most once per build when it is missing or stale.
func (b *Builder) ensureImage(ctx context.Context, diagramType string, attempted map[string]bool) bool {
	art := artifact.New(b.DiagramsPath(), diagramType, b.imageExt())
	if art.ImageAvailable() {
		return true
	}
	if b.compiler == nil || !art.HasSource() || attempted[diagramType] {
		return false
	}
	attempted[diagramType] = true

	if err := b.compiler.Compile(ctx, art); err != nil {
		b.logger.Warn("Diagram %s unavailable: %v", diagramType, err)
		return false
	}
	return art.ImageAvailable()
}

// renderPDF runs pandoc; failures are logged and yield an empty path.
func (b *Builder) renderPDF(ctx context.Context, markdownPath string) string {
	pdfPath := filepath.Join(b.outputDir, PDFFile)
	cmd := []string{
		b.cfg.PandocCommand,
		markdownPath,
		"-o", pdfPath,
		"--pdf-engine=" + b.cfg.PDFEngine,
		"--resource-path", b.outputDir,
	}
	res, err := b.executor.Run(ctx, cmd, &exec.Opts{Timeout: pdfTimeout})
	switch {
	case err != nil:
		b.logger.Warn("PDF generation failed: %v", err)
		return ""
	case res.ExitCode != 0:
		b.logger.Warn("PDF generation failed (exit %d): %s", res.ExitCode, res.Stderr)
		return ""
	case !utils.FileExists(pdfPath):
		b.logger.Warn("PDF generation produced no file")
		return ""
	}
	b.logger.Info("PDF written to %s", pdfPath)
	return pdfPath
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
