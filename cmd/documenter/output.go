package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/alessiagatto/documenter-agent/pkg/persistence"
	"github.com/alessiagatto/documenter-agent/pkg/refine"
)

// resultRow is the printable form of a refine.Result.
type resultRow struct {
	DiagramType  string   `json:"diagram_type"`
	View         string   `json:"view"`
	State        string   `json:"state"`
	Outcome      string   `json:"outcome"`
	Image        string   `json:"image,omitempty"`
	CompileError string   `json:"compile_error,omitempty"`
	RulesAdded   []string `json:"rules_added,omitempty"`
}

func resultRows(results []*refine.Result) []resultRow {
	rows := make([]resultRow, 0, len(results))
	for _, r := range results {
		row := resultRow{
			DiagramType: r.DiagramType,
			View:        r.View,
			State:       r.State.String(),
			Outcome:     r.Outcome(),
			RulesAdded:  r.RulesAdded,
		}
		if r.ImageAvailable {
			row.Image = r.ImagePath
		}
		if r.CompileError != nil {
			row.CompileError = r.CompileError.Error()
		}
		rows = append(rows, row)
	}
	return rows
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// newTable returns a writer that aligns columns on a terminal and emits
// tab-separated values otherwise, so output stays easy to pipe.
func newTable(w io.Writer) (io.Writer, func()) {
	if !isTerminal(w) {
		return w, func() {}
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	return tw, func() { _ = tw.Flush() }
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printBuildSummary(w io.Writer, s *buildSummary) {
	tw, flush := newTable(w)
	fmt.Fprintln(tw, "TYPE\tVIEW\tSTATE\tOUTCOME\tRULES ADDED\tIMAGE")
	for _, r := range s.Results {
		image := r.Image
		if image == "" {
			image = "unavailable"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.DiagramType, r.View, r.State, r.Outcome, joinOrDash(r.RulesAdded), image)
	}
	flush()

	fmt.Fprintf(w, "\nDocument: %s\n", s.MarkdownPath)
	if s.PDFPath != "" {
		fmt.Fprintf(w, "PDF:      %s\n", s.PDFPath)
	}
	if s.RunID != "" {
		fmt.Fprintf(w, "Run:      %s\n", s.RunID)
	}
}

func printRefinements(w io.Writer, refinements []*persistence.Refinement) {
	if len(refinements) == 0 {
		fmt.Fprintln(w, "No refinements recorded")
		return
	}
	tw, flush := newTable(w)
	fmt.Fprintln(tw, "CREATED\tARCHITECTURE\tTYPE\tSTATE\tREFINED\tTOKENS\tRULES ADDED")
	for _, r := range refinements {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%d\t%s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			r.ArchitectureID,
			r.DiagramType,
			r.FinalState,
			r.Refined,
			r.FeedbackTokens,
			joinOrDash(r.RulesAdded),
		)
	}
	flush()
}

func joinOrDash(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ",")
}
