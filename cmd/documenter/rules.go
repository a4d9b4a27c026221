package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/alessiagatto/documenter-agent/pkg/knowledge"
)

//nolint:gochecknoglobals // cobra flag bindings
var rulesType string

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the quality rules learned per diagram type",
	Long: `List the quality rules set in the knowledge base. Without --type every
diagram type with a quality rule table is listed.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		kb, err := knowledge.Load(cfg.Paths.KB)
		if err != nil {
			return fmt.Errorf("failed to load knowledge base: %w", err)
		}
		byType := collectRules(kb, rulesType)
		if jsonOutput {
			return printJSON(os.Stdout, byType)
		}

		types := make([]string, 0, len(byType))
		for dt := range byType {
			types = append(types, dt)
		}
		sort.Strings(types)

		tw, flush := newTable(os.Stdout)
		fmt.Fprintln(tw, "TYPE\tRULES")
		for _, dt := range types {
			fmt.Fprintf(tw, "%s\t%s\n", dt, joinOrDash(byType[dt]))
		}
		flush()
		return nil
	},
}

// collectRules returns the set rule names for diagramType, or for every
// diagram type in the knowledge base when diagramType is empty.
func collectRules(kb *knowledge.Store, diagramType string) map[string][]string {
	if diagramType != "" {
		return map[string][]string{diagramType: kb.QualityRules(diagramType).Names()}
	}
	byType := make(map[string][]string)
	for dt := range kb.Snapshot().QualityRules {
		byType[dt] = kb.QualityRules(dt).Names()
	}
	return byType
}

func init() {
	rulesCmd.Flags().StringVarP(&rulesType, "type", "t", "", "diagram type (default: all)")
}
