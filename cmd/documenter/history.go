package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alessiagatto/documenter-agent/pkg/persistence"
)

//nolint:gochecknoglobals // cobra flag bindings
var (
	historyLimit int
	historyType  string
	historyRun   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded refinement outcomes, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.HistoryEnabled() {
			return errors.New("refinement history is disabled (paths.history_db is \"-\")")
		}
		db, err := persistence.Open(cfg.Paths.HistoryDB)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer func() { _ = db.Close() }()

		refinements, err := db.ListRefinements(cmd.Context(), persistence.ListFilter{
			RunID:       historyRun,
			DiagramType: historyType,
			Limit:       historyLimit,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(os.Stdout, refinements)
		}
		printRefinements(os.Stdout, refinements)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum entries to show (0 for all)")
	historyCmd.Flags().StringVarP(&historyType, "type", "t", "", "only show this diagram type")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "only show this run")
}
