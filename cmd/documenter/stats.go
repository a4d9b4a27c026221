package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/alessiagatto/documenter-agent/pkg/metrics"
)

//nolint:gochecknoglobals // cobra flag bindings
var prometheusURL string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise refinement metrics from a Prometheus server",
	Long: `Query a Prometheus server that scrapes the metrics textfile written by
"documenter build" (paths.metrics_file) and print per-diagram-type totals.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		qs, err := metrics.NewQueryService(prometheusURL)
		if err != nil {
			return err
		}
		summaries, err := qs.Summaries(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to query metrics: %w", err)
		}
		types := make([]string, 0, len(summaries))
		for dt := range summaries {
			types = append(types, dt)
		}
		sort.Strings(types)

		if jsonOutput {
			ordered := make([]*metrics.TypeSummary, 0, len(types))
			for _, dt := range types {
				ordered = append(ordered, summaries[dt])
			}
			return printJSON(os.Stdout, ordered)
		}
		if len(types) == 0 {
			fmt.Println("No refinement metrics found")
			return nil
		}
		tw, flush := newTable(os.Stdout)
		fmt.Fprintln(tw, "TYPE\tREFINED\tREJECTED\tPARTIAL\tRULES MERGED")
		for _, dt := range types {
			s := summaries[dt]
			fmt.Fprintf(tw, "%s\t%.0f\t%.0f\t%.0f\t%.0f\n", dt, s.Refined, s.Rejected, s.Partial, s.RulesMerged)
		}
		flush()
		return nil
	},
}

func init() {
	statsCmd.Flags().StringVar(&prometheusURL, "prometheus", "http://localhost:9090", "Prometheus server URL")
}
