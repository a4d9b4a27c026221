package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alessiagatto/documenter-agent/pkg/inference"
	"github.com/alessiagatto/documenter-agent/pkg/preflight"
)

var preflightCmd = &cobra.Command{
	Use:   "preflight",
	Short: "Check the compiler, inputs and inference endpoints before a build",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		results := preflight.New(nil, inference.Probe).Run(cmd.Context(), cfg)
		if jsonOutput {
			if err := printJSON(os.Stdout, checkRows(results)); err != nil {
				return err
			}
		} else {
			fmt.Fprint(os.Stdout, preflight.FormatResults(results))
		}
		if !results.Passed {
			return errors.New("preflight checks failed")
		}
		return nil
	},
}

type checkRow struct {
	Check    string `json:"check"`
	Passed   bool   `json:"passed"`
	Optional bool   `json:"optional,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

func checkRows(results *preflight.Results) []checkRow {
	rows := make([]checkRow, 0, len(results.Checks))
	for _, c := range results.Checks {
		row := checkRow{Check: string(c.Check), Passed: c.Passed, Optional: c.Optional, Message: c.Message}
		if c.Error != nil {
			row.Error = c.Error.Error()
		}
		rows = append(rows, row)
	}
	return rows
}
