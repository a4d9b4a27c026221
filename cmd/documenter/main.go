// Command documenter generates UML diagrams and a narrative document from an
// architecture description, refining diagrams against vision-model feedback.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/alessiagatto/documenter-agent/pkg/config"
	"github.com/alessiagatto/documenter-agent/pkg/logx"
	"github.com/alessiagatto/documenter-agent/pkg/version"
)

//nolint:gochecknoglobals // cobra flag bindings
var (
	configPath     string
	kbPath         string
	inputPath      string
	outputDir      string
	architectureID string
	debug          bool
	jsonOutput     bool
)

var rootCmd = &cobra.Command{
	Use:           "documenter",
	Short:         "Generate architecture diagrams and documentation",
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if debug {
			logx.SetDebugConfig(true)
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "documenter.yaml", "config file (JSON or YAML); defaults are used when missing")
	flags.StringVar(&kbPath, "kb", "", "knowledge base JSON (overrides paths.kb)")
	flags.StringVar(&inputPath, "input", "", "architecture description JSON (overrides paths.input)")
	flags.StringVarP(&outputDir, "out", "o", "", "output directory (overrides paths.output_dir)")
	flags.StringVarP(&architectureID, "architecture", "a", "", "architecture id to document (overrides architecture_id)")
	flags.BoolVar(&debug, "debug", false, "enable debug logging")
	flags.BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(preflightCmd)
	rootCmd.AddCommand(statsCmd)
}

// loadConfig resolves the configuration and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if kbPath != "" {
		cfg.Paths.KB = kbPath
	}
	if inputPath != "" {
		cfg.Paths.Input = inputPath
	}
	if outputDir != "" {
		cfg.Paths.OutputDir = outputDir
	}
	if architectureID != "" {
		cfg.ArchitectureID = architectureID
	}
	return cfg, nil
}

func main() {
	// API keys usually live in .env; a missing file is fine.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
