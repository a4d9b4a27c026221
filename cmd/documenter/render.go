package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alessiagatto/documenter-agent/pkg/diagram"
	"github.com/alessiagatto/documenter-agent/pkg/knowledge"
	"github.com/alessiagatto/documenter-agent/pkg/model"
)

//nolint:gochecknoglobals // cobra flag bindings
var renderType string

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Print the diagram source for one diagram type",
	Long: `Render one diagram type with the knowledge base's current quality rules
and print the diagram source. Nothing is compiled or written.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		if !diagram.Supports(renderType) {
			return fmt.Errorf("%w: %q (supported: %v)", diagram.ErrUnsupportedType, renderType, diagram.SupportedTypes())
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		kb, err := knowledge.Load(cfg.Paths.KB)
		if err != nil {
			return fmt.Errorf("failed to load knowledge base: %w", err)
		}
		m, err := model.LoadAndSelect(cfg.Paths.Input, cfg.ArchitectureID)
		if err != nil {
			return fmt.Errorf("failed to load architecture: %w", err)
		}
		d, err := diagram.Render(m, renderType, kb.QualityRules(renderType))
		if err != nil {
			return err
		}
		fmt.Fprint(os.Stdout, d.String())
		return nil
	},
}

func init() {
	renderCmd.Flags().StringVarP(&renderType, "type", "t", diagram.TypeSequence, "diagram type to render")
}
