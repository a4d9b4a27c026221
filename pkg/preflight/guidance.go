package preflight

import (
	"fmt"
	"strings"
)

// FormatCheckError formats a failed check result with actionable guidance.
func FormatCheckError(check CheckResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("  %s: %s\n", check.Check, check.Message))
	if check.Error != nil {
		sb.WriteString(fmt.Sprintf("    error: %v\n", check.Error))
	}
	sb.WriteString(fmt.Sprintf("    %s\n", getGuidance(check.Check)))
	return sb.String()
}

// FormatResults formats all preflight results for display.
func FormatResults(results *Results) string {
	var sb strings.Builder

	if results.Passed {
		sb.WriteString("Preflight checks passed\n")
	} else {
		sb.WriteString("Preflight checks failed\n\nFailed checks:\n")
		for i := range results.Checks {
			if !results.Checks[i].Passed && !results.Checks[i].Optional {
				sb.WriteString(FormatCheckError(results.Checks[i]))
				sb.WriteString("\n")
			}
		}
	}

	var warnings []CheckResult
	for i := range results.Checks {
		if !results.Checks[i].Passed && results.Checks[i].Optional {
			warnings = append(warnings, results.Checks[i])
		}
	}
	if len(warnings) > 0 {
		sb.WriteString("Warnings:\n")
		for i := range warnings {
			sb.WriteString(FormatCheckError(warnings[i]))
		}
	}

	for i := range results.Checks {
		if results.Checks[i].Passed {
			sb.WriteString(fmt.Sprintf("  [PASS] %s: %s\n", results.Checks[i].Check, results.Checks[i].Message))
		}
	}
	return sb.String()
}

// getGuidance returns actionable guidance for fixing a failed check.
func getGuidance(check Check) string {
	switch check {
	case CheckCompiler:
		return "Install PlantUML (https://plantuml.com/download) or set compiler.command in the config."
	case CheckKnowledgeBase:
		return "Set paths.kb to a JSON file with view_to_diagram_mapping, layout_rules and diagram_quality_rules."
	case CheckInput:
		return "Set paths.input and architecture_id to an entry of architectural_views in the input JSON."
	case CheckVision:
		return "Start the vision model server or fix vision.base_url / vision.model; set the API key for hosted providers."
	case CheckExtractor:
		return "Start the extractor model server, fix extractor.base_url / extractor.model, or use extractor.strategy: keyword."
	case CheckPandoc:
		return "Install pandoc and a PDF engine (https://pandoc.org/installing.html) or set document.disable_pdf."
	default:
		return "Check the configuration."
	}
}
