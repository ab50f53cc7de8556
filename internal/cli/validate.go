package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type validateReport struct {
	Source      string `json:"source"`
	Intents     int    `json:"intents"`
	Patterns    int    `json:"patterns"`
	Responses   int    `json:"responses"`
	Fallbacks   int    `json:"fallbacks"`
	Suggestions int    `json:"suggestions"`
}

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a knowledge base",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, err := loadKnowledge(cmd.Context(), opts.kbPath)
			if err != nil {
				return err
			}

			report := validateReport{
				Source:      opts.kbPath,
				Intents:     len(kb.Intents),
				Fallbacks:   len(kb.Fallbacks),
				Suggestions: len(kb.Suggestions),
			}
			if report.Source == "" {
				report.Source = "embedded"
			}
			for _, in := range kb.Intents {
				report.Patterns += len(in.Patterns)
				report.Responses += len(in.Responses)
			}

			out := cmd.OutOrStdout()
			if opts.format == "json" {
				return printJSON(out, report)
			}
			fmt.Fprintf(out, "ok: %s\n", report.Source)
			fmt.Fprintf(out, "  intents:     %d (%d patterns, %d responses)\n", report.Intents, report.Patterns, report.Responses)
			fmt.Fprintf(out, "  fallbacks:   %d\n", report.Fallbacks)
			fmt.Fprintf(out, "  suggestions: %d\n", report.Suggestions)
			return nil
		},
	}
}
