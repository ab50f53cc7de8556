package cli

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"engagement-engine/internal/matcher"

	"github.com/spf13/cobra"
)

type matchReport struct {
	Input      string              `json:"input"`
	Normalized string              `json:"normalized"`
	Candidates []matcher.Candidate `json:"candidates"`
	Selected   string              `json:"selected,omitempty"`
	Score      float64             `json:"score"`
}

func newMatchCmd(opts *options) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "match <text>",
		Short: "Explain how an input scores against every intent",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, err := loadKnowledge(cmd.Context(), opts.kbPath)
			if err != nil {
				return err
			}

			input := strings.Join(args, " ")
			candidates := matcher.Explain(input, kb.Intents)
			sort.SliceStable(candidates, func(i, j int) bool {
				return candidates[i].Score > candidates[j].Score
			})
			if !all {
				kept := candidates[:0]
				for _, c := range candidates {
					if c.RawScore > 0 {
						kept = append(kept, c)
					}
				}
				candidates = kept
			}

			sel := matcher.Select(input, kb.Intents)
			report := matchReport{
				Input:      input,
				Normalized: matcher.Normalize(input),
				Candidates: candidates,
				Score:      sel.Score,
			}
			if sel.Matched() {
				report.Selected = sel.Intent.ID
			}

			out := cmd.OutOrStdout()
			if opts.format == "json" {
				return printJSON(out, report)
			}

			fmt.Fprintf(out, "normalized: %q\n\n", report.Normalized)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INTENT\tRAW\tSCORE\tELIGIBLE\tPATTERN")
			for _, c := range candidates {
				fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%t\t%s\n", c.IntentID, c.RawScore, c.Score, c.Eligible, c.Pattern)
			}
			tw.Flush()

			if report.Selected == "" {
				fmt.Fprintln(out, "\nselected: none (fallback)")
			} else {
				fmt.Fprintf(out, "\nselected: %s (%.2f)\n", report.Selected, report.Score)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Show intents that scored zero")
	return cmd
}
