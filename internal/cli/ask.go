package cli

import (
	"fmt"
	"strings"

	"engagement-engine/internal/composer"
	"engagement-engine/internal/model"

	"github.com/spf13/cobra"
)

type askReport struct {
	Content    string           `json:"content"`
	IntentID   string           `json:"intent_id,omitempty"`
	Score      float64          `json:"score"`
	Confidence model.Confidence `json:"confidence"`
	IsFallback bool             `json:"is_fallback"`
	Topics     []string         `json:"topics"`
	DelayMs    int64            `json:"delay_ms"`
}

func newAskCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <text>",
		Short: "Compose a single reply without the typing delay",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, err := loadKnowledge(cmd.Context(), opts.kbPath)
			if err != nil {
				return err
			}

			c := composer.New(kb, composer.WithRand(composer.NewRand(opts.seed)))
			reply, err := c.Compose(strings.Join(args, " "))
			if err != nil {
				return err
			}

			report := askReport{
				Content:    reply.Content,
				IntentID:   reply.IntentID,
				Score:      reply.Score,
				Confidence: reply.Confidence,
				IsFallback: reply.IsFallback,
				Topics:     reply.Metadata().Topics,
				DelayMs:    reply.Delay.Milliseconds(),
			}

			out := cmd.OutOrStdout()
			if opts.format == "json" {
				return printJSON(out, report)
			}
			fmt.Fprintln(out, report.Content)
			fmt.Fprintln(out)
			if report.IsFallback {
				fmt.Fprintf(out, "-- fallback, confidence %s, score %.2f\n", report.Confidence, report.Score)
			} else {
				fmt.Fprintf(out, "-- intent %s, confidence %s, score %.2f, topics %s\n",
					report.IntentID, report.Confidence, report.Score, strings.Join(report.Topics, ","))
			}
			return nil
		},
	}
}
