package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"engagement-engine/internal/composer"
	"engagement-engine/internal/conversation"

	"github.com/spf13/cobra"
)

const chatHelp = "commands: /suggest, /clear, /quit; a number picks a suggestion"

func newChatCmd(opts *options) *cobra.Command {
	var noDelay bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the engine in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, err := loadKnowledge(cmd.Context(), opts.kbPath)
			if err != nil {
				return err
			}

			var sleeper conversation.Sleeper = conversation.TimerSleeper{}
			if noDelay {
				sleeper = conversation.NoDelay{}
			}
			c := composer.New(kb, composer.WithRand(composer.NewRand(opts.seed)))
			engine := conversation.NewEngine(c, conversation.WithSleeper(sleeper))
			sess := conversation.New("terminal", engine)
			sess.Open()

			out := cmd.OutOrStdout()
			for _, m := range sess.Messages() {
				fmt.Fprintf(out, "bot: %s\n\n", m.Content)
			}
			fmt.Fprintln(out, chatHelp)
			printSuggestions(out, sess.Suggestions())

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					fmt.Fprintln(out)
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())

				switch line {
				case "":
					continue
				case "/quit", "/exit":
					return nil
				case "/clear":
					sess.ClearMessages()
					fmt.Fprintf(out, "bot: %s\n\n", sess.Messages()[0].Content)
					printSuggestions(out, sess.Suggestions())
					continue
				case "/suggest":
					printSuggestions(out, sess.Suggestions())
					continue
				}

				if n, err := strconv.Atoi(line); err == nil {
					suggestions := sess.Suggestions()
					if n < 1 || n > len(suggestions) {
						fmt.Fprintf(out, "no suggestion %d\n", n)
						continue
					}
					line = suggestions[n-1]
					fmt.Fprintf(out, "you: %s\n", line)
				}

				if !noDelay {
					fmt.Fprintln(out, "bot is typing...")
				}
				resp, err := sess.SendMessage(cmd.Context(), line)
				if err != nil {
					return err
				}
				meta := resp.Message.Metadata
				fmt.Fprintf(out, "bot: %s\n", resp.Message.Content)
				fmt.Fprintf(out, "   [%s%s]\n\n", meta.Confidence, fallbackTag(meta.IsFallback))
				printSuggestions(out, resp.SuggestedQuestions)
			}
		},
	}
	cmd.Flags().BoolVar(&noDelay, "no-delay", false, "Reply immediately instead of simulating typing")
	return cmd
}

func fallbackTag(fallback bool) string {
	if fallback {
		return ", fallback"
	}
	return ""
}

func printSuggestions(out io.Writer, suggestions []string) {
	for i, q := range suggestions {
		fmt.Fprintf(out, "  %d. %s\n", i+1, q)
	}
	fmt.Fprintln(out)
}
