// Package cli implements the kbctl commands for inspecting a knowledge base
// and talking to the engine from a terminal.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"engagement-engine/internal/knowledge"
	"engagement-engine/internal/utils"
	"engagement-engine/pkg/logger"

	"github.com/spf13/cobra"
)

const fetchTimeout = 10 * time.Second

type options struct {
	kbPath   string
	format   string
	seed     uint64
	logLevel string
}

// NewRootCmd builds the kbctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "kbctl",
		Short:        "Inspect and exercise an engagement knowledge base",
		Long:         "kbctl validates knowledge bases, explains intent matching and runs a chat session in the terminal.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.InitWithOutput(opts.logLevel, "text", cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVarP(&opts.kbPath, "kb", "k", "", "Knowledge base file or http(s) URL (default: embedded)")
	root.PersistentFlags().StringVarP(&opts.format, "format", "f", "text", "Output format: json or text")
	root.PersistentFlags().Uint64Var(&opts.seed, "seed", 0, "Random seed for response and suggestion draws (0 = time)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level")

	root.AddCommand(
		newValidateCmd(opts),
		newMatchCmd(opts),
		newAskCmd(opts),
		newChatCmd(opts),
	)
	return root
}

// loadKnowledge reads the knowledge base named by --kb. URLs are fetched.
func loadKnowledge(ctx context.Context, path string) (*knowledge.Base, error) {
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		return knowledge.Load(path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := utils.NewHTTPClient(fetchTimeout).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch knowledge base: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch knowledge base: %s returned %s", path, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch knowledge base: %w", err)
	}
	kb, err := knowledge.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("knowledge base %s: %w", path, err)
	}
	return kb, nil
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
