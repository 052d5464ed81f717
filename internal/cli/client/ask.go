package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func AskCmd() *cobra.Command {
	var kb string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask an interview question",
		Long: `Ask a question. The server routes it to the matching knowledge bases,
or searches only --kb when given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAsk(cmd.Context(), c, strings.Join(args, " "), kb, outputJSON)
		},
	}

	cmd.Flags().StringVar(&kb, "kb", "", "Only search this knowledge base")

	return cmd
}

func runAsk(ctx context.Context, c *APIClient, question, kb string, outputJSON bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := c.Ask(ctx, question, kb)
	if err != nil {
		return fmt.Errorf("failed to ask: %w", err)
	}

	if outputJSON {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	fmt.Println(result.Answer)
	fmt.Printf("\n(confidence %.2f, knowledge bases: %s, %d contexts)\n",
		result.Confidence, strings.Join(result.MatchedKBs, ", "), result.ContextLength)
	return nil
}
