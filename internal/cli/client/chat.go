package client

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/cloo-solutions/interviewqa/internal/tui"
	"github.com/spf13/cobra"
)

func ChatCmd() *cobra.Command {
	var kb string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive question and answer session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			p := tea.NewProgram(tui.New(ctx, chatAsker{client: c}, kb), tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("chat failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kb, "kb", "", "Start pinned to this knowledge base")

	return cmd
}

// chatAsker adapts APIClient to the chat screen.
type chatAsker struct {
	client *APIClient
}

func (a chatAsker) Ask(ctx context.Context, question, kb string) (tui.Reply, error) {
	result, err := a.client.Ask(ctx, question, kb)
	if err != nil {
		return tui.Reply{}, err
	}
	return tui.Reply{
		Answer:        result.Answer,
		Confidence:    result.Confidence,
		MatchedKBs:    result.MatchedKBs,
		ContextLength: result.ContextLength,
	}, nil
}
