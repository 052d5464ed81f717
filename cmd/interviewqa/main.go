package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/interviewqa/internal/cli"
	"github.com/cloo-solutions/interviewqa/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "interviewqa",
		Short: "Java interview QA client",
		Long: `interviewqa asks the QA server interview questions and manages its knowledge bases.

Environment variables:
  INTERVIEWQA_API_URL     API base URL (default: http://localhost:8080)
  INTERVIEWQA_API_TOKEN   Bearer token for uploads and knowledge base changes`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("token", "", "API token (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.UploadCmd())
	rootCmd.AddCommand(client.KnowledgeBaseCmd())
	rootCmd.AddCommand(client.ChatCmd())
	rootCmd.AddCommand(client.AuthCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
