package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/interviewqa/internal/cli"
	"github.com/cloo-solutions/interviewqa/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "interviewqad",
		Short: "Interview QA daemon and admin CLI",
		Long:  "Interview QA daemon for running the API server, ingesting PDFs and managing knowledge bases",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.IngestCmd())
	rootCmd.AddCommand(admin.KnowledgeBaseCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
