package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func KnowledgeBaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "kb",
		Aliases: []string{"knowledge-base"},
		Short:   "Manage knowledge bases",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List knowledge bases",
		Args:  cobra.NoArgs,
		RunE: withClient(func(ctx context.Context, c *APIClient, args []string, outputJSON bool) error {
			names, err := c.ListKnowledgeBases(ctx)
			if err != nil {
				return fmt.Errorf("failed to list knowledge bases: %w", err)
			}
			if outputJSON {
				return printJSON(names)
			}
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "stats [name]",
		Short: "Show document and source counts",
		Args:  cobra.MaximumNArgs(1),
		RunE: withClient(func(ctx context.Context, c *APIClient, args []string, outputJSON bool) error {
			var name string
			if len(args) == 1 {
				name = args[0]
			}
			stats, err := c.Stats(ctx, name)
			if err != nil {
				return fmt.Errorf("failed to get stats: %w", err)
			}
			if outputJSON {
				return printJSON(stats)
			}
			for _, s := range stats {
				fmt.Printf("%s: %d documents from %d sources\n", s.Name, s.DocumentCount, s.SourceCount)
				for _, src := range s.Sources {
					fmt.Printf("  %s\n", src)
				}
			}
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(func(ctx context.Context, c *APIClient, args []string, outputJSON bool) error {
			resp, err := c.CreateKnowledgeBase(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to create knowledge base: %w", err)
			}
			return printStatus(resp, outputJSON)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a knowledge base",
		Long:  "Delete a knowledge base. global and system cannot be deleted; mirrored chunks stay in global.",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(func(ctx context.Context, c *APIClient, args []string, outputJSON bool) error {
			resp, err := c.DeleteKnowledgeBase(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to delete knowledge base: %w", err)
			}
			return printStatus(resp, outputJSON)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "files <name>",
		Short: "List archived PDFs with download links",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(func(ctx context.Context, c *APIClient, args []string, outputJSON bool) error {
			files, err := c.Files(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to list files: %w", err)
			}
			if outputJSON {
				return printJSON(files)
			}
			if len(files) == 0 {
				fmt.Println("No archived PDFs")
				return nil
			}
			for _, f := range files {
				fmt.Printf("%s\n  %s\n", f.Name, f.URL)
			}
			return nil
		}),
	})

	return cmd
}

type clientRunFunc func(ctx context.Context, c *APIClient, args []string, outputJSON bool) error

func withClient(run clientRunFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, err := NewAPIClientWithCmd(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		outputJSON, _ := cmd.Flags().GetBool("output")
		return run(ctx, c, args, outputJSON)
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func printStatus(resp *StatusResponse, outputJSON bool) error {
	if outputJSON {
		return printJSON(resp)
	}
	if resp.IsWarning() {
		fmt.Printf("warning: %s\n", resp.Message)
		return nil
	}
	fmt.Println(resp.Message)
	return nil
}
