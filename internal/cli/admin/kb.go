package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloo-solutions/interviewqa/internal/domain"
	"github.com/spf13/cobra"
)

func KnowledgeBaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "kb",
		Aliases: []string{"knowledge-base"},
		Short:   "Manage knowledge bases",
		Long:    "List, create, delete and describe knowledge bases directly against the configured store",
	}

	cmd.PersistentFlags().StringP("output", "o", "text", "Output format (text or json)")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List knowledge bases",
		Args:  cobra.NoArgs,
		RunE:  runKBList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE:  runKBCreate,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a knowledge base and its chunks",
		Long:  "Delete a knowledge base. Its chunks mirrored into global are kept.",
		Args:  cobra.ExactArgs(1),
		RunE:  runKBDelete,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "stats [name]",
		Short: "Show document and source counts",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runKBStats,
	})

	return cmd
}

func printJSON(v interface{}) {
	jsonBytes, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(jsonBytes))
}

func runKBList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	outputFormat, _ := cmd.Flags().GetString("output")

	a, err := openOffline(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	names, err := a.registry.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list knowledge bases: %w", err)
	}

	if outputFormat == "json" {
		printJSON(names)
		return nil
	}
	fmt.Println("Knowledge bases:")
	for _, n := range names {
		fmt.Printf("  %s\n", n)
	}
	return nil
}

func runKBCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openOffline(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	name, err := a.registry.Create(ctx, args[0])
	switch {
	case errors.Is(err, domain.ErrKnowledgeBaseAlreadyExists):
		fmt.Printf("Knowledge base %s already exists\n", name)
		return nil
	case err != nil:
		return fmt.Errorf("failed to create knowledge base: %w", err)
	}
	a.saveSnapshot()
	fmt.Printf("Knowledge base created: %s\n", name)
	return nil
}

func runKBDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openOffline(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.registry.Delete(ctx, args[0])
	switch {
	case errors.Is(err, domain.ErrKnowledgeBaseNotFound):
		fmt.Printf("Knowledge base %s does not exist or is empty\n", strings.TrimSpace(args[0]))
		return nil
	case err != nil:
		return fmt.Errorf("failed to delete knowledge base: %w", err)
	}
	a.saveSnapshot()
	fmt.Printf("Knowledge base deleted: %s (%d chunks)\n", domain.NormalizeKnowledgeBaseName(args[0]), n)
	return nil
}

func runKBStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	outputFormat, _ := cmd.Flags().GetString("output")

	var name string
	if len(args) == 1 {
		name = args[0]
	}

	a, err := openOffline(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.registry.Stats(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	if outputFormat == "json" {
		printJSON(stats)
		return nil
	}
	for _, s := range stats {
		fmt.Printf("%s: %d documents from %d sources\n", s.Name, s.DocumentCount, s.SourceCount)
		for _, src := range s.Sources {
			fmt.Printf("  %s\n", src)
		}
	}
	return nil
}
