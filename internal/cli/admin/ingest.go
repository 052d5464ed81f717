package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/cloo-solutions/interviewqa/internal/config"
	"github.com/cloo-solutions/interviewqa/internal/domain"
	"github.com/spf13/cobra"
)

// openOffline builds the services for a one-shot command. Writes made through
// it only outlive the process with the postgres store or a snapshot path.
func openOffline(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.VectorStore == config.VectorStoreMemory && !cfg.HasSnapshots() {
		log.Println("warning: in-memory store without IQA_SNAPSHOT_PATH, changes are discarded on exit")
	}
	return newApp(ctx, cfg, appOptions{migrate: true})
}

func IngestCmd() *cobra.Command {
	var kb string

	cmd := &cobra.Command{
		Use:   "ingest <pdf>...",
		Short: "Ingest PDFs into a knowledge base",
		Long:  "Extract, chunk and embed PDFs into a knowledge base, mirroring every chunk into global",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runIngest(args, kb, outputFormat)
		},
	}

	cmd.Flags().StringVar(&kb, "kb", domain.GlobalKnowledgeBase, "Knowledge base name")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

type ingestResult struct {
	File   string `json:"file"`
	Chunks int    `json:"chunks"`
}

func runIngest(files []string, kb, outputFormat string) error {
	ctx := context.Background()

	a, err := openOffline(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	results := make([]ingestResult, 0, len(files))
	for _, f := range files {
		n, err := a.ingest.Ingest(ctx, f, kb)
		if err != nil {
			a.saveSnapshot()
			return fmt.Errorf("failed to ingest %s: %w", f, err)
		}
		results = append(results, ingestResult{File: f, Chunks: n})
	}
	a.saveSnapshot()

	if outputFormat == "json" {
		jsonBytes, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	name := domain.NormalizeKnowledgeBaseName(kb)
	for _, r := range results {
		if r.Chunks == 0 {
			fmt.Printf("%s: no text extracted, %s unchanged\n", r.File, name)
			continue
		}
		fmt.Printf("%s: %d chunks added to %s\n", r.File, r.Chunks, name)
	}
	return nil
}
