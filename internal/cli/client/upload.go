package client

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func UploadCmd() *cobra.Command {
	var kb string

	cmd := &cobra.Command{
		Use:   "upload <pdf>...",
		Short: "Upload PDFs into a knowledge base",
		Long: `Upload PDFs into a knowledge base (default: the configured default, else global).
Chunks of a non-global knowledge base are mirrored into global.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			if kb == "" {
				if s, err := ResolveSettings("", ""); err == nil {
					kb = s.DefaultKB
				}
			}
			quiet, _ := cmd.Flags().GetBool("quiet")
			return runUpload(cmd.Context(), c, args, kb, quiet)
		},
	}

	cmd.Flags().StringVar(&kb, "kb", "", "Target knowledge base")
	cmd.Flags().BoolP("quiet", "q", false, "Hide upload progress")

	return cmd
}

func runUpload(ctx context.Context, c *APIClient, files []string, kb string, quiet bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	for _, f := range files {
		var progress ProgressFunc
		if !quiet {
			progress = func(current, total int64) {
				if total > 0 {
					fmt.Fprintf(os.Stderr, "\r%s: %3d%%", f, current*100/total)
				}
			}
		}

		resp, err := c.UploadPDF(ctx, f, kb, progress)
		if !quiet {
			fmt.Fprintln(os.Stderr)
		}
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", f, err)
		}

		if resp.IsWarning() {
			fmt.Printf("warning: %s\n", resp.Message)
			continue
		}
		fmt.Println(resp.Message)
	}
	return nil
}
