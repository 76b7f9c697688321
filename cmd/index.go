package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"picta/internal/indexer"
)

var indexCmd = &cobra.Command{
	Use:   "index [directory]",
	Short: "Index a directory of photos into the corpus",
	Long: `Walks the directory for image files, computes an embedding for each
one via the embedding server and stores it in the corpus. The ANN index
is rebuilt when the batch finishes.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	c, _, err := openCorpus(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	src, err := indexer.NewFilesystemSource(args[0])
	if err != nil {
		return err
	}

	stats, err := c.Indexer.IndexBatch(ctx, src)
	if err != nil {
		return fmt.Errorf("index batch failed: %w", err)
	}

	fmt.Printf("Batch:   %s\n", stats.BatchID)
	fmt.Printf("Indexed: %d\n", stats.Indexed)
	fmt.Printf("Skipped: %d\n", stats.Skipped)
	return nil
}
