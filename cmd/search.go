package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search photos with a natural-language query",
	Long: `Runs the full retrieval pipeline for a free-text utterance:
query parsing, metadata filtering, semantic ranking and thresholding.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().Int("limit", 10, "Maximum number of results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	limit := mustGetInt(cmd, "limit")

	c, _, err := openCorpus(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("building index: %w", err)
	}

	results, err := c.Engine.Search(ctx, args[0], limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}

	for i, r := range results {
		fmt.Printf("%2d. [%d] %s  similarity=%.3f", i+1, r.ID, r.SourceRef, r.Similarity)
		if r.TakenAt != nil {
			fmt.Printf("  taken=%s", *r.TakenAt)
		}
		if r.LocationName != nil {
			fmt.Printf("  location=%s", *r.LocationName)
		}
		fmt.Println()
	}
	return nil
}
