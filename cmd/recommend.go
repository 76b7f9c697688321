package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"picta/internal/recommend"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend [photo-id]",
	Short: "Show the three recommendation sets for a photo",
	Long: `Prints visually similar photos, photos from the same place and
photos from the same day for the given photo id.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecommend,
}

func init() {
	rootCmd.AddCommand(recommendCmd)
	recommendCmd.Flags().Int("k", 5, "Results per recommendation set")
}

func runRecommend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	k := mustGetInt(cmd, "k")

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid photo id %q", args[0])
	}

	c, _, err := openCorpus(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("building index: %w", err)
	}

	recs, err := c.Recommender.Recommendations(ctx, id, k)
	if err != nil {
		return fmt.Errorf("recommendations failed: %w", err)
	}

	printItems("Similar photos", recs.SimilarVisual, true)
	printItems("Same place", recs.SameLocation, false)
	printItems("Same day", recs.SameDay, false)
	return nil
}

func printItems(title string, items []recommend.Item, withSimilarity bool) {
	fmt.Printf("%s (%d):\n", title, len(items))
	for _, it := range items {
		fmt.Printf("  [%d] %s", it.ID, it.SourceRef)
		if withSimilarity {
			fmt.Printf("  similarity=%.3f", it.Similarity)
		}
		if it.TakenAt != nil {
			fmt.Printf("  taken=%s", *it.TakenAt)
		}
		fmt.Println()
	}
}
