package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var albumsCmd = &cobra.Command{
	Use:   "albums",
	Short: "Group the corpus into visual clusters",
	RunE:  runAlbums,
}

func init() {
	rootCmd.AddCommand(albumsCmd)
	albumsCmd.Flags().Int("n", 10, "Number of clusters")
}

func runAlbums(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	n := mustGetInt(cmd, "n")

	c, _, err := openCorpus(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("building index: %w", err)
	}

	clusters := c.Recommender.Albums(n)
	if len(clusters) == 0 {
		fmt.Printf("Not enough photos for %d clusters.\n", n)
		return nil
	}

	ids := make([]int, 0, len(clusters))
	for cluster := range clusters {
		ids = append(ids, cluster)
	}
	sort.Ints(ids)

	for _, cluster := range ids {
		fmt.Printf("Album %d (%d photos): %v\n", cluster, len(clusters[cluster]), clusters[cluster])
	}
	return nil
}
