package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of photos in the corpus",
	RunE:  runCount,
}

func init() {
	rootCmd.AddCommand(countCmd)
}

func runCount(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	c, _, err := openCorpus(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	n, err := c.Store.Count(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Corpus contains %d photos\n", n)
	return nil
}
