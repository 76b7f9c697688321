package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"picta/internal/config"
	"picta/internal/corpus"
	"picta/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "picta",
	Short: "Personal photo search and recommendation engine",
	Long: `Picta indexes a photo library with a vision-language model and
serves natural-language search, visual recommendations and metadata
queries over the resulting corpus.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// openCorpus loads config, builds the logger and opens the corpus.
// The caller owns the returned corpus and must Close it.
func openCorpus(ctx context.Context) (*corpus.Corpus, *zap.Logger, error) {
	cfg := config.Load()
	logger := logging.New()

	c, err := corpus.Open(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening corpus: %w", err)
	}
	return c, logger, nil
}
