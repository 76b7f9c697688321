package config

import (
	"os"
	"strconv"
)

type Config struct {
	OpenAI    OpenAIConfig
	Gemini    GeminiConfig
	Embedding EmbeddingConfig
	Geocoder  GeocoderConfig
	Corpus    CorpusConfig
	Indexer   IndexerConfig
	Web       WebConfig
}

type OpenAIConfig struct {
	Token string
}

type GeminiConfig struct {
	APIKey string
}

type EmbeddingConfig struct {
	URL   string // defaults to http://localhost:8000
	Model string // vision-language model identifier, determines Dim
	Dim   int    // defaults to 768
}

type GeocoderConfig struct {
	URL string // overrides the default gazetteer endpoint
}

type CorpusConfig struct {
	Path           string // path to the SQLite corpus file
	RebuildOnStart bool   // force a full index rebuild at process start
}

type IndexerConfig struct {
	Workers int // max parallel encode_image calls (default 4)
}

type WebConfig struct {
	ListenAddr string // defaults to :8080
}

// HasParser reports whether any LLM credential is configured.
// Without one, the deterministic fallback parser is used.
func (c *Config) HasParser() bool {
	return c.OpenAI.Token != "" || c.Gemini.APIKey != ""
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envBool reads an environment variable as a boolean flag.
func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func Load() *Config {
	return &Config{
		OpenAI: OpenAIConfig{
			Token: os.Getenv("OPENAI_TOKEN"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
		},
		Embedding: EmbeddingConfig{
			URL:   os.Getenv("EMBEDDING_URL"),
			Model: os.Getenv("EMBEDDING_MODEL"),
			Dim:   envInt("EMBEDDING_DIM", 768),
		},
		Geocoder: GeocoderConfig{
			URL: os.Getenv("GEOCODER_URL"),
		},
		Corpus: CorpusConfig{
			Path:           os.Getenv("CORPUS_PATH"),
			RebuildOnStart: envBool("ANN_REBUILD_ON_START"),
		},
		Indexer: IndexerConfig{
			Workers: envInt("INDEXER_WORKERS", 4),
		},
		Web: WebConfig{
			ListenAddr: os.Getenv("LISTEN_ADDR"),
		},
	}
}
