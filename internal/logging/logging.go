// Package logging wires zap for the whole process.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a production logger writing JSON to stderr.
// PICTA_DEBUG=1 switches to a human-readable development config.
func New() *zap.Logger {
	if os.Getenv("PICTA_DEBUG") != "" {
		logger, err := zap.NewDevelopment()
		if err == nil {
			return logger
		}
	}

	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
