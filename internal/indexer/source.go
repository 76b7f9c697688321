package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// streamDepth bounds how far a source may run ahead of the workers.
const streamDepth = 16

// Item is one photo offered by a source. Bytes are read from Path by
// the worker; DeleteAfter marks Path as a scratch file to remove once
// the item is stored.
type Item struct {
	SourceRef    string
	Path         string
	TakenAt      *string
	GPSLat       *float64
	GPSLon       *float64
	LocationName *string
	Metadata     string
	DeleteAfter  bool
}

// Source streams photos to index. The channel is closed when the
// source is exhausted or the context is cancelled.
type Source interface {
	Name() string
	Stream(ctx context.Context) (<-chan Item, error)
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
}

// FilesystemSource walks a directory tree for image files. The source
// ref is the path relative to the root; taken_at falls back to the
// file modification time.
type FilesystemSource struct {
	root string
}

func NewFilesystemSource(root string) (*FilesystemSource, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("source root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source root %s is not a directory", root)
	}
	return &FilesystemSource{root: root}, nil
}

func (s *FilesystemSource) Name() string {
	return "filesystem:" + s.root
}

func (s *FilesystemSource) Stream(ctx context.Context) (<-chan Item, error) {
	out := make(chan Item, streamDepth)

	go func() {
		defer close(out)
		_ = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(path))] {
				return nil
			}

			rel, err := filepath.Rel(s.root, path)
			if err != nil {
				rel = path
			}

			item := Item{SourceRef: rel, Path: path}
			if info, err := d.Info(); err == nil {
				takenAt := info.ModTime().Format("2006-01-02 15:04:05")
				item.TakenAt = &takenAt
			}

			select {
			case out <- item:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	return out, nil
}
