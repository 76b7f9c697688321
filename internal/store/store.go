// Package store persists photo embeddings and metadata in a single
// SQLite file per corpus. All writes go through one writer goroutine;
// readers use the shared connection pool directly.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var (
	// ErrUnavailable indicates a disk or database failure. Fatal for the
	// current call, not for the process.
	ErrUnavailable = errors.New("store unavailable")

	// ErrNotFound indicates the requested photo does not exist.
	ErrNotFound = errors.New("photo not found")

	// ErrCorruptEmbedding indicates a stored embedding blob whose length
	// is not a multiple of 4 bytes.
	ErrCorruptEmbedding = errors.New("corrupt embedding")

	// ErrDimensionMismatch indicates an embedding whose length differs
	// from the corpus dimension recorded at first insert.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Photo is a stored image row. TakenAt keeps the ingested string form
// (ISO-8601 or date-only); comparisons use string-range semantics.
type Photo struct {
	ID           int64
	SourceRef    string
	ThumbnailRef string
	UploadedAt   string
	TakenAt      *string
	GPSLat       *float64
	GPSLon       *float64
	LocationName *string
	Embedding    []float32
	Metadata     string
}

// Face is a stored face row. Only PersonName is consumed by the search
// core; bbox and encoding are passed through for external consumers.
type Face struct {
	ID         int64
	ImageID    int64
	BBox       string
	Encoding   []byte
	PersonName string
	Confidence float64
}

type writeOp struct {
	fn   func(db *sql.DB) (int64, error)
	done chan writeResult
}

type writeResult struct {
	id  int64
	err error
}

// Store owns the corpus database file and its schema.
type Store struct {
	db     *sql.DB
	path   string
	writes chan writeOp
	closed chan struct{}
	logger *zap.Logger

	dimMu sync.Mutex
	dim   int // vector dimension, 0 until first insert or recovery
}

const schema = `
CREATE TABLE IF NOT EXISTS images (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_ref TEXT UNIQUE NOT NULL,
	thumbnail_ref TEXT,
	uploaded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	taken_at TIMESTAMP,
	gps_lat REAL,
	gps_lon REAL,
	location_name TEXT,
	embedding BLOB,
	metadata TEXT
);
CREATE TABLE IF NOT EXISTS faces (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	image_id INTEGER REFERENCES images(id),
	bbox TEXT,
	encoding BLOB,
	person_name TEXT,
	confidence REAL
);
CREATE TABLE IF NOT EXISTS search_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	query TEXT,
	results TEXT,
	ts TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// Open opens (or creates) the corpus database at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening corpus %s: %w: %w", path, ErrUnavailable, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w: %w", ErrUnavailable, err)
	}

	s := &Store{
		db:     db,
		path:   path,
		writes: make(chan writeOp),
		closed: make(chan struct{}),
		logger: logger,
	}

	// Recover the corpus dimension from existing rows. The most common
	// blob length wins so a single truncated row cannot shift it.
	var blobLen sql.NullInt64
	err = db.QueryRow(`
		SELECT length(embedding) FROM images
		WHERE embedding IS NOT NULL AND length(embedding) % 4 = 0
		GROUP BY length(embedding)
		ORDER BY COUNT(*) DESC, length(embedding) DESC
		LIMIT 1`).Scan(&blobLen)
	if err == nil && blobLen.Valid && blobLen.Int64 > 0 {
		s.dim = int(blobLen.Int64 / 4)
	}

	go s.writer()
	return s, nil
}

// writer serializes all mutations. Concurrent callers block until their
// operation has been applied.
func (s *Store) writer() {
	for op := range s.writes {
		id, err := op.fn(s.db)
		op.done <- writeResult{id: id, err: err}
	}
	close(s.closed)
}

func (s *Store) write(ctx context.Context, fn func(db *sql.DB) (int64, error)) (int64, error) {
	op := writeOp{fn: fn, done: make(chan writeResult, 1)}
	select {
	case s.writes <- op:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	res := <-op.done
	return res.id, res.err
}

// Close stops the writer goroutine and closes the database.
func (s *Store) Close() error {
	close(s.writes)
	<-s.closed
	return s.db.Close()
}

// Path returns the corpus file path.
func (s *Store) Path() string {
	return s.path
}

// Dim returns the corpus vector dimension, or 0 if nothing was stored yet.
func (s *Store) Dim() int {
	s.dimMu.Lock()
	defer s.dimMu.Unlock()
	return s.dim
}

// setDim records the corpus dimension if it is not set yet.
func (s *Store) setDim(d int) {
	s.dimMu.Lock()
	if s.dim == 0 {
		s.dim = d
	}
	s.dimMu.Unlock()
}

// encodeVector serializes a vector as little-endian float32 bytes.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector deserializes little-endian float32 bytes.
func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: blob length %d", ErrCorruptEmbedding, len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// inPlaceholders renders "?,?,?" for n parameters.
func inPlaceholders(n int) string {
	if n == 0 {
		return ""
	}
	b := make([]byte, 0, 2*n-1)
	for i := range n {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}

// idChunks splits a candidate list to stay under SQLite's host
// parameter limit.
func idChunks(ids []int64, size int) [][]int64 {
	var chunks [][]int64
	for len(ids) > size {
		chunks = append(chunks, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}

const chunkSize = 500
