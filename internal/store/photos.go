package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// PutParams describes an insert-or-replace keyed by SourceRef.
// GPS coordinates must be both set or both nil.
type PutParams struct {
	SourceRef    string
	ThumbnailRef string
	TakenAt      *string
	GPSLat       *float64
	GPSLon       *float64
	LocationName *string
	Embedding    []float32
	Metadata     string
}

// Put inserts or replaces a photo row and returns its id. The corpus
// dimension is recorded at first insert; later inserts must match it.
func (s *Store) Put(ctx context.Context, p PutParams) (int64, error) {
	if (p.GPSLat == nil) != (p.GPSLon == nil) {
		return 0, fmt.Errorf("put %s: gps must be fully present or fully absent", p.SourceRef)
	}
	if len(p.Embedding) == 0 {
		return 0, fmt.Errorf("put %s: empty embedding", p.SourceRef)
	}

	id, err := s.write(ctx, func(db *sql.DB) (int64, error) {
		// Dimension check runs on the writer goroutine so two concurrent
		// first inserts cannot both pass with different lengths.
		if d := s.Dim(); d != 0 && len(p.Embedding) != d {
			return 0, fmt.Errorf("put %s: %w: got %d, corpus has %d",
				p.SourceRef, ErrDimensionMismatch, len(p.Embedding), d)
		}
		res, err := db.Exec(`
			INSERT OR REPLACE INTO images
			(source_ref, thumbnail_ref, taken_at, gps_lat, gps_lon, location_name, embedding, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.SourceRef, p.ThumbnailRef, p.TakenAt, p.GPSLat, p.GPSLon,
			p.LocationName, encodeVector(p.Embedding), p.Metadata,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting %s: %w: %w", p.SourceRef, ErrUnavailable, err)
		}
		s.setDim(len(p.Embedding))
		return res.LastInsertId()
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func scanPhoto(row interface{ Scan(...any) error }, withEmbedding bool) (*Photo, error) {
	var p Photo
	var thumbnail, uploaded sql.NullString
	var blob []byte

	dest := []any{&p.ID, &p.SourceRef, &thumbnail, &uploaded,
		&p.TakenAt, &p.GPSLat, &p.GPSLon, &p.LocationName, &p.Metadata}
	if withEmbedding {
		dest = append(dest, &blob)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	p.ThumbnailRef = thumbnail.String
	p.UploadedAt = uploaded.String

	if withEmbedding && blob != nil {
		emb, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("photo %d: %w", p.ID, err)
		}
		p.Embedding = emb
	}
	return &p, nil
}

const photoColumns = `id, source_ref, thumbnail_ref, uploaded_at, taken_at,
	gps_lat, gps_lon, location_name, COALESCE(metadata, '')`

// Get returns the full photo row including its embedding.
func (s *Store) Get(ctx context.Context, id int64) (*Photo, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+photoColumns+`, embedding FROM images WHERE id = ?`, id)
	p, err := scanPhoto(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("photo %d: %w", id, ErrNotFound)
	}
	if err != nil && !errors.Is(err, ErrCorruptEmbedding) {
		return nil, fmt.Errorf("getting photo %d: %w: %w", id, ErrUnavailable, err)
	}
	return p, err
}

// GetInfo returns the photo row without loading the embedding blob.
func (s *Store) GetInfo(ctx context.Context, id int64) (*Photo, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+photoColumns+` FROM images WHERE id = ?`, id)
	p, err := scanPhoto(row, false)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("photo %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting photo %d: %w: %w", id, ErrUnavailable, err)
	}
	return p, nil
}

// Count returns the number of stored photos.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM images`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting images: %w: %w", ErrUnavailable, err)
	}
	return n, nil
}

// ScanEmbeddings streams every stored embedding to fn. Rows whose blob
// length is not a multiple of 4 are skipped with a warning; the index
// builder applies its own dimension and norm checks on top.
func (s *Store) ScanEmbeddings(ctx context.Context, fn func(id int64, embedding []float32) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, embedding FROM images WHERE embedding IS NOT NULL ORDER BY id`)
	if err != nil {
		return fmt.Errorf("scanning embeddings: %w: %w", ErrUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return fmt.Errorf("scanning embedding row: %w: %w", ErrUnavailable, err)
		}
		emb, err := decodeVector(blob)
		if err != nil {
			s.logger.Warn("skipping corrupt embedding", zap.Int64("photo_id", id), zap.Error(err))
			continue
		}
		if err := fn(id, emb); err != nil {
			return err
		}
	}
	return rows.Err()
}

// IDsByTimeRange returns ids whose taken_at falls in [start, end].
// Empty bounds are open. A photo without taken_at is excluded only when
// a bound is set. The end bound is extended to the end of its day, so a
// date-only "2024-08-31" covers timestamps within that day.
func (s *Store) IDsByTimeRange(ctx context.Context, start, end string) ([]int64, error) {
	query := `SELECT id FROM images WHERE 1=1`
	var args []any
	if start != "" {
		query += ` AND taken_at >= ?`
		args = append(args, start)
	}
	if end != "" {
		query += ` AND taken_at <= ?`
		args = append(args, end+" 23:59:59")
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("time filter: %w: %w", ErrUnavailable, err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

// GPSPoint is one candidate with coordinates present.
type GPSPoint struct {
	ID  int64
	Lat float64
	Lon float64
}

// GPSPoints returns the subset of ids that carry GPS coordinates.
func (s *Store) GPSPoints(ctx context.Context, ids []int64) ([]GPSPoint, error) {
	var points []GPSPoint
	for _, chunk := range idChunks(ids, chunkSize) {
		query := `SELECT id, gps_lat, gps_lon FROM images
			WHERE id IN (` + inPlaceholders(len(chunk)) + `)
			AND gps_lat IS NOT NULL AND gps_lon IS NOT NULL`
		rows, err := s.db.QueryContext(ctx, query, asAny(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("gps filter: %w: %w", ErrUnavailable, err)
		}
		for rows.Next() {
			var p GPSPoint
			if err := rows.Scan(&p.ID, &p.Lat, &p.Lon); err != nil {
				rows.Close()
				return nil, fmt.Errorf("gps filter: %w: %w", ErrUnavailable, err)
			}
			points = append(points, p)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("gps filter: %w: %w", ErrUnavailable, err)
		}
		rows.Close()
	}
	return points, nil
}

// IDsByLocationVariants returns candidates without GPS whose
// location_name contains any of the variants (case-insensitive). The
// GPS and name subsets deliberately partition the candidate space.
func (s *Store) IDsByLocationVariants(ctx context.Context, ids []int64, variants []string) ([]int64, error) {
	if len(variants) == 0 {
		return nil, nil
	}

	likeClause := ""
	for i := range variants {
		if i > 0 {
			likeClause += " OR "
		}
		likeClause += "location_name LIKE ?"
	}

	var out []int64
	for _, chunk := range idChunks(ids, chunkSize) {
		query := `SELECT id FROM images
			WHERE id IN (` + inPlaceholders(len(chunk)) + `)
			AND location_name IS NOT NULL
			AND gps_lat IS NULL AND gps_lon IS NULL
			AND (` + likeClause + `)`
		args := asAny(chunk)
		for _, v := range variants {
			args = append(args, "%"+v+"%")
		}
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("location name filter: %w: %w", ErrUnavailable, err)
		}
		chunkIDs, err := collectIDs(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, chunkIDs...)
	}
	return out, nil
}

// LatestFirst orders candidates by taken_at descending (ties ascending
// id) and returns at most limit of them.
func (s *Store) LatestFirst(ctx context.Context, ids []int64, limit int) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	// The candidate set may exceed one chunk; collect all rows with
	// their timestamps and finish the ordering over the union.
	type dated struct {
		id      int64
		takenAt sql.NullString
	}
	var all []dated
	for _, chunk := range idChunks(ids, chunkSize) {
		query := `SELECT id, taken_at FROM images
			WHERE id IN (` + inPlaceholders(len(chunk)) + `)`
		rows, err := s.db.QueryContext(ctx, query, asAny(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("date ordering: %w: %w", ErrUnavailable, err)
		}
		for rows.Next() {
			var d dated
			if err := rows.Scan(&d.id, &d.takenAt); err != nil {
				rows.Close()
				return nil, fmt.Errorf("date ordering: %w: %w", ErrUnavailable, err)
			}
			all = append(all, d)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("date ordering: %w: %w", ErrUnavailable, err)
		}
		rows.Close()
	}

	// Descending by taken_at with NULLs last; stable ties by ascending id.
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.takenAt.Valid != b.takenAt.Valid {
			return a.takenAt.Valid
		}
		if a.takenAt.String != b.takenAt.String {
			return a.takenAt.String > b.takenAt.String
		}
		return a.id < b.id
	})

	out := make([]int64, 0, min(limit, len(all)))
	for _, d := range all {
		if len(out) >= limit {
			break
		}
		out = append(out, d.id)
	}
	return out, nil
}

// InBoundingBox returns photos inside the lat/lon box, excluding one id.
func (s *Store) InBoundingBox(ctx context.Context, excludeID int64, latMin, latMax, lonMin, lonMax float64, limit int) ([]Photo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+photoColumns+` FROM images
		WHERE id != ?
		AND gps_lat BETWEEN ? AND ?
		AND gps_lon BETWEEN ? AND ?
		LIMIT ?`,
		excludeID, latMin, latMax, lonMin, lonMax, limit)
	if err != nil {
		return nil, fmt.Errorf("bounding box: %w: %w", ErrUnavailable, err)
	}
	defer rows.Close()
	return collectPhotos(rows)
}

// ByLocationSubstring returns photos whose location_name contains name,
// excluding one id.
func (s *Store) ByLocationSubstring(ctx context.Context, excludeID int64, name string, limit int) ([]Photo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+photoColumns+` FROM images
		WHERE id != ? AND location_name LIKE ?
		LIMIT ?`,
		excludeID, "%"+name+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("location lookup: %w: %w", ErrUnavailable, err)
	}
	defer rows.Close()
	return collectPhotos(rows)
}

// ByTakenAtRange returns photos with taken_at in [start, end), ordered
// ascending by taken_at, excluding one id.
func (s *Store) ByTakenAtRange(ctx context.Context, excludeID int64, start, end string, limit int) ([]Photo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+photoColumns+` FROM images
		WHERE id != ? AND taken_at >= ? AND taken_at < ?
		ORDER BY taken_at, id
		LIMIT ?`,
		excludeID, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("date lookup: %w: %w", ErrUnavailable, err)
	}
	defer rows.Close()
	return collectPhotos(rows)
}

func collectIDs(rows *sql.Rows) ([]int64, error) {
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("collecting ids: %w: %w", ErrUnavailable, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("collecting ids: %w: %w", ErrUnavailable, err)
	}
	return ids, nil
}

func collectPhotos(rows *sql.Rows) ([]Photo, error) {
	var photos []Photo
	for rows.Next() {
		p, err := scanPhoto(rows, false)
		if err != nil {
			return nil, fmt.Errorf("collecting photos: %w: %w", ErrUnavailable, err)
		}
		photos = append(photos, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("collecting photos: %w: %w", ErrUnavailable, err)
	}
	return photos, nil
}

func asAny(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
