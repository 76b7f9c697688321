package store

import (
	"context"
	"database/sql"
	"fmt"
)

// PutFace stores one detected face for a photo. The core only consumes
// person_name; bbox and encoding come from the external face pipeline.
func (s *Store) PutFace(ctx context.Context, imageID int64, face Face) error {
	_, err := s.write(ctx, func(db *sql.DB) (int64, error) {
		var name any
		if face.PersonName != "" {
			name = face.PersonName
		}
		res, err := db.Exec(`
			INSERT INTO faces (image_id, bbox, encoding, person_name, confidence)
			VALUES (?, ?, ?, ?, ?)`,
			imageID, face.BBox, face.Encoding, name, face.Confidence,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting face for photo %d: %w: %w", imageID, ErrUnavailable, err)
		}
		return res.LastInsertId()
	})
	return err
}

// PersonsFor returns the distinct person names attached to a photo.
func (s *Store) PersonsFor(ctx context.Context, imageID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT person_name FROM faces
		WHERE image_id = ? AND person_name IS NOT NULL`, imageID)
	if err != nil {
		return nil, fmt.Errorf("persons for photo %d: %w: %w", imageID, ErrUnavailable, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("persons for photo %d: %w: %w", imageID, ErrUnavailable, err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
