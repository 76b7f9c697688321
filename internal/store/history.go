package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SaveSearch appends a query and its serialized results to the search
// history. Best effort at the engine boundary; callers may ignore the error.
func (s *Store) SaveSearch(ctx context.Context, query, results string) error {
	_, err := s.write(ctx, func(db *sql.DB) (int64, error) {
		res, err := db.Exec(
			`INSERT INTO search_history (query, results) VALUES (?, ?)`,
			query, results,
		)
		if err != nil {
			return 0, fmt.Errorf("saving search history: %w: %w", ErrUnavailable, err)
		}
		return res.LastInsertId()
	})
	return err
}
