package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Visit is one catalog page that finished loading.
type Visit struct {
	ID        int64
	AccountID string
	URI       string
	Title     string
	Kind      string // state name, e.g. LoadedFeedWithGroups
	VisitedAt time.Time
}

// VisitStore is the persistent log of loaded catalog pages. It is
// separate from the in-memory back stack, which is never persisted.
type VisitStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewVisitStore creates a visit store using the given database.
func NewVisitStore(db *DB) *VisitStore {
	return &VisitStore{db: db.conn, now: time.Now}
}

// Record logs a visit. Revisiting the most recent URI only refreshes its
// timestamp and title.
func (vs *VisitStore) Record(ctx context.Context, accountID, uri, title, kind string) error {
	if uri == "" {
		return nil
	}
	now := vs.now().UnixNano()

	var lastID int64
	var lastURI, lastAccount string
	err := vs.db.QueryRowContext(ctx,
		`SELECT id, uri, account_id FROM visits ORDER BY visited_at DESC, id DESC LIMIT 1`,
	).Scan(&lastID, &lastURI, &lastAccount)
	switch {
	case err == nil && lastURI == uri && lastAccount == accountID:
		_, err = vs.db.ExecContext(ctx,
			`UPDATE visits SET visited_at = ?, title = CASE WHEN ? = '' THEN title ELSE ? END, kind = ? WHERE id = ?`,
			now, title, title, kind, lastID,
		)
		if err != nil {
			return fmt.Errorf("updating visit: %w", err)
		}
		return nil
	case err != nil && err != sql.ErrNoRows:
		return fmt.Errorf("reading last visit: %w", err)
	}

	_, err = vs.db.ExecContext(ctx,
		`INSERT INTO visits (account_id, uri, title, kind, visited_at) VALUES (?, ?, ?, ?, ?)`,
		accountID, uri, title, kind, now,
	)
	if err != nil {
		return fmt.Errorf("recording visit: %w", err)
	}
	return nil
}

// Recent returns up to limit visits, newest first.
func (vs *VisitStore) Recent(ctx context.Context, limit int) ([]Visit, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := vs.db.QueryContext(ctx,
		`SELECT id, account_id, uri, title, kind, visited_at FROM visits
		 ORDER BY visited_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing visits: %w", err)
	}
	defer rows.Close()

	var visits []Visit
	for rows.Next() {
		var v Visit
		var at int64
		if err := rows.Scan(&v.ID, &v.AccountID, &v.URI, &v.Title, &v.Kind, &at); err != nil {
			return nil, fmt.Errorf("scanning visit: %w", err)
		}
		v.VisitedAt = time.Unix(0, at)
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// Clear removes every visit.
func (vs *VisitStore) Clear(ctx context.Context) error {
	if _, err := vs.db.ExecContext(ctx, `DELETE FROM visits`); err != nil {
		return fmt.Errorf("clearing visits: %w", err)
	}
	return nil
}
