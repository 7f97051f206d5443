package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SavedCatalog is a catalog location the user kept for later.
type SavedCatalog struct {
	ID        int64
	AccountID string
	URI       string
	Title     string
	CreatedAt time.Time
}

// SavedCatalogStore manages saved catalogs persisted in SQLite.
type SavedCatalogStore struct {
	db *sql.DB
}

// NewSavedCatalogStore creates a saved catalog store using the given database.
func NewSavedCatalogStore(db *DB) *SavedCatalogStore {
	return &SavedCatalogStore{db: db.conn}
}

// Add saves a catalog. It reports false if it was already saved.
func (cs *SavedCatalogStore) Add(ctx context.Context, accountID, uri, title string) (bool, error) {
	res, err := cs.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO saved_catalogs (account_id, uri, title, created_at) VALUES (?, ?, ?, ?)`,
		accountID, uri, title, time.Now().UnixNano(),
	)
	if err != nil {
		return false, fmt.Errorf("saving catalog: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Remove deletes a saved catalog. It reports false if it was not saved.
func (cs *SavedCatalogStore) Remove(ctx context.Context, accountID, uri string) (bool, error) {
	res, err := cs.db.ExecContext(ctx,
		`DELETE FROM saved_catalogs WHERE account_id = ? AND uri = ?`, accountID, uri,
	)
	if err != nil {
		return false, fmt.Errorf("removing catalog: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Has reports whether a catalog is saved.
func (cs *SavedCatalogStore) Has(ctx context.Context, accountID, uri string) (bool, error) {
	var count int
	err := cs.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM saved_catalogs WHERE account_id = ? AND uri = ?`, accountID, uri,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking catalog: %w", err)
	}
	return count > 0, nil
}

// List returns all saved catalogs, newest first.
func (cs *SavedCatalogStore) List(ctx context.Context) ([]SavedCatalog, error) {
	rows, err := cs.db.QueryContext(ctx,
		`SELECT id, account_id, uri, title, created_at FROM saved_catalogs ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing catalogs: %w", err)
	}
	defer rows.Close()

	var catalogs []SavedCatalog
	for rows.Next() {
		var c SavedCatalog
		var at int64
		if err := rows.Scan(&c.ID, &c.AccountID, &c.URI, &c.Title, &at); err != nil {
			return nil, fmt.Errorf("scanning catalog: %w", err)
		}
		c.CreatedAt = time.Unix(0, at)
		catalogs = append(catalogs, c)
	}
	return catalogs, rows.Err()
}
