package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SourceRepo handles database operations for topic sources
type SourceRepo struct {
	db *DB
}

func NewSourceRepository(db *DB) *SourceRepo {
	return &SourceRepo{db: db}
}

// UpsertSource inserts or updates a source configuration
func (r *SourceRepo) UpsertSource(name, kind, url string) error {
	now := formatTime(time.Now())
	_, err := r.db.Exec(`
		INSERT INTO sources (name, kind, url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			kind = excluded.kind,
			url = excluded.url,
			updated_at = excluded.updated_at
	`, name, kind, url, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert source: %w", err)
	}

	return nil
}

// UpdateSourceFetch records a completed fetch and schedules the next one
func (r *SourceRepo) UpdateSourceFetch(name string, nextFetch time.Time) error {
	now := formatTime(time.Now())
	result, err := r.db.Exec(`
		UPDATE sources
		SET last_fetched_at = ?, next_fetch_at = ?, updated_at = ?
		WHERE name = ?
	`, now, formatTime(nextFetch), now, name)
	if err != nil {
		return fmt.Errorf("failed to update source fetch time: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("source '%s' not found", name)
	}

	return nil
}

// GetSource retrieves a source by name; it returns nil when absent
func (r *SourceRepo) GetSource(name string) (*Source, error) {
	var source Source
	var lastFetched, nextFetch sql.NullString
	var createdAt, updatedAt string

	err := r.db.QueryRow(`
		SELECT name, kind, url, last_fetched_at, next_fetch_at, created_at, updated_at
		FROM sources
		WHERE name = ?
	`, name).Scan(&source.Name, &source.Kind, &source.URL, &lastFetched, &nextFetch, &createdAt, &updatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	if source.LastFetchedAt, err = parseNullTime(lastFetched); err != nil {
		return nil, err
	}
	if source.NextFetchAt, err = parseNullTime(nextFetch); err != nil {
		return nil, err
	}
	if source.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if source.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &source, nil
}

// GetSourceCount returns the total number of sources
func (r *SourceRepo) GetSourceCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM sources").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get source count: %w", err)
	}
	return count, nil
}
