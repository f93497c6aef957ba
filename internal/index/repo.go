package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DayRow represents a row in the days table.
type DayRow struct {
	Path        string    `json:"path"`
	Date        string    `json:"date"`
	Checksum    string    `json:"checksum"`
	Total       int       `json:"total"`
	Completed   int       `json:"completed"`
	Uncompleted int       `json:"uncompleted"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string `json:"path"`
	Date    string `json:"date"`
	Snippet string `json:"snippet"`
}

// UpsertDay inserts or replaces a day and its FTS entry within a transaction.
func (db *DB) UpsertDay(d DayRow, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now().UTC()
	}
	_, err = tx.Exec(`
		INSERT INTO days (path, date, checksum, body, total, completed, uncompleted, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			date        = excluded.date,
			checksum    = excluded.checksum,
			body        = excluded.body,
			total       = excluded.total,
			completed   = excluded.completed,
			uncompleted = excluded.uncompleted,
			updated_at  = excluded.updated_at
	`, d.Path, d.Date, d.Checksum, body, d.Total, d.Completed, d.Uncompleted, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert day: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, d.Path, d.Date, body); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteDay removes a day and its FTS entry.
func (db *DB) DeleteDay(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM days WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete day: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for a day, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM days WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// GetDay returns the indexed row for path, or nil when absent.
func (db *DB) GetDay(path string) (*DayRow, error) {
	var d DayRow
	err := db.conn.QueryRow(`
		SELECT path, date, checksum, total, completed, uncompleted, updated_at
		FROM days WHERE path = ?
	`, path).Scan(&d.Path, &d.Date, &d.Checksum, &d.Total, &d.Completed, &d.Uncompleted, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index: get day: %w", err)
	}
	return &d, nil
}

// ListDays returns days with from <= date <= to in ascending order. Empty
// bounds are open.
func (db *DB) ListDays(from, to string) ([]DayRow, error) {
	if to == "" {
		to = "9999-12-31"
	}
	rows, err := db.conn.Query(`
		SELECT path, date, checksum, total, completed, uncompleted, updated_at
		FROM days WHERE date >= ? AND date <= ?
		ORDER BY date, path
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("index: list days: %w", err)
	}
	defer rows.Close()

	out := []DayRow{}
	for rows.Next() {
		var d DayRow
		if err := rows.Scan(&d.Path, &d.Date, &d.Checksum, &d.Total, &d.Completed, &d.Uncompleted, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// AllChecksums returns path → checksum for every indexed day.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM days`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
