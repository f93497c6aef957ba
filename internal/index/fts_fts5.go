//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS days_fts USING fts5(
			path UNINDEXED,
			date UNINDEXED,
			body,
			tokenize = 'trigram'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, path, date, body string) error {
	_, _ = tx.Exec(`DELETE FROM days_fts WHERE path = ?`, path)
	_, err := tx.Exec(`INSERT INTO days_fts (path, date, body) VALUES (?, ?, ?)`, path, date, body)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM days_fts WHERE path = ?`, path)
}

// Search performs an FTS5 search and returns matching days with snippets.
// The trigram tokenizer handles CJK text without word boundaries.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT path,
		       date,
		       snippet(days_fts, 2, '<b>', '</b>', '...', 32)
		FROM days_fts
		WHERE days_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, `"`+strings.ReplaceAll(query, `"`, `""`)+`"`, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Date, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
