package index

import (
	"log/slog"

	"github.com/starford/daylog/internal/checksum"
	"github.com/starford/daylog/internal/notes"
	"github.com/starford/daylog/internal/stats"
	"github.com/starford/daylog/internal/storage"
)

// Sync walks the note tree and brings the index up to date:
//   - new/changed days are parsed and upserted
//   - days removed from disk are deleted from the index
func Sync(db *DB, files storage.Provider, logger *slog.Logger) error {
	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{})
	for e := range notes.Days(files.Root()) {
		disk[e.Path] = struct{}{}

		data, err := files.Read(e.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", e.Path), slog.String("error", err.Error()))
			continue
		}
		if checksums[e.Path] == checksum.Sum(data) {
			continue
		}
		if err := indexDay(db, e, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", e.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", e.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteDay(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}
	return nil
}

// IndexPath reindexes one note after a write through the store. A path that
// is not a note is ignored.
func IndexPath(db *DB, files storage.Provider, rel string) error {
	d, ok := notes.DateFromPath(rel)
	if !ok {
		return nil
	}
	data, err := files.Read(rel)
	if err != nil {
		return db.DeleteDay(rel)
	}
	return indexDay(db, notes.Entry{Date: d, Path: rel}, data)
}

// indexDay counts tasks in data and upserts the day.
func indexDay(db *DB, e notes.Entry, data []byte) error {
	counts := stats.ParseDay(string(data))
	row := DayRow{
		Path:        e.Path,
		Date:        e.Date.String(),
		Checksum:    checksum.Sum(data),
		Total:       counts.Total,
		Completed:   counts.Completed,
		Uncompleted: counts.Uncompleted,
	}
	return db.UpsertDay(row, string(data))
}
