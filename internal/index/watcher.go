package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/starford/daylog/internal/checksum"
	"github.com/starford/daylog/internal/notes"
	"github.com/starford/daylog/internal/storage"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, path string)

const reconcileDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the note tree and keeps the index in
// step with edits made outside the service: editors, pulls, checkouts. It
// calls cb (if non-nil) after each successful index mutation.
//
// Hidden directories (.git, .desktop_data) are not watched. Rename and
// remove events schedule a debounced reconciliation pass, since a pull or
// reset touches many files at once.
func Watch(ctx context.Context, db *DB, files storage.Provider, logger *slog.Logger, cb EventCallback) error {
	root := files.Root()
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(db, files, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name
			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil || hidden(rel) {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					}
					// A year or month directory may arrive already populated.
					scheduleReconcile()
					continue
				}
			}

			rel = filepath.ToSlash(rel)
			d, isNote := notes.DateFromPath(rel)
			if !isNote {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := files.Read(rel)
				if readErr != nil {
					// Temp-file renames race with reads; let reconcile settle it.
					scheduleReconcile()
					continue
				}
				if cs, _ := db.GetChecksum(rel); cs == checksum.Sum(data) {
					continue
				}
				if idxErr := indexDay(db, notes.Entry{Date: d, Path: rel}, data); idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", idxErr.Error()))
					continue
				}
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "created"
				}
				logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
				if cb != nil {
					cb(kind, rel)
				}

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile removes index entries whose note is gone and indexes notes whose
// content changed since they were last seen.
func reconcile(db *DB, files storage.Provider, logger *slog.Logger, cb EventCallback) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]struct{})
	for e := range notes.Days(files.Root()) {
		disk[e.Path] = struct{}{}
		data, readErr := files.Read(e.Path)
		if readErr != nil {
			continue
		}
		old, known := checksums[e.Path]
		if old == checksum.Sum(data) {
			continue
		}
		if idxErr := indexDay(db, e, data); idxErr == nil {
			kind := "updated"
			if !known {
				kind = "created"
			}
			logger.Debug("reconcile: indexed", slog.String("path", e.Path))
			if cb != nil {
				cb(kind, e.Path)
			}
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if delErr := db.DeleteDay(p); delErr == nil {
			logger.Debug("reconcile: removed stale", slog.String("path", p))
			if cb != nil {
				cb("deleted", p)
			}
		}
	}
}

// hidden reports whether rel has a dot-prefixed component.
func hidden(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." {
			return true
		}
	}
	return false
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
