// Package notebook is the service layer every front end (HTTP, MCP, CLI)
// goes through. It combines the versioned store with the day index, derived
// statistics, the past-task scanner and event publishing.
package notebook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/starford/daylog/internal/apperr"
	"github.com/starford/daylog/internal/checksum"
	"github.com/starford/daylog/internal/index"
	"github.com/starford/daylog/internal/notes"
	"github.com/starford/daylog/internal/sse"
	"github.com/starford/daylog/internal/stats"
	"github.com/starford/daylog/internal/storage"
	"github.com/starford/daylog/internal/vcs"
)

// Publisher receives change notifications. *sse.Broker implements it.
type Publisher interface {
	Publish(event sse.Event)
	PublishNoteEvent(kind, path string)
	PublishStats(summary any)
}

type nopPublisher struct{}

func (nopPublisher) Publish(sse.Event) {}
func (nopPublisher) PublishNoteEvent(string, string) {}
func (nopPublisher) PublishStats(any) {}

// Service coordinates store, index and derived data.
type Service struct {
	store  *vcs.Store
	db     *index.DB
	events Publisher
	logger *slog.Logger
	now    func() time.Time

	concurrency int
	syncGroup   singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithIndex enables the day index for search and reindexing after writes.
func WithIndex(db *index.DB) Option {
	return func(s *Service) { s.db = db }
}

// WithPublisher routes change events to p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the clock that decides what "today" is.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithConcurrency bounds parallel note reads during a stats recompute.
func WithConcurrency(n int) Option {
	return func(s *Service) { s.concurrency = n }
}

// New creates a service on top of an opened store.
func New(store *vcs.Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		events:      nopPublisher{},
		logger:      slog.Default(),
		now:         time.Now,
		concurrency: stats.DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the underlying versioned store.
func (s *Service) Store() *vcs.Store { return s.store }

// Today returns the current local date.
func (s *Service) Today() notes.Date {
	return notes.DateOf(s.now())
}

// Initialize prepares the repository: identity, initial commit, origin.
func (s *Service) Initialize(ctx context.Context) error {
	if err := s.store.Initialize(ctx); err != nil {
		return err
	}
	s.Reindex()
	return nil
}

// NoteDetail is one day's note. Content is empty and Exists false when the
// day has no file yet; Template then holds the default body.
type NoteDetail struct {
	Date     notes.Date       `json:"date"`
	Path     string           `json:"path"`
	Content  string           `json:"content"`
	Checksum string           `json:"checksum"`
	Exists   bool             `json:"exists"`
	Template string           `json:"template,omitempty"`
	Stats    stats.DailyStats `json:"stats"`
}

// notePath returns the path holding d, preferring an existing legacy file.
func (s *Service) notePath(files storage.Provider, d notes.Date) string {
	p := notes.PathFor(d)
	if !files.Exists(p) && files.Exists(notes.LegacyPathFor(d)) {
		return notes.LegacyPathFor(d)
	}
	return p
}

// ReadNote returns the note of day d.
func (s *Service) ReadNote(_ context.Context, d notes.Date) (*NoteDetail, error) {
	var detail *NoteDetail
	err := s.store.View(func(files storage.Provider) error {
		p := s.notePath(files, d)
		detail = &NoteDetail{Date: d, Path: p}
		if !files.Exists(p) {
			detail.Template = notes.Template(d)
			detail.Checksum = checksum.Sum(nil)
			return nil
		}
		data, err := files.Read(p)
		if err != nil {
			return err
		}
		detail.Exists = true
		detail.Content = string(data)
		detail.Checksum = checksum.Sum(data)
		detail.Stats = stats.ParseDay(detail.Content)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// WriteNote saves the note of day d and commits it. A non-empty ifMatch must
// equal the checksum of the current content. The day's statistics are
// refreshed afterwards.
func (s *Service) WriteNote(ctx context.Context, d notes.Date, content []byte, ifMatch string) (*NoteDetail, error) {
	resolve := func(files storage.Provider) string { return s.notePath(files, d) }
	if _, err := s.write(ctx, resolve, content, ifMatch); err != nil {
		return nil, err
	}

	if !d.After(s.Today()) {
		counts := stats.ParseDay(string(content))
		if _, err := s.UpdateDayStats(ctx, d, counts.Total, counts.Completed, counts.Uncompleted); err != nil {
			s.logger.Warn("notebook: stats update failed",
				slog.String("date", d.String()), slog.String("error", err.Error()))
		}
	}
	return s.ReadNote(ctx, d)
}

// FileDetail is an arbitrary repository file.
type FileDetail struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Checksum string `json:"checksum"`
}

// ReadFile returns the file at path. A missing file reads as empty.
func (s *Service) ReadFile(_ context.Context, path string) (*FileDetail, error) {
	data, err := s.store.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &FileDetail{Path: path, Content: string(data), Checksum: checksum.Sum(data)}, nil
}

// WriteFile writes and commits path with optimistic concurrency on ifMatch.
func (s *Service) WriteFile(ctx context.Context, path string, content []byte, ifMatch string) (*FileDetail, error) {
	resolve := func(storage.Provider) string { return path }
	if _, err := s.write(ctx, resolve, content, ifMatch); err != nil {
		return nil, err
	}
	return &FileDetail{Path: path, Content: string(content), Checksum: checksum.Sum(content)}, nil
}

// write resolves the target path, compares ifMatch and writes under one store
// lock, so no other writer can land between the check and the write.
func (s *Service) write(ctx context.Context, resolve func(storage.Provider) string, content []byte, ifMatch string) (string, error) {
	var path string
	err := s.store.Update(ctx, "", func(files storage.Provider) ([]string, error) {
		path = resolve(files)
		if ifMatch != "" {
			current, err := files.Read(path)
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
			if checksum.Sum(current) != ifMatch {
				return nil, fmt.Errorf("notebook: %s changed: %w", path, apperr.ErrConflict)
			}
		}
		if err := files.Write(path, content); err != nil {
			return nil, err
		}
		return []string{path}, nil
	})
	if err != nil {
		return "", err
	}
	s.indexPath(path)
	s.events.PublishNoteEvent("updated", path)
	return path, nil
}

// ListDir lists the visible entries of dir.
func (s *Service) ListDir(_ context.Context, dir string) ([]storage.Entry, error) {
	return s.store.ListDir(dir)
}

// Years lists the year directories of the note tree.
func (s *Service) Years() []string {
	var out []string
	_ = s.store.View(func(files storage.Provider) error {
		out = slices.Collect(notes.ListYears(files.Root()))
		return nil
	})
	return nonNil(out)
}

// Months lists the month directories of year.
func (s *Service) Months(year string) []string {
	var out []string
	_ = s.store.View(func(files storage.Provider) error {
		out = slices.Collect(notes.ListMonths(files.Root(), year))
		return nil
	})
	return nonNil(out)
}

// Days lists the day names (without .md) of year/month.
func (s *Service) Days(year, month string) []string {
	var out []string
	_ = s.store.View(func(files storage.Provider) error {
		out = slices.Collect(notes.ListDays(files.Root(), year, month))
		return nil
	})
	return nonNil(out)
}

// Month returns the indexed days of year/month with their task counts.
func (s *Service) Month(_ context.Context, year, month string) ([]index.DayRow, error) {
	if s.db == nil {
		return nil, fmt.Errorf("notebook: month: %w", apperr.ErrNotInitialized)
	}
	d, err := notes.ParseDate(year + "-" + month + "-01")
	if err != nil {
		return nil, err
	}
	last := notes.DateOf(d.Time().AddDate(0, 1, -1))
	return s.db.ListDays(d.String(), last.String())
}

// Search queries the day index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if s.db == nil {
		return nil, fmt.Errorf("notebook: search: %w", apperr.ErrNotInitialized)
	}
	return s.db.Search(query, limit)
}

// History returns the commits touching path (all commits when empty).
func (s *Service) History(ctx context.Context, path string, limit int) ([]vcs.CommitInfo, error) {
	return s.store.Log(ctx, path, limit)
}

// Reindex brings the day index in line with the working tree.
func (s *Service) Reindex() {
	if s.db == nil {
		return
	}
	_ = s.store.View(func(files storage.Provider) error {
		if err := index.Sync(s.db, files, s.logger); err != nil {
			s.logger.Warn("notebook: reindex failed", slog.String("error", err.Error()))
		}
		return nil
	})
}

// Watch keeps the index in step with edits made outside the service (editors,
// git checkouts) until ctx ends. Each change is published with the current
// statistics summary.
func (s *Service) Watch(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	files, err := storage.NewFS(s.store.Root())
	if err != nil {
		return err
	}
	return index.Watch(ctx, s.db, files, s.logger, func(kind, path string) {
		s.events.PublishNoteEvent(kind, path)
		if st, err := s.Stats(ctx); err == nil {
			s.events.PublishStats(st.Summary)
		}
	})
}

func (s *Service) indexPath(path string) {
	if s.db == nil {
		return
	}
	_ = s.store.View(func(files storage.Provider) error {
		if err := index.IndexPath(s.db, files, path); err != nil {
			s.logger.Warn("notebook: index failed", slog.String("path", path), slog.String("error", err.Error()))
		}
		return nil
	})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
