package notebook

import (
	"context"
	"log/slog"

	"github.com/starford/daylog/internal/notes"
	"github.com/starford/daylog/internal/pasttasks"
	"github.com/starford/daylog/internal/stats"
	"github.com/starford/daylog/internal/storage"
)

// Stats loads the persisted statistics and rederives the summary for today,
// since streaks depend on the current date.
func (s *Service) Stats(_ context.Context) (stats.Statistics, error) {
	var st stats.Statistics
	err := s.store.View(func(files storage.Provider) error {
		var err error
		st, err = stats.Load(files)
		return err
	})
	if err != nil {
		return stats.Statistics{}, err
	}
	return stats.Resummarize(st, s.Today()), nil
}

// SaveStats persists st as given, with its summary rederived, and commits it.
func (s *Service) SaveStats(ctx context.Context, st stats.Statistics) (stats.Statistics, error) {
	st = stats.Resummarize(st, s.Today())
	if err := s.commitStats(ctx, st); err != nil {
		return stats.Statistics{}, err
	}
	return st, nil
}

// RecomputeStats rebuilds statistics from every note and commits them.
func (s *Service) RecomputeStats(ctx context.Context) (stats.Statistics, error) {
	today := s.Today()
	var st stats.Statistics
	err := s.store.Update(ctx, "update statistics", func(files storage.Provider) ([]string, error) {
		var err error
		st, err = stats.Recompute(ctx, files, today, s.concurrency)
		if err != nil {
			return nil, err
		}
		if err := stats.Save(files, st); err != nil {
			return nil, err
		}
		return []string{stats.Path}, nil
	})
	if err != nil {
		return stats.Statistics{}, err
	}
	s.logger.Info("notebook: statistics recomputed", slog.Int("days", len(st.Daily)))
	s.events.PublishStats(st.Summary)
	return st, nil
}

// UpdateDayStats records the counts of day d and commits the statistics.
func (s *Service) UpdateDayStats(ctx context.Context, d notes.Date, total, completed, uncompleted int) (stats.Statistics, error) {
	today := s.Today()
	var st stats.Statistics
	err := s.store.Update(ctx, "update statistics", func(files storage.Provider) ([]string, error) {
		current, err := stats.Load(files)
		if err != nil {
			return nil, err
		}
		st, err = stats.UpdateDay(current, d, total, completed, uncompleted, today)
		if err != nil {
			return nil, err
		}
		if err := stats.Save(files, st); err != nil {
			return nil, err
		}
		return []string{stats.Path}, nil
	})
	if err != nil {
		return stats.Statistics{}, err
	}
	s.events.PublishStats(st.Summary)
	return st, nil
}

func (s *Service) commitStats(ctx context.Context, st stats.Statistics) error {
	err := s.store.Update(ctx, "update statistics", func(files storage.Provider) ([]string, error) {
		if err := stats.Save(files, st); err != nil {
			return nil, err
		}
		return []string{stats.Path}, nil
	})
	if err != nil {
		return err
	}
	s.events.PublishStats(st.Summary)
	return nil
}

// PastState loads the dismissed set.
func (s *Service) PastState(_ context.Context) (pasttasks.State, error) {
	var st pasttasks.State
	err := s.store.View(func(files storage.Provider) error {
		var err error
		st, err = pasttasks.Load(files)
		return err
	})
	return st, err
}

// SavePastState persists st and commits it.
func (s *Service) SavePastState(ctx context.Context, st pasttasks.State) error {
	return s.store.Update(ctx, "update past tasks", func(files storage.Provider) ([]string, error) {
		if err := pasttasks.Save(files, st); err != nil {
			return nil, err
		}
		return []string{pasttasks.Path}, nil
	})
}

// ScanPastTasks lists open to-dos of earlier days that were not dismissed.
func (s *Service) ScanPastTasks(ctx context.Context) ([]pasttasks.Task, error) {
	today := s.Today()
	var tasks []pasttasks.Task
	err := s.store.View(func(files storage.Provider) error {
		st, err := pasttasks.Load(files)
		if err != nil {
			return err
		}
		tasks, err = pasttasks.Scan(ctx, files, st.Dismissed, today)
		return err
	})
	return tasks, err
}

// DeletePastTask removes a task from its source note and commits the note.
func (s *Service) DeletePastTask(ctx context.Context, sourceDate, text string) (string, error) {
	var rel string
	err := s.store.Update(ctx, "", func(files storage.Provider) ([]string, error) {
		var err error
		rel, err = pasttasks.DeleteTask(files, sourceDate, text)
		if err != nil {
			return nil, err
		}
		return []string{rel}, nil
	})
	if err != nil {
		return "", err
	}
	s.indexPath(rel)
	s.events.PublishNoteEvent("updated", rel)

	if d, ok := notes.DateFromPath(rel); ok {
		var content []byte
		content, err = s.store.ReadFile(rel)
		if err == nil {
			c := stats.ParseDay(string(content))
			if _, err := s.UpdateDayStats(ctx, d, c.Total, c.Completed, c.Uncompleted); err != nil {
				s.logger.Warn("notebook: stats update failed", slog.String("path", rel), slog.String("error", err.Error()))
			}
		}
	}
	return rel, nil
}

// DismissPastTask hides a task from future scans.
func (s *Service) DismissPastTask(ctx context.Context, id string) (pasttasks.State, error) {
	today := s.Today()
	var st pasttasks.State
	err := s.store.Update(ctx, "update past tasks", func(files storage.Provider) ([]string, error) {
		current, err := pasttasks.Load(files)
		if err != nil {
			return nil, err
		}
		st = pasttasks.Dismiss(current, id, today)
		if err := pasttasks.Save(files, st); err != nil {
			return nil, err
		}
		return []string{pasttasks.Path}, nil
	})
	return st, err
}
