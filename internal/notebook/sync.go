package notebook

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/starford/daylog/internal/sse"
	"github.com/starford/daylog/internal/vcs"
)

// SyncResult reports what a sync did. Err holds the failure of a best-effort
// run instead of it being returned.
type SyncResult struct {
	Pull      vcs.PullResult `json:"pull,omitempty"`
	Pushed    bool           `json:"pushed"`
	Conflicts []string       `json:"conflicts,omitempty"`
	Err       error          `json:"-"`
	Error     string         `json:"error,omitempty"`
}

// Push publishes local commits.
func (s *Service) Push(ctx context.Context) error {
	if err := s.store.Push(ctx); err != nil {
		s.events.Publish(sse.Event{Type: sse.SyncFailed, Data: map[string]string{"op": "push", "error": err.Error()}})
		return err
	}
	s.events.Publish(sse.Event{Type: sse.SyncCompleted, Data: map[string]string{"op": "push"}})
	return nil
}

// Pull integrates origin. Divergence leaves a pending merge and returns
// vcs.ErrMergeRequired.
func (s *Service) Pull(ctx context.Context) (vcs.PullResult, error) {
	res, err := s.store.Pull(ctx)
	switch {
	case errors.Is(err, vcs.ErrMergeRequired):
		s.Reindex()
		s.publishConflict(ctx)
		return "", err
	case err != nil:
		s.events.Publish(sse.Event{Type: sse.SyncFailed, Data: map[string]string{"op": "pull", "error": err.Error()}})
		return "", err
	}
	if res == vcs.PullFastForward {
		s.Reindex()
	}
	s.events.Publish(sse.Event{Type: sse.SyncCompleted, Data: map[string]string{"op": "pull", "result": string(res)}})
	return res, nil
}

// Sync pulls then pushes. Concurrent calls share one run. The push is
// skipped when the pull left a merge to resolve.
func (s *Service) Sync(ctx context.Context) (SyncResult, error) {
	v, err, _ := s.syncGroup.Do("sync", func() (any, error) {
		return s.syncOnce(ctx)
	})
	res, _ := v.(SyncResult)
	return res, err
}

func (s *Service) syncOnce(ctx context.Context) (SyncResult, error) {
	var res SyncResult
	pulled, err := s.Pull(ctx)
	if err != nil {
		if errors.Is(err, vcs.ErrMergeRequired) {
			res.Conflicts, _ = s.store.ListConflicts(ctx)
		}
		return res, err
	}
	res.Pull = pulled
	if err := s.Push(ctx); err != nil {
		return res, err
	}
	res.Pushed = true
	return res, nil
}

// BestEffortSync runs Sync and records the error in the result instead of
// returning it. Without a remote it does nothing.
func (s *Service) BestEffortSync(ctx context.Context) SyncResult {
	if !s.store.Config().HasRemote() {
		return SyncResult{}
	}
	res, err := s.Sync(ctx)
	if err != nil {
		res.Err = err
		res.Error = err.Error()
		s.logger.Debug("notebook: background sync failed", slog.String("error", err.Error()))
	}
	return res
}

// AutoSyncConfig controls the background sync loop.
type AutoSyncConfig struct {
	StartupDelay time.Duration
	Interval     time.Duration
}

// AutoSync pulls once after StartupDelay and then syncs every Interval until
// ctx ends. Failures are logged and never stop the loop; a pending merge
// pauses syncing until it is completed.
func (s *Service) AutoSync(ctx context.Context, cfg AutoSyncConfig) error {
	if !s.store.Config().HasRemote() {
		s.logger.Info("notebook: auto sync disabled, no remote")
		return nil
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}

	startup := time.NewTimer(cfg.StartupDelay)
	defer startup.Stop()
	select {
	case <-ctx.Done():
		return nil
	case <-startup.C:
	}

	if st, err := s.store.State(ctx); err == nil && st == vcs.StateClean {
		if _, err := s.Pull(ctx); err != nil {
			s.logger.Debug("notebook: startup pull failed", slog.String("error", err.Error()))
		}
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if st, err := s.store.State(ctx); err != nil || st != vcs.StateClean {
				continue
			}
			s.BestEffortSync(ctx)
		}
	}
}

func (s *Service) publishConflict(ctx context.Context) {
	paths, _ := s.store.ListConflicts(ctx)
	s.events.Publish(sse.Event{Type: sse.SyncConflict, Data: map[string]any{"conflicts": nonNil(paths)}})
}
