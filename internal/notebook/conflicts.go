package notebook

import (
	"context"
	"log/slog"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/starford/daylog/internal/sse"
	"github.com/starford/daylog/internal/vcs"
)

// ConflictStatus summarises the merge state.
type ConflictStatus struct {
	State     vcs.State `json:"state"`
	Conflicts []string  `json:"conflicts"`
}

// ConflictDetail carries the versions of one conflicted file and a line
// diff from the local to the remote version.
type ConflictDetail struct {
	vcs.ConflictVersions
	Diffs []diffmatchpatch.Diff `json:"diffs"`
}

// MergeResult reports a completed merge and the push that followed it.
type MergeResult struct {
	Pushed    bool   `json:"pushed"`
	PushError string `json:"pushError,omitempty"`
}

// ConflictStatus returns the merge state and the unresolved paths.
func (s *Service) ConflictStatus(ctx context.Context) (ConflictStatus, error) {
	st, err := s.store.State(ctx)
	if err != nil {
		return ConflictStatus{}, err
	}
	paths, err := s.store.ListConflicts(ctx)
	if err != nil {
		return ConflictStatus{}, err
	}
	return ConflictStatus{State: st, Conflicts: nonNil(paths)}, nil
}

// Conflict returns the three versions of path and their diff.
func (s *Service) Conflict(ctx context.Context, path string) ConflictDetail {
	v := s.store.ConflictVersions(ctx, path)
	return ConflictDetail{ConflictVersions: v, Diffs: lineDiff(v.Local, v.Remote)}
}

// ResolveConflict stores the chosen content for path and marks it resolved.
func (s *Service) ResolveConflict(ctx context.Context, path string, content []byte) error {
	if err := s.store.ResolveConflict(ctx, path, content); err != nil {
		return err
	}
	s.indexPath(path)
	s.events.PublishNoteEvent("updated", path)
	return nil
}

// CompleteMerge commits the resolved merge, refreshes derived data and then
// tries to push once.
// A failed push is reported in the result, not as an error. An empty message
// uses the default merge subject.
func (s *Service) CompleteMerge(ctx context.Context, message string) (MergeResult, error) {
	if err := s.store.CompleteMerge(ctx, message); err != nil {
		return MergeResult{}, err
	}
	s.Reindex()
	if _, err := s.RecomputeStats(ctx); err != nil {
		s.logger.Warn("notebook: stats recompute after merge failed", slog.String("error", err.Error()))
	}

	var res MergeResult
	if s.store.Config().HasRemote() {
		if err := s.store.Push(ctx); err != nil {
			res.PushError = err.Error()
			s.logger.Warn("notebook: push after merge failed", slog.String("error", err.Error()))
		} else {
			res.Pushed = true
		}
	}
	s.events.Publish(sse.Event{Type: sse.SyncCompleted, Data: map[string]any{"op": "merge", "pushed": res.Pushed}})
	return res, nil
}

// lineDiff diffs two texts line by line.
func lineDiff(a, b string) []diffmatchpatch.Diff {
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffMain(ca, cb, false)
	return dmp.DiffCharsToLines(diffs, lines)
}
