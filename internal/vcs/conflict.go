package vcs

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ConflictVersions holds the three views of a conflicted file.
type ConflictVersions struct {
	Path    string `json:"path"`
	Local   string `json:"local"`
	Remote  string `json:"remote"`
	Working string `json:"working"`
}

// HasConflicts reports whether the index holds unmerged paths.
func (s *Store) HasConflicts(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths, err := s.conflictsLocked(ctx)
	return len(paths) > 0, err
}

// ListConflicts returns each unmerged path once, in index order.
func (s *Store) ListConflicts(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conflictsLocked(ctx)
}

func (s *Store) conflictsLocked(ctx context.Context) ([]string, error) {
	out, err := s.git.run(ctx, "ls-files", "-u", "-z")
	if err != nil {
		return nil, fmt.Errorf("vcs: list unmerged: %w", err)
	}
	seen := make(map[string]bool)
	paths := []string{}
	for _, rec := range bytes.Split(out, []byte{0}) {
		if len(rec) == 0 {
			continue
		}
		// "<mode> <object> <stage>\t<path>"
		_, p, ok := strings.Cut(string(rec), "\t")
		if !ok || seen[p] {
			continue
		}
		seen[p] = true
		paths = append(paths, p)
	}
	return paths, nil
}

// ConflictVersions returns the local (HEAD), remote (MERGE_HEAD) and working
// tree contents of path. Any side that cannot be read is empty.
func (s *Store) ConflictVersions(ctx context.Context, path string) ConflictVersions {
	s.mu.Lock()
	defer s.mu.Unlock()

	path = filepath.ToSlash(path)
	v := ConflictVersions{Path: path}
	if out, err := s.git.run(ctx, "cat-file", "blob", "HEAD:"+path); err == nil {
		v.Local = string(out)
	}
	if out, err := s.git.run(ctx, "cat-file", "blob", "MERGE_HEAD:"+path); err == nil {
		v.Remote = string(out)
	}
	if abs, err := s.files.Abs(path); err == nil {
		if data, err := os.ReadFile(abs); err == nil {
			v.Working = string(data)
		}
	}
	return v
}

// ResolveConflict writes the chosen content to path and marks it resolved.
// No commit is created.
func (s *Store) ResolveConflict(ctx context.Context, path string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.files.Write(path, content); err != nil {
		return err
	}
	if _, err := s.git.run(ctx, "add", "--", filepath.ToSlash(path)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStagingFailed, path, err)
	}
	s.logger.Info("vcs: conflict resolved", slog.String("path", path))
	return nil
}

// CompleteMerge records the pending merge as a commit whose parents are HEAD
// and MERGE_HEAD, then clears the merge state. An empty message falls back to
// "Merge remote-tracking branch 'origin/<branch>'".
func (s *Store) CompleteMerge(ctx context.Context, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completeMergeLocked(ctx, message)
}

func (s *Store) completeMergeLocked(ctx context.Context, message string) error {
	conflicts, err := s.conflictsLocked(ctx)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return fmt.Errorf("%w: %s", ErrUnresolvedConflicts, strings.Join(conflicts, ", "))
	}
	mergeHead, err := s.mergeHeadLocked(ctx)
	if err != nil {
		return err
	}
	if mergeHead == "" {
		return ErrNoMergeInProgress
	}
	head, err := s.headLocked(ctx)
	if err != nil {
		return err
	}
	if head == "" {
		return ErrNoHeadCommit
	}

	tree, err := s.git.output(ctx, "write-tree")
	if err != nil {
		return fmt.Errorf("%w: write tree: %v", ErrCommitFailed, err)
	}
	msg := strings.TrimSpace(message)
	if msg == "" {
		msg = fmt.Sprintf("Merge remote-tracking branch '%s/%s'", remoteName, s.branch)
	}
	commit, err := s.git.output(ctx, "commit-tree", tree, "-p", head, "-p", mergeHead, "-m", msg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommitFailed, err)
	}
	if _, err := s.git.run(ctx, "update-ref", "-m", "merge", "HEAD", commit, head); err != nil {
		return fmt.Errorf("%w: update ref: %v", ErrCommitFailed, err)
	}
	if _, err := s.git.run(ctx, "merge", "--quit"); err != nil {
		return fmt.Errorf("vcs: clear merge state: %w", err)
	}
	s.logger.Info("vcs: merge completed", slog.String("commit", commit))
	return nil
}
