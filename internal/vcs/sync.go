package vcs

import (
	"context"
	"fmt"
	"log/slog"
)

// PullResult describes what Pull did to the local branch.
type PullResult string

const (
	PullUpToDate    PullResult = "up_to_date"
	PullFastForward PullResult = "fast_forward"
)

// Push publishes the local branch to origin.
func (s *Store) Push(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushLocked(ctx)
}

func (s *Store) pushLocked(ctx context.Context) error {
	if err := s.requireNoMergeLocked(ctx); err != nil {
		return err
	}
	if !s.hasRemoteLocked(ctx) {
		return ErrNoRemote
	}
	head, err := s.headLocked(ctx)
	if err != nil {
		return err
	}
	if head == "" {
		return ErrNoHeadCommit
	}
	if err := s.transport.Push(ctx, s.root, remoteName, s.branch); err != nil {
		return err
	}
	s.logger.Info("vcs: pushed", slog.String("branch", s.branch), slog.String("head", head))
	return nil
}

// Pull fetches origin and integrates the remote branch. A missing remote
// branch counts as up to date. When the histories diverged a merge is
// started without committing and ErrMergeRequired is returned; the caller
// resolves it with ResolveConflict and CompleteMerge.
func (s *Store) Pull(ctx context.Context) (PullResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireNoMergeLocked(ctx); err != nil {
		return "", err
	}
	if !s.hasRemoteLocked(ctx) {
		return "", ErrNoRemote
	}

	found, err := s.transport.Fetch(ctx, s.root, remoteName, s.branch)
	if err != nil {
		return "", err
	}
	if !found {
		s.logger.Debug("vcs: remote branch missing", slog.String("branch", s.branch))
		return PullUpToDate, nil
	}

	remoteRef := "refs/remotes/" + remoteName + "/" + s.branch
	remote, err := s.revLocked(ctx, remoteRef)
	if err != nil {
		return "", err
	}
	if remote == "" {
		return PullUpToDate, nil
	}
	head, err := s.headLocked(ctx)
	if err != nil {
		return "", err
	}

	if head == "" {
		if _, err := s.git.run(ctx, "update-ref", "HEAD", remote); err != nil {
			return "", fmt.Errorf("vcs: adopt remote head: %w", err)
		}
		if _, err := s.git.run(ctx, "reset", "-q", "--hard", remote); err != nil {
			return "", fmt.Errorf("vcs: checkout remote head: %w", err)
		}
		return PullFastForward, nil
	}

	if head == remote {
		return PullUpToDate, nil
	}
	remoteContained, err := s.isAncestorLocked(ctx, remote, head)
	if err != nil {
		return "", err
	}
	if remoteContained {
		return PullUpToDate, nil
	}
	canFastForward, err := s.isAncestorLocked(ctx, head, remote)
	if err != nil {
		return "", err
	}
	if canFastForward {
		if _, err := s.git.run(ctx, "reset", "-q", "--hard", remote); err != nil {
			return "", fmt.Errorf("vcs: fast-forward: %w", err)
		}
		s.logger.Info("vcs: fast-forwarded", slog.String("from", head), slog.String("to", remote))
		return PullFastForward, nil
	}

	// Diverged. Leave the merge staged with conflict markers in the tree.
	_, mergeErr := s.git.run(ctx, "merge", "--no-ff", "--no-commit", "--no-edit",
		"--allow-unrelated-histories", remoteRef)
	mergeHead, err := s.mergeHeadLocked(ctx)
	if err != nil {
		return "", err
	}
	if mergeHead == "" {
		if mergeErr != nil {
			return "", fmt.Errorf("vcs: start merge: %w", mergeErr)
		}
		return "", fmt.Errorf("vcs: start merge: no merge state recorded")
	}
	s.logger.Warn("vcs: histories diverged, merge pending",
		slog.String("head", head), slog.String("remote", remote))
	return "", ErrMergeRequired
}

// isAncestorLocked reports whether a is an ancestor of b.
func (s *Store) isAncestorLocked(ctx context.Context, a, b string) (bool, error) {
	_, err := s.git.run(ctx, "merge-base", "--is-ancestor", a, b)
	if err == nil {
		return true, nil
	}
	if exitCode(err) == 1 {
		return false, nil
	}
	return false, fmt.Errorf("vcs: merge-base: %w", err)
}
