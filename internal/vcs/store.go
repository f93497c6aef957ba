package vcs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/starford/daylog/internal/apperr"
	"github.com/starford/daylog/internal/storage"
)

const (
	remoteName = "origin"
	readmeName = "README.md"
	readmeBody = "# Todo List\n\n我的 Todo 列表，按 年/月/日期.md 组织。\n"
	initialMsg = "初始化仓库"
)

// State is the repository's position in the sync/merge state machine.
type State string

const (
	StateClean         State = "clean"
	StateConflicted    State = "conflicted"
	StateResolvedMerge State = "resolved_pending_merge"
)

// Store owns one repository. Every method runs under a single mutex so
// file writes, commits, network operations and conflict handling never
// interleave.
type Store struct {
	mu sync.Mutex

	cfg       RepositoryConfig
	branch    string
	root      string
	files     *storage.FS
	git       *runner
	transport Transport
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithTransport overrides the transport selected from the configuration.
func WithTransport(t Transport) Option {
	return func(s *Store) {
		s.transport = t
	}
}

// WithLogger sets the logger used for store diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Open binds a Store to cfg.LocalPath. An existing repository is opened as
// is; otherwise the directory is created and an empty repository initialised.
func Open(cfg RepositoryConfig, opts ...Option) (*Store, error) {
	if err := checkGit(); err != nil {
		return nil, err
	}
	if cfg.LocalPath == "" {
		return nil, ErrNotAPath
	}
	root, err := filepath.Abs(cfg.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("vcs: resolve path: %w", err)
	}
	if info, err := os.Stat(root); err == nil && !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotAPath, root)
	}

	s := &Store{
		cfg:    cfg,
		root:   root,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.git = newRunner(root, identityEnv(cfg.Name, cfg.Email)...)

	ctx := context.Background()
	if _, err := os.Stat(filepath.Join(root, ".git")); err != nil {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("vcs: create dir: %w", err)
		}
		if _, err := s.git.run(ctx, "init", "-q"); err != nil {
			return nil, fmt.Errorf("vcs: init: %w", err)
		}
		branch := cfg.Branch
		if branch == "" {
			branch = DefaultBranch
		}
		if _, err := s.git.run(ctx, "symbolic-ref", "HEAD", "refs/heads/"+branch); err != nil {
			return nil, fmt.Errorf("vcs: set initial branch: %w", err)
		}
		s.logger.Info("vcs: initialized repository", slog.String("path", root), slog.String("branch", branch))
	}

	s.branch = cfg.Branch
	if s.branch == "" {
		if cur, err := s.git.output(ctx, "symbolic-ref", "--short", "HEAD"); err == nil && cur != "" {
			s.branch = cur
		} else {
			s.branch = DefaultBranch
		}
	}

	files, err := storage.NewFS(root)
	if err != nil {
		return nil, err
	}
	s.files = files

	if s.transport == nil {
		s.transport = NewTransport(cfg)
	}
	return s, nil
}

// Root returns the absolute repository path.
func (s *Store) Root() string { return s.root }

// Abs resolves a repository-relative path, rejecting escapes and .git.
func (s *Store) Abs(rel string) (string, error) { return s.files.Abs(rel) }

// Branch returns the tracked branch name.
func (s *Store) Branch() string { return s.branch }

// Config returns the configuration the store was opened with.
func (s *Store) Config() RepositoryConfig { return s.cfg }

// Initialize writes the identity into the repository config, creates the
// initial README commit when the repository is empty and points origin at
// the configured remote. Safe to call repeatedly.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.git.run(ctx, "config", "user.name", s.cfg.Name); err != nil {
		return fmt.Errorf("%w: %v", ErrIdentityWriteFailed, err)
	}
	if _, err := s.git.run(ctx, "config", "user.email", s.cfg.Email); err != nil {
		return fmt.Errorf("%w: %v", ErrIdentityWriteFailed, err)
	}

	head, err := s.headLocked(ctx)
	if err != nil {
		return err
	}
	if head == "" {
		if err := s.initialCommitLocked(ctx); err != nil {
			return err
		}
	}

	if s.cfg.RemoteURL != "" {
		if _, err := s.git.run(ctx, "remote", "get-url", remoteName); err == nil {
			_, err = s.git.run(ctx, "remote", "set-url", remoteName, s.cfg.RemoteURL)
			if err != nil {
				return fmt.Errorf("vcs: update remote: %w", err)
			}
		} else if _, err := s.git.run(ctx, "remote", "add", remoteName, s.cfg.RemoteURL); err != nil {
			return fmt.Errorf("vcs: add remote: %w", err)
		}
	}
	return nil
}

func (s *Store) initialCommitLocked(ctx context.Context) error {
	if !s.files.Exists(readmeName) {
		if err := s.files.Write(readmeName, []byte(readmeBody)); err != nil {
			return err
		}
	}
	if _, err := s.git.run(ctx, "add", "--", readmeName); err != nil {
		return fmt.Errorf("%w: %v", ErrStagingFailed, err)
	}
	tree, err := s.git.output(ctx, "write-tree")
	if err != nil {
		return fmt.Errorf("%w: write tree: %v", ErrCommitFailed, err)
	}
	commit, err := s.git.output(ctx, "commit-tree", tree, "-m", initialMsg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommitFailed, err)
	}
	if _, err := s.git.run(ctx, "update-ref", "HEAD", commit); err != nil {
		return fmt.Errorf("%w: update ref: %v", ErrCommitFailed, err)
	}
	s.logger.Info("vcs: created initial commit", slog.String("commit", commit))
	return nil
}

// Commit stages path and records it in a new commit on top of HEAD.
func (s *Store) Commit(ctx context.Context, path, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(ctx, path, message, false)
}

// CommitRemoval stages the removal of path and commits it.
func (s *Store) CommitRemoval(ctx context.Context, path, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(ctx, path, message, true)
}

// commitLocked stages exactly one path, writes the index as a tree and
// creates a single-parent commit. An unchanged tree creates no commit. A
// failure after staging leaves the index staged; the next commit picks it up.
func (s *Store) commitLocked(ctx context.Context, path, message string, remove bool) error {
	path = filepath.ToSlash(path)
	var err error
	if remove {
		_, err = s.git.run(ctx, "rm", "--cached", "--ignore-unmatch", "-q", "--", path)
	} else {
		_, err = s.git.run(ctx, "add", "--", path)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStagingFailed, path, err)
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
	if headTree, err := s.git.output(ctx, "rev-parse", head+"^{tree}"); err == nil && headTree == tree {
		s.logger.Debug("vcs: nothing to commit", slog.String("path", path))
		return nil
	}
	commit, err := s.git.output(ctx, "commit-tree", tree, "-p", head, "-m", message)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommitFailed, err)
	}
	if _, err := s.git.run(ctx, "update-ref", "-m", "commit: "+message, "HEAD", commit, head); err != nil {
		return fmt.Errorf("%w: update ref: %v", ErrCommitFailed, err)
	}
	s.logger.Debug("vcs: committed", slog.String("path", path), slog.String("commit", commit))
	return nil
}

// WriteFile writes content to path and commits it. An empty message
// defaults to "update <path>".
func (s *Store) WriteFile(ctx context.Context, path string, content []byte, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireNoMergeLocked(ctx); err != nil {
		return err
	}
	if err := s.files.Write(path, content); err != nil {
		return err
	}
	if message == "" {
		message = "update " + path
	}
	return s.commitLocked(ctx, path, message, false)
}

// RemoveFile deletes path from the working tree and commits the removal.
func (s *Store) RemoveFile(ctx context.Context, path, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireNoMergeLocked(ctx); err != nil {
		return err
	}
	if !s.files.Exists(path) {
		return fmt.Errorf("vcs: remove %s: %w", path, apperr.ErrNotFound)
	}
	if err := s.files.Delete(path); err != nil {
		return err
	}
	if message == "" {
		message = "delete " + path
	}
	return s.commitLocked(ctx, path, message, true)
}

// ReadFile returns the content of path. A missing file reads as empty.
func (s *Store) ReadFile(path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.files.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []byte{}, nil
		}
		return nil, err
	}
	return data, nil
}

// ListDir returns the visible entries of dir.
func (s *Store) ListDir(dir string) ([]storage.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files.List(dir)
}

// View runs fn with exclusive access to the working tree. Scanners use it
// so they never read a note while it is being rewritten.
func (s *Store) View(fn func(files storage.Provider) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.files)
}

// Update runs fn with exclusive access to the working tree and commits every
// path fn reports as changed, one commit each.
func (s *Store) Update(ctx context.Context, message string, fn func(files storage.Provider) ([]string, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireNoMergeLocked(ctx); err != nil {
		return err
	}
	changed, err := fn(s.files)
	if err != nil {
		return err
	}
	for _, p := range changed {
		msg := message
		if msg == "" {
			msg = "update " + p
		}
		if err := s.commitLocked(ctx, p, msg, !s.files.Exists(p)); err != nil {
			return err
		}
	}
	return nil
}

// State reports whether a merge is pending and whether it still has
// unresolved paths.
func (s *Store) State(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked(ctx)
}

func (s *Store) stateLocked(ctx context.Context) (State, error) {
	conflicts, err := s.conflictsLocked(ctx)
	if err != nil {
		return "", err
	}
	if len(conflicts) > 0 {
		return StateConflicted, nil
	}
	merging, err := s.mergeHeadLocked(ctx)
	if err != nil {
		return "", err
	}
	if merging != "" {
		return StateResolvedMerge, nil
	}
	return StateClean, nil
}

func (s *Store) requireNoMergeLocked(ctx context.Context) error {
	st, err := s.stateLocked(ctx)
	if err != nil {
		return err
	}
	if st != StateClean {
		return fmt.Errorf("%w: state %s", ErrMergeInProgress, st)
	}
	return nil
}

// headLocked returns the HEAD commit id, or "" for an unborn branch.
func (s *Store) headLocked(ctx context.Context) (string, error) {
	return s.revLocked(ctx, "HEAD")
}

func (s *Store) mergeHeadLocked(ctx context.Context) (string, error) {
	return s.revLocked(ctx, "MERGE_HEAD")
}

// revLocked resolves rev to a commit id; an unknown rev yields "".
func (s *Store) revLocked(ctx context.Context, rev string) (string, error) {
	out, err := s.git.output(ctx, "rev-parse", "-q", "--verify", rev+"^{commit}")
	if err != nil {
		if exitCode(err) == 1 {
			return "", nil
		}
		return "", fmt.Errorf("vcs: resolve %s: %w", rev, err)
	}
	return strings.TrimSpace(out), nil
}

func (s *Store) hasRemoteLocked(ctx context.Context) bool {
	_, err := s.git.run(ctx, "remote", "get-url", remoteName)
	return err == nil
}
