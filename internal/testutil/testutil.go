// Package testutil provides shared test helpers for setting up repositories,
// databases and services.
package testutil

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/daylog/internal/index"
	"github.com/starford/daylog/internal/notebook"
	"github.com/starford/daylog/internal/vcs"
)

// RequireGit skips the test when the git binary is missing.
func RequireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "daylog-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// RepoConfig returns a valid configuration for a repository at dir.
func RepoConfig(dir, remote string) vcs.RepositoryConfig {
	cfg := vcs.RepositoryConfig{
		Name:      "Tester",
		Email:     "tester@example.com",
		LocalPath: dir,
		RemoteURL: remote,
		Transport: vcs.TransportExec,
	}
	_ = cfg.Validate()
	return cfg
}

// TestStore opens and initializes a repository in a temp dir.
func TestStore(t *testing.T, remote string) *vcs.Store {
	t.Helper()
	RequireGit(t)
	store, err := vcs.Open(RepoConfig(t.TempDir(), remote), vcs.WithLogger(QuietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	return store
}

// TestService builds an indexed service over a fresh repository whose clock
// is pinned to today.
func TestService(t *testing.T, today time.Time) *notebook.Service {
	t.Helper()
	store := TestStore(t, "")
	return notebook.New(store,
		notebook.WithIndex(TestDB(t)),
		notebook.WithLogger(QuietLogger()),
		notebook.WithClock(func() time.Time { return today }),
	)
}

// QuietLogger logs errors only.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}
