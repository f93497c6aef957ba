// Package vcs is the versioned store behind the note tree: one git
// repository bound to one local path, with auto-commit on write, push/pull
// against a single origin, and an explicit conflict resolution workflow.
//
// Local operations shell out to the git binary. Network operations go
// through a Transport so credentials can be handled in-process or by git.
package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// runner executes git commands inside one directory.
type runner struct {
	dir string
	env []string
}

func newRunner(dir string, env ...string) *runner {
	return &runner{dir: dir, env: env}
}

// run executes git with args and returns stdout. On failure the error
// carries stderr so callers can classify it.
func (r *runner) run(ctx context.Context, args ...string) ([]byte, error) {
	return r.runInput(ctx, nil, args...)
}

func (r *runner) runInput(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.dir
	cmd.Env = append(os.Environ(), "LC_ALL=C", "GIT_TERMINAL_PROMPT=0")
	cmd.Env = append(cmd.Env, r.env...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), &gitError{
			args:   args,
			stderr: strings.TrimSpace(stderr.String()),
			err:    err,
		}
	}
	return stdout.Bytes(), nil
}

// output is run with surrounding whitespace trimmed.
func (r *runner) output(ctx context.Context, args ...string) (string, error) {
	out, err := r.run(ctx, args...)
	return strings.TrimSpace(string(out)), err
}

// gitError is a failed git invocation.
type gitError struct {
	args   []string
	stderr string
	err    error
}

func (e *gitError) Error() string {
	if e.stderr == "" {
		return fmt.Sprintf("git %s: %v", strings.Join(e.args, " "), e.err)
	}
	return fmt.Sprintf("git %s: %v\n%s", strings.Join(e.args, " "), e.err, e.stderr)
}

func (e *gitError) Unwrap() error { return e.err }

// exitCode returns the process exit code carried by err, or -1.
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// stderrOf returns the captured stderr of a git failure.
func stderrOf(err error) string {
	var ge *gitError
	if errors.As(err, &ge) {
		return ge.stderr
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// checkGit verifies the git binary is installed.
func checkGit() error {
	if _, err := exec.LookPath("git"); err != nil {
		return ErrGitUnavailable
	}
	return nil
}

// identityEnv pins author and committer for commands that create commits.
func identityEnv(name, email string) []string {
	return []string{
		"GIT_AUTHOR_NAME=" + name,
		"GIT_AUTHOR_EMAIL=" + email,
		"GIT_COMMITTER_NAME=" + name,
		"GIT_COMMITTER_EMAIL=" + email,
	}
}
