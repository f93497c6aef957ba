package vcs

import "errors"

// Errors returned by store operations. Check them with errors.Is.
var (
	// ErrNotAPath is returned when the configured local path is empty or
	// names something other than a directory.
	ErrNotAPath = errors.New("local path is not a directory")

	// ErrGitUnavailable is returned when the git binary is not in PATH.
	ErrGitUnavailable = errors.New("git binary not available")

	// ErrNotARepository is returned by Detect for a directory without .git.
	ErrNotARepository = errors.New("not a git repository")

	ErrIdentityWriteFailed = errors.New("failed to write identity")
	ErrStagingFailed       = errors.New("staging failed")
	ErrNoHeadCommit        = errors.New("repository has no HEAD commit")
	ErrCommitFailed        = errors.New("commit failed")

	// ErrNoRemote is returned by push and pull when origin is not configured.
	ErrNoRemote = errors.New("no remote configured")

	ErrAuthFailure = errors.New("authentication failed")
	ErrNetwork     = errors.New("network failure")

	// ErrNonFastForward is returned when the remote rejects a push because it
	// holds commits the local branch does not have.
	ErrNonFastForward = errors.New("push rejected: non-fast-forward")

	// ErrMergeRequired is returned by Pull when histories diverged. The
	// repository is left with a merge in progress that must be finished with
	// ResolveConflict and CompleteMerge.
	ErrMergeRequired = errors.New("manual resolution required")

	// ErrMergeInProgress is returned by operations that are not valid while a
	// merge is pending (push, pull, ordinary writes).
	ErrMergeInProgress = errors.New("merge in progress")

	ErrUnresolvedConflicts = errors.New("unresolved conflicts")
	ErrNoMergeInProgress   = errors.New("no merge in progress")

	// ErrTargetNotEmpty is returned by Clone when the target directory exists
	// and has entries.
	ErrTargetNotEmpty = errors.New("clone target exists and is not empty")
)

// IsUserActionRequired returns true if the error can only be cleared by the
// user resolving a merge.
func IsUserActionRequired(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrMergeRequired) ||
		errors.Is(err, ErrMergeInProgress) ||
		errors.Is(err, ErrUnresolvedConflicts) ||
		errors.Is(err, ErrNonFastForward)
}

// IsTransportError reports whether err came from talking to the remote.
func IsTransportError(err error) bool {
	return errors.Is(err, ErrAuthFailure) || errors.Is(err, ErrNetwork)
}
