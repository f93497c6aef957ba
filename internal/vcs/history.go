package vcs

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CommitInfo is one entry of the branch history.
type CommitInfo struct {
	Hash    string    `json:"hash"`
	Parents []string  `json:"parents"`
	Author  string    `json:"author"`
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

const logFormat = "--format=%H%x1f%P%x1f%an%x1f%aI%x1f%s"

// Log returns up to limit commits reachable from HEAD, newest first. When
// path is non-empty only commits touching it are listed.
func (s *Store) Log(ctx context.Context, path string, limit int) ([]CommitInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	head, err := s.headLocked(ctx)
	if err != nil {
		return nil, err
	}
	if head == "" {
		return []CommitInfo{}, nil
	}
	args := []string{"log", logFormat}
	if limit > 0 {
		args = append(args, fmt.Sprintf("-n%d", limit))
	}
	args = append(args, "HEAD")
	if path != "" {
		args = append(args, "--", path)
	}
	out, err := s.git.output(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("vcs: log: %w", err)
	}
	return parseLog(out), nil
}

func parseLog(out string) []CommitInfo {
	commits := []CommitInfo{}
	for _, line := range strings.Split(out, "\n") {
		f := strings.Split(line, "\x1f")
		if len(f) != 5 {
			continue
		}
		c := CommitInfo{
			Hash:    f[0],
			Parents: strings.Fields(f[1]),
			Author:  f[2],
			Message: f[4],
		}
		if c.Parents == nil {
			c.Parents = []string{}
		}
		c.Time, _ = time.Parse(time.RFC3339, f[3])
		commits = append(commits, c)
	}
	return commits
}
