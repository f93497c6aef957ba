package vcs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// CloneOptions configures Clone.
type CloneOptions struct {
	URL       string
	ParentDir string
	Token     string
	Provider  string
	Transport string
}

// Clone clones opts.URL into a directory under opts.ParentDir named after
// the repository and returns its path. For HTTPS remotes with a token the
// credentials are embedded only for the clone; origin keeps the clean URL.
func Clone(ctx context.Context, opts CloneOptions) (string, error) {
	if err := checkGit(); err != nil {
		return "", err
	}
	name := TargetDirName(opts.URL)
	if name == "" {
		return "", fmt.Errorf("vcs: cannot derive directory name from %q", opts.URL)
	}
	parent := opts.ParentDir
	if parent == "" {
		parent = "."
	}
	target, err := filepath.Abs(filepath.Join(parent, name))
	if err != nil {
		return "", fmt.Errorf("vcs: resolve target: %w", err)
	}
	if entries, err := os.ReadDir(target); err == nil && len(entries) > 0 {
		return "", fmt.Errorf("%w: %s", ErrTargetNotEmpty, target)
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("vcs: create parent: %w", err)
	}

	var t Transport
	cloneURL := opts.URL
	if opts.Transport == TransportExec {
		cloneURL = AuthURL(opts.URL, opts.Token, opts.Provider)
		t = &ExecTransport{}
	} else {
		t = &NativeTransport{
			Credentials: ChainCredentials(HostCredentials(), TokenCredentials(tokenUser(opts.Provider), opts.Token)),
		}
	}
	if err := t.Clone(ctx, cloneURL, target); err != nil {
		return "", err
	}
	if cloneURL != opts.URL {
		if _, err := newRunner(target).run(ctx, "remote", "set-url", remoteName, opts.URL); err != nil {
			return "", fmt.Errorf("vcs: reset remote url: %w", err)
		}
	}
	return target, nil
}

// TargetDirName derives the clone directory from a remote URL: its last
// path segment without a ".git" suffix. scp-like URLs are supported.
func TargetDirName(remote string) string {
	s := strings.TrimRight(strings.TrimSpace(remote), "/")
	if i := strings.LastIndexAny(s, "/:"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(s, ".git")
	if s == "." || s == ".." {
		return ""
	}
	return s
}

func tokenUser(provider string) string {
	if provider == ProviderGitHub || provider == "" {
		return "x-access-token"
	}
	return "oauth2"
}

// AuthURL embeds token into an HTTPS remote URL. Other URLs and an empty
// token are returned unchanged.
func AuthURL(remote, token, provider string) string {
	if token == "" {
		return remote
	}
	u, err := url.Parse(remote)
	if err != nil || u.Scheme != "https" {
		return remote
	}
	u.User = url.UserPassword(tokenUser(provider), token)
	return u.String()
}

// DetectedRepository is what Detect reads from an existing repository.
type DetectedRepository struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	RemoteURL string `json:"remoteUrl"`
	Provider  string `json:"provider"`
	Branch    string `json:"branch"`
}

// Detect reads identity, origin and branch of an existing repository.
// Missing values are left empty.
func Detect(ctx context.Context, path string) (DetectedRepository, error) {
	var d DetectedRepository
	if err := checkGit(); err != nil {
		return d, err
	}
	if _, err := os.Stat(filepath.Join(path, ".git")); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return d, fmt.Errorf("%w: %s", ErrNotARepository, path)
		}
		return d, err
	}
	r := newRunner(path)
	d.Name, _ = r.output(ctx, "config", "user.name")
	d.Email, _ = r.output(ctx, "config", "user.email")
	d.RemoteURL, _ = r.output(ctx, "remote", "get-url", remoteName)
	d.Branch, _ = r.output(ctx, "symbolic-ref", "--short", "HEAD")
	d.Provider = ProviderFromURL(d.RemoteURL)
	return d, nil
}

// ProviderFromURL infers the provider from the remote host.
func ProviderFromURL(remote string) string {
	host := remote
	if u, err := url.Parse(remote); err == nil && u.Host != "" {
		host = u.Host
	} else if at := strings.Index(remote, "@"); at >= 0 {
		host = remote[at+1:]
		if i := strings.IndexAny(host, ":/"); i >= 0 {
			host = host[:i]
		}
	}
	host = strings.ToLower(host)
	switch {
	case remote == "":
		return ""
	case strings.Contains(host, "github.com"):
		return ProviderGitHub
	case strings.Contains(host, "gitlab"):
		return ProviderGitLab
	case strings.Contains(host, "gitee.com"):
		return ProviderGitee
	}
	return ProviderOther
}
