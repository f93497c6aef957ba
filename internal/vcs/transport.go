package vcs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// Transport moves commits between the local repository and a remote.
type Transport interface {
	// Name identifies the transport in logs.
	Name() string
	// Fetch updates refs/remotes/<remote>/<branch>. It returns false when the
	// remote has no such branch.
	Fetch(ctx context.Context, dir, remote, branch string) (bool, error)
	// Push publishes refs/heads/<branch> to the same name on remote.
	Push(ctx context.Context, dir, remote, branch string) error
	// Clone clones url into dir.
	Clone(ctx context.Context, url, dir string) error
}

// NewTransport builds the transport selected by cfg. Host credential
// helpers are consulted before the configured token.
func NewTransport(cfg RepositoryConfig) Transport {
	if cfg.Transport == TransportExec {
		return &ExecTransport{Username: TokenUsername, Token: cfg.Token}
	}
	return &NativeTransport{
		Credentials: ChainCredentials(HostCredentials(), TokenCredentials(TokenUsername, cfg.Token)),
	}
}

// TokenUsername is the username sent alongside a personal access token.
const TokenUsername = "git"

func trackingRefSpec(remote, branch string) string {
	return fmt.Sprintf("+refs/heads/%s:refs/remotes/%s/%s", branch, remote, branch)
}

func pushRefSpec(branch string) string {
	return fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch)
}

// CredentialFunc supplies a username and password for url.
type CredentialFunc func(url string) (username, password string, ok bool)

// ChainCredentials returns the first credentials any of fns supplies.
func ChainCredentials(fns ...CredentialFunc) CredentialFunc {
	return func(u string) (string, string, bool) {
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			if user, pass, ok := fn(u); ok {
				return user, pass, true
			}
		}
		return "", "", false
	}
}

// TokenCredentials returns a plaintext username/token pair. An empty token
// supplies nothing.
func TokenCredentials(username, token string) CredentialFunc {
	return func(string) (string, string, bool) {
		if token == "" {
			return "", "", false
		}
		if username == "" {
			username = TokenUsername
		}
		return username, token, true
	}
}

// HostCredentials asks the host's git credential helpers for url without
// prompting.
func HostCredentials() CredentialFunc {
	return func(raw string) (string, string, bool) {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return "", "", false
		}
		input := fmt.Sprintf("protocol=%s\nhost=%s\npath=%s\n\n", u.Scheme, u.Host, strings.TrimPrefix(u.Path, "/"))
		cmd := exec.Command("git", "credential", "fill")
		cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "GIT_ASKPASS=", "SSH_ASKPASS=")
		cmd.Stdin = strings.NewReader(input)
		out, err := cmd.Output()
		if err != nil {
			return "", "", false
		}
		var user, pass string
		for _, line := range strings.Split(string(out), "\n") {
			k, v, ok := strings.Cut(line, "=")
			if !ok {
				continue
			}
			switch k {
			case "username":
				user = v
			case "password":
				pass = v
			}
		}
		if pass == "" {
			return "", "", false
		}
		return user, pass, true
	}
}

// NativeTransport talks to the remote in-process.
type NativeTransport struct {
	Credentials CredentialFunc
}

// Name implements Transport.
func (t *NativeTransport) Name() string { return TransportNative }

func (t *NativeTransport) auth(remoteURL string) transport.AuthMethod {
	if t.Credentials == nil {
		return nil
	}
	if !strings.HasPrefix(remoteURL, "http://") && !strings.HasPrefix(remoteURL, "https://") {
		return nil
	}
	user, pass, ok := t.Credentials(remoteURL)
	if !ok {
		return nil
	}
	return &githttp.BasicAuth{Username: user, Password: pass}
}

func remoteURLOf(repo *git.Repository, remote string) (string, error) {
	r, err := repo.Remote(remote)
	if err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return "", ErrNoRemote
		}
		return "", err
	}
	urls := r.Config().URLs
	if len(urls) == 0 {
		return "", ErrNoRemote
	}
	return urls[0], nil
}

// Fetch implements Transport.
func (t *NativeTransport) Fetch(ctx context.Context, dir, remote, branch string) (bool, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return false, fmt.Errorf("vcs: open repository: %w", err)
	}
	u, err := remoteURLOf(repo, remote)
	if err != nil {
		return false, err
	}
	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remote,
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec(trackingRefSpec(remote, branch))},
		Auth:       t.auth(u),
	})
	switch {
	case err == nil, errors.Is(err, git.NoErrAlreadyUpToDate):
		return true, nil
	case errors.Is(err, git.NoMatchingRefSpecError{}), errors.Is(err, transport.ErrEmptyRemoteRepository):
		return false, nil
	}
	return false, classifyNative("fetch", err)
}

// Push implements Transport.
func (t *NativeTransport) Push(ctx context.Context, dir, remote, branch string) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return fmt.Errorf("vcs: open repository: %w", err)
	}
	u, err := remoteURLOf(repo, remote)
	if err != nil {
		return err
	}
	err = repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remote,
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec(pushRefSpec(branch))},
		Auth:       t.auth(u),
	})
	if err == nil || errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	return classifyNative("push", err)
}

// Clone implements Transport.
func (t *NativeTransport) Clone(ctx context.Context, remoteURL, dir string) error {
	_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:  remoteURL,
		Auth: t.auth(remoteURL),
	})
	if err != nil && !errors.Is(err, transport.ErrEmptyRemoteRepository) {
		return classifyNative("clone", err)
	}
	return nil
}

func classifyNative(op string, err error) error {
	switch {
	case errors.Is(err, ErrNoRemote):
		return err
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed),
		errors.Is(err, transport.ErrInvalidAuthMethod):
		return fmt.Errorf("%w: %s: %v", ErrAuthFailure, op, err)
	case errors.Is(err, git.ErrNonFastForwardUpdate),
		strings.Contains(err.Error(), "non-fast-forward"),
		strings.Contains(err.Error(), "rejected"):
		return fmt.Errorf("%w: %v", ErrNonFastForward, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrNetwork, op, err)
}

// ExecTransport runs the git binary for network operations. Host credential
// helpers run first; the token helper is appended after them.
type ExecTransport struct {
	Username string
	Token    string
}

// Name implements Transport.
func (t *ExecTransport) Name() string { return TransportExec }

const tokenHelper = `!f() { test "$1" = get && echo "username=$DAYLOG_GIT_USERNAME" && echo "password=$DAYLOG_GIT_TOKEN"; }; f`

func (t *ExecTransport) runner(dir string) *runner {
	if t.Token == "" {
		return newRunner(dir)
	}
	user := t.Username
	if user == "" {
		user = TokenUsername
	}
	return newRunner(dir, "DAYLOG_GIT_USERNAME="+user, "DAYLOG_GIT_TOKEN="+t.Token)
}

func (t *ExecTransport) args(args ...string) []string {
	if t.Token == "" {
		return args
	}
	return append([]string{"-c", "credential.helper=" + tokenHelper}, args...)
}

// Fetch implements Transport.
func (t *ExecTransport) Fetch(ctx context.Context, dir, remote, branch string) (bool, error) {
	_, err := t.runner(dir).run(ctx, t.args("fetch", "--quiet", "--no-tags", remote, trackingRefSpec(remote, branch))...)
	if err == nil {
		return true, nil
	}
	if strings.Contains(stderrOf(err), "couldn't find remote ref") {
		return false, nil
	}
	return false, classifyExec("fetch", err)
}

// Push implements Transport.
func (t *ExecTransport) Push(ctx context.Context, dir, remote, branch string) error {
	_, err := t.runner(dir).run(ctx, t.args("push", "--quiet", remote, pushRefSpec(branch))...)
	if err != nil {
		return classifyExec("push", err)
	}
	return nil
}

// Clone implements Transport.
func (t *ExecTransport) Clone(ctx context.Context, remoteURL, dir string) error {
	_, err := t.runner("").run(ctx, t.args("clone", "--quiet", remoteURL, dir)...)
	if err != nil {
		return classifyExec("clone", err)
	}
	return nil
}

func classifyExec(op string, err error) error {
	msg := stderrOf(err)
	switch {
	case strings.Contains(msg, "Authentication failed"),
		strings.Contains(msg, "could not read Username"),
		strings.Contains(msg, "could not read Password"),
		strings.Contains(msg, "403"),
		strings.Contains(msg, "401"):
		return fmt.Errorf("%w: %s: %s", ErrAuthFailure, op, msg)
	case strings.Contains(msg, "non-fast-forward"),
		strings.Contains(msg, "fetch first"),
		strings.Contains(msg, "[rejected]"),
		strings.Contains(msg, "Updates were rejected"):
		return fmt.Errorf("%w: %s", ErrNonFastForward, msg)
	case strings.Contains(msg, "No such remote"),
		strings.Contains(msg, "does not appear to be a git repository") && strings.Contains(msg, "'origin'"):
		return ErrNoRemote
	}
	return fmt.Errorf("%w: %s: %v", ErrNetwork, op, err)
}
