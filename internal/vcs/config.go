package vcs

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Git provider tags. They only select the token username convention.
const (
	ProviderGitHub = "github"
	ProviderGitLab = "gitlab"
	ProviderGitee  = "gitee"
	ProviderOther  = "other"
)

// Transport kinds.
const (
	TransportNative = "native"
	TransportExec   = "exec"
)

// DefaultBranch is the single branch the store tracks.
const DefaultBranch = "main"

// RepositoryConfig binds a Store to one local repository and its remote.
// A Store never mutates it; replacing it means opening a new Store.
type RepositoryConfig struct {
	Name      string `yaml:"name"`
	Email     string `yaml:"email"`
	LocalPath string `yaml:"local_path"`
	RemoteURL string `yaml:"remote_url"`
	Token     string `yaml:"token"`
	Provider  string `yaml:"provider"`
	Branch    string `yaml:"branch"`
	Transport string `yaml:"transport"`
}

// Validate validates the repository configuration.
func (c *RepositoryConfig) Validate() error {
	if c.Provider == "" {
		c.Provider = ProviderGitHub
	}
	if c.Transport == "" {
		c.Transport = TransportNative
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Email, validation.Required, is.EmailFormat),
		validation.Field(&c.LocalPath, validation.Required),
		validation.Field(&c.Provider, validation.In(ProviderGitHub, ProviderGitLab, ProviderGitee, ProviderOther)),
		validation.Field(&c.Transport, validation.In(TransportNative, TransportExec)),
	)
}

// HasRemote reports whether a remote URL is configured.
func (c RepositoryConfig) HasRemote() bool {
	return c.RemoteURL != ""
}
