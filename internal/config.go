package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/daylog/internal/vcs"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig    `yaml:"app"`
	Repository vcs.RepositoryConfig `yaml:"repository"`
	Sync       SyncConfig           `yaml:"sync"`
	Index      IndexConfig          `yaml:"index"`
	Auth       AuthConfig           `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Repository.Validate(); err != nil {
		return fmt.Errorf("repository: %w", err)
	}
	if err := validation.Validate(c.Repository.RemoteURL, validation.By(remoteURL)); err != nil {
		return fmt.Errorf("repository: remote_url: %w", err)
	}
	if err := c.Sync.Validate(); err != nil {
		return err
	}
	if err := c.Index.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	// LogFile, when set, receives a copy of the log with size-based rotation.
	LogFile string     `yaml:"log_file"`
	HTTP    HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SyncConfig controls background synchronisation with the remote.
type SyncConfig struct {
	Auto         bool          `yaml:"auto"`
	Interval     time.Duration `yaml:"interval"`
	StartupDelay time.Duration `yaml:"startup_delay"`
	// OnShutdown runs one best-effort sync before the server exits.
	OnShutdown bool `yaml:"on_shutdown"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Interval, validation.When(c.Auto, validation.Required, validation.Min(10*time.Second))),
		validation.Field(&c.StartupDelay, validation.Min(time.Duration(0))),
	)
}

// IndexConfig holds the SQLite day index configuration.
type IndexConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

var scpRemoteRe = regexp.MustCompile(`^[\w.-]+@[\w.-]+:.+`)

// remoteURL accepts scheme URLs, scp-style ssh remotes and absolute paths.
func remoteURL(v any) error {
	s, _ := v.(string)
	switch {
	case s == "":
		return nil
	case strings.Contains(s, "://"):
		return is.RequestURL.Validate(s)
	case scpRemoteRe.MatchString(s), filepath.IsAbs(s):
		return nil
	default:
		return errors.New("must be a URL, user@host:path or an absolute path")
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Repository: vcs.RepositoryConfig{
			LocalPath: "./notes",
			Provider:  vcs.ProviderGitHub,
			Transport: vcs.TransportNative,
		},
		Sync: SyncConfig{
			Auto:         true,
			Interval:     5 * time.Minute,
			StartupDelay: 2 * time.Second,
			OnShutdown:   true,
		},
		Index: IndexConfig{
			Path: "./daylog.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
