package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gobwas/glob"

	"github.com/starford/quill/internal/library"
	"github.com/starford/quill/internal/resolver"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// indexFileName is the SQLite file created next to library.json when no
// explicit index path is configured.
const indexFileName = "index.db"

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Library  LibraryConfig     `yaml:"library"`
	Index    IndexConfig       `yaml:"index"`
	Resolver ResolverConfig    `yaml:"resolver"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Resolver.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// LibraryPath returns the configured library.json location, or the per-user
// default when none is set.
func (c *Config) LibraryPath() (string, error) {
	if c.Library.Path != "" {
		return c.Library.Path, nil
	}
	return library.DefaultPath()
}

// IndexPath returns the configured SQLite path, or index.db beside the
// library file.
func (c *Config) IndexPath() (string, error) {
	if c.Index.SQLitePath != "" {
		return c.Index.SQLitePath, nil
	}
	lib, err := c.LibraryPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(lib), indexFileName), nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
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

// LibraryConfig locates the library catalog. An empty path means
// <user config dir>/quill/library.json.
type LibraryConfig struct {
	Path string `yaml:"path"`
}

// IndexConfig holds the chapter search index configuration.
type IndexConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
	// Watch re-indexes chapters edited outside the server.
	Watch bool `yaml:"watch"`
}

// ResolverConfig bounds the nested-book search done when opening a path.
type ResolverConfig struct {
	MaxDepth int      `yaml:"max_depth"`
	MaxDirs  int      `yaml:"max_dirs"`
	SkipDirs []string `yaml:"skip_dirs"`
}

// Validate validates the resolver configuration.
func (c *ResolverConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxDepth, validation.Min(1), validation.Max(16)),
		validation.Field(&c.MaxDirs, validation.Min(1)),
		validation.Field(&c.SkipDirs, validation.Each(validation.Required, validation.By(validGlob))),
	)
}

// Limits converts the configuration into resolver limits.
func (c *ResolverConfig) Limits() resolver.Limits {
	return resolver.Limits{MaxDepth: c.MaxDepth, MaxDirs: c.MaxDirs, SkipDirs: c.SkipDirs}
}

func validGlob(value any) error {
	s, _ := value.(string)
	if _, err := glob.Compile(s); err != nil {
		return errors.New("must be a valid glob pattern")
	}
	return nil
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

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	def := resolver.DefaultLimits()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Index: IndexConfig{
			Watch: true,
		},
		Resolver: ResolverConfig{
			MaxDepth: def.MaxDepth,
			MaxDirs:  def.MaxDirs,
			SkipDirs: def.SkipDirs,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
