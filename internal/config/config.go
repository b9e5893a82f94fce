package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/concentricsky/djenesis/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "djenesis.json"

	// EnvConfig names the environment variable holding a config path.
	EnvConfig = "DJENESIS_CONFIG"

	// EnvTemplate overrides the default template reference.
	EnvTemplate = "DJENESIS_TEMPLATE"

	// EnvAuthor overrides the default author.
	EnvAuthor = "DJENESIS_AUTHOR"

	// DefaultTemplate is the built-in project template.
	DefaultTemplate = "django"

	// DefaultCatalogAddr is the default listen address of the template catalog.
	DefaultCatalogAddr = ":8088"

	// DefaultPython is the interpreter used to create virtualenvs.
	DefaultPython = "python3"

	// DefaultConcurrency bounds parallel file writes.
	DefaultConcurrency = 8
)

// Collision policies for an existing target directory.
const (
	CollisionFail      = "fail"
	CollisionSkip      = "skip"
	CollisionOverwrite = "overwrite"
)

// Config represents the complete djenesis.json configuration.
type Config struct {
	// Template is the default template reference.
	Template string `json:"template,omitempty"`

	// Author is written into generated project metadata.
	Author string `json:"author,omitempty"`

	// AuthorEmail is written into generated project metadata.
	AuthorEmail string `json:"authorEmail,omitempty"`

	// URL is the default project homepage.
	URL string `json:"url,omitempty"`

	// Collision is the policy applied when the target directory exists.
	Collision string `json:"collision,omitempty"`

	// Concurrency bounds parallel file writes.
	Concurrency int `json:"concurrency,omitempty"`

	// Variables are default template variables.
	Variables map[string]string `json:"variables,omitempty"`

	// Post contains steps run after the project is written.
	Post PostConfig `json:"post,omitempty"`

	// S3 configures the s3:// template source.
	S3 S3Config `json:"s3,omitempty"`

	// Catalog configures the template catalog server.
	Catalog CatalogConfig `json:"catalog,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"logLevel,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// PostConfig contains post-create step settings.
type PostConfig struct {
	// GitInit initializes a git repository with an initial commit.
	GitInit bool `json:"gitInit,omitempty"`

	// Virtualenv creates env/ and installs requirements.txt into it.
	Virtualenv bool `json:"virtualenv,omitempty"`

	// Python is the interpreter used to create the virtualenv.
	Python string `json:"python,omitempty"`
}

// S3Config contains S3 template source settings.
type S3Config struct {
	// Region is the AWS region of template buckets.
	Region string `json:"region,omitempty"`

	// Endpoint overrides the S3 endpoint (e.g. for MinIO).
	Endpoint string `json:"endpoint,omitempty"`
}

// CatalogConfig contains template catalog server settings.
type CatalogConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr,omitempty"`

	// Root is a directory whose subdirectories are served as templates.
	Root string `json:"root,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Template:    DefaultTemplate,
		Collision:   CollisionFail,
		Concurrency: DefaultConcurrency,
		Post: PostConfig{
			Python: DefaultPython,
		},
		Catalog: CatalogConfig{
			Addr: DefaultCatalogAddr,
		},
		LogLevel: "info",
	}
}

// Load reads configuration from the specified directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E120").
				WithDetail("No " + ConfigFileName + " found at " + path).
				Wrap(err)
		}
		return nil, errors.New("E120").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E120").
			WithDetail("Failed to parse " + path + ": " + err.Error()).
			WithSuggestion("Check that " + ConfigFileName + " is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// Resolve locates and loads the configuration. An explicit path must exist;
// otherwise $DJENESIS_CONFIG and the user config directory are tried and
// defaults are returned when neither holds a file. Environment overrides are
// applied last.
func Resolve(explicit string) (*Config, error) {
	var cfg *Config
	switch {
	case explicit != "":
		c, err := LoadFile(explicit)
		if err != nil {
			return nil, err
		}
		cfg = c
	case os.Getenv(EnvConfig) != "":
		c, err := LoadFile(os.Getenv(EnvConfig))
		if err != nil {
			return nil, err
		}
		cfg = c
	default:
		cfg = New()
		if dir, err := os.UserConfigDir(); err == nil {
			path := filepath.Join(dir, "djenesis", ConfigFileName)
			if _, err := os.Stat(path); err == nil {
				c, err := LoadFile(path)
				if err != nil {
					return nil, err
				}
				cfg = c
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E120").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.New("E120").Wrap(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E120").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Template == "" {
		c.Template = DefaultTemplate
	}
	if c.Collision == "" {
		c.Collision = CollisionFail
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Post.Python == "" {
		c.Post.Python = DefaultPython
	}
	if c.Catalog.Addr == "" {
		c.Catalog.Addr = DefaultCatalogAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvTemplate); v != "" {
		c.Template = v
	}
	if v := os.Getenv(EnvAuthor); v != "" {
		c.Author = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Collision {
	case CollisionFail, CollisionSkip, CollisionOverwrite:
	default:
		return errors.New("E121").
			WithDetail("Unknown collision policy '" + c.Collision + "'").
			WithSuggestion("Use one of: fail, skip, overwrite")
	}
	if c.Concurrency < 1 || c.Concurrency > 256 {
		return errors.New("E122").
			WithDetail("concurrency must be between 1 and 256")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Level returns the configured slog level.
func (c *Config) Level() slog.Level {
	lvl, _ := ParseLevel(c.LogLevel)
	return lvl
}

// ParseLevel converts a level name into a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo, errors.New("E122").
			WithDetail("unknown log level '" + s + "'").
			WithSuggestion("Use one of: debug, info, warn, error")
	}
	return lvl, nil
}
