package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pbaille/tiku/internal/domain"
	"github.com/pbaille/tiku/internal/fetcher"
	"github.com/pbaille/tiku/internal/ingest"
)

// Config holds every setting of the tool
type Config struct {
	DBPath          string        `mapstructure:"db_path"`
	Cookies         string        `mapstructure:"cookies"`
	UserAgent       string        `mapstructure:"user_agent"`
	CatalogURL      string        `mapstructure:"catalog_url"`
	SolutionsURL    string        `mapstructure:"solutions_url"`
	ChunkSize       int           `mapstructure:"chunk_size"`
	OutputDir       string        `mapstructure:"output_dir"`
	RequestInterval time.Duration `mapstructure:"request_interval"`
	HTTPTimeout     time.Duration `mapstructure:"http_timeout"`
	CatalogCommit   string        `mapstructure:"catalog_commit"`
	LogLevel        string        `mapstructure:"log_level"`
}

// DefaultDBPath is ~/.tiku/mistake.db
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".tiku", "mistake.db")
}

// New returns a viper instance with defaults and env bindings applied
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("db_path", DefaultDBPath())
	v.SetDefault("cookies", "")
	v.SetDefault("user_agent", fetcher.DefaultUserAgent)
	v.SetDefault("catalog_url", fetcher.DefaultCatalogURL)
	v.SetDefault("solutions_url", fetcher.DefaultSolutionsURL)
	v.SetDefault("chunk_size", 15)
	v.SetDefault("output_dir", ".")
	v.SetDefault("request_interval", time.Duration(0))
	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("catalog_commit", string(ingest.CommitAfter))
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("TIKU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the config file (path, or tiku.* in . and ~/.tiku when empty)
// and unmarshals the result. A missing default config file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tiku")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".tiku"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %v: %w", err, domain.ErrConfiguration)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %v: %w", err, domain.ErrConfiguration)
	}
	return &cfg, nil
}

// Validate checks settings every command needs
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("db_path is required: %w", domain.ErrConfiguration)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be greater than zero: %w", domain.ErrConfiguration)
	}
	if _, err := ingest.ParseCommitMode(c.CatalogCommit); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// ValidateSession checks the settings needed to talk to the question bank
func (c *Config) ValidateSession() error {
	if strings.TrimSpace(c.Cookies) == "" {
		return fmt.Errorf("cookies are required (set TIKU_COOKIES): %w", domain.ErrConfiguration)
	}
	return nil
}

// Level parses LogLevel
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("log_level %q: %w", c.LogLevel, domain.ErrConfiguration)
	}
	return l, nil
}

// Fetcher returns the session settings for the HTTP client
func (c *Config) Fetcher() fetcher.Config {
	return fetcher.Config{
		CatalogURL:   c.CatalogURL,
		SolutionsURL: c.SolutionsURL,
		UserAgent:    c.UserAgent,
		Cookies:      c.Cookies,
		Timeout:      c.HTTPTimeout,
	}
}

// Ingest returns the pipeline settings
func (c *Config) Ingest() ingest.Config {
	return ingest.Config{
		ChunkSize: c.ChunkSize,
		Interval:  c.RequestInterval,
		Commit:    ingest.CommitMode(c.CatalogCommit),
	}
}
