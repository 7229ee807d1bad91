// Package config holds the blogsync run configuration. Values come from
// viper, which merges CLI flags, environment variables, an optional config
// file and a .env file loaded at startup.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/dileepadev/blogsync/pkg/posts"
)

// Viper keys
const (
	KeyAPIBaseURL  = "api_base_url"
	KeyAPIKey      = "api_key"
	KeySiteURL     = "site_url"
	KeyPostsDir    = "posts_dir"
	KeyPattern     = "pattern"
	KeyConcurrency = "concurrency"
	KeyTimeout     = "timeout"
	KeyDryRun      = "dry_run"
)

// Defaults
const (
	DefaultSiteURL     = "https://blog.dileepa.dev"
	DefaultPostsDir    = "src/content/posts"
	DefaultConcurrency = 1
	DefaultTimeout     = 30 * time.Second
)

// envBindings maps viper keys to the environment variables the deploy
// pipeline already exports
var envBindings = map[string][]string{
	KeyAPIBaseURL: {"API_BASE_URL", "BLOGSYNC_API_BASE_URL"},
	KeyAPIKey:     {"BLOG_SYNC_API_KEY", "BLOGSYNC_API_KEY"},
	KeySiteURL:    {"SITE_URL", "BLOGSYNC_SITE_URL"},
}

// Config is the validated configuration of a sync run
type Config struct {
	APIBaseURL  string
	APIKey      string
	SiteURL     string
	PostsDir    string
	Pattern     string
	Concurrency int
	Timeout     time.Duration
	DryRun      bool
}

// MissingFieldError reports a required setting that has no value
type MissingFieldError struct {
	Field  string
	EnvVar string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing %s: set the %s environment variable", e.Field, e.EnvVar)
}

// SetDefaults registers defaults and environment bindings on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeySiteURL, DefaultSiteURL)
	v.SetDefault(KeyPostsDir, DefaultPostsDir)
	v.SetDefault(KeyPattern, posts.DefaultPattern)
	v.SetDefault(KeyConcurrency, DefaultConcurrency)
	v.SetDefault(KeyTimeout, DefaultTimeout)
	v.SetDefault(KeyDryRun, false)

	v.SetEnvPrefix("BLOGSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	for key, envs := range envBindings {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}
}

// FromViper builds a Config from v without validating it
func FromViper(v *viper.Viper) *Config {
	return &Config{
		APIBaseURL:  strings.TrimSpace(v.GetString(KeyAPIBaseURL)),
		APIKey:      strings.TrimSpace(v.GetString(KeyAPIKey)),
		SiteURL:     strings.TrimSpace(v.GetString(KeySiteURL)),
		PostsDir:    v.GetString(KeyPostsDir),
		Pattern:     v.GetString(KeyPattern),
		Concurrency: v.GetInt(KeyConcurrency),
		Timeout:     v.GetDuration(KeyTimeout),
		DryRun:      v.GetBool(KeyDryRun),
	}
}

// Validate checks required fields and normalizes the rest. It never exits
// the process; a missing required value is reported as *MissingFieldError.
func (c *Config) Validate() error {
	if err := c.ValidateReadOnly(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return &MissingFieldError{Field: "API key", EnvVar: "BLOG_SYNC_API_KEY"}
	}
	return nil
}

// ValidateReadOnly validates the settings needed to read from the API, which
// do not include the API key
func (c *Config) ValidateReadOnly() error {
	if c.APIBaseURL == "" {
		return &MissingFieldError{Field: "API base URL", EnvVar: "API_BASE_URL"}
	}
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")

	if c.SiteURL == "" {
		c.SiteURL = DefaultSiteURL
	}
	c.SiteURL = strings.TrimRight(c.SiteURL, "/")

	if c.PostsDir == "" {
		c.PostsDir = DefaultPostsDir
	}
	if c.Pattern == "" {
		c.Pattern = posts.DefaultPattern
	}
	if c.Concurrency < 1 {
		return errors.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.Timeout < 0 {
		return errors.Errorf("timeout cannot be negative: %s", c.Timeout)
	}
	return nil
}

// LoadDotEnv loads variables from a .env file without overriding variables
// that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "failed to stat env file %s", path)
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Wrapf(err, "failed to load env file %s", path)
	}
	return nil
}
