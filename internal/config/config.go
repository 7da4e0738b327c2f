// Package config provides configuration management for the crawler.
// It defines the typed configuration record enumerated in the crawler's
// external interface and its default values.
package config

import (
	"os"
	"strings"
	"time"
)

// BasicAuth contains HTTP Basic Authentication credentials.
type BasicAuth struct {
	Username    string `mapstructure:"username" yaml:"username"`
	Password    string `mapstructure:"password" yaml:"password"`
	UsernameEnv string `mapstructure:"username_env" yaml:"username_env"`
	PasswordEnv string `mapstructure:"password_env" yaml:"password_env"`
}

// BearerAuth contains a bearer token, optionally sourced from an
// environment variable.
type BearerAuth struct {
	Token    string `mapstructure:"token" yaml:"token"`
	TokenEnv string `mapstructure:"token_env" yaml:"token_env"`
}

// APIKeyAuth contains a header-name/value pair used for API-key auth.
type APIKeyAuth struct {
	Header   string `mapstructure:"header" yaml:"header"`
	Value    string `mapstructure:"value" yaml:"value"`
	ValueEnv string `mapstructure:"value_env" yaml:"value_env"`
}

// Auth contains authentication configuration. Type selects which of
// Basic/Bearer/APIKey is active.
type Auth struct {
	Type   string      `mapstructure:"type" yaml:"type"`
	Basic  *BasicAuth  `mapstructure:"basic" yaml:"basic"`
	Bearer *BearerAuth `mapstructure:"bearer" yaml:"bearer"`
	APIKey *APIKeyAuth `mapstructure:"apikey" yaml:"apikey"`
}

// OutputDirectories names the on-disk locations the crawler writes to.
type OutputDirectories struct {
	ArtifactsRoot string `mapstructure:"artifacts_root" yaml:"artifacts_root"`
	RegistryPath  string `mapstructure:"registry_path" yaml:"registry_path"`
	ExportPath    string `mapstructure:"export_path" yaml:"export_path"`
}

// CrawlConfig holds the crawler's full external configuration surface.
type CrawlConfig struct {
	// Sitemap & scope
	SeedSitemapURL          string   `mapstructure:"seed_sitemap_url" yaml:"seed_sitemap_url"`
	AllowedDomains          []string `mapstructure:"allowed_domains" yaml:"allowed_domains"`
	ExcludedSitemapSections []string `mapstructure:"excluded_sitemap_sections" yaml:"excluded_sitemap_sections"`
	ExcludedURLPrefixes     []string `mapstructure:"excluded_url_prefixes" yaml:"excluded_url_prefixes"`
	FAQIndicators           []string `mapstructure:"faq_indicators" yaml:"faq_indicators"`
	// StripQueryParams names additional query parameters to remove from
	// every normalized URL, on top of the built-in tracking-param
	// deny-list (see urlnorm.NormalizeStripped).
	StripQueryParams []string `mapstructure:"strip_query_params" yaml:"strip_query_params"`

	// Depth policy
	MaxDepthFAQ     int `mapstructure:"max_depth_faq" yaml:"max_depth_faq"`
	MaxDepthGeneral int `mapstructure:"max_depth_general" yaml:"max_depth_general"`

	// Concurrency & politeness
	WorkerCount     int           `mapstructure:"worker_count" yaml:"worker_count"`
	PerHostRPS      float64       `mapstructure:"per_host_rps" yaml:"per_host_rps"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	MaxRetries      int           `mapstructure:"max_retries" yaml:"max_retries"`
	RobotsTTL       time.Duration `mapstructure:"robots_ttl" yaml:"robots_ttl"`
	ShutdownGrace   time.Duration `mapstructure:"shutdown_grace" yaml:"shutdown_grace"`
	UserAgent       string        `mapstructure:"user_agent" yaml:"user_agent"`
	IgnoreRobots    bool          `mapstructure:"ignore_robots" yaml:"ignore_robots"`

	// Size caps (bytes)
	SizeCapHTML  int64 `mapstructure:"size_cap_html" yaml:"size_cap_html"`
	SizeCapPDF   int64 `mapstructure:"size_cap_pdf" yaml:"size_cap_pdf"`
	SizeCapMedia int64 `mapstructure:"size_cap_media" yaml:"size_cap_media"`

	// Output
	Output OutputDirectories `mapstructure:"output_directories" yaml:"output_directories"`

	// Authentication & headers
	Auth    *Auth    `mapstructure:"auth" yaml:"auth"`
	Headers []string `mapstructure:"headers" yaml:"headers"`
}

// DefaultConfig returns a configuration with the defaults named in the
// external interface (spec.md §6): max_depth_faq=6, max_depth_general=3,
// worker_count 4-8 (default 4).
func DefaultConfig() *CrawlConfig {
	return &CrawlConfig{
		AllowedDomains:  nil,
		FAQIndicators:   []string{"faq", "faqs", "frequently-asked", "help-center"},
		MaxDepthFAQ:     6,
		MaxDepthGeneral: 3,
		WorkerCount:     4,
		PerHostRPS:      1,
		RequestTimeout:  30 * time.Second,
		MaxRetries:      3,
		RobotsTTL:       24 * time.Hour,
		ShutdownGrace:   10 * time.Second,
		UserAgent:       "SiteCrawler/1.0",
		SizeCapHTML:     20 * 1024 * 1024,
		SizeCapPDF:      100 * 1024 * 1024,
		SizeCapMedia:    500 * 1024 * 1024,
		Output: OutputDirectories{
			ArtifactsRoot: "./artifacts",
			RegistryPath:  "./crawl.db",
			ExportPath:    "./export",
		},
	}
}

// Validate checks the configuration for internal consistency.
func (c *CrawlConfig) Validate() error {
	if c.SeedSitemapURL == "" {
		// A resume-from-registry run may omit it; the caller decides
		// whether an existing registry makes that acceptable.
	}

	if c.WorkerCount <= 0 {
		return ErrInvalidWorkerCount
	}

	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.MaxDepthFAQ < 0 || c.MaxDepthGeneral < 0 {
		return ErrInvalidDepth
	}

	if c.PerHostRPS <= 0 {
		return ErrInvalidRPS
	}

	if c.Output.RegistryPath == "" {
		return ErrEmptyRegistryPath
	}

	if c.Output.ArtifactsRoot == "" {
		return ErrEmptyArtifactsRoot
	}

	if len(c.AllowedDomains) == 0 && c.SeedSitemapURL != "" {
		return ErrNoAllowedDomains
	}

	return nil
}

// GetBasicAuthCredentials returns the basic auth username and password,
// resolving environment variables if specified.
func (c *CrawlConfig) GetBasicAuthCredentials() (username, password string) {
	if c.Auth == nil || c.Auth.Basic == nil {
		return "", ""
	}

	basic := c.Auth.Basic

	if basic.UsernameEnv != "" {
		username = os.Getenv(basic.UsernameEnv)
	} else {
		username = basic.Username
	}

	if basic.PasswordEnv != "" {
		password = os.Getenv(basic.PasswordEnv)
	} else {
		password = basic.Password
	}

	return username, password
}

// GetBearerToken returns the bearer token, resolving an environment
// variable if specified.
func (c *CrawlConfig) GetBearerToken() string {
	if c.Auth == nil || c.Auth.Bearer == nil {
		return ""
	}

	if c.Auth.Bearer.TokenEnv != "" {
		return os.Getenv(c.Auth.Bearer.TokenEnv)
	}
	return c.Auth.Bearer.Token
}

// GetAPIKeyCredentials returns the API key header name and value,
// resolving an environment variable for the value if specified.
func (c *CrawlConfig) GetAPIKeyCredentials() (header, value string) {
	if c.Auth == nil || c.Auth.APIKey == nil {
		return "", ""
	}

	header = c.Auth.APIKey.Header
	if c.Auth.APIKey.ValueEnv != "" {
		value = os.Getenv(c.Auth.APIKey.ValueEnv)
	} else {
		value = c.Auth.APIKey.Value
	}
	return header, value
}

// LoadHeadersFromEnv appends any headers listed in SITECRAWL_HEADERS
// (a comma-separated "Key: Value" list) to c.Headers.
func (c *CrawlConfig) LoadHeadersFromEnv() {
	raw := os.Getenv("SITECRAWL_HEADERS")
	if raw == "" {
		return
	}
	for _, h := range strings.Split(raw, ",") {
		h = strings.TrimSpace(h)
		if h != "" {
			c.Headers = append(c.Headers, h)
		}
	}
}
