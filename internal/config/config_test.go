package config

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.WorkerCount != 4 {
		t.Errorf("Expected worker count 4, got %d", cfg.WorkerCount)
	}

	if cfg.MaxDepthFAQ != 6 {
		t.Errorf("Expected max_depth_faq 6, got %d", cfg.MaxDepthFAQ)
	}

	if cfg.MaxDepthGeneral != 3 {
		t.Errorf("Expected max_depth_general 3, got %d", cfg.MaxDepthGeneral)
	}

	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("Expected request timeout 30s, got %v", cfg.RequestTimeout)
	}

	if cfg.RobotsTTL != 24*time.Hour {
		t.Errorf("Expected robots_ttl 24h, got %v", cfg.RobotsTTL)
	}

	if cfg.Output.RegistryPath != "./crawl.db" {
		t.Errorf("Expected registry path './crawl.db', got %s", cfg.Output.RegistryPath)
	}
}

func TestConfigValidate(t *testing.T) {
	base := func() *CrawlConfig {
		cfg := DefaultConfig()
		cfg.SeedSitemapURL = "https://example.com/sitemap.xml"
		cfg.AllowedDomains = []string{"example.com"}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*CrawlConfig)
		wantErr error
	}{
		{name: "valid config", mutate: func(c *CrawlConfig) {}, wantErr: nil},
		{name: "invalid worker count", mutate: func(c *CrawlConfig) { c.WorkerCount = 0 }, wantErr: ErrInvalidWorkerCount},
		{name: "invalid timeout", mutate: func(c *CrawlConfig) { c.RequestTimeout = 0 }, wantErr: ErrInvalidTimeout},
		{name: "negative depth", mutate: func(c *CrawlConfig) { c.MaxDepthGeneral = -1 }, wantErr: ErrInvalidDepth},
		{name: "zero rps", mutate: func(c *CrawlConfig) { c.PerHostRPS = 0 }, wantErr: ErrInvalidRPS},
		{name: "empty registry path", mutate: func(c *CrawlConfig) { c.Output.RegistryPath = "" }, wantErr: ErrEmptyRegistryPath},
		{name: "empty artifacts root", mutate: func(c *CrawlConfig) { c.Output.ArtifactsRoot = "" }, wantErr: ErrEmptyArtifactsRoot},
		{name: "no allowed domains", mutate: func(c *CrawlConfig) { c.AllowedDomains = nil }, wantErr: ErrNoAllowedDomains},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err != tt.wantErr {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetBasicAuthCredentialsFromEnv(t *testing.T) {
	t.Setenv("TEST_USER", "alice")
	t.Setenv("TEST_PASS", "s3cret")

	cfg := DefaultConfig()
	cfg.Auth = &Auth{
		Type: "basic",
		Basic: &BasicAuth{
			UsernameEnv: "TEST_USER",
			PasswordEnv: "TEST_PASS",
		},
	}

	user, pass := cfg.GetBasicAuthCredentials()
	if user != "alice" || pass != "s3cret" {
		t.Errorf("GetBasicAuthCredentials() = (%q, %q), want (alice, s3cret)", user, pass)
	}
}

func TestGetBearerToken(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth = &Auth{Type: "bearer", Bearer: &BearerAuth{Token: "abc123"}}

	if got := cfg.GetBearerToken(); got != "abc123" {
		t.Errorf("GetBearerToken() = %q, want abc123", got)
	}
}

func TestLoadHeadersFromEnv(t *testing.T) {
	t.Setenv("SITECRAWL_HEADERS", "X-Foo: bar, X-Baz: qux")

	cfg := DefaultConfig()
	cfg.LoadHeadersFromEnv()

	if len(cfg.Headers) != 2 {
		t.Fatalf("expected 2 headers, got %d: %v", len(cfg.Headers), cfg.Headers)
	}
}
