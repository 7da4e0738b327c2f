package urlnorm

import "testing"

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"HTTPS://Example.com:443/A/B/../c?z=1&a=2&utm_source=news#frag",
		"http://example.com//path//to//page/",
		"https://example.com/page.html",
	}

	for _, in := range inputs {
		once, err := Normalize(in, "")
		if err != nil {
			t.Fatalf("Normalize(%q) error: %v", in, err)
		}
		twice, err := Normalize(once, "")
		if err != nil {
			t.Fatalf("Normalize(%q) error: %v", once, err)
		}
		if once != twice {
			t.Errorf("Normalize not idempotent: %q -> %q -> %q", in, once, twice)
		}
	}
}

func TestNormalizeStripsTrackingParams(t *testing.T) {
	got, err := Normalize("https://example.com/a?utm_source=x&keep=1", "")
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://example.com/a?keep=1" {
		t.Errorf("got %q", got)
	}
}

func TestNormalizeRemovesDefaultPortAndFragment(t *testing.T) {
	got, err := Normalize("HTTP://Example.com:80/path#section", "")
	if err != nil {
		t.Fatal(err)
	}
	if got != "http://example.com/path" {
		t.Errorf("got %q", got)
	}
}

func TestNormalizeResolvesRelativeToBase(t *testing.T) {
	got, err := Normalize("/faq/b", "https://example.com/sitemap.xml")
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://example.com/faq/b" {
		t.Errorf("got %q", got)
	}
}

func TestNormalizePreservesSourceTrailingSlash(t *testing.T) {
	withSlash, err := Normalize("https://example.com/docs/", "")
	if err != nil {
		t.Fatal(err)
	}
	if withSlash != "https://example.com/docs/" {
		t.Errorf("expected trailing slash preserved, got %q", withSlash)
	}

	withoutSlash, err := Normalize("https://example.com/docs", "")
	if err != nil {
		t.Fatal(err)
	}
	if withoutSlash != "https://example.com/docs" {
		t.Errorf("expected no trailing slash introduced, got %q", withoutSlash)
	}
}

func TestNormalizeStrippedAppliesConfiguredDenyList(t *testing.T) {
	got, err := NormalizeStripped("https://example.com/a?session_id=abc&keep=1", "", []string{"session_id"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://example.com/a?keep=1" {
		t.Errorf("got %q", got)
	}
}

func TestInScope(t *testing.T) {
	cfg := ScopeConfig{
		AllowedDomains:          []string{"example.com"},
		ExcludedSitemapSections: []string{"/legal/"},
		ExcludedURLPrefixes:     []string{"https://example.com/internal"},
	}

	tests := []struct {
		url  string
		want bool
	}{
		{"https://example.com/faq/a", true},
		{"https://other.com/faq/a", false},
		{"ftp://example.com/file", false},
		{"https://example.com/legal/terms", false},
		{"https://example.com/internal/tool", false},
	}

	for _, tt := range tests {
		if got := InScope(tt.url, cfg); got != tt.want {
			t.Errorf("InScope(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
