package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/kestrelweb/sitecrawler/internal/config"
	"github.com/kestrelweb/sitecrawler/internal/fetch"
	"github.com/kestrelweb/sitecrawler/internal/registry"
)

func newTestEngine(t *testing.T, cfg *config.CrawlConfig) (*Engine, *registry.Store) {
	t.Helper()
	store, err := registry.Open(filepath.Join(t.TempDir(), "crawl.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	artifacts, err := fetch.NewArtifactStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	return New(cfg, store, artifacts), store
}

func TestEngineCrawlsSeededSiteAndDiscoversLinks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><a href="/about">About</a></body></html>`))
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>no more links</body></html>`))
	})
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	host := srv.Listener.Addr().String()

	cfg := config.DefaultConfig()
	cfg.AllowedDomains = []string{host}
	cfg.WorkerCount = 2
	cfg.RequestTimeout = 5 * time.Second
	cfg.MaxRetries = 0
	cfg.PerHostRPS = 1000

	engine, store := newTestEngine(t, cfg)

	if _, err := store.UpsertFrontier(srv.URL+"/", "", 0, registry.LineageGeneral); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := engine.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	status, ok := store.PageStatus(srv.URL + "/")
	if !ok || status != registry.StatusOK {
		t.Fatalf("expected root page OK, got status=%s ok=%v", status, ok)
	}
	status, ok = store.PageStatus(srv.URL + "/about")
	if !ok || status != registry.StatusOK {
		t.Fatalf("expected /about OK, got status=%s ok=%v", status, ok)
	}
}

func TestEngineRoutesIframeMediaToAssetsAndPersistsPageMetadata(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head>
			<title>Home</title>
			<meta name="description" content="a test page">
			<link rel="canonical" href="/">
		</head><body><iframe src="https://videos.example/embed/1"></iframe></body></html>`))
	})
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	host := srv.Listener.Addr().String()

	cfg := config.DefaultConfig()
	cfg.AllowedDomains = []string{host}
	cfg.WorkerCount = 1
	cfg.RequestTimeout = 5 * time.Second
	cfg.MaxRetries = 0
	cfg.PerHostRPS = 1000

	engine, store := newTestEngine(t, cfg)

	if _, err := store.UpsertFrontier(srv.URL+"/", "", 0, registry.LineageGeneral); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := engine.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	status, ok := store.PageStatus(srv.URL + "/")
	if !ok || status != registry.StatusOK {
		t.Fatalf("expected root page OK, got status=%s ok=%v", status, ok)
	}

	assets, err := store.AllAssets()
	if err != nil {
		t.Fatal(err)
	}
	if len(assets) != 1 || assets[0].Kind != "EMBED" || assets[0].URL != "https://videos.example/embed/1" {
		t.Fatalf("expected one EMBED asset for the iframe, got %+v", assets)
	}

	pages, err := store.AllPages()
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 1 || pages[0].Title == nil || *pages[0].Title != "Home" {
		t.Fatalf("expected page title to be persisted, got %+v", pages)
	}
}

func TestEngineAppliesConfiguredStripQueryParams(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><a href="/about?session_id=abc123&keep=1">About</a></body></html>`))
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>no more links</body></html>`))
	})
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	host := srv.Listener.Addr().String()

	cfg := config.DefaultConfig()
	cfg.AllowedDomains = []string{host}
	cfg.WorkerCount = 1
	cfg.RequestTimeout = 5 * time.Second
	cfg.MaxRetries = 0
	cfg.PerHostRPS = 1000
	cfg.StripQueryParams = []string{"session_id"}

	engine, store := newTestEngine(t, cfg)

	if _, err := store.UpsertFrontier(srv.URL+"/", "", 0, registry.LineageGeneral); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := engine.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	status, ok := store.PageStatus(srv.URL + "/about?keep=1")
	if !ok || status != registry.StatusOK {
		t.Fatalf("expected configured param stripped before frontier lookup, got status=%s ok=%v", status, ok)
	}
	if _, ok := store.PageStatus(srv.URL + "/about?keep=1&session_id=abc123"); ok {
		t.Fatalf("did not expect a frontier row keyed on the unstripped URL")
	}
}

func TestEngineSkipsURLsOverDepthBudget(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AllowedDomains = []string{"example.com"}
	cfg.MaxDepthGeneral = 0
	cfg.WorkerCount = 1

	engine, store := newTestEngine(t, cfg)

	if _, err := store.UpsertFrontier("https://example.com/deep", "", 5, registry.LineageGeneral); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := engine.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	status, ok := store.PageStatus("https://example.com/deep")
	if !ok || status != registry.StatusSkippedDepth {
		t.Fatalf("expected SKIPPED_DEPTH, got status=%s ok=%v", status, ok)
	}
}
