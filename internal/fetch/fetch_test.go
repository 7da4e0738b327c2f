package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kestrelweb/sitecrawler/internal/config"
	"github.com/kestrelweb/sitecrawler/internal/crawlerr"
)

func testConfig(baseTimeout time.Duration) *config.CrawlConfig {
	cfg := config.DefaultConfig()
	cfg.RequestTimeout = baseTimeout
	cfg.MaxRetries = 2
	cfg.UserAgent = "sitecrawler-test/1.0"
	return cfg
}

func TestFetchStoresHTMLArtifact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>hi</body></html>"))
	}))
	defer srv.Close()

	store, err := NewArtifactStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	f := New(testConfig(5*time.Second), store)
	defer f.Close()

	res, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != KindHTML {
		t.Errorf("expected KindHTML, got %s", res.Kind)
	}
	if res.HTTPStatus != 200 {
		t.Errorf("expected 200, got %d", res.HTTPStatus)
	}
	if res.ContentHash == "" || res.ArtifactRel == "" {
		t.Error("expected artifact to be written")
	}
}

func TestFetchClassifiesPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 fake"))
	}))
	defer srv.Close()

	store, err := NewArtifactStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	f := New(testConfig(5*time.Second), store)
	defer f.Close()

	res, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != KindPDF {
		t.Errorf("expected KindPDF, got %s", res.Kind)
	}
}

func TestFetchRetriesServerErrorsThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	store, err := NewArtifactStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	f := New(testConfig(5*time.Second), store)
	defer f.Close()

	res, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if res.Attempt != 1 {
		t.Errorf("expected success on second attempt (index 1), got attempt=%d", res.Attempt)
	}
}

func TestFetchClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	store, err := NewArtifactStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	f := New(testConfig(5*time.Second), store)
	defer f.Close()

	_, err = f.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	ce, ok := err.(*crawlerr.Error)
	if !ok {
		t.Fatalf("expected *crawlerr.Error, got %T", err)
	}
	if ce.Kind != crawlerr.HTTPClientError {
		t.Errorf("expected HTTPClientError, got %s", ce.Kind)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected exactly 1 attempt for 4xx, got %d", calls)
	}
}

func TestFetchExhaustsRetriesOnPersistentServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store, err := NewArtifactStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	f := New(testConfig(5*time.Second), store)
	defer f.Close()

	_, err = f.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	ce, ok := err.(*crawlerr.Error)
	if !ok {
		t.Fatalf("expected *crawlerr.Error, got %T", err)
	}
	if ce.Kind != crawlerr.HTTPServerError {
		t.Errorf("expected HTTPServerError, got %s", ce.Kind)
	}
}

func TestFetchClassifiesUnresolvableHostAsPermanent(t *testing.T) {
	store, err := NewArtifactStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	f := New(testConfig(2*time.Second), store)
	defer f.Close()

	_, err = f.Fetch(context.Background(), "http://this-host-does-not-resolve.invalid/")
	if err == nil {
		t.Fatal("expected error for unresolvable host")
	}
	ce, ok := err.(*crawlerr.Error)
	if !ok {
		t.Fatalf("expected *crawlerr.Error, got %T", err)
	}
	if ce.Kind != crawlerr.NetworkPermanent {
		t.Errorf("expected NetworkPermanent, got %s", ce.Kind)
	}
}

func TestFetchEnforcesSizeCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write(make([]byte, 1024))
	}))
	defer srv.Close()

	store, err := NewArtifactStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cfg := testConfig(5 * time.Second)
	cfg.SizeCapHTML = 100
	f := New(cfg, store)
	defer f.Close()

	_, err = f.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected size cap error")
	}
	ce, ok := err.(*crawlerr.Error)
	if !ok || ce.Kind != crawlerr.SizeCapExceeded {
		t.Fatalf("expected SizeCapExceeded, got %v", err)
	}
}
