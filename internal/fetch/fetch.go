package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/kestrelweb/sitecrawler/internal/config"
	"github.com/kestrelweb/sitecrawler/internal/crawlerr"
)

// Result is one successfully fetched and stored resource.
type Result struct {
	FinalURL    string
	HTTPStatus  int
	ContentType string
	Kind        ArtifactKind
	Body        []byte
	ArtifactRel string
	ContentHash string
	Attempt     int
	Metrics     Metrics
}

// Fetcher retrieves a URL, classifies its content type, enforces the
// size cap for that class, and persists the body as an artifact.
type Fetcher struct {
	client  *Client
	store   *ArtifactStore
	sizeCap func(ArtifactKind) int64
	retries int
}

// New builds a Fetcher from crawl configuration and an artifact store.
func New(cfg *config.CrawlConfig, store *ArtifactStore) *Fetcher {
	client := NewClient(cfg)
	return &Fetcher{
		client:  client,
		store:   store,
		retries: cfg.MaxRetries,
		sizeCap: func(k ArtifactKind) int64 {
			switch k {
			case KindPDF:
				return cfg.SizeCapPDF
			case KindVideo, KindAudio:
				return cfg.SizeCapMedia
			default:
				return cfg.SizeCapHTML
			}
		},
	}
}

// Close releases the underlying HTTP client's connections.
func (f *Fetcher) Close() { f.client.Close() }

// Fetch retrieves rawURL with exponential backoff on transient failures
// and returns a classified, stored Result, or a *crawlerr.Error if the
// fetch cannot ultimately succeed.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	var lastErr error

	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, crawlerr.New(crawlerr.NetworkTransient, rawURL, err)
			}
		}

		resp, err := f.client.Get(ctx, rawURL)
		if err != nil {
			if isUnresolvableHost(err) {
				return nil, crawlerr.New(crawlerr.NetworkPermanent, rawURL, err)
			}
			cerr := crawlerr.New(crawlerr.NetworkTransient, rawURL, err)
			if !cerr.Kind.Retryable() {
				return nil, cerr
			}
			lastErr = cerr
			continue
		}

		slog.Debug("fetch timing",
			"url", rawURL,
			"attempt", attempt,
			"status", resp.StatusCode,
			"dns_ms", resp.Metrics.DNSLookup.Milliseconds(),
			"connect_ms", resp.Metrics.TCPConnect.Milliseconds(),
			"tls_ms", resp.Metrics.TLSHandshake.Milliseconds(),
			"ttfb_ms", resp.Metrics.TTFB.Milliseconds(),
			"download_ms", resp.Metrics.DownloadTime.Milliseconds(),
		)

		kind := classify(resp.ContentType)

		if cap := f.sizeCap(kind); cap > 0 && int64(len(resp.Body)) > cap {
			return nil, crawlerr.New(crawlerr.SizeCapExceeded, rawURL, fmt.Errorf("body %d bytes exceeds cap %d", len(resp.Body), cap))
		}

		switch {
		case resp.StatusCode == 429 || resp.StatusCode >= 500:
			cerr := crawlerr.New(crawlerr.HTTPServerError, rawURL, fmt.Errorf("status %d", resp.StatusCode))
			if !cerr.Kind.Retryable() {
				return nil, cerr
			}
			lastErr = cerr
			continue
		case resp.StatusCode >= 400:
			return nil, crawlerr.New(crawlerr.HTTPClientError, rawURL, fmt.Errorf("status %d", resp.StatusCode))
		}

		ext := extensionFor(kind, resp.ContentType)
		relPath, hash, err := f.store.Write(kind, ext, resp.Body)
		if err != nil {
			return nil, crawlerr.New(crawlerr.NetworkPermanent, rawURL, err)
		}

		return &Result{
			FinalURL:    resp.FinalURL,
			HTTPStatus:  resp.StatusCode,
			ContentType: resp.ContentType,
			Kind:        kind,
			Body:        resp.Body,
			ArtifactRel: relPath,
			ContentHash: hash,
			Attempt:     attempt,
			Metrics:     resp.Metrics,
		}, nil
	}

	return nil, lastErr
}

// classify maps a Content-Type header to a storage bucket.
func classify(contentType string) ArtifactKind {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "pdf"):
		return KindPDF
	case strings.HasPrefix(ct, "video/"):
		return KindVideo
	case strings.HasPrefix(ct, "audio/"):
		return KindAudio
	default:
		return KindHTML
	}
}

func extensionFor(kind ArtifactKind, contentType string) string {
	switch kind {
	case KindPDF:
		return ".pdf"
	case KindVideo:
		return extFromSubtype(contentType, ".bin")
	case KindAudio:
		return extFromSubtype(contentType, ".bin")
	default:
		return ".html"
	}
}

func extFromSubtype(contentType, fallback string) string {
	parts := strings.SplitN(contentType, "/", 2)
	if len(parts) != 2 {
		return fallback
	}
	subtype := strings.SplitN(parts[1], ";", 2)[0]
	subtype = strings.TrimSpace(subtype)
	if subtype == "" {
		return fallback
	}
	return "." + subtype
}

// isUnresolvableHost reports whether err is a DNS resolution failure
// ("no such host"), which will not resolve itself on retry and should
// fail the page immediately rather than burn the backoff budget.
func isUnresolvableHost(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}

// sleepBackoff waits base*2^(attempt-1) with +/-20% jitter (attempt is
// 1 for the first retry), or returns the context error if it is
// cancelled first.
func sleepBackoff(ctx context.Context, attempt int) error {
	const base = 500 * time.Millisecond
	backoff := base * time.Duration(1<<uint(attempt-1))
	jitter := time.Duration(float64(backoff) * (rand.Float64()*0.4 - 0.2))
	wait := backoff + jitter

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
