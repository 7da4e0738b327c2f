// Package fetch retrieves a URL's content over HTTP, classifies the
// result, and persists it as a content-addressed artifact on disk.
package fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"

	"github.com/kestrelweb/sitecrawler/internal/config"
)

// maxRedirects caps redirect chains tighter than a generic browser
// would, since a resumable crawler should treat a long chain as a
// signal rather than silently follow it to completion.
const maxRedirects = 5

// Client performs authenticated GET requests and reports timing
// metrics alongside the response body.
type Client struct {
	http          *http.Client
	userAgent     string
	authType      string
	username      string
	password      string
	bearerToken   string
	apiKeyHeader  string
	apiKeyValue   string
	customHeaders map[string]string
}

// Metrics captures per-request timing breakdown for diagnostics.
type Metrics struct {
	TTFB         time.Duration
	DownloadTime time.Duration
	DNSLookup    time.Duration
	TCPConnect   time.Duration
	TLSHandshake time.Duration
}

// Response is the outcome of one GET.
type Response struct {
	StatusCode    int
	Headers       http.Header
	Body          []byte
	ContentType   string
	ContentLength int64
	Metrics       Metrics
	FinalURL      string
}

// NewClient builds a Client wired from crawl configuration: user agent,
// timeout, and whichever auth scheme is configured.
func NewClient(cfg *config.CrawlConfig) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   cfg.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	c := &Client{
		http:          httpClient,
		userAgent:     cfg.UserAgent,
		customHeaders: make(map[string]string),
	}

	if cfg.Auth != nil {
		switch cfg.Auth.Type {
		case "basic":
			c.username, c.password = cfg.GetBasicAuthCredentials()
			c.authType = "basic"
		case "bearer":
			c.bearerToken = cfg.GetBearerToken()
			c.authType = "bearer"
		case "apikey":
			c.apiKeyHeader, c.apiKeyValue = cfg.GetAPIKeyCredentials()
			c.authType = "apikey"
		}
	}

	for _, raw := range cfg.Headers {
		name, value, ok := splitHeader(raw)
		if ok {
			c.customHeaders[name] = value
		}
	}

	return c
}

func splitHeader(raw string) (name, value string, ok bool) {
	for i := 0; i < len(raw); i++ {
		if raw[i] == ':' {
			name = trimSpace(raw[:i])
			value = trimSpace(raw[i+1:])
			return name, value, name != ""
		}
	}
	return "", "", false
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}

// Get performs one GET request, tracing DNS/connect/TLS/TTFB timings.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml,application/pdf;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	switch c.authType {
	case "basic":
		if c.username != "" {
			req.SetBasicAuth(c.username, c.password)
		}
	case "bearer":
		if c.bearerToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.bearerToken)
		}
	case "apikey":
		if c.apiKeyHeader != "" {
			req.Header.Set(c.apiKeyHeader, c.apiKeyValue)
		}
	}
	for name, value := range c.customHeaders {
		req.Header.Set(name, value)
	}

	var metrics Metrics
	var dnsStart, connectStart, tlsStart, firstByte time.Time
	trace := &httptrace.ClientTrace{
		DNSStart:     func(httptrace.DNSStartInfo) { dnsStart = time.Now() },
		DNSDone:      func(httptrace.DNSDoneInfo) { metrics.DNSLookup = time.Since(dnsStart) },
		ConnectStart: func(string, string) { connectStart = time.Now() },
		ConnectDone:  func(string, string, error) { metrics.TCPConnect = time.Since(connectStart) },
		TLSHandshakeStart: func() { tlsStart = time.Now() },
		TLSHandshakeDone: func(tls.ConnectionState, error) {
			metrics.TLSHandshake = time.Since(tlsStart)
		},
		GotFirstResponseByte: func() { firstByte = time.Now() },
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if !firstByte.IsZero() {
		metrics.TTFB = firstByte.Sub(start)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	metrics.DownloadTime = time.Since(start)

	return &Response{
		StatusCode:    resp.StatusCode,
		Headers:       resp.Header,
		Body:          body,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		Metrics:       metrics,
		FinalURL:      resp.Request.URL.String(),
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}
