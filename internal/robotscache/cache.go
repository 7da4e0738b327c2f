// Package robotscache maintains one parsed robots.txt record per host,
// fetched at most once per TTL window, with fail-open semantics.
package robotscache

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benjaminestes/robots"
)

// State is the per-host robots lifecycle from spec.md §4.B.
type State string

const (
	Unfetched  State = "UNFETCHED"
	Ready      State = "READY"
	Unreachable State = "UNREACHABLE"
)

type hostRecord struct {
	mu         sync.Mutex
	state      State
	rules      *robots.Robots
	crawlDelay time.Duration
	fetchedAt  time.Time
}

func (h *hostRecord) expired(ttl time.Duration) bool {
	return h.state != Unfetched && time.Since(h.fetchedAt) > ttl
}

// Fetcher performs the raw HTTP GET used to retrieve robots.txt. It is
// an interface so tests can substitute an httptest server transport or
// a canned response without a real network call.
type Fetcher interface {
	Get(ctx context.Context, url string) (status int, body []byte, err error)
}

// HTTPFetcher is the default Fetcher backed by net/http.
type HTTPFetcher struct {
	Client *http.Client
}

func (f *HTTPFetcher) Get(ctx context.Context, url string) (int, []byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

// Recorder persists a snapshot of a host's robots.txt state once it has
// been fetched, so the registry's robots table reflects what the cache
// actually decided. It is an interface so the cache stays independent
// of the registry package; registry.Store satisfies it directly.
type Recorder interface {
	SaveRobotsRecord(host, state string, ttl time.Duration, crawlDelay time.Duration) error
}

// Cache is the per-host robots.txt cache.
type Cache struct {
	fetcher  Fetcher
	ttl      time.Duration
	recorder Recorder

	mu    sync.Mutex
	hosts map[string]*hostRecord
}

// New creates a Cache with the given TTL and fetcher. recorder may be
// nil, in which case fetched robots state is kept in memory only.
func New(fetcher Fetcher, ttl time.Duration, recorder Recorder) *Cache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{
		fetcher:  fetcher,
		ttl:      ttl,
		recorder: recorder,
		hosts:    make(map[string]*hostRecord),
	}
}

// CanFetch reports whether userAgent may fetch rawURL. It coalesces
// concurrent callers for the same host onto a single robots.txt fetch,
// and fails open (returns true) when the host is UNREACHABLE.
func (c *Cache) CanFetch(ctx context.Context, rawURL, userAgent string) (bool, error) {
	robotsURL, host, err := locate(rawURL)
	if err != nil {
		return false, fmt.Errorf("locate robots.txt for %q: %w", rawURL, err)
	}

	rec := c.recordFor(host)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.expired(c.ttl) {
		rec.state = Unfetched
	}

	if rec.state == Unfetched {
		c.fetchLocked(ctx, rec, robotsURL, host)
	}

	switch rec.state {
	case Unreachable:
		return true, nil
	case Ready:
		return rec.rules.Test(userAgent, rawURL), nil
	default:
		return true, nil
	}
}

// CrawlDelay returns the Crawl-delay directive for host, if any. It
// returns 0 if the host has not been fetched yet or declared none.
func (c *Cache) CrawlDelay(host string) time.Duration {
	c.mu.Lock()
	rec, ok := c.hosts[host]
	c.mu.Unlock()
	if !ok {
		return 0
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.crawlDelay
}

func (c *Cache) recordFor(host string) *hostRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.hosts[host]
	if !ok {
		rec = &hostRecord{state: Unfetched}
		c.hosts[host] = rec
	}
	return rec
}

// fetchLocked performs the fetch while rec.mu is held, so concurrent
// callers for the same host block until exactly one fetch completes. It
// persists the resulting state via the configured Recorder so the
// registry's robots table reflects what the cache decided for host.
func (c *Cache) fetchLocked(ctx context.Context, rec *hostRecord, robotsURL, host string) {
	status, body, err := c.fetcher.Get(ctx, robotsURL)
	if err != nil {
		rec.state = Unreachable
		rec.fetchedAt = time.Now()
		c.record(host, rec)
		return
	}

	parsed, err := robots.From(status, bytes.NewReader(body))
	if err != nil {
		rec.state = Unreachable
		rec.fetchedAt = time.Now()
		c.record(host, rec)
		return
	}

	rec.rules = parsed
	rec.crawlDelay = parseCrawlDelay(body)
	rec.state = Ready
	rec.fetchedAt = time.Now()
	c.record(host, rec)
}

// record saves rec's state to the configured Recorder, if any. Failures
// are swallowed: the in-memory cache remains authoritative for routing
// decisions, and the robots table is diagnostic/export data only.
func (c *Cache) record(host string, rec *hostRecord) {
	if c.recorder == nil {
		return
	}
	_ = c.recorder.SaveRobotsRecord(host, string(rec.state), c.ttl, rec.crawlDelay)
}

// locate returns the robots.txt URL and host for rawURL, using the
// library's own Locate helper (grounded in devraulu-crowlr's usage).
func locate(rawURL string) (robotsURL, host string, err error) {
	robotsURL, err = robots.Locate(rawURL)
	if err != nil {
		return "", "", err
	}
	idx := strings.Index(robotsURL, "://")
	if idx == -1 {
		return robotsURL, robotsURL, nil
	}
	rest := robotsURL[idx+3:]
	if slash := strings.Index(rest, "/"); slash != -1 {
		rest = rest[:slash]
	}
	return robotsURL, rest, nil
}

// parseCrawlDelay scans the raw robots.txt body for a Crawl-delay
// directive. The benjaminestes/robots API surface exercised elsewhere
// in the retrieval pack exposes only Test/Locate/From, not a
// crawl-delay accessor, so this reads the directive directly — the one
// piece of robots.txt parsing done outside the library.
func parseCrawlDelay(body []byte) time.Duration {
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(parts[0]), "crawl-delay") {
			continue
		}
		seconds, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			continue
		}
		return time.Duration(seconds * float64(time.Second))
	}
	return 0
}
