// Package sitemap recursively expands a sitemap or sitemap-index URL
// into a flat stream of (URL, lineage) entries.
package sitemap

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Lineage classifies a discovered URL for depth-budget purposes.
type Lineage string

const (
	FAQ     Lineage = "FAQ"
	General Lineage = "GENERAL"
)

// Entry is one URL discovered during sitemap expansion.
type Entry struct {
	URL     string
	Lineage Lineage
	LastMod *time.Time
}

// xmlURLSet is the root element of a standard sitemap XML file.
type xmlURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []xmlURL `xml:"url"`
}

type xmlURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

// xmlSitemapIndex is the root element of a sitemap index XML file.
type xmlSitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []xmlSitemap `xml:"sitemap"`
}

type xmlSitemap struct {
	Loc string `xml:"loc"`
}

// Fetcher retrieves the raw bytes of a sitemap URL.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher is the default Fetcher backed by net/http.
type HTTPFetcher struct {
	Client *http.Client
}

func (f *HTTPFetcher) Get(ctx context.Context, url string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	return io.ReadAll(resp.Body)
}

// Expander expands a seed sitemap URL into leaf entries.
type Expander struct {
	fetcher       Fetcher
	faqIndicators []string
	excluded      []string
}

// New creates an Expander. faqIndicators classifies a URL as FAQ
// lineage when its path (or the path of the containing sitemap)
// contains any of these substrings, case-insensitively. excluded drops
// matching entries before they ever reach the frontier.
func New(fetcher Fetcher, faqIndicators, excludedSitemapSections []string) *Expander {
	return &Expander{fetcher: fetcher, faqIndicators: faqIndicators, excluded: excludedSitemapSections}
}

// Expand fetches seedURL and recursively resolves sitemap indexes,
// returning the union of unique leaf <loc> entries with cycle
// detection keyed by absolute sitemap URL.
func (e *Expander) Expand(ctx context.Context, seedURL string) ([]Entry, error) {
	visited := make(map[string]bool)
	var out []Entry
	if err := e.expand(ctx, seedURL, visited, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Expander) expand(ctx context.Context, sitemapURL string, visited map[string]bool, out *[]Entry) error {
	if visited[sitemapURL] {
		return nil
	}
	visited[sitemapURL] = true

	body, err := e.fetcher.Get(ctx, sitemapURL)
	if err != nil {
		slog.Warn("sitemap fetch failed, treating as empty", "url", sitemapURL, "error", err)
		return nil
	}

	if isSitemapIndex(body) {
		var index xmlSitemapIndex
		if err := xml.Unmarshal(body, &index); err != nil {
			slog.Warn("malformed sitemap index, treating as empty", "url", sitemapURL, "error", err)
			return nil
		}
		for _, s := range index.Sitemaps {
			if s.Loc == "" {
				continue
			}
			if err := e.expand(ctx, s.Loc, visited, out); err != nil {
				return err
			}
		}
		return nil
	}

	var urlset xmlURLSet
	if err := xml.Unmarshal(body, &urlset); err != nil {
		slog.Warn("malformed sitemap, treating as empty", "url", sitemapURL, "error", err)
		return nil
	}

	for _, u := range urlset.URLs {
		if u.Loc == "" {
			continue
		}
		if matchesAny(u.Loc, e.excluded) {
			continue
		}

		entry := Entry{
			URL:     u.Loc,
			Lineage: classifyLineage(u.Loc, sitemapURL, e.faqIndicators),
		}
		if u.LastMod != "" {
			if t, err := parseLastMod(u.LastMod); err == nil {
				entry.LastMod = &t
			}
		}
		*out = append(*out, entry)
	}

	return nil
}

// isSitemapIndex sniffs the root element name without fully parsing,
// so we know which of the two schemas to unmarshal into.
func isSitemapIndex(body []byte) bool {
	return strings.Contains(string(body[:min(len(body), 512)]), "<sitemapindex")
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func classifyLineage(loc, containingSitemap string, indicators []string) Lineage {
	target := strings.ToLower(urlPath(loc) + " " + urlPath(containingSitemap))
	for _, ind := range indicators {
		if ind != "" && strings.Contains(target, strings.ToLower(ind)) {
			return FAQ
		}
	}
	return General
}

// urlPath returns the path component of raw, or raw itself if it does
// not parse as a URL.
func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Path
}

func matchesAny(s string, substrings []string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrings {
		if sub != "" && strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

const dateOnlyFormat = "2006-01-02"

func parseLastMod(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateOnlyFormat, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse lastmod %q: %w", trimmed, err)
	}
	return t, nil
}
