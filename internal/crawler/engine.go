// Package crawler drives the frontier loop: claim a URL, gate it by
// depth and robots policy, fetch it, extract and classify its links,
// and record the outcome in the registry.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kestrelweb/sitecrawler/internal/config"
	"github.com/kestrelweb/sitecrawler/internal/crawlerr"
	"github.com/kestrelweb/sitecrawler/internal/fetch"
	"github.com/kestrelweb/sitecrawler/internal/linkextract"
	"github.com/kestrelweb/sitecrawler/internal/postprocess"
	"github.com/kestrelweb/sitecrawler/internal/registry"
	"github.com/kestrelweb/sitecrawler/internal/robotscache"
	"github.com/kestrelweb/sitecrawler/internal/sitemap"
	"github.com/kestrelweb/sitecrawler/internal/urlnorm"
)

// State names the engine's coarse lifecycle, per spec.md §4.G.
type State string

const (
	StateInit             State = "INIT"
	StateExpandingSitemap State = "EXPANDING_SITEMAP"
	StateCrawling         State = "CRAWLING"
	StateDraining         State = "DRAINING"
	StateDone             State = "DONE"
	StateAborted          State = "ABORTED"
)

// Stats is a point-in-time snapshot of crawl progress.
type Stats struct {
	PagesCrawled int
	ErrorCount   int
	StartTime    time.Time
	Duration     time.Duration
}

// Engine owns the worker pool and every collaborator the frontier loop
// needs: the registry, the robots cache, the fetcher, the extractor,
// and the post-processors.
type Engine struct {
	cfg       *config.CrawlConfig
	store     *registry.Store
	fetcher   *fetch.Fetcher
	artifacts *fetch.ArtifactStore
	robots    *robotscache.Cache
	tokens    *hostTokens
	scope     urlnorm.ScopeConfig
	markdown  *postprocess.MarkdownProcessor
	faq       *postprocess.FAQProcessor

	state   State
	stateMu sync.RWMutex

	stats      Stats
	statsMu    sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	active     int
	activeMu   sync.Mutex
}

// New wires an Engine from configuration, an open registry, and an
// artifact store rooted at the configured directory.
func New(cfg *config.CrawlConfig, store *registry.Store, artifacts *fetch.ArtifactStore) *Engine {
	robotsCache := robotscache.New(&robotscache.HTTPFetcher{}, cfg.RobotsTTL, store)

	e := &Engine{
		cfg:       cfg,
		store:     store,
		fetcher:   fetch.New(cfg, artifacts),
		artifacts: artifacts,
		robots:    robotsCache,
		scope: urlnorm.ScopeConfig{
			AllowedDomains:          cfg.AllowedDomains,
			ExcludedSitemapSections: cfg.ExcludedSitemapSections,
			ExcludedURLPrefixes:     cfg.ExcludedURLPrefixes,
		},
		state: StateInit,
	}
	e.tokens = newHostTokens(cfg.PerHostRPS, robotsCache)
	e.markdown = postprocess.NewMarkdownProcessor(func(content []byte) (string, error) {
		relPath, _, err := artifacts.Write(fetch.KindMarkdown, ".md", content)
		return relPath, err
	})
	e.faq = postprocess.NewFAQProcessor()
	return e
}

func (e *Engine) setState(s State) {
	e.stateMu.Lock()
	e.state = s
	e.stateMu.Unlock()
	slog.Info("engine state transition", "state", s)
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.state
}

// Run expands the seed sitemap (unless resuming with an empty
// seedSitemapURL), seeds the frontier, and drives the worker pool to
// completion or cancellation.
func (e *Engine) Run(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)
	defer e.cancel()

	e.setState(StateInit)
	e.statsMu.Lock()
	e.stats.StartTime = time.Now()
	e.statsMu.Unlock()

	recovered, err := e.store.RecoverOrphans()
	if err != nil {
		return fmt.Errorf("recover orphans: %w", err)
	}
	if recovered > 0 {
		slog.Info("recovered orphaned frontier rows", "count", recovered)
	}

	if e.cfg.SeedSitemapURL != "" {
		e.setState(StateExpandingSitemap)
		if err := e.expandSeed(e.ctx); err != nil {
			return fmt.Errorf("expand seed sitemap: %w", err)
		}
	}

	e.setState(StateCrawling)

	e.active = e.cfg.WorkerCount
	for i := 0; i < e.cfg.WorkerCount; i++ {
		e.wg.Add(1)
		go e.worker(i)
	}

	e.wg.Add(1)
	go e.statsReporter()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.setState(StateDone)
	case <-ctx.Done():
		e.setState(StateAborted)
		e.awaitGracePeriod(done)
	}

	e.fetcher.Close()
	return nil
}

// awaitGracePeriod gives in-flight workers up to ShutdownGrace to
// finish their current fetch and complete() call before returning.
func (e *Engine) awaitGracePeriod(done <-chan struct{}) {
	grace := e.cfg.ShutdownGrace
	if grace <= 0 {
		grace = 10 * time.Second
	}
	select {
	case <-done:
	case <-time.After(grace):
		slog.Warn("shutdown grace period elapsed, workers may be mid-fetch")
	}
}

func (e *Engine) expandSeed(ctx context.Context) error {
	expander := sitemap.New(&sitemap.HTTPFetcher{}, e.cfg.FAQIndicators, e.cfg.ExcludedSitemapSections)
	entries, err := expander.Expand(ctx, e.cfg.SeedSitemapURL)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		canonical, err := urlnorm.NormalizeStripped(entry.URL, e.cfg.SeedSitemapURL, e.cfg.StripQueryParams)
		if err != nil {
			slog.Warn("skipping unnormalizable sitemap entry", "url", entry.URL, "error", err)
			continue
		}
		if !urlnorm.InScope(canonical, e.scope) {
			continue
		}
		lineage := registry.LineageGeneral
		if entry.Lineage == sitemap.FAQ {
			lineage = registry.LineageFAQ
		}
		if _, err := e.store.UpsertFrontier(canonical, "", 0, lineage); err != nil {
			slog.Error("failed to seed frontier row", "url", canonical, "error", err)
		}
	}

	slog.Info("sitemap expansion complete", "entries", len(entries))
	return nil
}

func (e *Engine) worker(id int) {
	defer e.wg.Done()
	defer e.handleShutdown(id)

	for {
		select {
		case <-e.ctx.Done():
			return
		default:
		}

		entry, err := e.store.ClaimNext(workerID(id))
		if err != nil {
			slog.Error("worker failed to claim", "worker_id", id, "error", err)
			time.Sleep(time.Second)
			continue
		}
		if entry == nil {
			if e.frontierExhausted() {
				return
			}
			time.Sleep(200 * time.Millisecond)
			continue
		}

		e.processEntry(id, entry)
	}
}

func workerID(id int) string { return fmt.Sprintf("worker-%d", id) }

// frontierExhausted reports whether the registry has no PENDING and no
// FETCHING rows left, at which point every idle worker can exit.
func (e *Engine) frontierExhausted() bool {
	counts, err := e.store.Counts()
	if err != nil {
		return false
	}
	return counts.Pending == 0 && counts.Fetching == 0
}

func (e *Engine) handleShutdown(id int) {
	e.activeMu.Lock()
	e.active--
	if e.active == 0 {
		e.cancel()
	}
	e.activeMu.Unlock()
}

func (e *Engine) processEntry(id int, entry *registry.FrontierEntry) {
	if !e.withinDepthBudget(entry) {
		e.complete(entry, crawlerr.New(crawlerr.DepthExceeded, entry.URL, nil))
		return
	}

	if !e.cfg.IgnoreRobots {
		allowed, err := e.robots.CanFetch(e.ctx, entry.URL, e.cfg.UserAgent)
		if err != nil {
			slog.Warn("robots check failed, proceeding", "url", entry.URL, "error", err)
		} else if !allowed {
			e.complete(entry, crawlerr.New(crawlerr.RobotsDisallowed, entry.URL, nil))
			return
		}
	}

	if !e.tokens.Allow(entry.URL) {
		if err := e.store.YieldBackToPending(entry.ID); err != nil {
			slog.Error("failed to yield URL back to pending", "worker_id", id, "url", entry.URL, "error", err)
		}
		return
	}

	result, err := e.fetcher.Fetch(e.ctx, entry.URL)
	if err != nil {
		e.complete(entry, err)
		return
	}

	finalURL, ferr := urlnorm.NormalizeStripped(result.FinalURL, entry.URL, e.cfg.StripQueryParams)
	if ferr == nil && !urlnorm.InScope(finalURL, e.scope) {
		e.complete(entry, crawlerr.New(crawlerr.OutOfScope, entry.URL, fmt.Errorf("redirected out of scope to %s", finalURL)))
		return
	}

	switch result.Kind {
	case fetch.KindHTML:
		e.completeHTML(id, entry, result)
	default:
		e.completeAsset(entry, result)
	}
}

func (e *Engine) withinDepthBudget(entry *registry.FrontierEntry) bool {
	max := e.cfg.MaxDepthGeneral
	if entry.Lineage == registry.LineageFAQ {
		max = e.cfg.MaxDepthFAQ
	}
	return entry.Depth <= max
}

func (e *Engine) completeHTML(id int, entry *registry.FrontierEntry, result *fetch.Result) {
	completion := registry.PageCompletion{
		Status:          registry.StatusOK,
		HTTPStatus:      result.HTTPStatus,
		ContentType:     result.ContentType,
		ContentHash:     result.ContentHash,
		ArtifactRawPath: result.ArtifactRel,
		FetchedAt:       time.Now(),
		Attempt:         result.Attempt,
	}

	extractor, err := linkextract.New(entry.URL, e.cfg.FAQIndicators, e.cfg.StripQueryParams)
	if err != nil {
		slog.Warn("cannot build extractor", "url", entry.URL, "error", err)
		_ = e.store.Complete(entry.ID, completion)
		e.incrementCrawled()
		return
	}

	extracted, err := extractor.Extract(result.Body)
	if err != nil {
		slog.Warn("parse error, page kept as OK with no edges", "url", entry.URL, "error", err)
		_ = e.store.Complete(entry.ID, completion)
		e.incrementCrawled()
		return
	}

	completion.Title = extracted.Title
	completion.MetaDesc = extracted.MetaDesc
	completion.MetaRobots = extracted.MetaRobots
	completion.CanonicalURL = extracted.CanonicalURL

	e.emitLinks(entry, extracted.Links)

	contentMeta := postprocess.ContentMeta{ContentType: result.ContentType, Lineage: entry.Lineage}

	if e.markdown.Accept(contentMeta) {
		if md, err := e.markdown.Process(result.Body, postprocess.PageRef{URL: entry.URL}); err != nil {
			if merr := e.store.MarkPostprocessError(entry.ID, err.Error()); merr != nil {
				slog.Error("failed to record postprocess error", "url", entry.URL, "error", merr)
			}
		} else {
			completion.ArtifactMDPath = md.ArtifactRelPath
		}
	}

	if e.faq.Accept(contentMeta) {
		if produced, err := e.faq.Process(result.Body, postprocess.PageRef{URL: entry.URL}); err != nil {
			if merr := e.store.MarkPostprocessError(entry.ID, err.Error()); merr != nil {
				slog.Error("failed to record postprocess error", "url", entry.URL, "error", merr)
			}
		} else if len(produced.FAQItems) > 0 {
			items := make([]registry.FAQItem, 0, len(produced.FAQItems))
			for _, item := range produced.FAQItems {
				items = append(items, registry.FAQItem{
					DocumentURL: entry.URL,
					Question:    item.Question,
					Answer:      item.Answer,
					AnswerMode:  item.AnswerMode,
				})
			}
			if err := e.store.RecordFAQ(items); err != nil {
				slog.Error("failed to record faq items", "url", entry.URL, "error", err)
			}
		}
	}

	if err := e.store.Complete(entry.ID, completion); err != nil {
		slog.Error("failed to complete page", "url", entry.URL, "error", err)
		e.incrementError()
		return
	}
	e.incrementCrawled()
	e.logTransition(entry.URL, completion.Status, "fetched", result.Attempt+1, result.Metrics)
}

// emitLinks records every link discovered on entry's page: media links
// (iframe embeds) are recorded as owned assets rather than queued for
// crawling, external links are tracked for reporting only, and in-scope
// links are upserted into the frontier for later claiming.
func (e *Engine) emitLinks(entry *registry.FrontierEntry, links []linkextract.Link) {
	var edges []registry.LinkEdge

	for _, link := range links {
		edges = append(edges, registry.LinkEdge{
			FromURL:         entry.URL,
			ToURL:           link.URL,
			AnchorText:      link.AnchorText,
			IsExternal:      link.IsExternal,
			DiscoveredDepth: entry.Depth + 1,
		})

		if link.IsMedia {
			asset := registry.Asset{
				URL:           link.URL,
				Kind:          "EMBED",
				OwningPageURL: entry.URL,
			}
			if err := e.store.RecordAsset(asset); err != nil {
				slog.Error("failed to record embedded media asset", "url", link.URL, "error", err)
			}
			continue
		}

		if link.IsExternal {
			if err := e.store.RecordExternal(link.URL, entry.URL); err != nil {
				slog.Error("failed to record external url", "url", link.URL, "error", err)
			}
			continue
		}

		if !urlnorm.InScope(link.URL, e.scope) {
			continue
		}

		lineage := linkextract.ClassifyLineage(link, entry.Lineage, e.cfg.FAQIndicators)
		if _, err := e.store.UpsertFrontier(link.URL, entry.URL, entry.Depth+1, lineage); err != nil {
			slog.Error("failed to upsert frontier", "url", link.URL, "error", err)
		}
	}

	if len(edges) > 0 {
		if err := e.store.RecordEdges(edges); err != nil {
			slog.Error("failed to record edges", "from", entry.URL, "error", err)
		}
	}
}

func (e *Engine) completeAsset(entry *registry.FrontierEntry, result *fetch.Result) {
	var assetKind string
	switch result.Kind {
	case fetch.KindPDF:
		assetKind = "PDF"
	case fetch.KindVideo:
		assetKind = "VIDEO"
	case fetch.KindAudio:
		assetKind = "AUDIO"
	default:
		assetKind = "OTHER"
	}

	owner := entry.ParentURL
	if owner == "" {
		owner = entry.URL
	}

	asset := registry.Asset{
		URL:           entry.URL,
		Kind:          assetKind,
		LocalPath:     result.ArtifactRel,
		ContentHash:   result.ContentHash,
		SizeBytes:     int64(len(result.Body)),
		OwningPageURL: owner,
	}
	if err := e.store.RecordAsset(asset); err != nil {
		slog.Error("failed to record asset", "url", entry.URL, "error", err)
	}

	completion := registry.PageCompletion{
		Status:          registry.StatusOK,
		HTTPStatus:      result.HTTPStatus,
		ContentType:     result.ContentType,
		ContentHash:     result.ContentHash,
		ArtifactRawPath: result.ArtifactRel,
		FetchedAt:       time.Now(),
		Attempt:         result.Attempt,
	}
	if err := e.store.Complete(entry.ID, completion); err != nil {
		slog.Error("failed to complete asset page", "url", entry.URL, "error", err)
		e.incrementError()
		return
	}
	e.incrementCrawled()
	e.logTransition(entry.URL, completion.Status, "fetched", result.Attempt+1, result.Metrics)
}

func (e *Engine) complete(entry *registry.FrontierEntry, err error) {
	kind := crawlerr.NetworkPermanent
	if ce, ok := err.(*crawlerr.Error); ok {
		kind = ce.Kind
	}

	completion := registry.PageCompletion{
		Status:       kind.TerminalStatus(),
		FetchedAt:    time.Now(),
		ErrorKind:    string(kind),
		ErrorMessage: errString(err),
	}
	if serr := e.store.Complete(entry.ID, completion); serr != nil {
		slog.Error("failed to record terminal status", "url", entry.URL, "error", serr)
	}
	e.incrementError()
	e.logTransition(entry.URL, completion.Status, string(kind), 0, fetch.Metrics{})
}

// logTransition emits the one-line-per-URL-transition record: every
// page reaching a status (successful or terminal) is logged with its
// outcome and, when available, the fetch's timing breakdown.
func (e *Engine) logTransition(url, toStatus, reason string, attempt int, metrics fetch.Metrics) {
	slog.Info("url transition",
		"url", url,
		"from_status", "FETCHING",
		"to_status", toStatus,
		"reason", reason,
		"attempt", attempt,
		"dns_ms", metrics.DNSLookup.Milliseconds(),
		"connect_ms", metrics.TCPConnect.Milliseconds(),
		"tls_ms", metrics.TLSHandshake.Milliseconds(),
		"ttfb_ms", metrics.TTFB.Milliseconds(),
		"download_ms", metrics.DownloadTime.Milliseconds(),
	)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (e *Engine) incrementCrawled() {
	e.statsMu.Lock()
	e.stats.PagesCrawled++
	e.statsMu.Unlock()
}

func (e *Engine) incrementError() {
	e.statsMu.Lock()
	e.stats.ErrorCount++
	e.statsMu.Unlock()
}

// Stats returns a snapshot of crawl progress so far.
func (e *Engine) Stats() Stats {
	e.statsMu.RLock()
	defer e.statsMu.RUnlock()
	s := e.stats
	s.Duration = time.Since(s.StartTime)
	return s
}

func (e *Engine) statsReporter() {
	defer e.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			counts, err := e.store.Counts()
			if err != nil {
				slog.Error("failed to read queue counts", "error", err)
				continue
			}
			stats := e.Stats()
			slog.Info("crawl progress",
				"crawled", stats.PagesCrawled,
				"errors", stats.ErrorCount,
				"pending", counts.Pending,
				"fetching", counts.Fetching,
				"terminal", counts.Terminal,
			)
		}
	}
}
