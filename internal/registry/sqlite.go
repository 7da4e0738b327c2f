// Package registry is the single embedded relational store that is the
// authoritative persistent state for a crawl: pages, frontier, edges,
// assets, FAQs, robots records, and metadata.
package registry

import (
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	// SQLite database driver (CGO-free)
	_ "modernc.org/sqlite"
)

// Store implements every contract operation from spec.md §4.D over a
// single SQLite file.
type Store struct {
	db *sql.DB
}

// Open creates or opens the registry at path and ensures the schema and
// crawl-session identity exist.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}

	// A single connection avoids SQLITE_BUSY under WAL with concurrent
	// workers; writes still serialize the same way a real single-writer
	// embedded store requires.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 30000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("pragma %s: %w", p, err)
		}
	}

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return s.ensureCrawlID()
}

// ensureCrawlID stamps a stable session identifier the first time the
// registry is created, so successive resumed runs share one crawl_id.
func (s *Store) ensureCrawlID() error {
	existing, err := s.GetMeta("crawl_id")
	if err != nil {
		return err
	}
	if existing != "" {
		return nil
	}
	return s.SetMeta("crawl_id", uuid.NewString())
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertFrontier inserts or promotes a frontier row per spec.md §4.D.
func (s *Store) UpsertFrontier(rawURL, parentURL string, depth int, lineage string) (UpsertOutcome, error) {
	host, err := hostOf(rawURL)
	if err != nil {
		return OutcomeSkipped, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return OutcomeSkipped, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		existingID      int64
		existingStatus  string
		existingDepth   int
		existingLineage string
	)
	err = tx.QueryRow(`SELECT id, status, depth, lineage FROM pages WHERE url = ?`, rawURL).
		Scan(&existingID, &existingStatus, &existingDepth, &existingLineage)

	switch {
	case err == sql.ErrNoRows:
		_, err = tx.Exec(`
			INSERT INTO pages (url, host, parent_url, depth, lineage, status)
			VALUES (?, ?, ?, ?, ?, 'PENDING')
		`, rawURL, host, parentURL, depth, lineage)
		if err != nil {
			return OutcomeSkipped, fmt.Errorf("insert frontier row: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return OutcomeSkipped, err
		}
		return OutcomeNew, nil

	case err != nil:
		return OutcomeSkipped, fmt.Errorf("query existing page: %w", err)
	}

	if existingStatus != StatusPending {
		return OutcomeSkipped, tx.Commit()
	}

	promote := false
	newDepth := existingDepth
	newLineage := existingLineage

	if depth < existingDepth {
		newDepth = depth
		promote = true
	}
	if lineage == LineageFAQ && existingLineage == LineageGeneral {
		newLineage = LineageFAQ
		promote = true
	}

	if !promote {
		return OutcomeSkipped, tx.Commit()
	}

	if _, err := tx.Exec(`UPDATE pages SET depth = ?, lineage = ? WHERE id = ?`, newDepth, newLineage, existingID); err != nil {
		return OutcomeSkipped, fmt.Errorf("promote frontier row: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return OutcomeSkipped, err
	}
	return OutcomePromoted, nil
}

// ClaimNext atomically selects one PENDING row, ordered ascending by
// depth then insertion id (FIFO within depth), and marks it FETCHING.
func (s *Store) ClaimNext(workerID string) (*FrontierEntry, error) {
	row := s.db.QueryRow(`
		UPDATE pages
		SET status = 'FETCHING', claimed_by = ?, claimed_at = ?
		WHERE id = (
			SELECT id FROM pages
			WHERE status = 'PENDING'
			ORDER BY depth ASC, id ASC
			LIMIT 1
		) AND status = 'PENDING'
		RETURNING id, url, COALESCE(parent_url, ''), depth, lineage
	`, workerID, time.Now())

	var e FrontierEntry
	err := row.Scan(&e.ID, &e.URL, &e.ParentURL, &e.Depth, &e.Lineage)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next: %w", err)
	}
	e.ClaimedBy = workerID
	return &e, nil
}

// YieldBackToPending returns a claimed URL to PENDING without changing
// its depth or lineage, per spec.md §5 (per-host token unavailable).
func (s *Store) YieldBackToPending(id int64) error {
	_, err := s.db.Exec(`UPDATE pages SET status = 'PENDING', claimed_by = NULL, claimed_at = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("yield back to pending: %w", err)
	}
	return nil
}

// Complete transitions a FETCHING row to a terminal status and writes
// the fetch outcome.
func (s *Store) Complete(id int64, c PageCompletion) error {
	_, err := s.db.Exec(`
		UPDATE pages SET
			status = ?,
			http_status = ?,
			content_type = ?,
			content_hash = ?,
			artifact_raw_path = ?,
			artifact_md_path = ?,
			fetched_at = ?,
			retry_count = ?,
			last_error_kind = ?,
			last_error_message = ?,
			title = ?,
			meta_desc = ?,
			meta_robots = ?,
			canonical_url = ?
		WHERE id = ?
	`,
		c.Status, c.HTTPStatus, c.ContentType, c.ContentHash,
		c.ArtifactRawPath, c.ArtifactMDPath, c.FetchedAt, c.Attempt,
		nullIfEmpty(c.ErrorKind), nullIfEmpty(c.ErrorMessage),
		nullIfEmpty(c.Title), nullIfEmpty(c.MetaDesc), nullIfEmpty(c.MetaRobots), nullIfEmpty(c.CanonicalURL),
		id,
	)
	if err != nil {
		return fmt.Errorf("complete page: %w", err)
	}
	return nil
}

// MarkPostprocessError flags a row without demoting its fetch status,
// per spec.md §4.H.
func (s *Store) MarkPostprocessError(id int64, message string) error {
	_, err := s.db.Exec(`UPDATE pages SET postprocess_error = ? WHERE id = ?`, message, id)
	if err != nil {
		return fmt.Errorf("mark postprocess error: %w", err)
	}
	return nil
}

// RecordEdges inserts a batch of link edges in one transaction.
func (s *Store) RecordEdges(edges []LinkEdge) error {
	if len(edges) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO link_edges (from_url, to_url, anchor_text, is_external, discovered_depth)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range edges {
		if _, err := stmt.Exec(e.FromURL, e.ToURL, e.AnchorText, e.IsExternal, e.DiscoveredDepth); err != nil {
			return fmt.Errorf("insert edge %s -> %s: %w", e.FromURL, e.ToURL, err)
		}
	}
	return tx.Commit()
}

// RecordAsset upserts a non-HTML resource record.
func (s *Store) RecordAsset(a Asset) error {
	_, err := s.db.Exec(`
		INSERT INTO assets (url, kind, local_path, content_hash, size_bytes, owning_page_url, extracted_text_path)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			local_path = excluded.local_path,
			content_hash = excluded.content_hash,
			size_bytes = excluded.size_bytes,
			extracted_text_path = excluded.extracted_text_path
	`, a.URL, a.Kind, a.LocalPath, a.ContentHash, a.SizeBytes, a.OwningPageURL, nullIfEmpty(a.ExtractedTextPath))
	if err != nil {
		return fmt.Errorf("record asset: %w", err)
	}
	return nil
}

// RecordFAQ inserts a batch of extracted FAQ items.
func (s *Store) RecordFAQ(items []FAQItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO faq_items (document_url, question_text, answer_text, answer_mode)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, item := range items {
		if _, err := stmt.Exec(item.DocumentURL, item.Question, item.Answer, item.AnswerMode); err != nil {
			return fmt.Errorf("insert faq item: %w", err)
		}
	}
	return tx.Commit()
}

// SearchFAQ runs a full-text query against the FAQ corpus via the
// faq_items_fts index, ranked by SQLite's bm25 relevance score.
func (s *Store) SearchFAQ(query string, limit int) ([]FAQItem, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT f.document_url, f.question_text, f.answer_text, f.answer_mode
		FROM faq_items_fts
		JOIN faq_items f ON f.id = faq_items_fts.rowid
		WHERE faq_items_fts MATCH ?
		ORDER BY bm25(faq_items_fts)
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search faq: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []FAQItem
	for rows.Next() {
		var item FAQItem
		if err := rows.Scan(&item.DocumentURL, &item.Question, &item.Answer, &item.AnswerMode); err != nil {
			return nil, fmt.Errorf("scan faq search row: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// RecordExternal registers an out-of-scope URL and rolls up its domain
// into the external-domains aggregate.
func (s *Store) RecordExternal(externalURL, referrer string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR IGNORE INTO external_urls (url, referrer) VALUES (?, ?)`, externalURL, referrer); err != nil {
		return fmt.Errorf("record external url: %w", err)
	}

	domain, err := hostOf(externalURL)
	if err != nil {
		return tx.Commit()
	}

	if _, err := tx.Exec(`
		INSERT INTO external_domains (domain, url_count) VALUES (?, 1)
		ON CONFLICT(domain) DO UPDATE SET url_count = url_count + 1
	`, domain); err != nil {
		return fmt.Errorf("rollup external domain: %w", err)
	}

	return tx.Commit()
}

// RecoverOrphans resets every FETCHING row to PENDING at startup. It is
// idempotent: calling it with no orphans present is a no-op.
func (s *Store) RecoverOrphans() (int64, error) {
	res, err := s.db.Exec(`UPDATE pages SET status = 'PENDING', claimed_by = NULL, claimed_at = NULL WHERE status = 'FETCHING'`)
	if err != nil {
		return 0, fmt.Errorf("recover orphans: %w", err)
	}
	return res.RowsAffected()
}

// GetMeta retrieves a metadata value.
func (s *Store) GetMeta(key string) (string, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get meta: %w", err)
	}
	return v, nil
}

// SetMeta stores a metadata value.
func (s *Store) SetMeta(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("set meta: %w", err)
	}
	return nil
}

// PageStatus returns the status of url, or ("", false) if unknown.
func (s *Store) PageStatus(rawURL string) (string, bool) {
	var status string
	err := s.db.QueryRow(`SELECT status FROM pages WHERE url = ?`, rawURL).Scan(&status)
	if err != nil {
		return "", false
	}
	return status, true
}

// Counts returns aggregate page counts for the stats reporter and for
// crash-recovery invariant checks.
func (s *Store) Counts() (QueueCounts, error) {
	var c QueueCounts
	err := s.db.QueryRow(`
		SELECT
			SUM(CASE WHEN status = 'PENDING' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'FETCHING' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status NOT IN ('PENDING', 'FETCHING') THEN 1 ELSE 0 END)
		FROM pages
	`).Scan(&c.Pending, &c.Fetching, &c.Terminal)
	if err != nil {
		return QueueCounts{}, fmt.Errorf("counts: %w", err)
	}
	return c, nil
}

// SaveRobotsRecord persists a snapshot of a host's robots.txt state for
// diagnostics and export; the live routing decision is made by the
// in-memory robotscache.Cache, per spec.md §4.D "robots" table.
func (s *Store) SaveRobotsRecord(host, state string, ttl time.Duration, crawlDelay time.Duration) error {
	_, err := s.db.Exec(`
		INSERT INTO robots (host, state, fetched_at, ttl_seconds, crawl_delay_ms)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(host) DO UPDATE SET
			state = excluded.state,
			fetched_at = excluded.fetched_at,
			ttl_seconds = excluded.ttl_seconds,
			crawl_delay_ms = excluded.crawl_delay_ms
	`, host, state, time.Now(), int64(ttl.Seconds()), crawlDelay.Milliseconds())
	if err != nil {
		return fmt.Errorf("save robots record: %w", err)
	}
	return nil
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	return u.Host, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
