package registry

import (
	"fmt"
)

// PageRecord is a full row from pages, used for export.
type PageRecord struct {
	URL             string  `json:"url"`
	Host            string  `json:"host"`
	ParentURL       *string `json:"parent_url,omitempty"`
	Depth           int     `json:"depth"`
	Lineage         string  `json:"lineage"`
	Status          string  `json:"status"`
	HTTPStatus      *int    `json:"http_status,omitempty"`
	ContentType     *string `json:"content_type,omitempty"`
	ContentHash     *string `json:"content_hash,omitempty"`
	ArtifactRawPath *string `json:"artifact_raw_path,omitempty"`
	ArtifactMDPath  *string `json:"artifact_md_path,omitempty"`
	LastErrorKind   *string `json:"last_error_kind,omitempty"`
	LastErrorMsg    *string `json:"last_error_message,omitempty"`
	Title           *string `json:"title,omitempty"`
	MetaDesc        *string `json:"meta_desc,omitempty"`
	MetaRobots      *string `json:"meta_robots,omitempty"`
	CanonicalURL    *string `json:"canonical_url,omitempty"`
}

// AllPages returns every page row ordered by id, for export.
func (s *Store) AllPages() ([]PageRecord, error) {
	rows, err := s.db.Query(`
		SELECT url, host, parent_url, depth, lineage, status,
		       http_status, content_type, content_hash,
		       artifact_raw_path, artifact_md_path,
		       last_error_kind, last_error_message,
		       title, meta_desc, meta_robots, canonical_url
		FROM pages ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("all pages: %w", err)
	}
	defer rows.Close()

	var out []PageRecord
	for rows.Next() {
		var p PageRecord
		if err := rows.Scan(&p.URL, &p.Host, &p.ParentURL, &p.Depth, &p.Lineage, &p.Status,
			&p.HTTPStatus, &p.ContentType, &p.ContentHash,
			&p.ArtifactRawPath, &p.ArtifactMDPath,
			&p.LastErrorKind, &p.LastErrorMsg,
			&p.Title, &p.MetaDesc, &p.MetaRobots, &p.CanonicalURL); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AllEdges returns every link edge ordered by id, for export.
func (s *Store) AllEdges() ([]LinkEdge, error) {
	rows, err := s.db.Query(`
		SELECT from_url, to_url, COALESCE(anchor_text, ''), is_external, discovered_depth
		FROM link_edges ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("all edges: %w", err)
	}
	defer rows.Close()

	var out []LinkEdge
	for rows.Next() {
		var e LinkEdge
		if err := rows.Scan(&e.FromURL, &e.ToURL, &e.AnchorText, &e.IsExternal, &e.DiscoveredDepth); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AllAssets returns every asset row, for export.
func (s *Store) AllAssets() ([]Asset, error) {
	rows, err := s.db.Query(`
		SELECT url, kind, local_path, COALESCE(content_hash, ''), COALESCE(size_bytes, 0),
		       owning_page_url, COALESCE(extracted_text_path, '')
		FROM assets ORDER BY url ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("all assets: %w", err)
	}
	defer rows.Close()

	var out []Asset
	for rows.Next() {
		var a Asset
		if err := rows.Scan(&a.URL, &a.Kind, &a.LocalPath, &a.ContentHash, &a.SizeBytes,
			&a.OwningPageURL, &a.ExtractedTextPath); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AllFAQItems returns every FAQ item ordered by id, for export.
func (s *Store) AllFAQItems() ([]FAQItem, error) {
	rows, err := s.db.Query(`
		SELECT document_url, question_text, answer_text, answer_mode
		FROM faq_items ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("all faq items: %w", err)
	}
	defer rows.Close()

	var out []FAQItem
	for rows.Next() {
		var f FAQItem
		if err := rows.Scan(&f.DocumentURL, &f.Question, &f.Answer, &f.AnswerMode); err != nil {
			return nil, fmt.Errorf("scan faq item: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
