// Package export writes registry contents to the configured export
// directory as JSONL (pages, FAQ items) and CSV (link edges, assets),
// per spec.md §6's "emits JSONL/CSV from the registry" contract.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kestrelweb/sitecrawler/internal/registry"
)

// Source is the subset of registry.Store export needs.
type Source interface {
	AllPages() ([]registry.PageRecord, error)
	AllEdges() ([]registry.LinkEdge, error)
	AllAssets() ([]registry.Asset, error)
	AllFAQItems() ([]registry.FAQItem, error)
	SearchFAQ(query string, limit int) ([]registry.FAQItem, error)
}

// Result reports how many rows landed in each output file.
type Result struct {
	Pages int
	Edges int
	Assets int
	FAQItems int
}

// Run writes pages.jsonl, faq_items.jsonl, edges.csv, and assets.csv
// into dir, creating it if necessary. Output is deterministic given a
// stable registry (pages, edges and FAQ items are read in insertion
// order, assets in URL order), so successive
// exports of an unchanged registry are byte-identical modulo the
// timestamp-free schema already in use.
func Run(src Source, dir string) (Result, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create export dir: %w", err)
	}

	var res Result

	pages, err := src.AllPages()
	if err != nil {
		return Result{}, fmt.Errorf("read pages: %w", err)
	}
	if err := writeJSONL(filepath.Join(dir, "pages.jsonl"), pages); err != nil {
		return Result{}, err
	}
	res.Pages = len(pages)

	faqs, err := src.AllFAQItems()
	if err != nil {
		return Result{}, fmt.Errorf("read faq items: %w", err)
	}
	if err := writeJSONL(filepath.Join(dir, "faq_items.jsonl"), faqs); err != nil {
		return Result{}, err
	}
	res.FAQItems = len(faqs)

	edges, err := src.AllEdges()
	if err != nil {
		return Result{}, fmt.Errorf("read edges: %w", err)
	}
	if err := writeEdgesCSV(filepath.Join(dir, "edges.csv"), edges); err != nil {
		return Result{}, err
	}
	res.Edges = len(edges)

	assets, err := src.AllAssets()
	if err != nil {
		return Result{}, fmt.Errorf("read assets: %w", err)
	}
	if err := writeAssetsCSV(filepath.Join(dir, "assets.csv"), assets); err != nil {
		return Result{}, err
	}
	res.Assets = len(assets)

	return res, nil
}

// RunFAQSearch writes the FTS5-ranked results of query to
// faq_search.jsonl in dir and returns the match count. It is a
// separate, opt-in step from Run since a search query is only
// meaningful when the operator supplies one.
func RunFAQSearch(src Source, dir, query string, limit int) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create export dir: %w", err)
	}
	matches, err := src.SearchFAQ(query, limit)
	if err != nil {
		return 0, fmt.Errorf("search faq: %w", err)
	}
	if err := writeJSONL(filepath.Join(dir, "faq_search.jsonl"), matches); err != nil {
		return 0, err
	}
	return len(matches), nil
}

func writeJSONL[T any](path string, rows []T) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode row in %s: %w", path, err)
		}
	}
	return nil
}

func writeEdgesCSV(path string, edges []registry.LinkEdge) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"from_url", "to_url", "anchor_text", "is_external", "discovered_depth"}); err != nil {
		return err
	}
	for _, e := range edges {
		if err := w.Write([]string{
			e.FromURL, e.ToURL, e.AnchorText,
			strconv.FormatBool(e.IsExternal),
			strconv.Itoa(e.DiscoveredDepth),
		}); err != nil {
			return err
		}
	}
	return w.Error()
}

func writeAssetsCSV(path string, assets []registry.Asset) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"url", "kind", "local_path", "content_hash", "size_bytes", "owning_page_url", "extracted_text_path"}); err != nil {
		return err
	}
	for _, a := range assets {
		if err := w.Write([]string{
			a.URL, a.Kind, a.LocalPath, a.ContentHash,
			strconv.FormatInt(a.SizeBytes, 10),
			a.OwningPageURL, a.ExtractedTextPath,
		}); err != nil {
			return err
		}
	}
	return w.Error()
}
