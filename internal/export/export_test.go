package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kestrelweb/sitecrawler/internal/registry"
)

func TestRunWritesAllFourFiles(t *testing.T) {
	s, err := registry.Open(filepath.Join(t.TempDir(), "crawl.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, err := s.UpsertFrontier("https://example.com/", "", 0, registry.LineageFAQ); err != nil {
		t.Fatal(err)
	}
	entry, err := s.ClaimNext("worker-1")
	if err != nil || entry == nil {
		t.Fatalf("ClaimNext: %v, %v", entry, err)
	}
	if err := s.Complete(entry.ID, registry.PageCompletion{Status: registry.StatusOK, HTTPStatus: 200}); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordEdges([]registry.LinkEdge{{FromURL: "https://example.com/", ToURL: "https://example.com/a"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordAsset(registry.Asset{URL: "https://example.com/f.pdf", Kind: "PDF", LocalPath: "pdf/x.pdf", OwningPageURL: "https://example.com/"}); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordFAQ([]registry.FAQItem{{DocumentURL: "https://example.com/", Question: "Q", Answer: "A", AnswerMode: "DIRECT_TEXT"}}); err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(t.TempDir(), "export")
	res, err := Run(s, dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Pages != 1 || res.Edges != 1 || res.Assets != 1 || res.FAQItems != 1 {
		t.Fatalf("unexpected counts: %+v", res)
	}

	for _, name := range []string{"pages.jsonl", "faq_items.jsonl", "edges.csv", "assets.csv"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s to exist: %v", name, err)
		}
	}

	n, err := RunFAQSearch(s, dir, "Q", 10)
	if err != nil {
		t.Fatalf("RunFAQSearch: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 faq search match, got %d", n)
	}
	if _, err := os.Stat(filepath.Join(dir, "faq_search.jsonl")); err != nil {
		t.Fatalf("expected faq_search.jsonl to exist: %v", err)
	}
}
