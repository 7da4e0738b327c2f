package sitemap

import (
	"context"
	"testing"
)

type fakeFetcher struct {
	pages map[string]string
}

func (f *fakeFetcher) Get(ctx context.Context, url string) ([]byte, error) {
	return []byte(f.pages[url]), nil
}

func TestExpandFlatURLSet(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/sitemap.xml": `<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/a</loc></url>
  <url><loc>https://example.com/faq/b</loc></url>
</urlset>`,
	}}

	exp := New(fetcher, []string{"faq"}, nil)
	entries, err := exp.Expand(context.Background(), "https://example.com/sitemap.xml")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Lineage != General {
		t.Errorf("expected /a to be GENERAL, got %s", entries[0].Lineage)
	}
	if entries[1].Lineage != FAQ {
		t.Errorf("expected /faq/b to be FAQ, got %s", entries[1].Lineage)
	}
}

func TestExpandSitemapIndexWithCycle(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/index.xml": `<?xml version="1.0"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://example.com/sub1.xml</loc></sitemap>
  <sitemap><loc>https://example.com/sub2.xml</loc></sitemap>
</sitemapindex>`,
		"https://example.com/sub1.xml": `<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/one</loc></url>
</urlset>`,
		// sub2 points back at the parent index — must not infinite-loop.
		"https://example.com/sub2.xml": `<?xml version="1.0"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://example.com/index.xml</loc></sitemap>
  <sitemap><loc>https://example.com/sub3.xml</loc></sitemap>
</sitemapindex>`,
		"https://example.com/sub3.xml": `<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/two</loc></url>
</urlset>`,
	}}

	exp := New(fetcher, nil, nil)
	entries, err := exp.Expand(context.Background(), "https://example.com/index.xml")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 unique leaf entries, got %d: %v", len(entries), entries)
	}
}

func TestExpandMalformedSitemapTreatedAsEmpty(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/bad.xml": `not xml at all <<<`,
	}}

	exp := New(fetcher, nil, nil)
	entries, err := exp.Expand(context.Background(), "https://example.com/bad.xml")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected 0 entries for malformed sitemap, got %d", len(entries))
	}
}

func TestExpandDropsExcludedSections(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/sitemap.xml": `<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/legal/terms</loc></url>
  <url><loc>https://example.com/a</loc></url>
</urlset>`,
	}}

	exp := New(fetcher, nil, []string{"/legal/"})
	entries, err := exp.Expand(context.Background(), "https://example.com/sitemap.xml")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].URL != "https://example.com/a" {
		t.Errorf("expected only /a to survive, got %v", entries)
	}
}
