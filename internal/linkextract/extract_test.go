package linkextract

import (
	"testing"

	"github.com/kestrelweb/sitecrawler/internal/registry"
)

func TestExtractMetadataAndLinks(t *testing.T) {
	e, err := New("https://example.com/page", nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	htmlDoc := []byte(`<html><head>
<title> My Page </title>
<meta name="description" content="a page">
<meta name="robots" content="noindex">
<link rel="canonical" href="/page/">
</head><body>
<a href="/faq/how-to">FAQ</a>
<a href="https://other.com/x">external</a>
<a href="#section">skip</a>
<a href="javascript:void(0)">skip</a>
<iframe src="https://player.example.com/embed/1"></iframe>
</body></html>`)

	result, err := e.Extract(htmlDoc)
	if err != nil {
		t.Fatal(err)
	}

	if result.Title != "My Page" {
		t.Errorf("expected trimmed title, got %q", result.Title)
	}
	if result.MetaDesc != "a page" {
		t.Errorf("unexpected meta desc: %q", result.MetaDesc)
	}
	if result.MetaRobots != "noindex" {
		t.Errorf("unexpected meta robots: %q", result.MetaRobots)
	}
	if result.CanonicalURL != "https://example.com/page/" {
		t.Errorf("unexpected canonical: %q", result.CanonicalURL)
	}
	if result.ContentHash == "" {
		t.Error("expected a content hash")
	}

	var nav, external, media int
	for _, l := range result.Links {
		if l.IsMedia {
			media++
			continue
		}
		if l.IsExternal {
			external++
		} else {
			nav++
		}
	}
	if nav != 1 {
		t.Errorf("expected 1 internal nav link, got %d", nav)
	}
	if external != 1 {
		t.Errorf("expected 1 external link, got %d", external)
	}
	if media != 1 {
		t.Errorf("expected 1 media (iframe) link, got %d", media)
	}
}

func TestExtractSkipsFragmentAndScriptSchemes(t *testing.T) {
	e, err := New("https://example.com/", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	result, err := e.Extract([]byte(`<a href="#top">a</a><a href="mailto:x@example.com">b</a><a href="tel:+1555">c</a>`))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Links) != 0 {
		t.Errorf("expected no navigable links, got %v", result.Links)
	}
}

func TestExtractAppliesConfiguredStripParams(t *testing.T) {
	e, err := New("https://example.com/", nil, []string{"session_id"})
	if err != nil {
		t.Fatal(err)
	}
	result, err := e.Extract([]byte(`<a href="/a?session_id=abc&keep=1">a</a>`))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Links) != 1 {
		t.Fatalf("expected 1 link, got %v", result.Links)
	}
	if result.Links[0].URL != "https://example.com/a?keep=1" {
		t.Errorf("expected configured param stripped, got %q", result.Links[0].URL)
	}
}

func TestClassifyLineageAbsorbsFAQSource(t *testing.T) {
	link := Link{URL: "https://example.com/general/page", AnchorText: "click here"}
	got := ClassifyLineage(link, registry.LineageFAQ, []string{"faq"})
	if got != registry.LineageFAQ {
		t.Errorf("expected FAQ lineage to absorb, got %s", got)
	}
}

func TestClassifyLineagePromotesOnIndicatorMatch(t *testing.T) {
	link := Link{URL: "https://example.com/help-center/topic", AnchorText: "read more"}
	got := ClassifyLineage(link, registry.LineageGeneral, []string{"help-center"})
	if got != registry.LineageFAQ {
		t.Errorf("expected promotion to FAQ via indicator match, got %s", got)
	}
}

func TestClassifyLineageDefaultsGeneral(t *testing.T) {
	link := Link{URL: "https://example.com/about", AnchorText: "About us"}
	got := ClassifyLineage(link, registry.LineageGeneral, []string{"faq"})
	if got != registry.LineageGeneral {
		t.Errorf("expected GENERAL lineage, got %s", got)
	}
}
