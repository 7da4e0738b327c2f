// Package linkextract walks a parsed HTML document to pull out page
// metadata and outbound links, tagging each link with the lineage it
// should carry into the frontier.
package linkextract

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/kestrelweb/sitecrawler/internal/registry"
	"github.com/kestrelweb/sitecrawler/internal/urlnorm"
)

// Link is one outbound reference discovered on a page.
type Link struct {
	URL          string
	AnchorText   string
	RelAttribute string
	IsExternal   bool
	IsMedia      bool
}

// Result is everything extracted from one HTML document.
type Result struct {
	Title        string
	MetaDesc     string
	MetaRobots   string
	CanonicalURL string
	ContentHash  string
	Links        []Link
}

// Extractor walks HTML relative to one page's URL.
type Extractor struct {
	pageURL       string
	host          string
	faqIndicators []string
	stripParams   []string
}

// New builds an Extractor for links discovered on pageURL. stripParams
// is the crawl's configured strip_query_params deny-list, applied to
// every link URL on top of Normalize's built-in tracking-param strip.
func New(pageURL string, faqIndicators, stripParams []string) (*Extractor, error) {
	host := urlnorm.Host(pageURL)
	if host == "" {
		return nil, fmt.Errorf("cannot determine host of %q", pageURL)
	}
	return &Extractor{pageURL: pageURL, host: host, faqIndicators: faqIndicators, stripParams: stripParams}, nil
}

// Extract parses htmlContent and returns its metadata and links. Links
// are normalized and resolved relative to the extractor's page URL, but
// scope filtering is the caller's job (urlnorm.InScope), since scope
// depends on crawl-wide configuration this package does not hold.
func (e *Extractor) Extract(htmlContent []byte) (*Result, error) {
	doc, err := html.Parse(strings.NewReader(string(htmlContent)))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	result := &Result{}
	e.walk(doc, result)

	sum := sha256.Sum256(htmlContent)
	result.ContentHash = fmt.Sprintf("%x", sum)

	return result, nil
}

func (e *Extractor) walk(n *html.Node, result *Result) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "title":
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				result.Title = strings.TrimSpace(n.FirstChild.Data)
			}
		case "meta":
			e.parseMeta(n, result)
		case "link":
			e.parseLinkTag(n, result)
		case "a":
			e.parseAnchor(n, result)
		case "iframe":
			e.parseIframe(n, result)
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		e.walk(c, result)
	}
}

func (e *Extractor) parseMeta(n *html.Node, result *Result) {
	var name, content string
	for _, a := range n.Attr {
		switch a.Key {
		case "name":
			name = strings.ToLower(a.Val)
		case "content":
			content = a.Val
		}
	}
	switch name {
	case "description":
		result.MetaDesc = content
	case "robots":
		result.MetaRobots = content
	}
}

func (e *Extractor) parseLinkTag(n *html.Node, result *Result) {
	var rel, href string
	for _, a := range n.Attr {
		switch a.Key {
		case "rel":
			rel = strings.ToLower(a.Val)
		case "href":
			href = a.Val
		}
	}
	if rel != "canonical" || href == "" {
		return
	}
	if abs, err := urlnorm.NormalizeStripped(href, e.pageURL, e.stripParams); err == nil {
		result.CanonicalURL = abs
	}
}

func (e *Extractor) parseAnchor(n *html.Node, result *Result) {
	var href, rel string
	for _, a := range n.Attr {
		switch a.Key {
		case "href":
			href = a.Val
		case "rel":
			rel = a.Val
		}
	}

	if href == "" || strings.HasPrefix(href, "#") || isNonNavigableScheme(href) {
		return
	}

	abs, err := urlnorm.NormalizeStripped(href, e.pageURL, e.stripParams)
	if err != nil {
		return
	}

	result.Links = append(result.Links, Link{
		URL:          abs,
		AnchorText:   strings.TrimSpace(e.extractText(n)),
		RelAttribute: rel,
		IsExternal:   urlnorm.Host(abs) != e.host,
	})
}

// parseIframe tags embedded video/media players as media links so the
// engine can route them to RecordAsset instead of the frontier.
func (e *Extractor) parseIframe(n *html.Node, result *Result) {
	var src string
	for _, a := range n.Attr {
		if a.Key == "src" {
			src = a.Val
		}
	}
	if src == "" {
		return
	}
	abs, err := urlnorm.NormalizeStripped(src, e.pageURL, e.stripParams)
	if err != nil {
		return
	}
	result.Links = append(result.Links, Link{
		URL:        abs,
		IsExternal: urlnorm.Host(abs) != e.host,
		IsMedia:    true,
	})
}

func (e *Extractor) extractText(n *html.Node) string {
	if n.Type == html.TextNode {
		return strings.TrimSpace(n.Data)
	}
	var parts []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := e.extractText(c); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func isNonNavigableScheme(href string) bool {
	for _, scheme := range []string{"javascript:", "mailto:", "tel:"} {
		if strings.HasPrefix(href, scheme) {
			return true
		}
	}
	return false
}

// ClassifyLineage decides the lineage a discovered link should carry
// into the frontier: a link found on an FAQ-lineage page stays FAQ
// (absorbing), otherwise it is promoted to FAQ only if the link's own
// URL or anchor text matches an indicator.
func ClassifyLineage(link Link, sourceLineage string, faqIndicators []string) string {
	if sourceLineage == registry.LineageFAQ {
		return registry.LineageFAQ
	}
	target := strings.ToLower(link.URL + " " + link.AnchorText)
	for _, ind := range faqIndicators {
		if ind != "" && strings.Contains(target, strings.ToLower(ind)) {
			return registry.LineageFAQ
		}
	}
	return registry.LineageGeneral
}
