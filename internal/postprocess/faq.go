package postprocess

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// FAQProcessor extracts question/answer pairs from structural HTML
// patterns. It intentionally recognizes only generic markup —
// <details>/<summary> and <dl>/<dt>/<dd> — and not any single
// customer's bespoke CSS classes.
type FAQProcessor struct{}

// NewFAQProcessor builds the default FAQ extractor.
func NewFAQProcessor() *FAQProcessor { return &FAQProcessor{} }

func (p *FAQProcessor) Kind() string { return "faq" }

func (p *FAQProcessor) Accept(meta ContentMeta) bool {
	return meta.Lineage == "FAQ" && strings.Contains(strings.ToLower(meta.ContentType), "html")
}

type candidate struct {
	question   string
	answerText string
	answerHTML string
}

func (p *FAQProcessor) Process(htmlContent []byte, page PageRef) (Produced, error) {
	doc, err := html.Parse(bytes.NewReader(htmlContent))
	if err != nil {
		return Produced{}, fmt.Errorf("parse html for faq extraction: %w", err)
	}

	candidates := findDetailsSummary(doc)
	if len(candidates) == 0 {
		candidates = findDefinitionLists(doc)
	}

	items := make([]FAQItem, 0, len(candidates))
	for _, c := range candidates {
		if c.question == "" || c.answerText == "" {
			continue
		}
		items = append(items, FAQItem{
			Question:   c.question,
			Answer:     c.answerText,
			AnswerMode: determineAnswerMode(c.answerText, c.answerHTML),
		})
	}

	return Produced{FAQItems: items}, nil
}

// findDetailsSummary implements the <details>/<summary> strategy: the
// summary text is the question, everything else inside details is the
// answer.
func findDetailsSummary(doc *html.Node) []candidate {
	var out []candidate
	forEachElement(doc, "details", func(details *html.Node) {
		summary := firstChildElement(details, "summary")
		if summary == nil {
			return
		}
		question := strings.TrimSpace(textContent(summary))

		var answerBuf bytes.Buffer
		for c := details.FirstChild; c != nil; c = c.NextSibling {
			if c == summary {
				continue
			}
			_ = html.Render(&answerBuf, c)
		}
		answerHTML := answerBuf.String()
		answerText := strings.TrimSpace(textContentExcluding(details, summary))

		if question != "" && answerText != "" {
			out = append(out, candidate{question: question, answerText: answerText, answerHTML: answerHTML})
		}
	})
	return out
}

// findDefinitionLists implements the <dl>/<dt>/<dd> strategy: each dt
// paired with its immediately following dd sibling.
func findDefinitionLists(doc *html.Node) []candidate {
	var out []candidate
	forEachElement(doc, "dl", func(dl *html.Node) {
		for c := dl.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode || c.Data != "dt" {
				continue
			}
			dd := nextSiblingElement(c, "dd")
			if dd == nil {
				continue
			}
			question := strings.TrimSpace(textContent(c))
			answerText := strings.TrimSpace(textContent(dd))
			var buf bytes.Buffer
			for gc := dd.FirstChild; gc != nil; gc = gc.NextSibling {
				_ = html.Render(&buf, gc)
			}
			if question != "" && answerText != "" {
				out = append(out, candidate{question: question, answerText: answerText, answerHTML: buf.String()})
			}
		}
	})
	return out
}

var phonePattern = regexp.MustCompile(`(\+\d{1,2}\s)?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}`)

// determineAnswerMode ports the original extractor's priority order:
// portal redirect > pdf attachment > video reference > phone escalation
// > outbound link > direct text.
func determineAnswerMode(text, answerHTML string) string {
	lowerHTML := strings.ToLower(answerHTML)

	var hasLink, hasPDF, hasPortal bool
	forEachElement(mustParseFragment(answerHTML), "a", func(a *html.Node) {
		hasLink = true
		href := strings.ToLower(attrValue(a, "href"))
		if strings.HasSuffix(href, ".pdf") {
			hasPDF = true
		}
		if strings.Contains(href, "login") || strings.Contains(href, "account") {
			hasPortal = true
		}
	})

	switch {
	case hasPortal:
		return AnswerPortalRedirect
	case hasPDF:
		return AnswerPDFAttachment
	case strings.Contains(lowerHTML, "video") || strings.Contains(lowerHTML, "transcript"):
		return AnswerVideo
	case phonePattern.MatchString(text):
		return AnswerPhoneEscalation
	case hasLink:
		return AnswerLinkOut
	default:
		return AnswerDirectText
	}
}

func mustParseFragment(fragment string) *html.Node {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return &html.Node{Type: html.DocumentNode}
	}
	return doc
}

func forEachElement(n *html.Node, tag string, fn func(*html.Node)) {
	if n == nil {
		return
	}
	if n.Type == html.ElementNode && n.Data == tag {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		forEachElement(c, tag, fn)
	}
}

func firstChildElement(n *html.Node, tag string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return c
		}
	}
	return nil
}

func nextSiblingElement(n *html.Node, tag string) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			if s.Data == tag {
				return s
			}
			return nil
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var parts []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := textContent(c); strings.TrimSpace(t) != "" {
			parts = append(parts, strings.TrimSpace(t))
		}
	}
	return strings.Join(parts, " ")
}

func textContentExcluding(n, exclude *html.Node) string {
	var parts []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c == exclude {
			continue
		}
		if t := textContent(c); strings.TrimSpace(t) != "" {
			parts = append(parts, strings.TrimSpace(t))
		}
	}
	return strings.Join(parts, " ")
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
