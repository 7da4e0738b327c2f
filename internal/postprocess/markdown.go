package postprocess

import (
	"bytes"
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
)

// MarkdownProcessor converts a fetched HTML document to Markdown and
// writes it under the "md" artifact bucket.
type MarkdownProcessor struct {
	writer func(content []byte) (relPath string, err error)
}

// NewMarkdownProcessor builds a MarkdownProcessor that persists its
// output through writeMD (typically fetch.ArtifactStore.Write bound to
// KindMarkdown).
func NewMarkdownProcessor(writeMD func(content []byte) (relPath string, err error)) *MarkdownProcessor {
	return &MarkdownProcessor{writer: writeMD}
}

func (p *MarkdownProcessor) Kind() string { return "markdown" }

func (p *MarkdownProcessor) Accept(meta ContentMeta) bool {
	return strings.Contains(strings.ToLower(meta.ContentType), "html")
}

func (p *MarkdownProcessor) Process(htmlContent []byte, page PageRef) (Produced, error) {
	doc, err := html.Parse(bytes.NewReader(htmlContent))
	if err != nil {
		return Produced{}, fmt.Errorf("parse html for markdown: %w", err)
	}

	md, err := htmltomarkdown.ConvertNode(doc)
	if err != nil {
		return Produced{}, fmt.Errorf("convert to markdown: %w", err)
	}

	relPath, err := p.writer(md)
	if err != nil {
		return Produced{}, fmt.Errorf("write markdown artifact for %s: %w", page.URL, err)
	}

	return Produced{ArtifactRelPath: relPath}, nil
}
