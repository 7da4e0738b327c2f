// Package postprocess turns a fetched HTML artifact into derived
// outputs — Markdown, extracted FAQ items, and (via interfaces only)
// PDF text and transcripts.
package postprocess

// ContentMeta is the subset of a Page's metadata a Processor needs to
// decide whether it applies.
type ContentMeta struct {
	ContentType string
	Lineage     string
}

// PageRef identifies the source page a Produced artifact belongs to.
type PageRef struct {
	URL string
}

// Produced is what a Processor writes as a side effect of Process.
type Produced struct {
	// ArtifactRelPath is the postprocessor's own output artifact,
	// relative to the artifact store root (e.g. "md/<hash>.md").
	ArtifactRelPath string
	// FAQItems is populated only by the FAQ processor.
	FAQItems []FAQItem
}

// FAQItem is one question/answer pair extracted from a page.
type FAQItem struct {
	Question   string
	Answer     string
	AnswerMode string
}

// Processor turns one fetched HTML document into a derived artifact.
// A postprocessing failure never demotes the page's own fetch status
// (spec.md §4.H); the engine records it as an annotation instead.
type Processor interface {
	Kind() string
	Accept(meta ContentMeta) bool
	Process(htmlContent []byte, page PageRef) (Produced, error)
}

// answerMode values, ported from the original extractor's priority
// order: portal > pdf > video > phone > link > direct-text.
const (
	AnswerPortalRedirect = "PORTAL_REDIRECT"
	AnswerPDFAttachment  = "PDF_ATTACHMENT"
	AnswerVideo          = "VIDEO"
	AnswerPhoneEscalation = "PHONE_ESCALATION"
	AnswerLinkOut        = "LINK_OUT"
	AnswerDirectText     = "DIRECT_TEXT"
)
