package extractor

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/rohmanhakim/webcrawler/internal/metadata"
	"github.com/rohmanhakim/webcrawler/pkg/failure"
)

/*
Responsibilities

- Parse fetched HTML into a DOM once
- Derive the page title and a whitespace-collapsed plain-text body
- Run the metadata extractor chain and merge its contributions

A failing metadata extractor contributes nothing and never aborts the
parse; the failure is recorded through the metadata sink.
*/

// MetadataExtractor is the plugin contract for metadata extraction. Each
// extractor reads the parsed document and returns key/value pairs to merge
// into the page's metadata map. Later extractors may overwrite earlier keys.
type MetadataExtractor interface {
	Name() string
	Extract(doc *goquery.Document, pageURL url.URL) (map[string]any, failure.ClassifiedError)
}

// Extractor is the parse boundary the worker calls.
type Extractor interface {
	Extract(pageURL url.URL, body string) (ExtractionResult, failure.ClassifiedError)
}

// Elements whose text never belongs to the page body.
var strippedElements = []string{"script", "style", "noscript", "iframe", "nav", "footer", "header"}

type DomExtractor struct {
	metadataSink metadata.MetadataSink
	extractors   []MetadataExtractor
}

// NewDomExtractor builds an extractor with the built-in metadata chain:
// meta tags, Open Graph, JSON-LD, headings.
func NewDomExtractor(metadataSink metadata.MetadataSink) DomExtractor {
	return NewDomExtractorWithChain(
		metadataSink,
		MetaTagExtractor{},
		OpenGraphExtractor{},
		JSONLDExtractor{},
		HeadingsExtractor{},
	)
}

// NewDomExtractorWithChain builds an extractor with a caller-supplied chain,
// run in order.
func NewDomExtractorWithChain(metadataSink metadata.MetadataSink, extractors ...MetadataExtractor) DomExtractor {
	return DomExtractor{
		metadataSink: metadataSink,
		extractors:   extractors,
	}
}

func (d *DomExtractor) Extract(pageURL url.URL, body string) (ExtractionResult, failure.ClassifiedError) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		parseErr := &ExtractorError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseParseFailure,
		}
		d.metadataSink.RecordError(
			time.Now(),
			"extractor",
			"DomExtractor.Extract",
			mapExtractorErrorToMetadataCause(parseErr),
			parseErr.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, pageURL.String()),
			},
		)
		return ExtractionResult{}, parseErr
	}

	// Metadata runs against the intact document, before any stripping.
	meta := d.runExtractorChain(doc, pageURL)

	title := extractTitle(doc)
	text := extractText(doc)

	return ExtractionResult{
		title:    title,
		text:     text,
		metadata: meta,
	}, nil
}

func (d *DomExtractor) runExtractorChain(doc *goquery.Document, pageURL url.URL) map[string]any {
	merged := make(map[string]any)
	for _, ext := range d.extractors {
		contribution, err := ext.Extract(doc, pageURL)
		if err != nil {
			d.metadataSink.RecordError(
				time.Now(),
				"extractor",
				ext.Name(),
				metadata.CauseContentInvalid,
				err.Error(),
				[]metadata.Attribute{
					metadata.NewAttr(metadata.AttrURL, pageURL.String()),
				},
			)
			continue
		}
		for key, value := range contribution {
			merged[key] = value
		}
	}
	return merged
}

// extractTitle prefers <title>, falling back to the first <h1>.
func extractTitle(doc *goquery.Document) string {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// extractText strips non-content elements and comments, then joins the
// remaining text nodes with single spaces.
func extractText(doc *goquery.Document) string {
	cleaned := doc.Clone()
	cleaned.Find(strings.Join(strippedElements, ",")).Remove()

	var parts []string
	for _, root := range cleaned.Nodes {
		collectTextNodes(root, &parts)
	}

	return collapseWhitespace(strings.Join(parts, " "))
}

func collectTextNodes(node *html.Node, parts *[]string) {
	if node.Type == html.CommentNode {
		return
	}
	if node.Type == html.TextNode {
		if trimmed := strings.TrimSpace(node.Data); trimmed != "" {
			*parts = append(*parts, trimmed)
		}
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		collectTextNodes(child, parts)
	}
}

// collapseWhitespace reduces every run of whitespace to one space.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
