package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rohmanhakim/webcrawler/pkg/failure"
)

// HeadingsExtractor maps each heading level present in the document to its
// texts, in document order. Absent levels get no entry.
type HeadingsExtractor struct{}

func (HeadingsExtractor) Name() string {
	return "HeadingsExtractor"
}

func (HeadingsExtractor) Extract(doc *goquery.Document, pageURL url.URL) (map[string]any, failure.ClassifiedError) {
	levels := []string{"h1", "h2", "h3", "h4", "h5", "h6"}
	headings := make(map[string][]string)

	for _, level := range levels {
		doc.Find(level).Each(func(_ int, sel *goquery.Selection) {
			if text := strings.TrimSpace(sel.Text()); text != "" {
				headings[level] = append(headings[level], text)
			}
		})
	}

	if len(headings) == 0 {
		return map[string]any{}, nil
	}
	return map[string]any{MetaKeyHeadings: headings}, nil
}
