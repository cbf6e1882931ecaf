package extractor

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rohmanhakim/webcrawler/pkg/failure"
)

// JSONLDExtractor collects every application/ld+json block that parses as
// JSON. Malformed blocks are silently skipped; a page full of broken
// structured data is still a perfectly crawlable page.
type JSONLDExtractor struct{}

func (JSONLDExtractor) Name() string {
	return "JSONLDExtractor"
}

func (JSONLDExtractor) Extract(doc *goquery.Document, pageURL url.URL) (map[string]any, failure.ClassifiedError) {
	var blocks []any

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return
		}
		var parsed any
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return
		}
		blocks = append(blocks, parsed)
	})

	if len(blocks) == 0 {
		return map[string]any{}, nil
	}
	return map[string]any{MetaKeyJSONLD: blocks}, nil
}
