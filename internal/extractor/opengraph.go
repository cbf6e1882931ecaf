package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rohmanhakim/webcrawler/pkg/failure"
)

// OpenGraphExtractor collects og:* properties into a suffix→content map
// stored under the open_graph key.
type OpenGraphExtractor struct{}

func (OpenGraphExtractor) Name() string {
	return "OpenGraphExtractor"
}

func (OpenGraphExtractor) Extract(doc *goquery.Document, pageURL url.URL) (map[string]any, failure.ClassifiedError) {
	properties := make(map[string]string)

	doc.Find(`meta[property^="og:"]`).Each(func(_ int, sel *goquery.Selection) {
		property, _ := sel.Attr("property")
		content, _ := sel.Attr("content")

		suffix := strings.TrimPrefix(property, "og:")
		if suffix == "" || content == "" {
			return
		}
		// first declaration wins, matching document order
		if _, seen := properties[suffix]; !seen {
			properties[suffix] = content
		}
	})

	if len(properties) == 0 {
		return map[string]any{}, nil
	}
	return map[string]any{MetaKeyOpenGraph: properties}, nil
}
