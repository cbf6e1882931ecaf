package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rohmanhakim/webcrawler/pkg/failure"
)

// MetaTagExtractor contributes description, keywords, canonical_url, and
// language from the document head.
type MetaTagExtractor struct{}

func (MetaTagExtractor) Name() string {
	return "MetaTagExtractor"
}

func (MetaTagExtractor) Extract(doc *goquery.Document, pageURL url.URL) (map[string]any, failure.ClassifiedError) {
	meta := make(map[string]any)

	if description, ok := metaContent(doc, "description"); ok {
		meta[MetaKeyDescription] = description
	}

	if keywords, ok := metaContent(doc, "keywords"); ok {
		var cleaned []string
		for _, keyword := range strings.Split(keywords, ",") {
			if trimmed := strings.TrimSpace(keyword); trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			meta[MetaKeyKeywords] = cleaned
		}
	}

	if canonical, exists := doc.Find(`link[rel="canonical"]`).First().Attr("href"); exists {
		if trimmed := strings.TrimSpace(canonical); trimmed != "" {
			meta[MetaKeyCanonicalURL] = trimmed
		}
	}

	if lang, exists := doc.Find("html").First().Attr("lang"); exists {
		if trimmed := strings.TrimSpace(lang); trimmed != "" {
			meta[MetaKeyLanguage] = trimmed
		}
	}

	return meta, nil
}

func metaContent(doc *goquery.Document, name string) (string, bool) {
	content, exists := doc.Find(`meta[name="` + name + `"]`).First().Attr("content")
	if !exists {
		return "", false
	}
	trimmed := strings.TrimSpace(content)
	return trimmed, trimmed != ""
}
