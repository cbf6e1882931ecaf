package links

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/rohmanhakim/webcrawler/internal/metadata"
	"github.com/rohmanhakim/webcrawler/pkg/failure"
	"github.com/rohmanhakim/webcrawler/pkg/urlutil"
)

/*
Responsibilities

- Walk every anchor of a fetched page
- Resolve hrefs against the page URL
- Normalize, filter by domain policy and exclusion patterns
- Deduplicate within the page, preserving first-seen order

The extractor returns URL strings only; admission into the frontier stays
with the scheduler.
*/

// hrefSchemesSkipped are anchor targets that can never become crawl requests.
var hrefSchemesSkipped = []string{"javascript:", "mailto:", "tel:"}

type LinkExtractor struct {
	metadataSink metadata.MetadataSink
	policy       Policy
}

func NewLinkExtractor(metadataSink metadata.MetadataSink, policy Policy) LinkExtractor {
	return LinkExtractor{
		metadataSink: metadataSink,
		policy:       policy,
	}
}

// Extract returns the ordered, deduplicated list of admissible outbound
// links found in body, resolved against base.
func (l *LinkExtractor) Extract(base url.URL, body string) ([]string, failure.ClassifiedError) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		parseErr := &LinkError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseParseFailure,
		}
		l.metadataSink.RecordError(
			time.Now(),
			"links",
			"LinkExtractor.Extract",
			metadata.CauseContentInvalid,
			parseErr.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, base.String()),
			},
		)
		return nil, parseErr
	}

	seen := make(map[string]struct{})
	var ordered []string

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if skipHref(href) {
			return
		}

		resolved, err := base.Parse(href)
		if err != nil {
			return
		}

		normalized := urlutil.Normalize(*resolved)
		if normalized.Scheme != "http" && normalized.Scheme != "https" {
			return
		}
		if normalized.Host == "" {
			return
		}
		if !l.policy.Admits(normalized, base) {
			return
		}

		link := normalized.String()
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		ordered = append(ordered, link)
	})

	return ordered, nil
}

func skipHref(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return true
	}
	lowered := strings.ToLower(href)
	for _, scheme := range hrefSchemesSkipped {
		if strings.HasPrefix(lowered, scheme) {
			return true
		}
	}
	return false
}
