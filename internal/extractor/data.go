package extractor

// ExtractionResult is the parsed view of one fetched page: its title, its
// whitespace-collapsed plain text, and whatever the metadata extractors
// contributed.
type ExtractionResult struct {
	title    string
	text     string
	metadata map[string]any
}

func NewExtractionResult(title, text string, metadata map[string]any) ExtractionResult {
	return ExtractionResult{
		title:    title,
		text:     text,
		metadata: metadata,
	}
}

func (e *ExtractionResult) Title() string {
	return e.title
}

func (e *ExtractionResult) Text() string {
	return e.text
}

func (e *ExtractionResult) Metadata() map[string]any {
	return e.metadata
}

// Metadata keys claimed by the built-in extractors. The built-ins choose
// disjoint keys; third-party extractors that reuse one overwrite it.
const (
	MetaKeyDescription  = "description"
	MetaKeyKeywords     = "keywords"
	MetaKeyCanonicalURL = "canonical_url"
	MetaKeyLanguage     = "language"
	MetaKeyOpenGraph    = "open_graph"
	MetaKeyJSONLD       = "json_ld"
	MetaKeyHeadings     = "headings"
)
