package storage

import "time"

// Persistence

// Record is the persisted outcome of one crawled URL. It is the wire format
// for every backend: JSON for the results file, BSON for the document store.
type Record struct {
	URL         string            `json:"url" bson:"url"`
	StatusCode  int               `json:"status_code" bson:"status_code"`
	ContentType string            `json:"content_type" bson:"content_type"`
	HTML        string            `json:"html,omitempty" bson:"html,omitempty"`
	Text        string            `json:"text" bson:"text"`
	Title       string            `json:"title" bson:"title"`
	Links       []string          `json:"links" bson:"links"`
	Metadata    map[string]any    `json:"metadata" bson:"metadata"`
	ContentHash string            `json:"content_hash,omitempty" bson:"content_hash,omitempty"`
	CrawledAt   time.Time         `json:"crawled_at" bson:"crawled_at"`
	Depth       int               `json:"depth" bson:"depth"`
	ParentURL   string            `json:"parent_url" bson:"parent_url"`
	ElapsedTime float64           `json:"elapsed_time" bson:"elapsed_time"`
	Status      string            `json:"status" bson:"status"`
	Error       string            `json:"error" bson:"error"`
	Headers     map[string]string `json:"headers,omitempty" bson:"headers,omitempty"`
}

// resultsFileName is the single file the file backend maintains under its
// storage path.
const resultsFileName = "crawl_results.json"
