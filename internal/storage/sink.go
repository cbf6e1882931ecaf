package storage

import (
	"github.com/rohmanhakim/webcrawler/pkg/failure"
	"github.com/rohmanhakim/webcrawler/pkg/hashutil"
)

/*
Responsibilities
- Persist crawl records, keyed by URL
- Upsert semantics: a second save for a URL replaces the first
- Enumerate and count what has been persisted

Output Characteristics
- Idempotent writes
- Overwrite-safe reruns
- The file backend survives process restart: prior records are reloaded
  on construction
*/

// Storage is the persistence boundary of the crawl. Implementations must
// serialize concurrent upserts of the same URL so the latest write wins.
type Storage interface {
	Save(record Record) failure.ClassifiedError
	Get(url string) (Record, bool, failure.ClassifiedError)
	GetAll() ([]Record, failure.ClassifiedError)
	Count() (int, failure.ClassifiedError)
	Clear() failure.ClassifiedError
	Close() failure.ClassifiedError
}

// stampContentHash fills the record's content hash from its extracted text
// when the caller has not set one. The hash gives reruns a cheap way to see
// whether a page's content changed between crawls.
func stampContentHash(record *Record) {
	if record.ContentHash != "" || record.Text == "" {
		return
	}
	hash, err := hashutil.HashBytes([]byte(record.Text), hashutil.HashAlgoBLAKE3)
	if err != nil {
		return
	}
	record.ContentHash = hash
}
