package storage

import (
	"sort"
	"sync"

	"github.com/rohmanhakim/webcrawler/pkg/failure"
)

// MemoryStorage keeps records in a process-local map. It backs tests and
// single-run callers who only read results through GetAll.
type MemoryStorage struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]Record),
	}
}

func (s *MemoryStorage) Save(record Record) failure.ClassifiedError {
	stampContentHash(&record)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.URL] = record
	return nil
}

func (s *MemoryStorage) Get(url string) (Record, bool, failure.ClassifiedError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.records[url]
	return record, exists, nil
}

func (s *MemoryStorage) GetAll() ([]Record, failure.ClassifiedError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedRecords(s.records), nil
}

func (s *MemoryStorage) Count() (int, failure.ClassifiedError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records), nil
}

func (s *MemoryStorage) Clear() failure.ClassifiedError {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]Record)
	return nil
}

func (s *MemoryStorage) Close() failure.ClassifiedError {
	return nil
}

// sortedRecords enumerates a record map in crawl order, URL breaking ties,
// so GetAll is stable across calls.
func sortedRecords(records map[string]Record) []Record {
	all := make([]Record, 0, len(records))
	for _, record := range records {
		all = append(all, record)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CrawledAt.Equal(all[j].CrawledAt) {
			return all[i].CrawledAt.Before(all[j].CrawledAt)
		}
		return all[i].URL < all[j].URL
	})
	return all
}
