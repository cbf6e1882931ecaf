package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rohmanhakim/webcrawler/internal/metadata"
	"github.com/rohmanhakim/webcrawler/pkg/failure"
	"github.com/rohmanhakim/webcrawler/pkg/fileutil"
)

// FileStorage persists records as one JSON file, crawl_results.json, under
// its storage path. The full record map is rewritten on every save; writes
// go through a temp file and rename so a crash never leaves a torn file.
// Prior results are reloaded on construction, so reruns see them.
type FileStorage struct {
	metadataSink metadata.MetadataSink
	path         string

	mu      sync.Mutex
	records map[string]Record
}

func NewFileStorage(metadataSink metadata.MetadataSink, dir string) (*FileStorage, failure.ClassifiedError) {
	if err := fileutil.EnsureDir(dir); err != nil {
		return nil, &StorageError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCausePathError,
			Path:      dir,
		}
	}

	s := &FileStorage{
		metadataSink: metadataSink,
		path:         filepath.Join(dir, resultsFileName),
		records:      make(map[string]Record),
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load reads any prior results file so GetAll reflects earlier runs.
func (s *FileStorage) load() failure.ClassifiedError {
	content, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return &StorageError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseReadFailure,
			Path:      s.path,
		}
	}

	if len(content) == 0 {
		return nil
	}

	records := make(map[string]Record)
	if err := json.Unmarshal(content, &records); err != nil {
		return &StorageError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseSerializationFailed,
			Path:      s.path,
		}
	}

	s.records = records
	return nil
}

func (s *FileStorage) Save(record Record) failure.ClassifiedError {
	stampContentHash(&record)

	s.mu.Lock()
	defer s.mu.Unlock()

	previous, existed := s.records[record.URL]
	s.records[record.URL] = record

	if err := s.flushLocked(); err != nil {
		// roll back so memory and disk stay consistent
		if existed {
			s.records[record.URL] = previous
		} else {
			delete(s.records, record.URL)
		}
		s.recordError("FileStorage.Save", err)
		return err
	}

	s.metadataSink.RecordArtifact(
		metadata.ArtifactPageRecord,
		s.path,
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, record.URL),
			metadata.NewAttr(metadata.AttrWritePath, s.path),
		},
	)
	return nil
}

// flushLocked rewrites the results file; the caller holds s.mu.
func (s *FileStorage) flushLocked() failure.ClassifiedError {
	payload, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return &StorageError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseSerializationFailed,
			Path:      s.path,
		}
	}

	if err := fileutil.WriteFileAtomic(s.path, payload, 0644); err != nil {
		return &StorageError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseWriteFailure,
			Path:      s.path,
		}
	}
	return nil
}

func (s *FileStorage) recordError(action string, err failure.ClassifiedError) {
	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		return
	}
	s.metadataSink.RecordError(
		time.Now(),
		"storage",
		action,
		mapStorageErrorToMetadataCause(storageErr),
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrWritePath, storageErr.Path),
		},
	)
}

func (s *FileStorage) Get(url string) (Record, bool, failure.ClassifiedError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.records[url]
	return record, exists, nil
}

func (s *FileStorage) GetAll() ([]Record, failure.ClassifiedError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedRecords(s.records), nil
}

func (s *FileStorage) Count() (int, failure.ClassifiedError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records), nil
}

func (s *FileStorage) Clear() failure.ClassifiedError {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]Record)
	return s.flushLocked()
}

func (s *FileStorage) Close() failure.ClassifiedError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

// Path returns the results file location, primarily for tests and logs.
func (s *FileStorage) Path() string {
	return s.path
}
