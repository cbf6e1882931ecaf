package storage

import (
	"fmt"

	"github.com/rohmanhakim/webcrawler/internal/metadata"
	"github.com/rohmanhakim/webcrawler/pkg/failure"
)

type StorageErrorCause string

const (
	ErrCauseWriteFailure        StorageErrorCause = "write failed"
	ErrCauseReadFailure         StorageErrorCause = "read failed"
	ErrCauseSerializationFailed StorageErrorCause = "record serialization failed"
	ErrCauseBackendUnavailable  StorageErrorCause = "storage backend unavailable"
	ErrCausePathError           StorageErrorCause = "path error"
)

type StorageError struct {
	Message   string
	Retryable bool
	Cause     StorageErrorCause
	Path      string
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s: %s", e.Cause, e.Message)
}

func (e *StorageError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapStorageErrorToMetadataCause maps storage-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapStorageErrorToMetadataCause(err *StorageError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseWriteFailure:
		return metadata.CauseStorageFailure
	case ErrCauseReadFailure:
		return metadata.CauseStorageFailure
	case ErrCausePathError:
		return metadata.CauseStorageFailure
	case ErrCauseBackendUnavailable:
		return metadata.CauseStorageFailure
	case ErrCauseSerializationFailed:
		return metadata.CauseInvariantViolation
	default:
		return metadata.CauseUnknown
	}
}
