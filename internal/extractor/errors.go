package extractor

import (
	"fmt"

	"github.com/rohmanhakim/webcrawler/internal/metadata"
	"github.com/rohmanhakim/webcrawler/pkg/failure"
)

type ExtractorErrorCause string

const (
	ErrCauseParseFailure     = "failed to parse document"
	ErrCauseExtractorFailure = "metadata extractor failed"
)

type ExtractorError struct {
	Message   string
	Retryable bool
	Cause     ExtractorErrorCause
}

func (e *ExtractorError) Error() string {
	return fmt.Sprintf("extractor error: %s: %s", e.Cause, e.Message)
}

func (e *ExtractorError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapExtractorErrorToMetadataCause maps extractor-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapExtractorErrorToMetadataCause(err *ExtractorError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseParseFailure:
		return metadata.CauseContentInvalid
	case ErrCauseExtractorFailure:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
