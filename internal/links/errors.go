package links

import (
	"fmt"

	"github.com/rohmanhakim/webcrawler/pkg/failure"
)

type LinkErrorCause string

const (
	ErrCauseParseFailure = "failed to parse document"
)

type LinkError struct {
	Message   string
	Retryable bool
	Cause     LinkErrorCause
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("links error: %s: %s", e.Cause, e.Message)
}

func (e *LinkError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}
