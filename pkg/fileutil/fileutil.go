package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rohmanhakim/webcrawler/pkg/failure"
)

// GetFileExtension extracts the file extension from a path, or empty string if none
func GetFileExtension(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return ""
	}
	// Remove the leading dot
	return strings.TrimPrefix(ext, ".")
}

// WriteFileAtomic writes data through a temp file in the same directory and
// renames it into place, so readers never observe a torn file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) failure.ClassifiedError {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, perm); err != nil {
		return &FileError{
			Message:   fmt.Sprintf("%v", err),
			Retryable: true,
			Cause:     ErrCauseWriteFailure,
		}
	}
	if err := os.Rename(tempPath, path); err != nil {
		return &FileError{
			Message:   fmt.Sprintf("%v", err),
			Retryable: true,
			Cause:     ErrCauseWriteFailure,
		}
	}
	return nil
}

// EnsureDir check if a given directory plus the following path exist, then create one if not
func EnsureDir(dir string, path ...string) failure.ClassifiedError {
	targetPath := []string{dir}
	targetPath = append(targetPath, path...)

	assetsDir := filepath.Join(targetPath...)
	if err := os.MkdirAll(assetsDir, 0755); err != nil {
		return &FileError{
			Message:   fmt.Sprintf("%v", err),
			Retryable: false,
			Cause:     ErrCausePathError,
		}
	}
	return nil
}
