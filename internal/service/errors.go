package service

import (
	"errors"
	"fmt"
)

// ErrRecordMissing means a completed document has no persisted extraction
// record. The document row exists; the record row it promises does not.
var ErrRecordMissing = errors.New("extraction record missing for completed document")

// RenderError means the source document could not be turned into page images:
// missing or corrupt blob, zero pages, or an unavailable renderer backend.
// Fatal for the whole document.
type RenderError struct {
	Reason string
	Err    error
}

func (e *RenderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("render: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("render: %s", e.Reason)
}

func (e *RenderError) Unwrap() error { return e.Err }

// ExtractionError means the vision call for a single page failed or returned
// content that is not parseable as a JSON object. Non-fatal: the page is
// dropped from the candidate set.
type ExtractionError struct {
	Page int
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract page %d: %v", e.Page, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// NoUsableDataError means no page of the document produced usable data.
// Fatal for the document.
type NoUsableDataError struct {
	Pages int
}

func (e *NoUsableDataError) Error() string {
	return fmt.Sprintf("no usable data extracted from any of %d pages", e.Pages)
}

// ConfigError means a required backend credential or setting is absent.
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", e.Field)
}
