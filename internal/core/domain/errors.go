package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedFormat indicates no extractor handles the format.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrMalformedDocument indicates the document could not be parsed.
	ErrMalformedDocument = errors.New("malformed document")

	// ErrEmptyText indicates extraction succeeded but produced no text.
	ErrEmptyText = errors.New("no extractable text")

	// ErrToolNotFound indicates an external extraction tool is missing.
	ErrToolNotFound = errors.New("extraction tool not found")

	// ErrPIIDetected indicates re-identifying content was found.
	ErrPIIDetected = errors.New("personally identifying content detected")

	// ErrHashMismatch indicates raw bytes no longer match the version manifest.
	ErrHashMismatch = errors.New("raw file does not match version manifest")

	// ErrSourceMissing indicates an expected source directory is absent.
	ErrSourceMissing = errors.New("source directory missing")

	// ErrEmptyCorpus indicates the raw tree contains no files.
	ErrEmptyCorpus = errors.New("raw corpus is empty")

	// ErrVersionConflict indicates a version directory exists with different content.
	ErrVersionConflict = errors.New("version id already taken")

	// ErrRunInProgress indicates the orchestrator is already running.
	ErrRunInProgress = errors.New("run in progress")

	// ErrSettingsChanged indicates a reused version was last written with
	// other chunk settings.
	ErrSettingsChanged = errors.New("chunk settings differ from the version's latest run")
)

// ConnectorError is an upstream failure outside the pipeline's control,
// such as a missing source directory or an unreadable raw file.
type ConnectorError struct {
	Source string
	Path   string
	Err    error
}

func (e *ConnectorError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("connector error: %s/%s: %v", e.Source, e.Path, e.Err)
	}
	return fmt.Sprintf("connector error: %s: %v", e.Source, e.Err)
}

func (e *ConnectorError) Unwrap() error { return e.Err }

// ExtractionError reports an unsupported or malformed document.
type ExtractionError struct {
	Path   string
	Format Format
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("extraction error: %s (%s): %s", e.Path, e.Format, e.Reason)
	}
	return fmt.Sprintf("extraction error (%s): %s", e.Format, e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// NewExtractionError builds an ExtractionError whose reason is the cause's message.
func NewExtractionError(format Format, err error) *ExtractionError {
	return &ExtractionError{Format: format, Reason: err.Error(), Err: err}
}

// ValidationError reports a record rejected by the PII guard.
// The record is discarded, never redacted.
type ValidationError struct {
	Path  string
	DocID string
	Rule  string
	Field string
}

func (e *ValidationError) Error() string {
	where := "text"
	if e.Field != "" {
		where = "field " + e.Field
	}
	return fmt.Sprintf("validation error: %s: %s matched in %s", e.DocID, e.Rule, where)
}

func (e *ValidationError) Unwrap() error { return ErrPIIDetected }

// VersioningError is fatal for a run: nothing is published.
type VersioningError struct {
	Op  string
	Err error
}

func (e *VersioningError) Error() string {
	return fmt.Sprintf("versioning error: %s: %v", e.Op, e.Err)
}

func (e *VersioningError) Unwrap() error { return e.Err }

// ClassifyError maps an error onto the run report taxonomy.
func ClassifyError(err error) ErrorKind {
	var (
		connErr *ConnectorError
		extErr  *ExtractionError
		valErr  *ValidationError
		verErr  *VersioningError
	)
	switch {
	case errors.As(err, &valErr):
		return KindValidation
	case errors.As(err, &extErr):
		return KindExtraction
	case errors.As(err, &connErr):
		return KindConnector
	case errors.As(err, &verErr):
		return KindVersioning
	default:
		return KindInternal
	}
}
