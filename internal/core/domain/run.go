package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// RunState is the orchestrator state machine.
type RunState string

const (
	// StateIdle is the state before Run is called.
	StateIdle RunState = "idle"
	// StateVersioning means the raw tree is being snapshotted.
	StateVersioning RunState = "versioning_in_progress"
	// StateNormalizing means documents are being normalised and chunked.
	StateNormalizing RunState = "normalizing_in_progress"
	// StateCompleted means every selected source task resolved.
	StateCompleted RunState = "completed"
	// StateAborted means a versioning error or a stop request ended the run.
	StateAborted RunState = "aborted"
)

// IsTerminal reports whether no further transition is possible.
func (s RunState) IsTerminal() bool {
	return s == StateCompleted || s == StateAborted
}

// CanTransition reports whether the state machine allows s → next.
func (s RunState) CanTransition(next RunState) bool {
	switch s {
	case StateIdle:
		return next == StateVersioning
	case StateVersioning:
		return next == StateNormalizing || next == StateAborted
	case StateNormalizing:
		return next == StateCompleted || next == StateAborted
	default:
		return false
	}
}

// Stage names a pipeline stage.
type Stage string

const (
	StageVersioning  Stage = "versioning"
	StageNormalizing Stage = "normalizing"
)

// Status is the outcome of a stage or a source.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusAborted Status = "aborted"
)

// ErrorKind is the error taxonomy used in run reports.
type ErrorKind string

const (
	KindConnector  ErrorKind = "connector_error"
	KindExtraction ErrorKind = "extraction_error"
	KindValidation ErrorKind = "validation_error"
	KindVersioning ErrorKind = "versioning_error"
	KindInternal   ErrorKind = "internal_error"
)

// StageReport records a stage outcome and timing.
type StageReport struct {
	Status     Status    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMS int64     `json:"duration_ms"`
}

// DocumentError is one failed or rejected document.
type DocumentError struct {
	Path   string    `json:"path"`
	DocID  string    `json:"doc_id,omitempty"`
	Kind   ErrorKind `json:"kind"`
	Reason string    `json:"reason"`
}

// SourceReport aggregates the outcome of one source.
type SourceReport struct {
	Status           Status          `json:"status"`
	ErrorSummary     string          `json:"error_summary,omitempty"`
	Documents        int             `json:"documents"`
	Records          int             `json:"records"`
	Chunks           int             `json:"chunks"`
	Rejected         int             `json:"rejected"`
	ExtractionErrors int             `json:"extraction_errors"`
	ConnectorErrors  int             `json:"connector_errors"`
	SkippedDocuments int             `json:"skipped_documents"`
	Output           string          `json:"output,omitempty"`
	Errors           []DocumentError `json:"errors,omitempty"`
}

// Failures returns the number of failed units (documents or records).
func (r *SourceReport) Failures() int {
	return r.Rejected + r.ExtractionErrors + r.ConnectorErrors
}

// Resolve derives Status and ErrorSummary from the counters.
// A source with no successes and no failures is skipped.
func (r *SourceReport) Resolve() {
	failures := r.Failures()
	switch {
	case failures == 0 && r.Records == 0:
		r.Status = StatusSkipped
	case failures == 0:
		r.Status = StatusOK
	case r.Records == 0:
		r.Status = StatusFailed
	default:
		r.Status = StatusPartial
	}
	r.ErrorSummary = r.summary()
}

func (r *SourceReport) summary() string {
	var parts []string
	if r.ConnectorErrors > 0 {
		parts = append(parts, plural(r.ConnectorErrors, "connector error"))
	}
	if r.ExtractionErrors > 0 {
		parts = append(parts, plural(r.ExtractionErrors, "extraction error"))
	}
	if r.Rejected > 0 {
		parts = append(parts, plural(r.Rejected, "rejected record"))
	}
	if len(parts) == 0 {
		if r.Status == StatusSkipped && r.ErrorSummary != "" {
			return r.ErrorSummary
		}
		return ""
	}
	return strings.Join(parts, ", ")
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// ChunkSettings shape the chunks written for a version. MaxChars zero
// means one record per line.
type ChunkSettings struct {
	MaxChars     int `json:"max_chars"`
	OverlapChars int `json:"overlap_chars"`
}

func (c ChunkSettings) String() string {
	if c.MaxChars == 0 {
		return "one record per line"
	}
	return fmt.Sprintf("max_chars=%d overlap_chars=%d", c.MaxChars, c.OverlapChars)
}

// RunManifest summarises one orchestrator invocation. It is written once
// when the run reaches a terminal state and never edited afterwards.
type RunManifest struct {
	RunID           string                   `json:"run_id"`
	VersionID       string                   `json:"version_id,omitempty"`
	VersionReused   bool                     `json:"version_reused"`
	StartedAt       time.Time                `json:"started_at"`
	FinishedAt      time.Time                `json:"finished_at"`
	State           RunState                 `json:"state"`
	Error           string                   `json:"error,omitempty"`
	Chunking        *ChunkSettings           `json:"chunking,omitempty"`
	StageStatuses   map[Stage]*StageReport   `json:"stage_statuses"`
	PerSourceStatus map[string]*SourceReport `json:"per_source_status"`
}

// Sources returns the reported source names, sorted.
func (m *RunManifest) Sources() []string {
	names := make([]string, 0, len(m.PerSourceStatus))
	for name := range m.PerSourceStatus {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FailedSources returns sources whose status is failed, partial or aborted.
// These are the sources a retry run needs to process again.
func (m *RunManifest) FailedSources() []string {
	var out []string
	for _, name := range m.Sources() {
		switch m.PerSourceStatus[name].Status {
		case StatusFailed, StatusPartial, StatusAborted:
			out = append(out, name)
		}
	}
	return out
}
