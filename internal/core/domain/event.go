package domain

import "time"

// EventKind identifies a pipeline event.
type EventKind string

const (
	// EventStageChanged is emitted on every state machine transition.
	EventStageChanged EventKind = "stage_changed"
	// EventVersionPublished is emitted after the versioning stage.
	EventVersionPublished EventKind = "version_published"
	// EventDocument is emitted once per processed document.
	EventDocument EventKind = "document"
	// EventSourceCompleted is emitted with each source's final status.
	EventSourceCompleted EventKind = "source_completed"
	// EventRunCompleted is emitted once the run manifest is written.
	EventRunCompleted EventKind = "run_completed"
	// EventWarning reports a non-fatal failure, such as a catalog write.
	EventWarning EventKind = "warning"
)

// Event is a structured pipeline event delivered to an EventSink.
type Event struct {
	Kind      EventKind
	Time      time.Time
	RunID     string
	VersionID string
	State     RunState
	Source    string
	Path      string
	Status    Status
	ErrorKind ErrorKind
	Err       error
	Records   int
	Chunks    int
	Reused    bool
	Message   string
}
