package driven

import "github.com/custodia-labs/lexcorpus/internal/core/domain"

// EventSink receives pipeline events. The core never writes to stdout or
// log files itself. Implementations must be safe for concurrent use.
type EventSink interface {
	Emit(e domain.Event)
}
