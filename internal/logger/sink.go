package logger

import (
	"slices"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driven"
)

var (
	_ driven.EventSink = (*Sink)(nil)
	_ driven.EventSink = (*Recorder)(nil)
	_ driven.EventSink = Nop{}
)

// Sink writes pipeline events to a zap logger.
type Sink struct {
	log *zap.Logger
}

// NewSink adapts log to driven.EventSink.
func NewSink(log *zap.Logger) *Sink {
	return &Sink{log: log}
}

// Emit logs e at a level derived from its kind and outcome.
func (s *Sink) Emit(e domain.Event) {
	level, msg := classify(e)
	if ce := s.log.Check(level, msg); ce != nil {
		ce.Write(fields(e)...)
	}
}

func classify(e domain.Event) (zapcore.Level, string) {
	switch e.Kind {
	case domain.EventStageChanged:
		if e.State == domain.StateAborted {
			return zap.WarnLevel, "run aborted"
		}
		return zap.InfoLevel, "stage changed"
	case domain.EventVersionPublished:
		if e.Reused {
			return zap.InfoLevel, "corpus unchanged, reusing version"
		}
		return zap.InfoLevel, "version published"
	case domain.EventDocument:
		if e.Err != nil {
			return zap.WarnLevel, "document failed"
		}
		return zap.DebugLevel, "document normalised"
	case domain.EventSourceCompleted:
		switch e.Status {
		case domain.StatusFailed, domain.StatusPartial, domain.StatusAborted:
			return zap.WarnLevel, "source completed with errors"
		}
		return zap.InfoLevel, "source completed"
	case domain.EventRunCompleted:
		return zap.InfoLevel, "run completed"
	case domain.EventWarning:
		return zap.WarnLevel, e.Message
	default:
		return zap.DebugLevel, string(e.Kind)
	}
}

func fields(e domain.Event) []zap.Field {
	fs := make([]zap.Field, 0, 10)
	if e.RunID != "" {
		fs = append(fs, zap.String("run_id", e.RunID))
	}
	if e.VersionID != "" {
		fs = append(fs, zap.String("version_id", e.VersionID))
	}
	if e.State != "" {
		fs = append(fs, zap.String("state", string(e.State)))
	}
	if e.Source != "" {
		fs = append(fs, zap.String("source", e.Source))
	}
	if e.Path != "" {
		fs = append(fs, zap.String("path", e.Path))
	}
	if e.Status != "" {
		fs = append(fs, zap.String("status", string(e.Status)))
	}
	if e.ErrorKind != "" {
		fs = append(fs, zap.String("error_kind", string(e.ErrorKind)))
	}
	if e.Records > 0 {
		fs = append(fs, zap.Int("records", e.Records))
	}
	if e.Chunks > 0 {
		fs = append(fs, zap.Int("chunks", e.Chunks))
	}
	if e.Err != nil {
		fs = append(fs, zap.Error(e.Err))
	}
	return fs
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

// Emit appends e.
func (r *Recorder) Emit(e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Reset discards the recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Count returns how many events of kind were recorded.
func (r *Recorder) Count(kind domain.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Nop discards events.
type Nop struct{}

// Emit does nothing.
func (Nop) Emit(domain.Event) {}

// Tee fans events out to every sink in order.
func Tee(sinks ...driven.EventSink) driven.EventSink {
	return tee(sinks)
}

type tee []driven.EventSink

func (t tee) Emit(e domain.Event) {
	for _, s := range t {
		s.Emit(e)
	}
}
