package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
)

func TestNew_ConsoleLevel(t *testing.T) {
	t.Run("info by default", func(t *testing.T) {
		var buf bytes.Buffer
		log := New(Options{Console: &buf})

		log.Debug("hidden")
		log.Info("shown")
		require.NoError(t, log.Sync())

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("debug when verbose", func(t *testing.T) {
		var buf bytes.Buffer
		log := New(Options{Console: &buf, Verbose: true})

		log.Debug("details", zap.String("source", "legi"))
		require.NoError(t, log.Sync())

		assert.Contains(t, buf.String(), "details")
		assert.Contains(t, buf.String(), "legi")
	})
}

func TestNew_FileReceivesJSON(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "lexcorpus.log")
	log := New(Options{Console: &console, File: path})

	log.Debug("debug goes to file only")
	log.Info("run completed", zap.String("run_id", "r-1"))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "run completed", entry["msg"])
	assert.Equal(t, "r-1", entry["run_id"])
	assert.Contains(t, entry, "timestamp")

	assert.NotContains(t, console.String(), "debug goes to file only")
}

func TestSink_Levels(t *testing.T) {
	tests := []struct {
		name    string
		event   domain.Event
		level   zapcore.Level
		message string
	}{
		{
			name:    "stage change",
			event:   domain.Event{Kind: domain.EventStageChanged, State: domain.StateNormalizing},
			level:   zap.InfoLevel,
			message: "stage changed",
		},
		{
			name:    "abort",
			event:   domain.Event{Kind: domain.EventStageChanged, State: domain.StateAborted},
			level:   zap.WarnLevel,
			message: "run aborted",
		},
		{
			name:    "reused version",
			event:   domain.Event{Kind: domain.EventVersionPublished, Reused: true},
			level:   zap.InfoLevel,
			message: "corpus unchanged, reusing version",
		},
		{
			name:    "document ok",
			event:   domain.Event{Kind: domain.EventDocument, Path: "legi/a.xml", Records: 1, Chunks: 3},
			level:   zap.DebugLevel,
			message: "document normalised",
		},
		{
			name: "document failed",
			event: domain.Event{
				Kind: domain.EventDocument, Path: "bofip/x.pdf",
				ErrorKind: domain.KindExtraction, Err: errors.New("pdftotext exited 1"),
			},
			level:   zap.WarnLevel,
			message: "document failed",
		},
		{
			name:    "partial source",
			event:   domain.Event{Kind: domain.EventSourceCompleted, Source: "bofip", Status: domain.StatusPartial},
			level:   zap.WarnLevel,
			message: "source completed with errors",
		},
		{
			name:    "ok source",
			event:   domain.Event{Kind: domain.EventSourceCompleted, Source: "legi", Status: domain.StatusOK},
			level:   zap.InfoLevel,
			message: "source completed",
		},
		{
			name:    "warning",
			event:   domain.Event{Kind: domain.EventWarning, Message: "catalog write failed"},
			level:   zap.WarnLevel,
			message: "catalog write failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			NewSink(zap.New(core)).Emit(tt.event)

			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, tt.level, entry.Level)
			assert.Equal(t, tt.message, entry.Message)
		})
	}
}

func TestSink_Fields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	NewSink(zap.New(core)).Emit(domain.Event{
		Kind:      domain.EventDocument,
		RunID:     "r-1",
		VersionID: "2024-05-01-ab12cd34",
		Source:    "bofip",
		Path:      "bofip/x.pdf",
		ErrorKind: domain.KindExtraction,
		Err:       errors.New("boom"),
	})

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "r-1", fields["run_id"])
	assert.Equal(t, "2024-05-01-ab12cd34", fields["version_id"])
	assert.Equal(t, "bofip", fields["source"])
	assert.Equal(t, "extraction_error", fields["error_kind"])
	assert.Equal(t, "boom", fields["error"])
	assert.NotContains(t, fields, "records")
}

func TestSink_RespectsLevel(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	NewSink(zap.New(core)).Emit(domain.Event{Kind: domain.EventDocument})
	assert.Equal(t, 0, logs.Len())
}

func TestRecorderAndTee(t *testing.T) {
	rec := &Recorder{}
	core, logs := observer.New(zap.DebugLevel)
	sink := Tee(rec, NewSink(zap.New(core)), Nop{})

	sink.Emit(domain.Event{Kind: domain.EventWarning, Message: "w"})
	sink.Emit(domain.Event{Kind: domain.EventRunCompleted})

	assert.Equal(t, 1, rec.Count(domain.EventWarning))
	assert.Equal(t, 2, logs.Len())

	events := rec.Events()
	require.Len(t, events, 2)
	events[0].Message = "mutated"
	assert.Equal(t, "w", rec.Events()[0].Message, "Events returns a copy")
}

func TestRecorder_Reset(t *testing.T) {
	rec := &Recorder{}
	rec.Emit(domain.Event{Kind: domain.EventWarning, RunID: "run-1"})
	rec.Emit(domain.Event{Kind: domain.EventRunCompleted, RunID: "run-1"})

	rec.Reset()
	assert.Empty(t, rec.Events())
	assert.Equal(t, 0, rec.Count(domain.EventWarning))

	rec.Emit(domain.Event{Kind: domain.EventWarning, RunID: "run-2"})
	require.Len(t, rec.Events(), 1)
	assert.Equal(t, "run-2", rec.Events()[0].RunID)
}
