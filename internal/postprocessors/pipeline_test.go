package postprocessors

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
)

// stubProcessor returns fixed chunks, or passes its input through.
type stubProcessor struct {
	name   string
	chunks []domain.Chunk
	err    error
	calls  int
}

func (s *stubProcessor) Name() string { return s.name }

func (s *stubProcessor) Process(_ context.Context, _ *domain.NormalizedRecord, chunks []domain.Chunk) ([]domain.Chunk, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.chunks != nil {
		return s.chunks, nil
	}
	return chunks, nil
}

func testRecord() *domain.NormalizedRecord {
	return &domain.NormalizedRecord{
		ID:        "rec-1",
		VersionID: "2024-05-01-abcdef12",
		Source:    "bofip",
		DocID:     "BOI-TVA-10",
		Text:      "Article premier. Article second.",
	}
}

func chunkOf(rec *domain.NormalizedRecord, seq, start, end int) domain.Chunk {
	return domain.Chunk{
		RecordID:      rec.ID,
		VersionID:     rec.VersionID,
		SequenceIndex: seq,
		CharStart:     start,
		CharEnd:       end,
		Text:          string([]rune(rec.Text)[start:end]),
	}
}

func TestPipeline_Process_NilRecord(t *testing.T) {
	_, err := NewPipeline().Process(context.Background(), nil)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPipeline_Process_EmptyPipeline(t *testing.T) {
	chunks, err := NewPipeline().Process(context.Background(), testRecord())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunks != nil {
		t.Errorf("expected nil chunks from empty pipeline, got %v", chunks)
	}
}

func TestPipeline_Process_LastStepWins(t *testing.T) {
	rec := testRecord()
	first := &stubProcessor{name: "first", chunks: []domain.Chunk{chunkOf(rec, 0, 0, 32)}}
	second := &stubProcessor{name: "second", chunks: []domain.Chunk{chunkOf(rec, 0, 0, 16), chunkOf(rec, 1, 16, 32)}}
	passthrough := &stubProcessor{name: "passthrough"}

	chunks, err := NewPipeline(first, second, passthrough).Process(context.Background(), rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 || chunks[1].CharStart != 16 {
		t.Errorf("expected the second step's chunks, got %+v", chunks)
	}
	if first.calls != 1 || second.calls != 1 || passthrough.calls != 1 {
		t.Errorf("expected every step to run once, got %d/%d/%d", first.calls, second.calls, passthrough.calls)
	}
}

func TestPipeline_Process_ProcessorError(t *testing.T) {
	cause := errors.New("processor failed")
	after := &stubProcessor{name: "after"}

	_, err := NewPipeline(&stubProcessor{name: "failing", err: cause}, after).Process(context.Background(), testRecord())
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped error, got: %v", err)
	}
	if !strings.Contains(err.Error(), "processor failing") {
		t.Errorf("expected the failing step to be named, got %q", err)
	}
	if after.calls != 0 {
		t.Error("steps after a failure must not run")
	}
}

func TestPipeline_Process_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	step := &stubProcessor{name: "step"}

	_, err := NewPipeline(step).Process(ctx, testRecord())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if step.calls != 0 {
		t.Error("no step should run after cancellation")
	}
}

func TestPipeline_Process_RejectsForeignChunks(t *testing.T) {
	rec := testRecord()

	wrongRecord := chunkOf(rec, 0, 0, 5)
	wrongRecord.RecordID = "rec-2"

	wrongVersion := chunkOf(rec, 0, 0, 5)
	wrongVersion.VersionID = "2024-04-01-00000000"

	tests := []struct {
		name   string
		chunks []domain.Chunk
		want   string
	}{
		{"other record", []domain.Chunk{wrongRecord}, "belongs to record"},
		{"other version", []domain.Chunk{wrongVersion}, "belongs to record"},
		{"sequence gap", []domain.Chunk{chunkOf(rec, 0, 0, 5), chunkOf(rec, 2, 5, 9)}, "sequence index"},
		{"past the text", []domain.Chunk{{RecordID: rec.ID, VersionID: rec.VersionID, CharStart: 0, CharEnd: 99}}, "outside a text"},
		{"inverted span", []domain.Chunk{{RecordID: rec.ID, VersionID: rec.VersionID, CharStart: 5, CharEnd: 2}}, "outside a text"},
		{"not advancing", []domain.Chunk{chunkOf(rec, 0, 4, 9), chunkOf(rec, 1, 4, 12)}, "not after the previous"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPipeline(&stubProcessor{name: "bad", chunks: tt.chunks}).Process(context.Background(), rec)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestPipeline_Names(t *testing.T) {
	p := NewPipeline(&stubProcessor{name: ChunkerName}, &stubProcessor{name: AnnotateName})

	names := p.Names()
	if len(names) != 2 || names[0] != ChunkerName || names[1] != AnnotateName {
		t.Errorf("expected [chunker annotate], got %v", names)
	}
}

func TestDefaultPipeline_EndToEnd(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	p, err := r.BuildPipeline(DefaultSteps(10, 0)...)
	if err != nil {
		t.Fatalf("BuildPipeline failed: %v", err)
	}

	rec := testRecord()
	rec.Text = "Premier. Second paragraphe."
	rec.Metadata = map[string]string{"keywords": "tva", "stream": "doctrine"}

	chunks, err := p.Process(context.Background(), rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if c.Stream != "doctrine" || len(c.Keywords) != 1 {
			t.Errorf("chunk not annotated: %+v", c)
		}
		if c.ID == "" || c.DocID != rec.DocID {
			t.Errorf("chunk not addressed to its record: %+v", c)
		}
	}
}
