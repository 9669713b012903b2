package cli

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/custodia-labs/lexcorpus/internal/adapters/driven/config/file"
	"github.com/custodia-labs/lexcorpus/internal/adapters/driven/rawtree"
	"github.com/custodia-labs/lexcorpus/internal/core/domain"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driving"
	"github.com/custodia-labs/lexcorpus/internal/logger"
)

var testEpoch = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

// mockPipeline implements driving.Pipeline for testing.
type mockPipeline struct {
	mu       sync.Mutex
	manifest *domain.RunManifest
	runErr   error
	version  *domain.CorpusVersion
	reused   bool
	snapErr  error
	runs     []driving.RunOptions

	// onRun, when set, replaces manifest for the n-th run (1-based).
	onRun func(n int) *domain.RunManifest
}

func (m *mockPipeline) Run(_ context.Context, opts driving.RunOptions) (*domain.RunManifest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, opts)
	if m.onRun != nil {
		return m.onRun(len(m.runs)), m.runErr
	}
	return m.manifest, m.runErr
}

func (m *mockPipeline) Snapshot(_ context.Context) (*domain.CorpusVersion, bool, error) {
	return m.version, m.reused, m.snapErr
}

func (m *mockPipeline) State() domain.RunState { return domain.StateIdle }

func (m *mockPipeline) runCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

// mockVersions implements driving.VersionCatalog for testing.
type mockVersions struct {
	versions []domain.CorpusVersion
	drift    *domain.Drift
	runs     []domain.RunManifest
	limit    int
}

func (m *mockVersions) Versions(context.Context) ([]domain.CorpusVersion, error) {
	return m.versions, nil
}

func (m *mockVersions) Get(_ context.Context, id string) (*domain.CorpusVersion, error) {
	for i := range m.versions {
		if m.versions[i].ID == id {
			return &m.versions[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockVersions) Verify(_ context.Context, id string) (*domain.Drift, error) {
	if m.drift == nil {
		return nil, domain.ErrNotFound
	}
	d := *m.drift
	d.VersionID = id
	return &d, nil
}

func (m *mockVersions) History(_ context.Context, limit int) ([]domain.RunManifest, error) {
	m.limit = limit
	return m.runs, nil
}

// mockWatcher replays a fixed channel.
type mockWatcher struct {
	changes chan rawtree.Change
}

func (m *mockWatcher) Watch(context.Context) (<-chan rawtree.Change, error) {
	return m.changes, nil
}

type testServices struct {
	pipeline *mockPipeline
	versions *mockVersions
	recorder *logger.Recorder
	cfg      file.Config
	closed   bool
}

// setupTestServices installs a builder returning mocks. The returned
// cleanup restores the previous builder and resets every flag.
func setupTestServices(t *testing.T) *testServices {
	t.Helper()
	ts := &testServices{
		pipeline: &mockPipeline{},
		versions: &mockVersions{},
		recorder: &logger.Recorder{},
	}
	old := builder
	builder = func(cfg file.Config, _ *zap.Logger) (*Services, error) {
		ts.cfg = cfg
		return &Services{
			Pipeline: ts.pipeline,
			Versions: ts.versions,
			Recorder: ts.recorder,
			Close: func() error {
				ts.closed = true
				return nil
			},
		}, nil
	}
	t.Cleanup(func() {
		builder = old
		resetFlags()
	})
	resetFlags()
	return ts
}

// resetFlags restores flag defaults; cobra keeps values between Execute calls.
func resetFlags() {
	reset := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(f *pflag.Flag) {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				_ = sv.Replace(nil)
			} else {
				_ = f.Value.Set(f.DefValue)
			}
			f.Changed = false
		})
	}
	reset(rootCmd.PersistentFlags())
	for _, c := range rootCmd.Commands() {
		reset(c.Flags())
	}
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

func sampleManifest() *domain.RunManifest {
	return &domain.RunManifest{
		RunID:         "run-1",
		VersionID:     "2024-05-01-ab12cd34",
		VersionReused: true,
		StartedAt:     testEpoch,
		FinishedAt:    testEpoch.Add(1500 * time.Millisecond),
		State:         domain.StateCompleted,
		PerSourceStatus: map[string]*domain.SourceReport{
			"legi": {Status: domain.StatusOK, Documents: 2, Records: 2, Chunks: 5},
			"bofip": {
				Status: domain.StatusPartial, Documents: 3, Records: 2, Chunks: 4,
				ExtractionErrors: 1, ErrorSummary: "1 extraction error",
			},
			"judilibre": {Status: domain.StatusSkipped, ErrorSummary: "excluded by configuration"},
		},
	}
}

var errBoom = errors.New("boom")
