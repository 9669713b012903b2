package services

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/lexcorpus/internal/contenthash"
	"github.com/custodia-labs/lexcorpus/internal/core/domain"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driven"
)

var testEpoch = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testEpoch }

// fakeScanner serves a raw tree from memory.
type fakeScanner struct {
	mu       sync.Mutex
	files    map[string]domain.RawFile
	contents map[string][]byte
	scanErr  error
	readErrs map[string]error
	// afterScan runs once a scan returns, simulating a connector writing
	// into the raw tree while the pipeline runs.
	afterScan func()
}

func newFakeScanner() *fakeScanner {
	return &fakeScanner{
		files:    make(map[string]domain.RawFile),
		contents: make(map[string][]byte),
		readErrs: make(map[string]error),
	}
}

func (s *fakeScanner) put(source, rel string, content []byte, metadata map[string]string) domain.RawFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := domain.RawFile{
		Source:       source,
		RelativePath: rel,
		Format:       domain.DetectFormat(rel),
		ByteHash:     contenthash.Sum(content).Hex(),
		Size:         int64(len(content)),
		RetrievedAt:  testEpoch,
		Metadata:     metadata,
	}
	s.files[f.Key()] = f
	s.contents[f.Key()] = content
	return f
}

func (s *fakeScanner) remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, key)
	delete(s.contents, key)
}

func (s *fakeScanner) Root() string { return "/raw" }

func (s *fakeScanner) Scan(ctx context.Context) ([]domain.RawFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.scanErr != nil {
		s.mu.Unlock()
		return nil, s.scanErr
	}
	out := make([]domain.RawFile, 0, len(s.files))
	for _, f := range s.files {
		out = append(out, f)
	}
	afterScan := s.afterScan
	s.afterScan = nil
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	if afterScan != nil {
		afterScan()
	}
	return out, nil
}

func (s *fakeScanner) ReadFile(_ context.Context, f domain.RawFile) ([]byte, error) {
	s.mu.Lock()
	if err := s.readErrs[f.Key()]; err != nil {
		s.mu.Unlock()
		return nil, err
	}
	content, ok := s.contents[f.Key()]
	s.mu.Unlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return bytes.Clone(content), nil
}

// memoryVersionStore keeps published versions and outputs in memory.
type memoryVersionStore struct {
	mu         sync.Mutex
	versions   map[string]domain.CorpusVersion
	outputs    map[string][]byte
	runs       map[string][]domain.RunManifest
	publishes  int
	publishErr error
	outputErr  error
}

func newMemoryVersionStore() *memoryVersionStore {
	return &memoryVersionStore{
		versions: make(map[string]domain.CorpusVersion),
		outputs:  make(map[string][]byte),
		runs:     make(map[string][]domain.RunManifest),
	}
}

func (s *memoryVersionStore) Publish(ctx context.Context, v *domain.CorpusVersion) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.publishErr != nil {
		return s.publishErr
	}
	if _, taken := s.versions[v.ID]; taken {
		return domain.ErrVersionConflict
	}
	s.versions[v.ID] = *v
	s.publishes++
	return nil
}

func (s *memoryVersionStore) Get(_ context.Context, id string) (*domain.CorpusVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.versions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &v, nil
}

func (s *memoryVersionStore) List(_ context.Context) ([]domain.CorpusVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CorpusVersion, 0, len(s.versions))
	for _, v := range s.versions {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *memoryVersionStore) OpenOutput(_ context.Context, versionID, source string) (driven.OutputWriter, error) {
	if s.outputErr != nil {
		return nil, s.outputErr
	}
	return &memoryOutput{store: s, key: versionID + "/" + source}, nil
}

func (s *memoryVersionStore) output(versionID, source string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.outputs[versionID+"/"+source]
	return out, ok
}

func (s *memoryVersionStore) WriteRunManifest(_ context.Context, m *domain.RunManifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[m.VersionID] = append(s.runs[m.VersionID], *m)
	return nil
}

func (s *memoryVersionStore) LatestRunManifest(_ context.Context, versionID string) (*domain.RunManifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	runs := s.runs[versionID]
	if len(runs) == 0 {
		return nil, domain.ErrNotFound
	}
	m := runs[len(runs)-1]
	return &m, nil
}

type memoryOutput struct {
	store *memoryVersionStore
	key   string
	buf   bytes.Buffer
	done  bool
}

func (o *memoryOutput) Write(p []byte) (int, error) {
	if o.done {
		return 0, errors.New("output closed")
	}
	return o.buf.Write(p)
}

func (o *memoryOutput) Commit() error {
	o.done = true
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	o.store.outputs[o.key] = bytes.Clone(o.buf.Bytes())
	return nil
}

func (o *memoryOutput) Abort() error {
	o.done = true
	return nil
}

func (o *memoryOutput) Path() string { return "memory://" + o.key + ".jsonl" }

// memoryCatalog records catalog calls.
type memoryCatalog struct {
	mu       sync.Mutex
	versions []domain.CorpusVersion
	runs     []domain.RunManifest
}

func (c *memoryCatalog) RecordVersion(_ context.Context, v *domain.CorpusVersion) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.versions {
		if existing.ID == v.ID {
			return nil
		}
	}
	c.versions = append(c.versions, *v)
	return nil
}

func (c *memoryCatalog) RecordRun(_ context.Context, m *domain.RunManifest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = append(c.runs, *m)
	return nil
}

func (c *memoryCatalog) ListRuns(_ context.Context, limit int) ([]domain.RunManifest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.RunManifest
	for i := len(c.runs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, c.runs[i])
	}
	return out, nil
}

func (c *memoryCatalog) Close() error { return nil }

// recordingSink keeps emitted events.
type recordingSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (s *recordingSink) Emit(e domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) ofKind(kind domain.EventKind) []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Event
	for _, e := range s.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
