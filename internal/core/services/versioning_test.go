package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexcorpus/internal/contenthash"
	"github.com/custodia-labs/lexcorpus/internal/core/domain"
)

func TestCompute(t *testing.T) {
	scanner := newFakeScanner()
	a := scanner.put("legi", "code/a.xml", []byte("<a/>"), nil)
	b := scanner.put("bofip", "b.html", []byte("<p>b</p>"), nil)

	v, err := Compute([]domain.RawFile{a, b}, time.Date(2024, 3, 9, 23, 59, 0, 0, time.FixedZone("CET", 3600)))
	require.NoError(t, err)

	expectedHash := contenthash.HashSet([]contenthash.Digest{
		contenthash.Sum([]byte("<a/>")),
		contenthash.Sum([]byte("<p>b</p>")),
	}).Hex()
	assert.Equal(t, expectedHash, v.CorpusHash)
	assert.Equal(t, "2024-03-09-"+expectedHash[:8], v.ID)
	assert.Equal(t, time.UTC, v.CreatedAt.Location())
	assert.Equal(t, []string{"bofip", "legi"}, v.Sources)
	assert.Equal(t, map[string]string{
		"legi/code/a.xml": a.ByteHash,
		"bofip/b.html":    b.ByteHash,
	}, v.FileHashes)
	assert.Equal(t, "bofip", v.Files[0].Source)
}

func TestCompute_OrderIndependent(t *testing.T) {
	scanner := newFakeScanner()
	a := scanner.put("s", "a.txt", []byte("a"), nil)
	b := scanner.put("s", "b.txt", []byte("b"), nil)
	c := scanner.put("t", "c.txt", []byte("c"), nil)

	first, err := Compute([]domain.RawFile{a, b, c}, testEpoch)
	require.NoError(t, err)
	second, err := Compute([]domain.RawFile{c, a, b}, testEpoch)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompute_Rejects(t *testing.T) {
	scanner := newFakeScanner()
	a := scanner.put("s", "a.txt", []byte("a"), nil)

	_, err := Compute([]domain.RawFile{a, a}, testEpoch)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	bad := a
	bad.ByteHash = "not-hex"
	_, err = Compute([]domain.RawFile{bad}, testEpoch)
	assert.Error(t, err)
}

func TestVersionManager_SnapshotIdempotent(t *testing.T) {
	scanner := newFakeScanner()
	scanner.put("bofip", "a.html", []byte("<p>a</p>"), nil)
	store := newMemoryVersionStore()
	m := NewVersionManager(scanner, store, nil, fixedClock)

	first, reused, err := m.Snapshot(context.Background())
	require.NoError(t, err)
	assert.False(t, reused)

	second, reused, err := m.Snapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, reused)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, store.publishes)
}

func TestVersionManager_PublishRecordsVersioningStage(t *testing.T) {
	scanner := newFakeScanner()
	scanner.put("bofip", "a.html", []byte("<p>a</p>"), nil)
	store := newMemoryVersionStore()
	m := NewVersionManager(scanner, store, nil, fixedClock)

	v, _, err := m.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[domain.Stage]domain.Status{domain.StageVersioning: domain.StatusOK}, v.Stages)

	stored, err := m.Get(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOK, stored.Stages[domain.StageVersioning])

	computed, err := Compute(nil, testEpoch)
	require.NoError(t, err)
	published, _, err := NewVersionManager(scanner, newMemoryVersionStore(), nil, fixedClock).Publish(context.Background(), computed)
	require.NoError(t, err)
	assert.Nil(t, computed.Stages, "the caller's version is left untouched")
	assert.Equal(t, domain.StatusOK, published.Stages[domain.StageVersioning])
}

func TestVersionManager_ChangedCorpusNewVersion(t *testing.T) {
	scanner := newFakeScanner()
	scanner.put("bofip", "a.html", []byte("<p>a</p>"), nil)
	store := newMemoryVersionStore()
	now := testEpoch
	m := NewVersionManager(scanner, store, nil, func() time.Time { return now })

	first, _, err := m.Snapshot(context.Background())
	require.NoError(t, err)

	scanner.put("bofip", "a.html", []byte("<p>a, amended</p>"), nil)
	now = now.Add(time.Hour)
	second, reused, err := m.Snapshot(context.Background())
	require.NoError(t, err)
	assert.False(t, reused)
	assert.NotEqual(t, first.ID, second.ID)

	old, err := m.Get(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.FileHashes, old.FileHashes)

	versions, err := m.Versions(context.Background())
	require.NoError(t, err)
	assert.Len(t, versions, 2)
}

func TestVersionManager_IDCollisionAppendsSuffix(t *testing.T) {
	scanner := newFakeScanner()
	scanner.put("s", "a.txt", []byte("same bytes"), nil)
	store := newMemoryVersionStore()
	now := testEpoch
	m := NewVersionManager(scanner, store, nil, func() time.Time { return now })

	first, _, err := m.Snapshot(context.Background())
	require.NoError(t, err)

	// A rename keeps the corpus hash but changes the inventory.
	scanner.remove("s/a.txt")
	scanner.put("s", "renamed.txt", []byte("same bytes"), nil)
	now = now.Add(time.Minute)

	second, reused, err := m.Snapshot(context.Background())
	require.NoError(t, err)
	assert.False(t, reused)
	assert.Equal(t, first.CorpusHash, second.CorpusHash)
	assert.Equal(t, first.ID+"-2", second.ID)

	// Going back to the first inventory is a change relative to the latest
	// version and must not reuse either id.
	scanner.remove("s/renamed.txt")
	scanner.put("s", "a.txt", []byte("same bytes"), nil)
	now = now.Add(time.Minute)

	third, reused, err := m.Snapshot(context.Background())
	require.NoError(t, err)
	assert.False(t, reused)
	assert.Equal(t, first.ID+"-3", third.ID)
}

func TestVersionManager_Failures(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*fakeScanner, *memoryVersionStore)
		expected error
	}{
		{
			name:     "empty corpus",
			setup:    func(*fakeScanner, *memoryVersionStore) {},
			expected: domain.ErrEmptyCorpus,
		},
		{
			name: "scan failure",
			setup: func(s *fakeScanner, _ *memoryVersionStore) {
				s.put("s", "a.txt", []byte("a"), nil)
				s.scanErr = errors.New("permission denied")
			},
		},
		{
			name: "store failure",
			setup: func(s *fakeScanner, st *memoryVersionStore) {
				s.put("s", "a.txt", []byte("a"), nil)
				st.publishErr = errors.New("disk full")
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			scanner := newFakeScanner()
			store := newMemoryVersionStore()
			tc.setup(scanner, store)
			m := NewVersionManager(scanner, store, nil, fixedClock)

			_, _, err := m.Snapshot(context.Background())

			var verErr *domain.VersioningError
			require.ErrorAs(t, err, &verErr)
			if tc.expected != nil {
				assert.ErrorIs(t, err, tc.expected)
			}
			assert.Equal(t, domain.KindVersioning, domain.ClassifyError(err))
			assert.Empty(t, store.versions)
		})
	}
}

func TestVersionManager_CancelledBeforePublish(t *testing.T) {
	scanner := newFakeScanner()
	scanner.put("s", "a.txt", []byte("a"), nil)
	store := newMemoryVersionStore()
	m := NewVersionManager(scanner, store, nil, fixedClock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := m.Snapshot(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.versions)
}

func TestVersionManager_Verify(t *testing.T) {
	scanner := newFakeScanner()
	scanner.put("s", "keep.txt", []byte("keep"), nil)
	scanner.put("s", "change.txt", []byte("before"), nil)
	scanner.put("s", "gone.txt", []byte("gone"), nil)
	store := newMemoryVersionStore()
	m := NewVersionManager(scanner, store, nil, fixedClock)

	v, _, err := m.Snapshot(context.Background())
	require.NoError(t, err)

	drift, err := m.Verify(context.Background(), v.ID)
	require.NoError(t, err)
	assert.True(t, drift.Clean())

	scanner.put("s", "change.txt", []byte("after"), nil)
	scanner.remove("s/gone.txt")
	scanner.put("t", "new.txt", []byte("new"), nil)

	drift, err = m.Verify(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"t/new.txt"}, drift.Added)
	assert.Equal(t, []string{"s/gone.txt"}, drift.Removed)
	assert.Equal(t, []string{"s/change.txt"}, drift.Modified)

	_, err = m.Verify(context.Background(), "1999-01-01-deadbeef")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVersionManager_History(t *testing.T) {
	scanner := newFakeScanner()
	scanner.put("s", "a.txt", []byte("a"), nil)
	store := newMemoryVersionStore()
	m := NewVersionManager(scanner, store, nil, fixedClock)

	v, _, err := m.Snapshot(context.Background())
	require.NoError(t, err)
	require.NoError(t, store.WriteRunManifest(context.Background(), &domain.RunManifest{RunID: "r1", VersionID: v.ID}))
	require.NoError(t, store.WriteRunManifest(context.Background(), &domain.RunManifest{RunID: "r2", VersionID: v.ID}))

	runs, err := m.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "r2", runs[0].RunID)

	catalog := &memoryCatalog{}
	require.NoError(t, catalog.RecordRun(context.Background(), &domain.RunManifest{RunID: "c1"}))
	require.NoError(t, catalog.RecordRun(context.Background(), &domain.RunManifest{RunID: "c2"}))
	m = NewVersionManager(scanner, store, catalog, fixedClock)

	runs, err = m.History(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "c2", runs[0].RunID)
}
