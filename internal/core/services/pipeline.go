package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driven"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driving"
)

// Ensure Orchestrator implements the interface.
var _ driving.Pipeline = (*Orchestrator)(nil)

// PipelineConfig holds the orchestrator settings. It is built once from
// configuration and never modified.
type PipelineConfig struct {
	// Workers bounds concurrent document tasks. Zero means one per CPU.
	Workers int

	// Allow, when non-empty, lists the only sources normalised.
	Allow []string

	// Deny lists sources never normalised.
	Deny []string

	// Expected lists sources that must be present in the raw tree.
	Expected []string

	// DocumentsPerSecond throttles dispatch. Zero means unlimited.
	DocumentsPerSecond float64

	// Chunking is recorded on each run manifest and compared with the
	// latest run of a reused version.
	Chunking domain.ChunkSettings
}

// Orchestrator runs versioning then normalisation over every selected
// source. Documents are processed on a bounded pool; a single collector
// writes all outputs.
type Orchestrator struct {
	cfg        PipelineConfig
	scanner    driven.RawScanner
	versions   *VersionManager
	store      driven.VersionStore
	normaliser *Normaliser
	chunks     driven.PostProcessorPipeline
	catalog    driven.Catalog
	events     driven.EventSink
	now        func() time.Time
	newRunID   func() string

	mu      sync.Mutex
	state   domain.RunState
	running bool
}

// OrchestratorDeps groups the collaborators of an Orchestrator.
// Chunks, Catalog, Events, Now and NewRunID are optional. A nil Chunks
// pipeline writes one record per line instead of chunks.
type OrchestratorDeps struct {
	Scanner    driven.RawScanner
	Versions   *VersionManager
	Store      driven.VersionStore
	Normaliser *Normaliser
	Chunks     driven.PostProcessorPipeline
	Catalog    driven.Catalog
	Events     driven.EventSink
	Now        func() time.Time
	NewRunID   func() string
}

// NewOrchestrator creates an orchestrator in the idle state.
func NewOrchestrator(cfg PipelineConfig, deps OrchestratorDeps) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Chunking.MaxChars == 0 {
		cfg.Chunking.OverlapChars = 0
	}
	o := &Orchestrator{
		cfg:        cfg,
		scanner:    deps.Scanner,
		versions:   deps.Versions,
		store:      deps.Store,
		normaliser: deps.Normaliser,
		chunks:     deps.Chunks,
		catalog:    deps.Catalog,
		events:     deps.Events,
		now:        deps.Now,
		newRunID:   deps.NewRunID,
		state:      domain.StateIdle,
	}
	if o.events == nil {
		o.events = nopSink{}
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newRunID == nil {
		o.newRunID = uuid.NewString
	}
	return o
}

// State returns the state of the current or last run.
func (o *Orchestrator) State() domain.RunState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Snapshot runs the versioning stage only.
func (o *Orchestrator) Snapshot(ctx context.Context) (*domain.CorpusVersion, bool, error) {
	if err := o.acquire(); err != nil {
		return nil, false, err
	}
	defer o.release()

	v, reused, err := o.versions.Snapshot(ctx)
	if err != nil {
		return nil, false, err
	}
	o.recordVersion(ctx, "", v)
	return v, reused, nil
}

// Run executes one pipeline invocation. The returned manifest is never nil
// once the run has started. A non-nil error means the run aborted.
func (o *Orchestrator) Run(ctx context.Context, opts driving.RunOptions) (*domain.RunManifest, error) {
	if err := o.acquire(); err != nil {
		return nil, err
	}
	defer o.release()

	run := &runState{
		Orchestrator: o,
		manifest: &domain.RunManifest{
			RunID:           o.newRunID(),
			StartedAt:       o.now().UTC(),
			StageStatuses:   make(map[domain.Stage]*domain.StageReport),
			PerSourceStatus: make(map[string]*domain.SourceReport),
		},
	}

	// Versioning.
	run.transition(domain.StateVersioning)
	stage := run.startStage(domain.StageVersioning)
	version, reused, err := o.versions.Snapshot(ctx)
	if err != nil {
		run.finishStage(stage, domain.StatusFailed)
		return run.abort(ctx, err, false)
	}
	run.finishStage(stage, domain.StatusOK)
	run.manifest.VersionID = version.ID
	run.manifest.VersionReused = reused
	o.events.Emit(domain.Event{
		Kind:      domain.EventVersionPublished,
		Time:      o.now(),
		RunID:     run.manifest.RunID,
		VersionID: version.ID,
		Reused:    reused,
	})
	o.recordVersion(ctx, run.manifest.RunID, version)
	if err := run.checkSettings(ctx, version.ID, opts.Force); err != nil {
		return run.abort(ctx, err, false)
	}
	chunking := o.cfg.Chunking
	run.manifest.Chunking = &chunking

	// Normalisation.
	run.transition(domain.StateNormalizing)
	stage = run.startStage(domain.StageNormalizing)
	subset, err := o.selection(ctx, version.ID, opts)
	if err != nil {
		run.finishStage(stage, domain.StatusFailed)
		return run.abort(ctx, err, true)
	}
	plan := run.plan(version, subset)
	completed := run.normalise(ctx, version, plan)

	if !completed {
		run.finishStage(stage, domain.StatusAborted)
		return run.abort(ctx, ctx.Err(), true)
	}
	run.finishStage(stage, run.normalisingStatus())
	run.transition(domain.StateCompleted)
	return run.manifest, run.persist(ctx)
}

func (o *Orchestrator) acquire() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return domain.ErrRunInProgress
	}
	o.running = true
	o.state = domain.StateIdle
	return nil
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running = false
}

// selection resolves the source subset requested by opts. A nil map
// selects every source.
func (o *Orchestrator) selection(ctx context.Context, versionID string, opts driving.RunOptions) (map[string]bool, error) {
	var subset map[string]bool
	if len(opts.Sources) > 0 {
		subset = make(map[string]bool, len(opts.Sources))
		for _, s := range opts.Sources {
			subset[s] = true
		}
	}
	if !opts.RetryFailed {
		return subset, nil
	}

	previous, err := o.store.LatestRunManifest(ctx, versionID)
	if errors.Is(err, domain.ErrNotFound) {
		return subset, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load previous run: %w", err)
	}

	retry := make(map[string]bool)
	for _, s := range previous.FailedSources() {
		if subset == nil || subset[s] {
			retry[s] = true
		}
	}
	return retry, nil
}

// checkSettings compares the chunk settings with the latest run of the
// version. Outputs live under the version id, so new settings on a reused
// version would change chunk ids without changing the version id.
func (r *runState) checkSettings(ctx context.Context, versionID string, force bool) error {
	previous, err := r.store.LatestRunManifest(ctx, versionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load previous run: %w", err)
	}
	if previous.Chunking == nil || *previous.Chunking == r.cfg.Chunking {
		return nil
	}

	err = fmt.Errorf("version %s was written with %s, this run uses %s: %w",
		versionID, previous.Chunking, r.cfg.Chunking, domain.ErrSettingsChanged)
	if !force {
		return err
	}
	r.warn(r.manifest.RunID, versionID, "rewriting outputs with new chunk settings", err)
	return nil
}

func (o *Orchestrator) recordVersion(ctx context.Context, runID string, v *domain.CorpusVersion) {
	if o.catalog == nil {
		return
	}
	if err := o.catalog.RecordVersion(ctx, v); err != nil {
		o.warn(runID, v.ID, "catalog version", err)
	}
}

func (o *Orchestrator) warn(runID, versionID, message string, err error) {
	o.events.Emit(domain.Event{
		Kind:      domain.EventWarning,
		Time:      o.now(),
		RunID:     runID,
		VersionID: versionID,
		Message:   message,
		Err:       err,
	})
}

// runState carries one invocation. Only the goroutine executing Run
// touches the manifest.
type runState struct {
	*Orchestrator
	manifest *domain.RunManifest
}

func (r *runState) transition(next domain.RunState) {
	r.mu.Lock()
	prev := r.state
	if !prev.CanTransition(next) {
		r.mu.Unlock()
		panic(fmt.Sprintf("pipeline: invalid transition %s -> %s", prev, next))
	}
	r.state = next
	r.mu.Unlock()

	r.manifest.State = next
	r.events.Emit(domain.Event{
		Kind:      domain.EventStageChanged,
		Time:      r.now(),
		RunID:     r.manifest.RunID,
		VersionID: r.manifest.VersionID,
		State:     next,
	})
}

func (r *runState) startStage(stage domain.Stage) *domain.StageReport {
	report := &domain.StageReport{StartedAt: r.now().UTC()}
	r.manifest.StageStatuses[stage] = report
	return report
}

func (r *runState) finishStage(report *domain.StageReport, status domain.Status) {
	report.Status = status
	report.FinishedAt = r.now().UTC()
	report.DurationMS = report.FinishedAt.Sub(report.StartedAt).Milliseconds()
}

// abort ends the run in the aborted state. The manifest is persisted only
// when a version exists to hold it.
func (r *runState) abort(ctx context.Context, cause error, persist bool) (*domain.RunManifest, error) {
	if cause == nil {
		cause = context.Canceled
	}
	r.transition(domain.StateAborted)
	r.manifest.Error = cause.Error()

	if !persist {
		r.manifest.FinishedAt = r.now().UTC()
		r.emitRunCompleted()
		return r.manifest, cause
	}
	if err := r.persist(ctx); err != nil {
		return r.manifest, errors.Join(cause, err)
	}
	return r.manifest, cause
}

// persist writes the terminal manifest. It runs after cancellation too,
// so it ignores ctx cancellation. Manifests are written once, so a run
// that has not reached a terminal state is refused.
func (r *runState) persist(ctx context.Context) error {
	if !r.manifest.State.IsTerminal() {
		return fmt.Errorf("persist run %s in state %s: %w", r.manifest.RunID, r.manifest.State, domain.ErrInvalidInput)
	}
	ctx = context.WithoutCancel(ctx)
	r.manifest.FinishedAt = r.now().UTC()

	if err := r.store.WriteRunManifest(ctx, r.manifest); err != nil {
		return fmt.Errorf("write run manifest: %w", err)
	}
	if r.catalog != nil {
		if err := r.catalog.RecordRun(ctx, r.manifest); err != nil {
			r.warn(r.manifest.RunID, r.manifest.VersionID, "catalog run", err)
		}
	}
	r.emitRunCompleted()
	return nil
}

func (r *runState) emitRunCompleted() {
	r.events.Emit(domain.Event{
		Kind:      domain.EventRunCompleted,
		Time:      r.now(),
		RunID:     r.manifest.RunID,
		VersionID: r.manifest.VersionID,
		State:     r.manifest.State,
	})
}

// normalisingStatus summarises the per-source outcomes.
func (r *runState) normalisingStatus() domain.Status {
	status := domain.StatusOK
	for _, report := range r.manifest.PerSourceStatus {
		switch report.Status {
		case domain.StatusFailed, domain.StatusPartial:
			status = domain.StatusPartial
		}
	}
	return status
}

type nopSink struct{}

func (nopSink) Emit(domain.Event) {}

// encodeLines writes v as one JSON line.
func encodeLines[T any](buf *bytes.Buffer, values []T) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	for i := range values {
		if err := enc.Encode(&values[i]); err != nil {
			return err
		}
	}
	return nil
}

func containsSource(list []string, source string) bool {
	return slices.Contains(list, source)
}
