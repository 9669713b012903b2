package services

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driven"
)

// sourcePlan is the collector's view of one selected source.
type sourcePlan struct {
	name    string
	report  *domain.SourceReport
	files   []domain.FileEntry
	output  driven.OutputWriter
	next    int
	pending map[int]*taskResult
	done    int
	failure error
}

// task is one (source, raw file) unit of work.
type task struct {
	plan  *sourcePlan
	index int
	file  domain.FileEntry
}

// taskResult is the per-document buffer handed to the collector.
type taskResult struct {
	plan     *sourcePlan
	index    int
	path     string
	lines    bytes.Buffer
	records  int
	chunks   int
	err      error
	failures []RecordFailure
}

// plan reports unselected sources and returns the ones to normalise.
func (r *runState) plan(version *domain.CorpusVersion, subset map[string]bool) []*sourcePlan {
	names := slices.Clone(version.Sources)
	for _, expected := range r.cfg.Expected {
		if !slices.Contains(names, expected) {
			names = append(names, expected)
		}
	}
	slices.Sort(names)

	var plans []*sourcePlan
	for _, name := range names {
		report := &domain.SourceReport{}
		r.manifest.PerSourceStatus[name] = report

		switch {
		case !r.allowed(name):
			report.Status = domain.StatusSkipped
			report.ErrorSummary = "excluded by configuration"
		case subset != nil && !subset[name]:
			report.Status = domain.StatusSkipped
			report.ErrorSummary = "not selected"
		case !version.HasSource(name):
			err := &domain.ConnectorError{Source: name, Err: domain.ErrSourceMissing}
			report.ConnectorErrors = 1
			report.Errors = append(report.Errors, domain.DocumentError{
				Path:   name,
				Kind:   domain.KindConnector,
				Reason: err.Error(),
			})
			report.Resolve()
		default:
			p := &sourcePlan{name: name, report: report, pending: make(map[int]*taskResult)}
			for _, f := range version.FilesOf(name) {
				if f.Sidecar {
					continue
				}
				if f.RawFile().Skipped() {
					report.SkippedDocuments++
					continue
				}
				p.files = append(p.files, f)
			}
			if len(p.files) > 0 {
				plans = append(plans, p)
				continue
			}
			report.Status = domain.StatusSkipped
			report.ErrorSummary = "no documents"
		}
		r.emitSource(name, report)
	}
	return plans
}

func (r *runState) allowed(source string) bool {
	if containsSource(r.cfg.Deny, source) {
		return false
	}
	return len(r.cfg.Allow) == 0 || containsSource(r.cfg.Allow, source)
}

// normalise runs every planned document through the worker pool and
// reports whether all of them were processed.
func (r *runState) normalise(ctx context.Context, version *domain.CorpusVersion, plans []*sourcePlan) bool {
	var tasks []task
	var active []*sourcePlan
	for _, p := range plans {
		output, err := r.store.OpenOutput(ctx, version.ID, p.name)
		if err != nil {
			r.failSource(p, fmt.Errorf("open output: %w", err))
			r.emitSource(p.name, p.report)
			continue
		}
		p.output = output
		active = append(active, p)
		for i, f := range p.files {
			tasks = append(tasks, task{plan: p, index: i, file: f})
		}
	}

	jobs := make(chan task)
	results := make(chan *taskResult, r.cfg.Workers)
	throttle := NewThrottle(r.cfg.DocumentsPerSecond, r.cfg.Workers)

	// Dispatch stops at cancellation; tasks already handed to a worker
	// run to completion.
	go func() {
		defer close(jobs)
		for _, t := range tasks {
			if err := throttle.Wait(ctx); err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case jobs <- t:
			}
		}
	}()

	var wg sync.WaitGroup
	for range r.cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				results <- r.process(context.WithoutCancel(ctx), version, t)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		r.collect(res)
	}

	completed := true
	for _, p := range active {
		if p.done < len(p.files) {
			completed = false
			_ = p.output.Abort()
			p.report.Status = domain.StatusAborted
			p.report.ErrorSummary = fmt.Sprintf("run aborted after %d of %d documents", p.done, len(p.files))
		} else {
			r.commit(p)
		}
		r.emitSource(p.name, p.report)
	}
	return completed
}

// process handles one document. It never touches shared state.
func (r *runState) process(ctx context.Context, version *domain.CorpusVersion, t task) *taskResult {
	raw := t.file.RawFile()
	res := &taskResult{plan: t.plan, index: t.index, path: raw.Key()}

	content, err := r.scanner.ReadFile(ctx, raw)
	if err != nil {
		res.err = &domain.ConnectorError{Source: raw.Source, Path: raw.RelativePath, Err: err}
		return res
	}

	out, err := r.normaliser.Normalise(ctx, raw, content, version)
	if err != nil {
		res.err = err
		return res
	}
	res.failures = out.Failures

	for i := range out.Records {
		rec := &out.Records[i]
		if r.chunks == nil {
			if err := encodeLines(&res.lines, []domain.NormalizedRecord{*rec}); err != nil {
				res.failures = append(res.failures, RecordFailure{DocID: rec.DocID, Err: fmt.Errorf("encode record: %w", err)})
				continue
			}
			res.records++
			continue
		}

		chunks, err := r.chunks.Process(ctx, rec)
		if err != nil {
			res.failures = append(res.failures, RecordFailure{DocID: rec.DocID, Err: err})
			continue
		}
		var lines bytes.Buffer
		if err := encodeLines(&lines, chunks); err != nil {
			res.failures = append(res.failures, RecordFailure{DocID: rec.DocID, Err: fmt.Errorf("encode chunks: %w", err)})
			continue
		}
		res.lines.Write(lines.Bytes())
		res.records++
		res.chunks += len(chunks)
	}
	return res
}

// collect applies results in document order so that outputs do not
// depend on worker scheduling.
func (r *runState) collect(res *taskResult) {
	p := res.plan
	p.pending[res.index] = res
	for {
		next, ok := p.pending[p.next]
		if !ok {
			return
		}
		delete(p.pending, p.next)
		p.next++
		p.done++
		r.apply(p, next)
	}
}

func (r *runState) apply(p *sourcePlan, res *taskResult) {
	report := p.report
	report.Documents++

	event := domain.Event{
		Kind:      domain.EventDocument,
		Time:      r.now(),
		RunID:     r.manifest.RunID,
		VersionID: r.manifest.VersionID,
		Source:    p.name,
		Path:      res.path,
		Status:    domain.StatusOK,
	}

	if res.err != nil {
		kind := countFailure(report, res.err)
		report.Errors = append(report.Errors, domain.DocumentError{
			Path:   res.path,
			Kind:   kind,
			Reason: res.err.Error(),
		})
		event.Status = domain.StatusFailed
		event.ErrorKind = kind
		event.Err = res.err
		r.events.Emit(event)
		return
	}

	for _, failure := range res.failures {
		kind := countFailure(report, failure.Err)
		report.Errors = append(report.Errors, domain.DocumentError{
			Path:   res.path,
			DocID:  failure.DocID,
			Kind:   kind,
			Reason: failure.Err.Error(),
		})
		event.ErrorKind = kind
		event.Err = failure.Err
	}
	if len(res.failures) > 0 {
		event.Status = domain.StatusPartial
		if res.records == 0 {
			event.Status = domain.StatusFailed
		}
	}

	report.Records += res.records
	report.Chunks += res.chunks
	event.Records = res.records
	event.Chunks = res.chunks

	if p.failure == nil && res.lines.Len() > 0 {
		if _, err := p.output.Write(res.lines.Bytes()); err != nil {
			p.failure = fmt.Errorf("write output: %w", err)
		}
	}
	r.events.Emit(event)
}

// countFailure increments the counter matching err and returns its kind.
func countFailure(report *domain.SourceReport, err error) domain.ErrorKind {
	kind := domain.ClassifyError(err)
	switch kind {
	case domain.KindConnector:
		report.ConnectorErrors++
	case domain.KindValidation:
		report.Rejected++
	default:
		report.ExtractionErrors++
	}
	return kind
}

// commit publishes the source output, or discards it when writing failed.
func (r *runState) commit(p *sourcePlan) {
	if p.failure == nil {
		if err := p.output.Commit(); err != nil {
			p.failure = fmt.Errorf("commit output: %w", err)
		}
	} else {
		_ = p.output.Abort()
	}
	if p.failure != nil {
		r.failSource(p, p.failure)
		return
	}
	p.report.Output = p.output.Path()
	p.report.Resolve()
}

func (r *runState) failSource(p *sourcePlan, err error) {
	p.report.Resolve()
	p.report.Status = domain.StatusFailed
	p.report.ErrorSummary = err.Error()
	p.report.Errors = append(p.report.Errors, domain.DocumentError{
		Path:   p.name,
		Kind:   domain.KindInternal,
		Reason: err.Error(),
	})
}

func (r *runState) emitSource(name string, report *domain.SourceReport) {
	r.events.Emit(domain.Event{
		Kind:      domain.EventSourceCompleted,
		Time:      r.now(),
		RunID:     r.manifest.RunID,
		VersionID: r.manifest.VersionID,
		Source:    name,
		Status:    report.Status,
		Records:   report.Records,
		Chunks:    report.Chunks,
	})
}
