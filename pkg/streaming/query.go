/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Package streaming runs continuous queries over a directory source. A query executes its plan in micro-batches:
each batch picks up the files detected since the previous one, parses them with a small pool of workers, runs the
plan over the rows and appends the result to its sink in one write. Every query keeps its own source offset, so
several queries can consume the same directory under different triggers.
*/
package streaming

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/laptopstream/laptopstream/pkg/ledger"
	"github.com/laptopstream/laptopstream/pkg/metrics"
	"github.com/laptopstream/laptopstream/pkg/plan"
	"github.com/laptopstream/laptopstream/pkg/schema"
	"github.com/laptopstream/laptopstream/pkg/shared/ewma"
	"github.com/laptopstream/laptopstream/pkg/shared/logging"
	"github.com/laptopstream/laptopstream/pkg/shared/queue"
	"github.com/laptopstream/laptopstream/pkg/sinks"
	"github.com/laptopstream/laptopstream/pkg/sources/csvfile"
	"github.com/laptopstream/laptopstream/pkg/sources/filestream"
)

const (
	DefaultWorkers = 4
	// recentProgressSize is the number of progress records kept per query.
	recentProgressSize = 100
)

var ErrNotStreaming = errors.New("plan does not read from a streaming source")

// State is the lifecycle state of a query.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "CREATED"
	case StateRunning:
		return "RUNNING"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// StreamingQuery is a running micro-batch query.
type StreamingQuery struct {
	id        string
	runID     string
	name      string
	plan      *plan.Plan
	source    *filestream.Source
	sink      sinks.Sinker
	trigger   Trigger
	workers   int
	parseMode csvfile.ParseMode
	ledger    ledger.Ledger
	listeners []Listener

	state *atomic.Int32
	// committed is the source offset up to which files have been processed
	committed *atomic.Int64
	// batches is the id of the next batch
	batches  *atomic.Int64
	progress *queue.OverflowQueue[Progress]
	// rate smooths the processed rows per second over the recent batches
	rate *ewma.SimpleEWMA

	lock   sync.RWMutex
	err    error
	cancel context.CancelFunc
	done   chan struct{}
	log    *zap.SugaredLogger
}

type Option func(*StreamingQuery) error

// WithWorkers sets the number of files parsed concurrently within a batch.
func WithWorkers(n int) Option {
	return func(q *StreamingQuery) error {
		if n < 1 {
			return fmt.Errorf("workers must be at least 1, got %d", n)
		}
		q.workers = n
		return nil
	}
}

// WithParseMode sets how rows that do not conform to the schema are handled.
func WithParseMode(m csvfile.ParseMode) Option {
	return func(q *StreamingQuery) error {
		q.parseMode = m
		return nil
	}
}

// WithLedger sets the record of processed files, the query closes it on termination.
func WithLedger(l ledger.Ledger) Option {
	return func(q *StreamingQuery) error {
		q.ledger = l
		return nil
	}
}

// WithListeners adds lifecycle listeners.
func WithListeners(ls ...Listener) Option {
	return func(q *StreamingQuery) error {
		q.listeners = append(q.listeners, ls...)
		return nil
	}
}

// NewStreamingQuery returns a query in the CREATED state.
func NewStreamingQuery(name string, p *plan.Plan, src *filestream.Source, sink sinks.Sinker, trigger Trigger, opts ...Option) (*StreamingQuery, error) {
	if name == "" {
		return nil, fmt.Errorf("query name can not be empty")
	}
	if !p.IsStreaming() {
		return nil, fmt.Errorf("query %q: %w", name, ErrNotStreaming)
	}
	if !trigger.valid() {
		return nil, fmt.Errorf("query %q: invalid trigger", name)
	}
	q := &StreamingQuery{
		id:        uuid.NewString(),
		runID:     uuid.NewString(),
		name:      name,
		plan:      p,
		source:    src,
		sink:      sink,
		trigger:   trigger,
		workers:   DefaultWorkers,
		parseMode: csvfile.FailFast,
		state:     atomic.NewInt32(int32(StateCreated)),
		committed: atomic.NewInt64(0),
		batches:   atomic.NewInt64(0),
		progress:  queue.New[Progress](recentProgressSize),
		rate:      ewma.NewSimpleEWMA(),
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		if err := o(q); err != nil {
			return nil, err
		}
	}
	if q.ledger == nil {
		q.ledger = ledger.NewInMemLedger()
	}
	return q, nil
}

func (q *StreamingQuery) ID() string {
	return q.id
}

func (q *StreamingQuery) RunID() string {
	return q.runID
}

func (q *StreamingQuery) Name() string {
	return q.name
}

func (q *StreamingQuery) Trigger() Trigger {
	return q.trigger
}

func (q *StreamingQuery) Sink() sinks.Sinker {
	return q.sink
}

func (q *StreamingQuery) State() State {
	return State(q.state.Load())
}

// IsActive tells whether the query has not terminated yet.
func (q *StreamingQuery) IsActive() bool {
	return q.State() != StateTerminated
}

// Exception returns the error that terminated the query, nil if it is running or stopped normally.
func (q *StreamingQuery) Exception() error {
	q.lock.RLock()
	defer q.lock.RUnlock()
	return q.err
}

// CommittedOffset returns the source offset up to which files have been processed.
func (q *StreamingQuery) CommittedOffset() int64 {
	return q.committed.Load()
}

// LastProgress returns the progress of the most recent batch.
func (q *StreamingQuery) LastProgress() (Progress, bool) {
	return q.progress.Last()
}

// ProcessingRate returns the moving average of the processed rows per second, 0 before the first batch.
func (q *StreamingQuery) ProcessingRate() float64 {
	return q.rate.Get()
}

// RecentProgress returns the progress of the recent batches, oldest first.
func (q *StreamingQuery) RecentProgress() []Progress {
	return q.progress.Items()
}

// Start runs the query in the background until Stop is called, the context is cancelled or a batch fails. Queries
// with a Once trigger terminate after their batch.
func (q *StreamingQuery) Start(ctx context.Context) error {
	q.lock.Lock()
	defer q.lock.Unlock()
	if !q.state.CompareAndSwap(int32(StateCreated), int32(StateRunning)) {
		return fmt.Errorf("query %q can not be started in state %s", q.name, q.State())
	}
	q.log = logging.FromContext(ctx).With("query", q.name)
	ctx = logging.WithLogger(ctx, q.log)
	ctx, q.cancel = context.WithCancel(ctx)
	go q.run(ctx)
	return nil
}

// Stop stops the query and waits for it to terminate. An in-flight batch is abandoned, nothing of it reaches the sink.
func (q *StreamingQuery) Stop() error {
	q.lock.Lock()
	if q.state.CompareAndSwap(int32(StateCreated), int32(StateTerminated)) {
		close(q.done)
		q.lock.Unlock()
		return q.ledger.Close()
	}
	cancel := q.cancel
	q.lock.Unlock()
	if cancel == nil {
		// Stopped before it was ever started.
		<-q.done
		return nil
	}
	cancel()
	<-q.done
	return nil
}

// AwaitTermination waits until the query terminates and returns its exception.
func (q *StreamingQuery) AwaitTermination(ctx context.Context) error {
	select {
	case <-q.done:
		return q.Exception()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel closed when the query terminates.
func (q *StreamingQuery) Done() <-chan struct{} {
	return q.done
}

// ProcessAllAvailable waits until every file present in the source when it is called has been processed, or the
// query terminated.
func (q *StreamingQuery) ProcessAllAvailable(ctx context.Context) error {
	if _, err := q.source.Rescan(); err != nil {
		return err
	}
	target := q.source.LatestOffset()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if q.committed.Load() >= target {
			return nil
		}
		select {
		case <-q.done:
			return q.Exception()
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (q *StreamingQuery) run(ctx context.Context) {
	defer close(q.done)
	for _, l := range q.listeners {
		l.OnQueryStarted(ctx, QueryStartedEvent{ID: q.id, RunID: q.runID, Name: q.name, Trigger: q.trigger.String(), Timestamp: time.Now()})
	}
	var err error
loop:
	for {
		started := time.Now()
		if err = q.runBatch(ctx); err != nil {
			break
		}
		if q.trigger.IsOnce() {
			break
		}
		wait := time.Until(q.trigger.next(started))
		if wait <= 0 {
			if ctx.Err() != nil {
				break
			}
			q.log.Debug("Micro-batch overran its interval, starting the next one right away")
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			break loop
		case <-timer.C:
		}
	}
	q.terminate(ctx, err)
}

func (q *StreamingQuery) terminate(ctx context.Context, err error) {
	if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
		// stopped in the middle of a batch
		err = nil
	}
	if cerr := q.ledger.Close(); cerr != nil {
		q.log.Warnw("Failed to close ledger", zap.Error(cerr))
	}
	q.lock.Lock()
	q.err = err
	q.state.Store(int32(StateTerminated))
	q.lock.Unlock()

	e := QueryTerminatedEvent{ID: q.id, RunID: q.runID, Name: q.name, Batches: q.batches.Load(), Timestamp: time.Now()}
	if err != nil {
		e.Exception = err.Error()
	}
	ctx = context.WithoutCancel(ctx)
	for _, l := range q.listeners {
		l.OnQueryTerminated(ctx, e)
	}
}

type fileResult struct {
	rows      []schema.Row
	read      int
	filtered  int
	malformed int
	missing   bool
}

func (q *StreamingQuery) processFile(ctx context.Context, path string) (fileResult, error) {
	if err := ctx.Err(); err != nil {
		return fileResult{}, err
	}
	rows, malformed, err := csvfile.ReadFile(ctx, path, q.plan.InputSchema(), csvfile.WithParseMode(q.parseMode), csvfile.WithLogger(q.log))
	if errors.Is(err, os.ErrNotExist) {
		q.log.Warnw("File vanished before it was read", zap.String("file", path))
		return fileResult{missing: true}, nil
	}
	if err != nil {
		return fileResult{}, err
	}
	out, filtered, err := q.plan.Execute(rows)
	if err != nil {
		return fileResult{}, fmt.Errorf("failed to process %q: %w", path, err)
	}
	return fileResult{rows: out, read: len(rows), filtered: filtered, malformed: malformed}, nil
}

// runBatch processes the files detected since the last batch. Nothing happens when there are none.
func (q *StreamingQuery) runBatch(ctx context.Context) error {
	if _, err := q.source.Rescan(); err != nil {
		return err
	}
	start, end := q.committed.Load(), q.source.LatestOffset()
	if end <= start {
		return nil
	}
	begin := time.Now()
	p := Progress{ID: q.id, RunID: q.runID, Name: q.name, Trigger: q.trigger.String(), StartOffset: start, EndOffset: end}

	var pending []filestream.FileEntry
	for _, e := range q.source.Files(start, end) {
		done, err := q.ledger.Contains(ctx, e.Path)
		if err != nil {
			return err
		}
		if done {
			p.SkippedFiles = append(p.SkippedFiles, e.Path)
			continue
		}
		pending = append(pending, e)
	}

	results := make([]fileResult, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(q.workers)
	for i := range pending {
		i := i
		g.Go(func() error {
			r, err := q.processFile(gctx, pending[i].Path)
			results[i] = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		metrics.BatchErrors.WithLabelValues(q.name, q.trigger.String()).Inc()
		return fmt.Errorf("micro-batch %d of query %q failed: %w", q.batches.Load(), q.name, err)
	}

	var out []schema.Row
	for i, r := range results {
		if r.missing {
			p.SkippedFiles = append(p.SkippedFiles, pending[i].Path)
			continue
		}
		out = append(out, r.rows...)
		p.Files = append(p.Files, pending[i].Path)
		p.NumInputRows += int64(r.read)
		p.NumOutputRows += int64(len(r.rows))
		p.NumFilteredRows += int64(r.filtered)
		p.NumMalformedRows += int64(r.malformed)
	}
	if len(p.Files) == 0 {
		q.committed.Store(end)
		q.log.Infow("No new files to process", zap.Strings("skipped", p.SkippedFiles))
		return nil
	}

	// output of a batch is appended in source order, whatever order the workers finished in
	if err := q.sink.Write(ctx, out); err != nil {
		metrics.BatchErrors.WithLabelValues(q.name, q.trigger.String()).Inc()
		return fmt.Errorf("failed to write micro-batch %d to %q: %w", q.batches.Load(), q.sink.GetName(), err)
	}
	// Files are recorded only after the sink accepted their rows. If recording fails the rows stay in the sink and
	// a restart over a persistent ledger delivers them again (at-least-once).
	if err := q.ledger.Add(ctx, p.Files...); err != nil {
		metrics.BatchErrors.WithLabelValues(q.name, q.trigger.String()).Inc()
		return fmt.Errorf("failed to record processed files of micro-batch %d: %w", q.batches.Load(), err)
	}
	q.committed.Store(end)
	p.BatchID = q.batches.Inc() - 1
	p.Timestamp = time.Now()
	elapsed := time.Since(begin)
	p.DurationMs = elapsed.Milliseconds()
	if secs := elapsed.Seconds(); secs > 0 {
		p.ProcessedRowsPerSecond = float64(p.NumInputRows) / secs
		q.rate.Add(p.ProcessedRowsPerSecond)
	}
	q.progress.Append(p)

	metrics.BatchesCount.WithLabelValues(q.name, q.trigger.String()).Inc()
	metrics.BatchProcessingTime.WithLabelValues(q.name, q.trigger.String()).Observe(float64(elapsed.Microseconds()))
	metrics.ReadRowsCount.WithLabelValues(q.name).Add(float64(p.NumInputRows))
	metrics.WriteRowsCount.WithLabelValues(q.name).Add(float64(p.NumOutputRows))
	metrics.DropRowsCount.WithLabelValues(q.name, "filtered").Add(float64(p.NumFilteredRows))
	metrics.DropRowsCount.WithLabelValues(q.name, "malformed").Add(float64(p.NumMalformedRows))
	metrics.ProcessingRate.WithLabelValues(q.name).Set(q.rate.Get())

	for _, l := range q.listeners {
		l.OnQueryProgress(ctx, p)
	}
	return nil
}
