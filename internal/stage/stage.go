// Package stage runs one labeling pass over a dataset: keyword tables first,
// the completion service as a fallback, sentinel labels when neither answers.
package stage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/medinventory/internal/dataset"
	"github.com/kiranshivaraju/medinventory/pkg/models"
)

// Options controls which rows a stage touches and how it paces itself.
type Options struct {
	// PreserveExisting skips rows whose output cell is already non-empty.
	PreserveExisting bool
	// PauseEvery is the number of processed rows between pacing pauses.
	// Zero disables pausing.
	PauseEvery int
	// PauseDuration is how long each pacing pause lasts.
	PauseDuration time.Duration
	// Limit restricts the stage to the first Limit rows. Zero means every row.
	Limit int
}

// Source says how a row's value was produced.
type Source int

const (
	SourceKeyword Source = iota + 1
	SourceModel
	SourceSentinel
)

// Resolution is the value chosen for one row.
type Resolution struct {
	Value  string
	Source Source
	// ModelCalled is set whenever the completion service was consulted,
	// including calls that failed and fell back to a sentinel.
	ModelCalled bool
}

// Resolver picks the value for one row. A returned error aborts the stage;
// row-level failures must be mapped to a sentinel Resolution instead.
type Resolver interface {
	Resolve(ctx context.Context, ds *dataset.Dataset, row int) (Resolution, error)
}

// Reporter receives one call per processed row.
type Reporter interface {
	Advance(step, status string)
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Checkpoint persists the dataset after a full pass.
type Checkpoint func(ctx context.Context, ds *dataset.Dataset) error

// Result summarizes one pass.
type Result struct {
	Step        string
	Processed   int
	Skipped     int
	KeywordHits int
	ModelCalls  int
	Sentinels   int
	Elapsed     time.Duration
}

// Stats converts the result into the reporting type.
func (r Result) Stats() models.StageStats {
	return models.StageStats{
		Stage:       r.Step,
		Processed:   r.Processed,
		Skipped:     r.Skipped,
		KeywordHits: r.KeywordHits,
		ModelCalls:  r.ModelCalls,
		Sentinels:   r.Sentinels,
		Seconds:     r.Elapsed.Seconds(),
	}
}

// Option configures a Runner.
type Option func(*Runner)

// WithReporter sends per-row progress to rep.
func WithReporter(rep Reporter) Option {
	return func(r *Runner) { r.reporter = rep }
}

// WithSleeper replaces the pacing sleep.
func WithSleeper(s Sleeper) Option {
	return func(r *Runner) { r.sleep = s }
}

// WithCheckpoint persists the dataset after the pass completes.
func WithCheckpoint(c Checkpoint) Option {
	return func(r *Runner) { r.checkpoint = c }
}

// Runner applies a Resolver to every pending row of one output column.
type Runner struct {
	step     string
	column   string
	status   string
	resolver Resolver
	opts     Options

	reporter   Reporter
	sleep      Sleeper
	checkpoint Checkpoint
}

func newRunner(step, column, status string, resolver Resolver, opts Options, extra []Option) *Runner {
	r := &Runner{
		step:     step,
		column:   column,
		status:   status,
		resolver: resolver,
		opts:     opts,
		sleep:    SleepContext,
	}
	for _, o := range extra {
		o(r)
	}
	return r
}

// Step returns the progress step label, e.g. "category".
func (r *Runner) Step() string { return r.step }

// Column returns the output column.
func (r *Runner) Column() string { return r.column }

// Pending returns how many rows Run would process on ds.
func (r *Runner) Pending(ds *dataset.Dataset) int {
	return len(r.pendingRows(ds))
}

// Run processes pending rows in order and writes each resolved value to the
// output column. It stops at the first row boundary after ctx is cancelled.
func (r *Runner) Run(ctx context.Context, ds *dataset.Dataset) (Result, error) {
	start := time.Now()
	res := Result{Step: r.step}

	ds.EnsureColumn(r.column)
	if !r.opts.PreserveExisting && r.opts.Limit <= 0 {
		ds.ClearColumn(r.column)
	}

	rows := r.pendingRows(ds)
	res.Skipped = r.considered(ds) - len(rows)
	total := len(rows)

	slog.Info("stage started", "stage", r.step, "pending", total, "skipped", res.Skipped)

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			res.Elapsed = time.Since(start)
			return res, err
		}

		resolution, err := r.resolver.Resolve(ctx, ds, row)
		if err != nil {
			res.Elapsed = time.Since(start)
			return res, fmt.Errorf("%s stage row %d: %w", r.step, row, err)
		}
		ds.Set(row, r.column, resolution.Value)
		res.record(resolution)

		done := i + 1
		if r.reporter != nil {
			r.reporter.Advance(r.step, fmt.Sprintf("%s: %d/%d", r.status, done, total))
		}

		if r.opts.PauseEvery > 0 && r.opts.PauseDuration > 0 && done%r.opts.PauseEvery == 0 && done < total {
			slog.Info("pausing between batches", "stage", r.step, "done", done, "pause", r.opts.PauseDuration)
			if err := r.sleep(ctx, r.opts.PauseDuration); err != nil {
				res.Elapsed = time.Since(start)
				return res, err
			}
		}
	}
	res.Elapsed = time.Since(start)

	if r.checkpoint != nil {
		if err := r.checkpoint(ctx, ds); err != nil {
			return res, fmt.Errorf("checkpoint after %s stage: %w", r.step, err)
		}
	}

	slog.Info("stage finished",
		"stage", r.step,
		"processed", res.Processed,
		"keyword_hits", res.KeywordHits,
		"model_calls", res.ModelCalls,
		"sentinels", res.Sentinels,
		"duration_ms", res.Elapsed.Milliseconds(),
	)
	return res, nil
}

func (r *Runner) considered(ds *dataset.Dataset) int {
	n := ds.Len()
	if r.opts.Limit > 0 && r.opts.Limit < n {
		n = r.opts.Limit
	}
	return n
}

func (r *Runner) pendingRows(ds *dataset.Dataset) []int {
	n := r.considered(ds)
	rows := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if r.opts.PreserveExisting && ds.Get(i, r.column) != "" {
			continue
		}
		rows = append(rows, i)
	}
	return rows
}

func (res *Result) record(r Resolution) {
	res.Processed++
	if r.ModelCalled {
		res.ModelCalls++
	}
	switch r.Source {
	case SourceKeyword:
		res.KeywordHits++
	case SourceSentinel:
		res.Sentinels++
	}
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
