// Package pipeline sequences the category, facility and description stages
// over one dataset and produces the final artifacts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/kiranshivaraju/medinventory/internal/ai"
	"github.com/kiranshivaraju/medinventory/internal/dataset"
	"github.com/kiranshivaraju/medinventory/internal/keywords"
	"github.com/kiranshivaraju/medinventory/internal/stage"
	"github.com/kiranshivaraju/medinventory/pkg/models"
)

// ErrNoOutputName is returned when Options.OutputName is empty.
var ErrNoOutputName = errors.New("output name is required")

// Options selects stages and names artifacts for one run.
type Options struct {
	SkipFacility     bool
	SkipDescriptions bool
	PreserveExisting bool
	// BatchSize is the number of processed rows between pacing pauses.
	BatchSize int
	// DescriptionLimit restricts descriptions to the first rows. Zero means all.
	DescriptionLimit int

	// InputName is shown in the report.
	InputName string
	// OutputName is the final dataset's artifact name, e.g. "stock_processed.csv".
	OutputName string
}

// Config holds settings that are fixed for the process lifetime.
type Config struct {
	CategoryPause time.Duration
	FacilityPause time.Duration
	// DescriptionPause is the batch pause for descriptions, on top of the
	// per-request spacing derived from DescriptionRPM.
	DescriptionPause time.Duration
	DescriptionRPM   int
	DescriptionModel string
	DescribeAttempts int
	RetryBaseDelay   time.Duration
	CostPer1KTokens  float64

	// Sleep replaces the pacing sleep; nil uses a timer.
	Sleep stage.Sleeper
	// SampleSeed fixes the description sample; zero picks a time-based seed.
	SampleSeed uint64
}

// Artifacts persists datasets and reports by name.
type Artifacts interface {
	Save(name string, ds *dataset.Dataset) (string, error)
	SaveReport(name, report string) (string, error)
	Remove(names ...string) error
}

// Reporter receives step changes and per-row progress.
type Reporter interface {
	stage.Reporter
	SetStep(step, status string)
}

// Pipeline runs the stages with a shared provider and keyword tables.
type Pipeline struct {
	provider  models.CompletionProvider
	tables    keywords.Tables
	artifacts Artifacts
	cfg       Config
}

// New creates a Pipeline.
func New(provider models.CompletionProvider, tables keywords.Tables, artifacts Artifacts, cfg Config) *Pipeline {
	if cfg.Sleep == nil {
		cfg.Sleep = stage.SleepContext
	}
	return &Pipeline{provider: provider, tables: tables, artifacts: artifacts, cfg: cfg}
}

// PendingWork returns the number of rows the enabled stages will process on
// ds. It is the total a progress record should be created with.
func (p *Pipeline) PendingWork(ds *dataset.Dataset, opts Options) int {
	usage := ai.NewUsage()
	n := 0
	for _, r := range p.runners(opts, usage, nil, nil) {
		n += r.Pending(ds)
	}
	return n
}

// Run validates ds, runs the enabled stages in order, writes the final
// dataset and the summary report, and removes intermediate checkpoints.
// Row-level failures never abort the run; validation, cancellation and
// artifact I/O failures do.
func (p *Pipeline) Run(ctx context.Context, ds *dataset.Dataset, opts Options, rep Reporter) (*dataset.Dataset, *Summary, error) {
	start := time.Now()
	if opts.OutputName == "" {
		return nil, nil, ErrNoOutputName
	}
	if err := ds.Validate(models.RequiredColumns...); err != nil {
		return nil, nil, err
	}
	if rep == nil {
		rep = nopReporter{}
	}

	usage := ai.NewUsage()
	names := ArtifactNames(opts)
	var written []string
	checkpoint := func(step string) stage.Checkpoint {
		name := names.checkpoint(step)
		return func(_ context.Context, ds *dataset.Dataset) error {
			if _, err := p.artifacts.Save(name, ds); err != nil {
				return err
			}
			written = append(written, name)
			return nil
		}
	}

	var stats []models.StageStats
	for _, r := range p.runners(opts, usage, rep, checkpoint) {
		rep.SetStep(r.Step(), stepStatus(r.Step()))

		res, err := r.Run(ctx, ds)
		if err != nil {
			return nil, nil, err
		}
		stats = append(stats, res.Stats())
	}

	rep.SetStep(models.StepSummary, "Generating summary")

	if _, err := p.artifacts.Save(names.Output, ds); err != nil {
		return nil, nil, fmt.Errorf("saving output: %w", err)
	}

	summary := buildSummary(ds, opts, stats, usage.Snapshot(p.cfg.CostPer1KTokens), p.cfg.SampleSeed)
	summary.OutputName = names.Output
	summary.SummaryName = names.Summary
	summary.Elapsed = time.Since(start)

	if _, err := p.artifacts.SaveReport(names.Summary, RenderReport(*summary)); err != nil {
		return nil, nil, fmt.Errorf("saving summary report: %w", err)
	}

	if len(written) > 0 {
		if err := p.artifacts.Remove(written...); err != nil {
			slog.Warn("failed to remove intermediate files", "files", written, "error", err)
		}
	}

	slog.Info("pipeline finished",
		"output", names.Output,
		"items", ds.Len(),
		"requests", summary.Usage.Requests,
		"tokens", summary.Usage.Tokens,
		"duration_ms", summary.Elapsed.Milliseconds(),
	)
	return ds, summary, nil
}

// runners builds the enabled stages in order. When checkpoint is non-nil,
// every stage but the last persists its output through it.
func (p *Pipeline) runners(opts Options, usage *ai.Usage, rep stage.Reporter, checkpoint func(step string) stage.Checkpoint) []*stage.Runner {
	steps := []string{models.StepCategory}
	if !opts.SkipFacility {
		steps = append(steps, models.StepFacility)
	}
	if !opts.SkipDescriptions {
		steps = append(steps, models.StepDescription)
	}

	classifier := ai.NewClassifier(p.provider, usage)
	runners := make([]*stage.Runner, 0, len(steps))
	for i, step := range steps {
		extra := []stage.Option{stage.WithSleeper(p.cfg.Sleep)}
		if rep != nil {
			extra = append(extra, stage.WithReporter(rep))
		}
		if checkpoint != nil && i < len(steps)-1 {
			extra = append(extra, stage.WithCheckpoint(checkpoint(step)))
		}

		switch step {
		case models.StepCategory:
			runners = append(runners, stage.NewCategoryRunner(p.tables.Category, classifier, stage.Options{
				PreserveExisting: opts.PreserveExisting,
				PauseEvery:       opts.BatchSize,
				PauseDuration:    p.cfg.CategoryPause,
			}, extra...))
		case models.StepFacility:
			runners = append(runners, stage.NewFacilityRunner(p.tables, classifier, stage.Options{
				PreserveExisting: opts.PreserveExisting,
				PauseEvery:       opts.BatchSize,
				PauseDuration:    p.cfg.FacilityPause,
			}, extra...))
		case models.StepDescription:
			runners = append(runners, stage.NewDescriptionRunner(p.describer(usage), stage.Options{
				PreserveExisting: opts.PreserveExisting,
				PauseEvery:       opts.BatchSize,
				PauseDuration:    p.cfg.DescriptionPause,
				Limit:            opts.DescriptionLimit,
			}, extra...))
		}
	}
	return runners
}

func (p *Pipeline) describer(usage *ai.Usage) *ai.Describer {
	var interval time.Duration
	if p.cfg.DescriptionRPM > 0 {
		interval = time.Minute / time.Duration(p.cfg.DescriptionRPM)
	}
	return ai.NewDescriber(p.provider, usage, ai.DescriberOptions{
		Model:       p.cfg.DescriptionModel,
		MaxAttempts: p.cfg.DescribeAttempts,
		BaseDelay:   p.cfg.RetryBaseDelay,
		MinInterval: interval,
	})
}

// Names lists every artifact a run may create.
type Names struct {
	Output      string
	Summary     string
	Categorized string
	Facilitized string
}

// All returns every name, for cleanup.
func (n Names) All() []string {
	return []string{n.Output, n.Summary, n.Categorized, n.Facilitized}
}

func (n Names) checkpoint(step string) string {
	if step == models.StepFacility {
		return n.Facilitized
	}
	return n.Categorized
}

// ArtifactNames derives artifact names from opts.OutputName.
func ArtifactNames(opts Options) Names {
	base := strings.TrimSuffix(opts.OutputName, filepath.Ext(opts.OutputName))
	return Names{
		Output:      opts.OutputName,
		Summary:     base + "_summary.txt",
		Categorized: base + "_categorized.csv",
		Facilitized: base + "_facilitized.csv",
	}
}

func stepStatus(step string) string {
	switch step {
	case models.StepCategory:
		return "Categorizing items"
	case models.StepFacility:
		return "Classifying facility suitability"
	case models.StepDescription:
		return "Generating descriptions"
	}
	return step
}

type nopReporter struct{}

func (nopReporter) Advance(string, string) {}
func (nopReporter) SetStep(string, string) {}
