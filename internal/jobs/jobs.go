// Package jobs runs pipeline jobs in the background, one at a time, and
// keeps the handles needed to cancel, download and forget them.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/kiranshivaraju/medinventory/internal/dataset"
	"github.com/kiranshivaraju/medinventory/internal/pipeline"
	"github.com/kiranshivaraju/medinventory/internal/progress"
	"github.com/kiranshivaraju/medinventory/pkg/models"
)

var (
	// ErrBusy is returned by Submit while another job is running.
	ErrBusy = errors.New("a job is already running")
	// ErrNotFound is returned for unknown or forgotten job ids.
	ErrNotFound = errors.New("job not found")
	// ErrCancelled is recorded as the failure of a cancelled job.
	ErrCancelled = errors.New("job cancelled")
)

// Runner is the part of the pipeline a job needs.
type Runner interface {
	PendingWork(ds *dataset.Dataset, opts pipeline.Options) int
	Run(ctx context.Context, ds *dataset.Dataset, opts pipeline.Options, rep pipeline.Reporter) (*dataset.Dataset, *pipeline.Summary, error)
}

// Files resolves uploads and removes a job's files once it is forgotten.
type Files interface {
	UploadPath(name string) (string, error)
	RemoveUpload(name string) error
	Remove(names ...string) error
}

// Request describes one submission.
type Request struct {
	// Upload is the stored upload name returned by the store.
	Upload string
	// InputName is the client's original file name.
	InputName string
	Options   pipeline.Options
}

// Job identifies a submitted job and the artifacts it may produce.
type Job struct {
	ID        uuid.UUID
	InputName string
	Upload    string
	Artifacts pipeline.Names
	CreatedAt time.Time
}

// DownloadName is the file name offered to clients for the processed dataset.
func (j Job) DownloadName() string {
	return stem(j.InputName) + "_processed.csv"
}

// SummaryDownloadName is the file name offered for the summary report.
func (j Job) SummaryDownloadName() string {
	return stem(j.InputName) + "_processed_summary.txt"
}

type handle struct {
	job    Job
	cancel context.CancelFunc
	done   chan struct{}
}

// Service owns the job table. Only one job runs at a time.
type Service struct {
	runner  Runner
	tracker *progress.Tracker
	files   Files

	sem *semaphore.Weighted

	mu   sync.Mutex
	jobs map[uuid.UUID]*handle

	base     context.Context
	stopBase context.CancelFunc
}

// NewService creates a Service.
func NewService(runner Runner, tracker *progress.Tracker, files Files) *Service {
	base, stop := context.WithCancel(context.Background())
	return &Service{
		runner:   runner,
		tracker:  tracker,
		files:    files,
		sem:      semaphore.NewWeighted(1),
		jobs:     make(map[uuid.UUID]*handle),
		base:     base,
		stopBase: stop,
	}
}

// Submit reads and validates the uploaded dataset, registers a progress
// record sized to the pending work and starts the job in the background.
// It returns ErrBusy without reading anything if a job is running.
func (s *Service) Submit(_ context.Context, req Request) (models.JobProgress, error) {
	if !s.sem.TryAcquire(1) {
		return models.JobProgress{}, ErrBusy
	}
	started := false
	defer func() {
		if !started {
			s.sem.Release(1)
		}
	}()

	path, err := s.files.UploadPath(req.Upload)
	if err != nil {
		return models.JobProgress{}, fmt.Errorf("resolving upload: %w", err)
	}
	ds, err := dataset.ReadCSVFile(path)
	if err != nil {
		return models.JobProgress{}, err
	}
	if err := ds.Validate(models.RequiredColumns...); err != nil {
		return models.JobProgress{}, err
	}

	opts := req.Options
	opts.InputName = req.InputName
	opts.OutputName = stem(req.Upload) + "_processed.csv"

	job := Job{
		ID:        uuid.New(),
		InputName: req.InputName,
		Upload:    req.Upload,
		Artifacts: pipeline.ArtifactNames(opts),
		CreatedAt: time.Now().UTC(),
	}

	snap := s.tracker.Create(job.ID, s.runner.PendingWork(ds, opts))

	ctx, cancel := context.WithCancel(s.base)
	h := &handle{job: job, cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.jobs[job.ID] = h
	s.mu.Unlock()

	started = true
	go s.run(ctx, h, ds, opts)

	slog.Info("job submitted", "job_id", job.ID, "input", req.InputName, "rows", ds.Len(), "total", snap.Total)
	return snap, nil
}

// run executes the pipeline. It recovers from panics and always records the
// job as completed or failed.
func (s *Service) run(ctx context.Context, h *handle, ds *dataset.Dataset, opts pipeline.Options) {
	id := h.job.ID
	defer close(h.done)
	defer s.sem.Release(1)
	defer h.cancel()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in job", "error", r, "job_id", id)
			s.fail(id, fmt.Errorf("panic: %v", r))
		}
	}()

	_, summary, err := s.runner.Run(ctx, ds, opts, reporter{tracker: s.tracker, jobID: id})
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			err = ErrCancelled
		}
		slog.Error("job failed", "job_id", id, "error", err)
		s.fail(id, err)
		return
	}

	if err := s.tracker.Complete(id, summary.Results()); err != nil {
		slog.Warn("failed to record job completion", "job_id", id, "error", err)
	}
	slog.Info("job completed", "job_id", id, "items", summary.TotalItems)
}

func (s *Service) fail(id uuid.UUID, cause error) {
	if err := s.tracker.Fail(id, cause); err != nil {
		slog.Warn("failed to record job failure", "job_id", id, "error", err)
	}
}

// Get returns a known job.
func (s *Service) Get(id uuid.UUID) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return h.job, nil
}

// List returns the known jobs, newest first.
func (s *Service) List() []Job {
	s.mu.Lock()
	out := make([]Job, 0, len(s.jobs))
	for _, h := range s.jobs {
		out = append(out, h.job)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// Wait blocks until the job has finished or ctx is done.
func (s *Service) Wait(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	h, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel stops a job, waits for its worker to exit at the next row boundary,
// then forgets it and removes its files.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	h, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	h.cancel()
	select {
	case <-h.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.forget(h)
	slog.Info("job cancelled", "job_id", id)
	return nil
}

// Prune forgets finished jobs idle for longer than maxAge and removes their
// files. It returns the pruned ids.
func (s *Service) Prune(maxAge time.Duration) []uuid.UUID {
	ids := s.tracker.Prune(maxAge)
	for _, id := range ids {
		s.mu.Lock()
		h, ok := s.jobs[id]
		s.mu.Unlock()
		if ok {
			s.forget(h)
		}
	}
	if len(ids) > 0 {
		slog.Info("pruned finished jobs", "count", len(ids))
	}
	return ids
}

// Close cancels every running job and waits for the workers to exit or ctx
// to be done.
func (s *Service) Close(ctx context.Context) error {
	s.stopBase()
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	s.sem.Release(1)
	return nil
}

func (s *Service) forget(h *handle) {
	s.mu.Lock()
	delete(s.jobs, h.job.ID)
	s.mu.Unlock()

	s.tracker.Delete(h.job.ID)
	if err := s.files.RemoveUpload(h.job.Upload); err != nil {
		slog.Warn("failed to remove upload", "job_id", h.job.ID, "error", err)
	}
	if err := s.files.Remove(h.job.Artifacts.All()...); err != nil {
		slog.Warn("failed to remove job artifacts", "job_id", h.job.ID, "error", err)
	}
}

// reporter forwards pipeline progress to the tracker. Every processed row
// advances the job by one.
type reporter struct {
	tracker *progress.Tracker
	jobID   uuid.UUID
}

func (r reporter) Advance(_ string, status string) {
	if err := r.tracker.Update(r.jobID, 1, status); err != nil {
		slog.Warn("failed to update job progress", "job_id", r.jobID, "error", err)
	}
}

func (r reporter) SetStep(step, status string) {
	if err := r.tracker.SetStep(r.jobID, step, status); err != nil {
		slog.Warn("failed to update job step", "job_id", r.jobID, "error", err)
	}
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
