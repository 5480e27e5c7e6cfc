// Package progress keeps the per-job progress records shared between a
// running job and the clients polling it.
package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/medinventory/pkg/models"
)

// ErrNotFound is returned for unknown or forgotten job ids.
var ErrNotFound = errors.New("job progress not found")

const mirrorTimeout = 2 * time.Second

// Mirror receives a copy of every snapshot, e.g. a shared cache that other
// processes can read. Mirror errors are logged and never fail the update.
type Mirror interface {
	SetJobProgress(ctx context.Context, p models.JobProgress, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Tracker is a mutex-guarded table of job progress records. Writers replace
// a record's fields under the lock; readers always get a complete copy.
type Tracker struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*models.JobProgress

	mirror    Mirror
	mirrorTTL time.Duration
	keyFunc   func(uuid.UUID) string
	now       func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithMirror copies every snapshot to m with the given ttl; key names the
// cache entry removed on Delete.
func WithMirror(m Mirror, ttl time.Duration, key func(uuid.UUID) string) Option {
	return func(t *Tracker) {
		t.mirror = m
		t.mirrorTTL = ttl
		t.keyFunc = key
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker returns an empty tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		jobs: make(map[uuid.UUID]*models.JobProgress),
		now:  time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Create registers a job with total rows of work. An existing record for the
// same id is replaced.
func (t *Tracker) Create(jobID uuid.UUID, total int) models.JobProgress {
	now := t.now().UTC()
	p := &models.JobProgress{
		JobID:     jobID,
		Total:     total,
		Status:    "Queued",
		Step:      models.StepQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	t.mu.Lock()
	t.jobs[jobID] = p
	snap := *p
	t.mu.Unlock()

	t.publish(snap)
	return snap
}

// Update adds delta completed rows and replaces the status text. Completed
// never decreases and never exceeds Total; finished records are not changed.
func (t *Tracker) Update(jobID uuid.UUID, delta int, status string) error {
	return t.mutate(jobID, func(p *models.JobProgress) {
		if delta > 0 {
			p.Completed += delta
			if p.Completed > p.Total {
				slog.Warn("progress overran total", "job_id", jobID, "completed", p.Completed, "total", p.Total)
				p.Completed = p.Total
			}
		}
		if status != "" {
			p.Status = status
		}
	})
}

// SetStep records the phase a job has entered.
func (t *Tracker) SetStep(jobID uuid.UUID, step, status string) error {
	return t.mutate(jobID, func(p *models.JobProgress) {
		p.Step = step
		if status != "" {
			p.Status = status
		}
	})
}

// Complete marks a job finished successfully and attaches its results.
func (t *Tracker) Complete(jobID uuid.UUID, results *models.JobResults) error {
	return t.mutate(jobID, func(p *models.JobProgress) {
		if p.Completed != p.Total {
			slog.Warn("completed count differs from total at completion",
				"job_id", jobID,
				"completed", p.Completed,
				"total", p.Total,
			)
		}
		p.Completed = p.Total
		p.Step = models.StepDone
		p.Status = "Completed"
		p.Results = results
		p.Done = true
	})
}

// Fail marks a job finished with an error. The status embeds the error text.
func (t *Tracker) Fail(jobID uuid.UUID, cause error) error {
	msg := cause.Error()
	return t.mutate(jobID, func(p *models.JobProgress) {
		p.Step = models.StepFailed
		p.Status = "Error: " + msg
		p.Error = &msg
		p.Done = true
	})
}

// Read returns a copy of the latest snapshot.
func (t *Tracker) Read(jobID uuid.UUID) (models.JobProgress, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.jobs[jobID]
	if !ok {
		return models.JobProgress{}, ErrNotFound
	}
	return *p, nil
}

// Delete forgets a job. It does not stop a running job.
func (t *Tracker) Delete(jobID uuid.UUID) {
	t.mu.Lock()
	delete(t.jobs, jobID)
	t.mu.Unlock()

	if t.mirror != nil && t.keyFunc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()
		if err := t.mirror.Delete(ctx, t.keyFunc(jobID)); err != nil {
			slog.Warn("failed to delete mirrored progress", "job_id", jobID, "error", err)
		}
	}
}

// Prune forgets finished jobs last updated more than maxAge ago and returns
// their ids.
func (t *Tracker) Prune(maxAge time.Duration) []uuid.UUID {
	cutoff := t.now().UTC().Add(-maxAge)

	t.mu.Lock()
	var pruned []uuid.UUID
	for id, p := range t.jobs {
		if p.Done && p.UpdatedAt.Before(cutoff) {
			delete(t.jobs, id)
			pruned = append(pruned, id)
		}
	}
	t.mu.Unlock()
	return pruned
}

func (t *Tracker) mutate(jobID uuid.UUID, fn func(p *models.JobProgress)) error {
	t.mu.Lock()
	p, ok := t.jobs[jobID]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	if p.Done {
		t.mu.Unlock()
		return nil
	}
	fn(p)
	p.UpdatedAt = t.now().UTC()
	snap := *p
	t.mu.Unlock()

	t.publish(snap)
	return nil
}

func (t *Tracker) publish(p models.JobProgress) {
	if t.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := t.mirror.SetJobProgress(ctx, p, t.mirrorTTL); err != nil {
		slog.Warn("failed to mirror job progress", "job_id", p.JobID, "error", err)
	}
}
