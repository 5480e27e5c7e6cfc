package jobs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/medinventory/internal/dataset"
	"github.com/kiranshivaraju/medinventory/internal/jobs"
	"github.com/kiranshivaraju/medinventory/internal/pipeline"
	"github.com/kiranshivaraju/medinventory/internal/progress"
	"github.com/kiranshivaraju/medinventory/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type fakeRunner struct {
	pending int
	run     func(ctx context.Context, ds *dataset.Dataset, opts pipeline.Options, rep pipeline.Reporter) (*dataset.Dataset, *pipeline.Summary, error)

	mu   sync.Mutex
	opts []pipeline.Options
}

func (f *fakeRunner) PendingWork(_ *dataset.Dataset, _ pipeline.Options) int { return f.pending }

func (f *fakeRunner) Run(ctx context.Context, ds *dataset.Dataset, opts pipeline.Options, rep pipeline.Reporter) (*dataset.Dataset, *pipeline.Summary, error) {
	f.mu.Lock()
	f.opts = append(f.opts, opts)
	f.mu.Unlock()
	if f.run != nil {
		return f.run(ctx, ds, opts, rep)
	}
	return ds, &pipeline.Summary{TotalItems: ds.Len(), OutputName: opts.OutputName}, nil
}

// blockingRun advances once, then waits for release or cancellation.
func blockingRun(release <-chan struct{}) func(context.Context, *dataset.Dataset, pipeline.Options, pipeline.Reporter) (*dataset.Dataset, *pipeline.Summary, error) {
	return func(ctx context.Context, ds *dataset.Dataset, opts pipeline.Options, rep pipeline.Reporter) (*dataset.Dataset, *pipeline.Summary, error) {
		rep.SetStep(models.StepCategory, "Categorizing items")
		rep.Advance(models.StepCategory, "Categorizing items: 1/2")
		select {
		case <-release:
			return ds, &pipeline.Summary{TotalItems: ds.Len()}, nil
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
}

type dirFiles struct {
	dir string

	mu              sync.Mutex
	removedUploads  []string
	removedArtifact []string
}

func (f *dirFiles) UploadPath(name string) (string, error) {
	path := filepath.Join(f.dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

func (f *dirFiles) RemoveUpload(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removedUploads = append(f.removedUploads, name)
	return nil
}

func (f *dirFiles) Remove(names ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removedArtifact = append(f.removedArtifact, names...)
	return nil
}

// --- helpers ---

const validCSV = "ITEM_NO,DESCRIPTION,VENDOR_NAME\n1,Sterile gauze pad,Acme\n2,Otoscope set,Acme\n"

func setup(t *testing.T, runner *fakeRunner, opts ...progress.Option) (*jobs.Service, *progress.Tracker, *dirFiles) {
	t.Helper()
	files := &dirFiles{dir: t.TempDir()}
	tracker := progress.NewTracker(opts...)
	return jobs.NewService(runner, tracker, files), tracker, files
}

func writeUpload(t *testing.T, files *dirFiles, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(files.dir, name), []byte(content), 0o644))
}

func waitFor(t *testing.T, svc *jobs.Service, id uuid.UUID) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Wait(ctx, id))
}

// --- tests ---

func TestSubmit_CompletesJob(t *testing.T) {
	runner := &fakeRunner{pending: 6}
	svc, tracker, files := setup(t, runner)
	writeUpload(t, files, "abc_stock.csv", validCSV)

	snap, err := svc.Submit(context.Background(), jobs.Request{
		Upload:    "abc_stock.csv",
		InputName: "stock.csv",
		Options:   pipeline.Options{PreserveExisting: true, BatchSize: 50},
	})
	require.NoError(t, err)
	assert.Equal(t, 6, snap.Total)
	assert.Equal(t, models.StepQueued, snap.Step)
	assert.False(t, snap.Done)

	waitFor(t, svc, snap.JobID)

	p, err := tracker.Read(snap.JobID)
	require.NoError(t, err)
	assert.True(t, p.Done)
	assert.Nil(t, p.Error)
	assert.Equal(t, 6, p.Completed)
	require.NotNil(t, p.Results)
	assert.Equal(t, 2, p.Results.TotalItems)

	require.Len(t, runner.opts, 1)
	assert.Equal(t, "stock.csv", runner.opts[0].InputName)
	assert.Equal(t, "abc_stock_processed.csv", runner.opts[0].OutputName)
	assert.True(t, runner.opts[0].PreserveExisting)

	job, err := svc.Get(snap.JobID)
	require.NoError(t, err)
	assert.Equal(t, "abc_stock_processed.csv", job.Artifacts.Output)
	assert.Equal(t, "stock_processed.csv", job.DownloadName())
	assert.Equal(t, "stock_processed_summary.txt", job.SummaryDownloadName())
}

func TestList_NewestFirst(t *testing.T) {
	svc, _, files := setup(t, &fakeRunner{})
	writeUpload(t, files, "a.csv", validCSV)
	assert.Empty(t, svc.List())

	first, err := svc.Submit(context.Background(), jobs.Request{Upload: "a.csv", InputName: "first.csv"})
	require.NoError(t, err)
	waitFor(t, svc, first.JobID)
	time.Sleep(2 * time.Millisecond)
	second, err := svc.Submit(context.Background(), jobs.Request{Upload: "a.csv", InputName: "second.csv"})
	require.NoError(t, err)
	waitFor(t, svc, second.JobID)

	list := svc.List()
	require.Len(t, list, 2)
	assert.Equal(t, second.JobID, list[0].ID)
	assert.Equal(t, "first.csv", list[1].InputName)
}

func TestSubmit_RejectsSecondJobWhileRunning(t *testing.T) {
	release := make(chan struct{})
	runner := &fakeRunner{pending: 2, run: blockingRun(release)}
	svc, _, files := setup(t, runner)
	writeUpload(t, files, "a.csv", validCSV)

	first, err := svc.Submit(context.Background(), jobs.Request{Upload: "a.csv", InputName: "a.csv"})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), jobs.Request{Upload: "a.csv", InputName: "a.csv"})
	assert.ErrorIs(t, err, jobs.ErrBusy)

	close(release)
	waitFor(t, svc, first.JobID)

	second, err := svc.Submit(context.Background(), jobs.Request{Upload: "a.csv", InputName: "a.csv"})
	require.NoError(t, err)
	waitFor(t, svc, second.JobID)
}

func TestSubmit_MissingColumnsReleasesSlot(t *testing.T) {
	svc, _, files := setup(t, &fakeRunner{})
	writeUpload(t, files, "bad.csv", "ITEM_NO,DESCRIPTION\n1,Gauze\n")
	writeUpload(t, files, "good.csv", validCSV)

	_, err := svc.Submit(context.Background(), jobs.Request{Upload: "bad.csv", InputName: "bad.csv"})
	require.ErrorIs(t, err, dataset.ErrMissingColumns)
	assert.Contains(t, err.Error(), "VENDOR_NAME")

	snap, err := svc.Submit(context.Background(), jobs.Request{Upload: "good.csv", InputName: "good.csv"})
	require.NoError(t, err)
	waitFor(t, svc, snap.JobID)
}

func TestSubmit_MissingUpload(t *testing.T) {
	svc, _, _ := setup(t, &fakeRunner{})
	_, err := svc.Submit(context.Background(), jobs.Request{Upload: "nope.csv"})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRun_FailureIsRecorded(t *testing.T) {
	runner := &fakeRunner{run: func(context.Context, *dataset.Dataset, pipeline.Options, pipeline.Reporter) (*dataset.Dataset, *pipeline.Summary, error) {
		return nil, nil, errors.New("saving output: disk full")
	}}
	svc, tracker, files := setup(t, runner)
	writeUpload(t, files, "a.csv", validCSV)

	snap, err := svc.Submit(context.Background(), jobs.Request{Upload: "a.csv"})
	require.NoError(t, err)
	waitFor(t, svc, snap.JobID)

	p, err := tracker.Read(snap.JobID)
	require.NoError(t, err)
	assert.True(t, p.Done)
	require.NotNil(t, p.Error)
	assert.Equal(t, "saving output: disk full", *p.Error)
	assert.Equal(t, "Error: saving output: disk full", p.Status)
	assert.Equal(t, models.StepFailed, p.Step)
}

func TestRun_PanicIsRecordedAsFailure(t *testing.T) {
	runner := &fakeRunner{run: func(context.Context, *dataset.Dataset, pipeline.Options, pipeline.Reporter) (*dataset.Dataset, *pipeline.Summary, error) {
		panic("boom")
	}}
	svc, tracker, files := setup(t, runner)
	writeUpload(t, files, "a.csv", validCSV)

	snap, err := svc.Submit(context.Background(), jobs.Request{Upload: "a.csv"})
	require.NoError(t, err)
	waitFor(t, svc, snap.JobID)

	p, err := tracker.Read(snap.JobID)
	require.NoError(t, err)
	require.NotNil(t, p.Error)
	assert.Equal(t, "panic: boom", *p.Error)

	// The slot is free again.
	next, err := svc.Submit(context.Background(), jobs.Request{Upload: "a.csv"})
	require.NoError(t, err)
	waitFor(t, svc, next.JobID)
}

func TestReporter_ForwardsProgress(t *testing.T) {
	release := make(chan struct{})
	runner := &fakeRunner{pending: 2, run: blockingRun(release)}
	svc, tracker, files := setup(t, runner)
	writeUpload(t, files, "a.csv", validCSV)

	snap, err := svc.Submit(context.Background(), jobs.Request{Upload: "a.csv"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		p, err := tracker.Read(snap.JobID)
		return err == nil && p.Completed == 1
	}, 2*time.Second, 5*time.Millisecond)

	p, err := tracker.Read(snap.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.StepCategory, p.Step)
	assert.Equal(t, "Categorizing items: 1/2", p.Status)

	close(release)
	waitFor(t, svc, snap.JobID)
}

func TestCancel_StopsAndForgetsJob(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	runner := &fakeRunner{pending: 2, run: blockingRun(release)}
	svc, tracker, files := setup(t, runner)
	writeUpload(t, files, "up_a.csv", validCSV)

	snap, err := svc.Submit(context.Background(), jobs.Request{Upload: "up_a.csv", InputName: "a.csv"})
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), snap.JobID))

	_, err = svc.Get(snap.JobID)
	assert.ErrorIs(t, err, jobs.ErrNotFound)
	_, err = tracker.Read(snap.JobID)
	assert.ErrorIs(t, err, progress.ErrNotFound)

	assert.Equal(t, []string{"up_a.csv"}, files.removedUploads)
	assert.Contains(t, files.removedArtifact, "up_a_processed.csv")
	assert.Contains(t, files.removedArtifact, "up_a_processed_categorized.csv")

	// A new job can start right away.
	next, err := svc.Submit(context.Background(), jobs.Request{Upload: "up_a.csv"})
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(context.Background(), next.JobID))
}

func TestCancel_RecordsCancellation(t *testing.T) {
	var captured models.JobProgress
	runner := &fakeRunner{pending: 2, run: func(ctx context.Context, _ *dataset.Dataset, _ pipeline.Options, _ pipeline.Reporter) (*dataset.Dataset, *pipeline.Summary, error) {
		<-ctx.Done()
		return nil, nil, ctx.Err()
	}}
	svc, tracker, files := setup(t, runner, progress.WithMirror(mirrorFunc(func(p models.JobProgress) {
		if p.Done {
			captured = p
		}
	}), time.Minute, nil))
	writeUpload(t, files, "a.csv", validCSV)

	snap, err := svc.Submit(context.Background(), jobs.Request{Upload: "a.csv"})
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(context.Background(), snap.JobID))

	require.NotNil(t, captured.Error)
	assert.Equal(t, jobs.ErrCancelled.Error(), *captured.Error)
	_, err = tracker.Read(snap.JobID)
	assert.ErrorIs(t, err, progress.ErrNotFound)
}

func TestCancel_UnknownJob(t *testing.T) {
	svc, _, _ := setup(t, &fakeRunner{})
	err := svc.Cancel(context.Background(), uuid.New())
	assert.ErrorIs(t, err, jobs.ErrNotFound)
	assert.ErrorIs(t, svc.Wait(context.Background(), uuid.New()), jobs.ErrNotFound)
}

func TestPrune_RemovesFinishedJobsAndFiles(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	svc, tracker, files := setup(t, &fakeRunner{}, progress.WithClock(clock))
	writeUpload(t, files, "a.csv", validCSV)

	snap, err := svc.Submit(context.Background(), jobs.Request{Upload: "a.csv"})
	require.NoError(t, err)
	waitFor(t, svc, snap.JobID)

	assert.Empty(t, svc.Prune(time.Hour))

	now = now.Add(2 * time.Hour)
	assert.Equal(t, []uuid.UUID{snap.JobID}, svc.Prune(time.Hour))

	_, err = svc.Get(snap.JobID)
	assert.ErrorIs(t, err, jobs.ErrNotFound)
	_, err = tracker.Read(snap.JobID)
	assert.ErrorIs(t, err, progress.ErrNotFound)
	assert.Equal(t, []string{"a.csv"}, files.removedUploads)
	assert.Len(t, files.removedArtifact, 4)
}

func TestClose_CancelsRunningJob(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	svc, tracker, files := setup(t, &fakeRunner{run: blockingRun(release)})
	writeUpload(t, files, "a.csv", validCSV)

	snap, err := svc.Submit(context.Background(), jobs.Request{Upload: "a.csv"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Close(ctx))

	p, err := tracker.Read(snap.JobID)
	require.NoError(t, err)
	require.NotNil(t, p.Error)
	assert.Equal(t, jobs.ErrCancelled.Error(), *p.Error)
}

type mirrorFunc func(models.JobProgress)

func (m mirrorFunc) SetJobProgress(_ context.Context, p models.JobProgress, _ time.Duration) error {
	m(p)
	return nil
}

func (m mirrorFunc) Delete(context.Context, string) error { return nil }
