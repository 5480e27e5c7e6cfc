package jobs_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kiranshivaraju/medinventory/internal/ai/mock"
	"github.com/kiranshivaraju/medinventory/internal/dataset"
	"github.com/kiranshivaraju/medinventory/internal/jobs"
	"github.com/kiranshivaraju/medinventory/internal/keywords"
	"github.com/kiranshivaraju/medinventory/internal/pipeline"
	"github.com/kiranshivaraju/medinventory/internal/progress"
	"github.com/kiranshivaraju/medinventory/internal/store"
	"github.com/kiranshivaraju/medinventory/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_EndToEndWithFileStore(t *testing.T) {
	fs, err := store.NewFileStore(t.TempDir(), t.TempDir())
	require.NoError(t, err)

	p := pipeline.New(mock.NewStaticProvider(models.CategoryEquipment), keywords.Default(), fs, pipeline.Config{
		Sleep:      func(context.Context, time.Duration) error { return nil },
		SampleSeed: 7,
	})
	tracker := progress.NewTracker()
	svc := jobs.NewService(p, tracker, fs)

	upload, err := fs.SaveUpload("My Stock.csv", strings.NewReader(validCSV))
	require.NoError(t, err)

	snap, err := svc.Submit(context.Background(), jobs.Request{
		Upload:    upload,
		InputName: "My Stock.csv",
		Options:   pipeline.Options{PreserveExisting: true, BatchSize: 50},
	})
	require.NoError(t, err)
	assert.Equal(t, 6, snap.Total)
	waitFor(t, svc, snap.JobID)

	got, err := tracker.Read(snap.JobID)
	require.NoError(t, err)
	require.Nil(t, got.Error)
	assert.Equal(t, got.Total, got.Completed)

	job, err := svc.Get(snap.JobID)
	require.NoError(t, err)

	path, err := fs.Path(job.Artifacts.Output)
	require.NoError(t, err)
	out, err := dataset.ReadCSVFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{models.CategorySupplies, models.CategoryEquipment}, out.Column(models.ColumnProductCategory))
	assert.True(t, out.HasColumn(models.ColumnFacility))
	assert.True(t, out.HasColumn(models.ColumnSimpleDescription))

	_, err = fs.Path(job.Artifacts.Summary)
	require.NoError(t, err)
	_, err = fs.Path(job.Artifacts.Categorized)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = fs.Path(job.Artifacts.Facilitized)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, svc.Cancel(context.Background(), snap.JobID))
	_, err = fs.Path(job.Artifacts.Output)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = fs.UploadPath(upload)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
