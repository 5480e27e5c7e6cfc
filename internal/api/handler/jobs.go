package handler

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kiranshivaraju/medinventory/internal/api/response"
	"github.com/kiranshivaraju/medinventory/internal/dataset"
	"github.com/kiranshivaraju/medinventory/internal/jobs"
	"github.com/kiranshivaraju/medinventory/internal/pipeline"
	"github.com/kiranshivaraju/medinventory/internal/progress"
	"github.com/kiranshivaraju/medinventory/internal/store"
	"github.com/kiranshivaraju/medinventory/pkg/models"
)

const (
	defaultMaxUploadBytes = 16 << 20
	multipartMemory       = 8 << 20
	defaultPageLimit      = 20
	maxPageLimit          = 100
)

// JobService defines the job operations the handlers depend on.
type JobService interface {
	Submit(ctx context.Context, req jobs.Request) (models.JobProgress, error)
	Get(id uuid.UUID) (jobs.Job, error)
	List() []jobs.Job
	Cancel(ctx context.Context, id uuid.UUID) error
}

// ProgressReader reads snapshots written by the job worker.
type ProgressReader interface {
	Read(id uuid.UUID) (models.JobProgress, error)
}

// ProgressCache is a shared copy of progress snapshots, consulted when the
// local tracker has no record.
type ProgressCache interface {
	GetJobProgress(ctx context.Context, id uuid.UUID) (models.JobProgress, bool, error)
}

// Files stores uploads and serves results.
type Files interface {
	SaveUpload(originalName string, r io.Reader) (string, error)
	RemoveUpload(name string) error
	Open(name string) (*os.File, error)
}

// JobsConfig holds the dependencies of the job handlers.
type JobsConfig struct {
	Service  JobService
	Progress ProgressReader
	// Cache is optional.
	Cache          ProgressCache
	Files          Files
	MaxUploadBytes int64
	// Defaults supplies BatchSize and PreserveExisting when the form omits them.
	Defaults pipeline.Options
}

// Jobs serves the upload, poll, cancel and download endpoints.
type Jobs struct {
	cfg JobsConfig
}

// NewJobs creates the job handlers.
func NewJobs(cfg JobsConfig) *Jobs {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	return &Jobs{cfg: cfg}
}

type submitResponse struct {
	JobID      uuid.UUID `json:"job_id"`
	Status     string    `json:"status"`
	TotalItems int       `json:"total_items"`
	PollURL    string    `json:"poll_url"`
}

type jobSummary struct {
	JobID     uuid.UUID          `json:"job_id"`
	InputFile string             `json:"input_file"`
	Progress  models.JobProgress `json:"progress"`
}

// Submit handles POST /api/v1/jobs: a multipart form with a "file" part and
// optional pipeline switches.
func (h *Jobs) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
				fmt.Sprintf("Upload exceeds %d bytes", h.cfg.MaxUploadBytes), nil)
			return
		}
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Expected a multipart form", nil)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "No file part", nil)
		return
	}
	defer file.Close()

	if header.Filename == "" {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "No selected file", nil)
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		response.Error(w, http.StatusBadRequest, "INVALID_FILE_TYPE", "Only CSV files are allowed", nil)
		return
	}

	opts, err := h.parseOptions(r.MultipartForm)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}

	upload, err := h.cfg.Files.SaveUpload(header.Filename, file)
	if err != nil {
		if errors.Is(err, store.ErrInvalidName) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid file name", nil)
			return
		}
		slog.Error("failed to store upload", "filename", header.Filename, "error", err)
		response.InternalError(w)
		return
	}

	snap, err := h.cfg.Service.Submit(r.Context(), jobs.Request{
		Upload:    upload,
		InputName: filepath.Base(header.Filename),
		Options:   opts,
	})
	if err != nil {
		if rmErr := h.cfg.Files.RemoveUpload(upload); rmErr != nil {
			slog.Warn("failed to remove rejected upload", "upload", upload, "error", rmErr)
		}
		writeSubmitError(w, err)
		return
	}

	response.Accepted(w, submitResponse{
		JobID:      snap.JobID,
		Status:     snap.Status,
		TotalItems: snap.Total,
		PollURL:    "/api/v1/jobs/" + snap.JobID.String(),
	})
}

func writeSubmitError(w http.ResponseWriter, err error) {
	var parseErr *csv.ParseError
	switch {
	case errors.Is(err, jobs.ErrBusy):
		response.Error(w, http.StatusConflict, "JOB_RUNNING",
			"Another job is still running; try again when it finishes", nil)
	case errors.Is(err, dataset.ErrMissingColumns):
		response.Error(w, http.StatusBadRequest, "INVALID_DATASET", err.Error(),
			map[string]any{"required_columns": models.RequiredColumns})
	case errors.Is(err, dataset.ErrEmpty), errors.As(err, &parseErr):
		response.Error(w, http.StatusBadRequest, "INVALID_DATASET", err.Error(), nil)
	default:
		slog.Error("job submission failed", "error", err)
		response.InternalError(w)
	}
}

func (h *Jobs) parseOptions(form *multipart.Form) (pipeline.Options, error) {
	opts := pipeline.Options{
		PreserveExisting: h.cfg.Defaults.PreserveExisting,
		BatchSize:        h.cfg.Defaults.BatchSize,
	}
	var err error
	if opts.SkipFacility, err = formBool(form, "skip_facility", false); err != nil {
		return opts, err
	}
	if opts.SkipDescriptions, err = formBool(form, "skip_descriptions", false); err != nil {
		return opts, err
	}
	if opts.PreserveExisting, err = formBool(form, "preserve_existing", opts.PreserveExisting); err != nil {
		return opts, err
	}
	if opts.BatchSize, err = formInt(form, "batch_size", opts.BatchSize, 1); err != nil {
		return opts, err
	}
	if opts.DescriptionLimit, err = formInt(form, "description_batch", 0, 0); err != nil {
		return opts, err
	}
	return opts, nil
}

func formValue(form *multipart.Form, key string) string {
	if vs := form.Value[key]; len(vs) > 0 {
		return strings.TrimSpace(vs[0])
	}
	return ""
}

// formBool accepts the values an HTML checkbox or a script would send.
func formBool(form *multipart.Form, key string, def bool) (bool, error) {
	switch strings.ToLower(formValue(form, key)) {
	case "":
		return def, nil
	case "1", "true", "on", "yes":
		return true, nil
	case "0", "false", "off", "no":
		return false, nil
	}
	return false, fmt.Errorf("%s must be a boolean", key)
}

func formInt(form *multipart.Form, key string, def, floor int) (int, error) {
	v := formValue(form, key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < floor {
		return 0, fmt.Errorf("%s must be an integer >= %d", key, floor)
	}
	return n, nil
}

// Poll handles GET /api/v1/jobs/{jobID}.
func (h *Jobs) Poll(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	snap, err := h.cfg.Progress.Read(id)
	if err == nil {
		response.JSON(w, snap)
		return
	}
	if !errors.Is(err, progress.ErrNotFound) {
		response.InternalError(w)
		return
	}

	if h.cfg.Cache != nil {
		snap, found, err := h.cfg.Cache.GetJobProgress(r.Context(), id)
		if err != nil {
			slog.Warn("failed to read cached progress", "job_id", id, "error", err)
		}
		if found {
			response.JSON(w, snap)
			return
		}
	}
	response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
}

// List handles GET /api/v1/jobs?page=&limit=.
func (h *Jobs) List(w http.ResponseWriter, r *http.Request) {
	all := h.cfg.Service.List()
	meta, start, end := response.Paginate(
		queryInt(r, "page", 1), queryInt(r, "limit", defaultPageLimit),
		len(all), defaultPageLimit, maxPageLimit)

	items := make([]jobSummary, 0, end-start)
	for i := start; i < end; i++ {
		snap, err := h.cfg.Progress.Read(all[i].ID)
		if err != nil {
			continue
		}
		items = append(items, jobSummary{JobID: all[i].ID, InputFile: all[i].InputName, Progress: snap})
	}

	response.Collection(w, items, meta)
}

// Cancel handles DELETE /api/v1/jobs/{jobID}: stops the job and forgets it
// together with its files.
func (h *Jobs) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	if err := h.cfg.Service.Cancel(r.Context(), id); err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
			return
		}
		slog.Error("failed to cancel job", "job_id", id, "error", err)
		response.InternalError(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DownloadResult handles GET /api/v1/jobs/{jobID}/result.
func (h *Jobs) DownloadResult(w http.ResponseWriter, r *http.Request) {
	h.download(w, r, "text/csv; charset=utf-8", func(j jobs.Job) (string, string) {
		return j.Artifacts.Output, j.DownloadName()
	})
}

// DownloadSummary handles GET /api/v1/jobs/{jobID}/summary.
func (h *Jobs) DownloadSummary(w http.ResponseWriter, r *http.Request) {
	h.download(w, r, "text/plain; charset=utf-8", func(j jobs.Job) (string, string) {
		return j.Artifacts.Summary, j.SummaryDownloadName()
	})
}

func (h *Jobs) download(w http.ResponseWriter, r *http.Request, contentType string, pick func(jobs.Job) (artifact, filename string)) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	job, err := h.cfg.Service.Get(id)
	if err != nil {
		response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
		return
	}

	snap, err := h.cfg.Progress.Read(id)
	if err != nil || !snap.Done || snap.Error != nil {
		response.Error(w, http.StatusConflict, "JOB_NOT_COMPLETE",
			"Job is not completed or had errors", nil)
		return
	}

	artifact, filename := pick(job)
	f, err := h.cfg.Files.Open(artifact)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "FILE_NOT_FOUND", "Result file not found", nil)
			return
		}
		slog.Error("failed to open result", "job_id", id, "artifact", artifact, "error", err)
		response.InternalError(w)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		response.InternalError(w)
		return
	}

	response.Attachment(w, r, filename, contentType, info.ModTime(), f)
}

func jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_JOB_ID", "Job id must be a UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
