package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"filecat/internal/filecat"
)

// Handler serves the /api/v1 endpoints on top of filecat.Service.
type Handler struct {
	svc    *filecat.Service
	logger *slog.Logger
}

func NewHandler(svc *filecat.Service, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger.With(slog.String("component", "api")),
	}
}

// JobAccepted is the 202 body of every batch endpoint.
type JobAccepted struct {
	JobID string `json:"jobId"`
}

// JobStatus is a job snapshot plus its completion percentage.
type JobStatus struct {
	*filecat.BatchJob
	Percent int `json:"percent"`
}

// SetCategoryRequest is the body of PUT files/{id}.
type SetCategoryRequest struct {
	Category string `json:"category"`
}

// ForceCategorizeRequest is the body of POST actions/force-categorize.
type ForceCategorizeRequest struct {
	ForceRecategorization bool `json:"forceRecategorization"`
}

// PutConfigRequest is the body of PUT configs/{key}.
type PutConfigRequest struct {
	Value       string `json:"value"`
	Environment string `json:"environment"`
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return filecat.NewValidationError("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}

func fileID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, filecat.NewValidationError("id", fmt.Sprintf("not a positive integer: %q", raw))
	}
	return id, nil
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// --- files ---

func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	filter, err := filecat.ParseFileFilter(r.URL.Query().Get("filter"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	files, err := h.svc.ListFiles(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(files))
}

func (h *Handler) LatestPerCategory(w http.ResponseWriter, r *http.Request) {
	files, err := h.svc.LatestPerCategory(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(files))
}

func (h *Handler) ListByCategory(w http.ResponseWriter, r *http.Request) {
	files, err := h.svc.ListByCategory(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(files))
}

func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	id, err := fileID(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rec, err := h.svc.GetFile(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) SetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := fileID(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	var req SetCategoryRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	rec, err := h.svc.SetCategory(r.Context(), id, req.Category)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) NotShowAgain(w http.ResponseWriter, r *http.Request) {
	id, err := fileID(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rec, err := h.svc.MarkExcluded(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id, err := fileID(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rec, err := h.svc.Acknowledge(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id, err := fileID(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	deleted, err := h.svc.DeleteFile(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !deleted {
		WriteError(w, http.StatusNotFound, CodeNotFound, fmt.Sprintf("file %d not found", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.svc.Categories(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(categories))
}

// --- actions ---

func (h *Handler) accepted(w http.ResponseWriter, job *filecat.BatchJob, err error) {
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, JobAccepted{JobID: job.ID})
}

func (h *Handler) RefreshFiles(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.Coordinator().SubmitRefresh()
	h.accepted(w, job, err)
}

func (h *Handler) ForceCategorize(w http.ResponseWriter, r *http.Request) {
	var req ForceCategorizeRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	job, err := h.svc.Coordinator().SubmitForceCategorize(req.ForceRecategorization)
	h.accepted(w, job, err)
}

func (h *Handler) MoveFiles(w http.ResponseWriter, r *http.Request) {
	var req filecat.MoveRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	job, err := h.svc.Coordinator().SubmitMove(req)
	h.accepted(w, job, err)
}

func (h *Handler) TrainModel(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.Coordinator().SubmitTrain()
	h.accepted(w, job, err)
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.svc.Coordinator().Jobs()
	out := make([]JobStatus, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, JobStatus{BatchJob: job, Percent: job.Percent()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.Coordinator().Job(chi.URLParam(r, "jobId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, JobStatus{BatchJob: job, Percent: job.Percent()})
}

func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobId")
	if err := h.svc.Coordinator().Cancel(id); err != nil {
		writeServiceError(w, err)
		return
	}
	h.logger.Info("job cancel requested", slog.String("job_id", id),
		slog.String("subject", SubjectFromContext(r.Context())))
	writeJSON(w, http.StatusAccepted, JobAccepted{JobID: id})
}

func (h *Handler) JobHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			validationError(w, fmt.Sprintf("limit: not a non-negative integer: %q", raw))
			return
		}
		limit = n
	}
	jobs, err := h.svc.JobHistory(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(jobs))
}

// --- configs ---

func (h *Handler) ListConfigs(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.ListConfigs(r.Context(), r.URL.Query().Get("environment"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(entries))
}

func (h *Handler) PutConfig(w http.ResponseWriter, r *http.Request) {
	var req PutConfigRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	entry, err := h.svc.PutConfig(r.Context(), chi.URLParam(r, "key"), req.Value, req.Environment)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) DeleteConfig(w http.ResponseWriter, r *http.Request) {
	env := r.URL.Query().Get("environment")
	if env == "" {
		env = filecat.EnvironmentDev
	}
	key := chi.URLParam(r, "key")
	deleted, err := h.svc.DeleteConfig(r.Context(), env, key)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !deleted {
		WriteError(w, http.StatusNotFound, CodeNotFound, fmt.Sprintf("config %s/%s not found", env, key))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- health ---

type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
}

func healthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthLiveResponse{
		Status:    "ok",
		Timestamp: timeNow().UTC().Format("2006-01-02T15:04:05Z07:00"),
		Service:   "filecat",
	})
}
