package httptransport

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"fleet-orchestrator/internal/entity"
	"fleet-orchestrator/internal/service"
)

type Handler struct {
	jobSvc       *service.JobService
	workerSvc    *service.WorkerService
	heartbeatSvc *service.HeartbeatService
}

func NewHandler(jobSvc *service.JobService, workerSvc *service.WorkerService, heartbeatSvc *service.HeartbeatService) *Handler {
	return &Handler{jobSvc: jobSvc, workerSvc: workerSvc, heartbeatSvc: heartbeatSvc}
}

type createJobDTO struct {
	ID                   string            `json:"id,omitempty"`
	JobConfigurationType string            `json:"jobConfigurationType"`
	JobConfiguration     json.RawMessage   `json:"jobConfiguration" swaggertype:"object"`
	Demands              map[string]string `json:"demands,omitempty"`
}

type updateJobDTO struct {
	JobConfigurationType string            `json:"jobConfigurationType"`
	JobConfiguration     json.RawMessage   `json:"jobConfiguration" swaggertype:"object"`
	Demands              map[string]string `json:"demands,omitempty"`
}

type queryJobsDTO struct {
	Statuses             []entity.JobStatus `json:"statuses,omitempty"`
	JobConfigurationType string             `json:"jobConfigurationType,omitempty"`
	AssignedWorkerID     string             `json:"assignedWorkerId,omitempty"`
	ContinuationToken    string             `json:"continuationToken,omitempty"`
	PageSize             int                `json:"pageSize,omitempty"`
}

type jobPage struct {
	Items             []*entity.Job `json:"items"`
	ContinuationToken string        `json:"continuationToken,omitempty"`
}

type workerPage struct {
	Items             []*entity.Worker `json:"items"`
	ContinuationToken string           `json:"continuationToken,omitempty"`
}

func pageSizeParam(r *http.Request) (int, bool) {
	v := r.URL.Query().Get("pageSize")
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ListJobs godoc
// @Summary List jobs
// @Description Returns one page of jobs in creation order.
// @Tags jobs
// @Produce json
// @Param continuationToken query string false "token from the previous page"
// @Param pageSize query int false "page size (clamped to the configured maximum)"
// @Success 200 {object} jobPage
// @Failure 400 {object} apiError
// @Router /jobs [get]
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	size, ok := pageSizeParam(r)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid pageSize")
		return
	}

	jobs, next, err := h.jobSvc.ListJobs(r.Context(), r.URL.Query().Get("continuationToken"), size)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobPage{Items: nonNil(jobs), ContinuationToken: next})
}

// QueryJobs godoc
// @Summary Query jobs
// @Description Filters jobs by status, configuration type and assigned worker.
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body queryJobsDTO true "filter"
// @Success 200 {object} jobPage
// @Failure 400 {object} apiError
// @Router /jobs [post]
func (h *Handler) QueryJobs(w http.ResponseWriter, r *http.Request) {
	var dto queryJobsDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	filter := entity.JobFilter{
		Statuses:             dto.Statuses,
		JobConfigurationType: dto.JobConfigurationType,
		AssignedWorkerID:     dto.AssignedWorkerID,
	}

	jobs, next, err := h.jobSvc.QueryJobs(r.Context(), filter, dto.ContinuationToken, dto.PageSize)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobPage{Items: nonNil(jobs), ContinuationToken: next})
}

// CreateJob godoc
// @Summary Create a job
// @Description Stores a new Queued job; id defaults to a fresh uuid.
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body createJobDTO true "job"
// @Success 201 {object} entity.Job
// @Failure 400 {object} apiError
// @Failure 409 {object} apiError
// @Router /jobs [put]
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var dto createJobDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	job, err := h.jobSvc.CreateJob(r.Context(), service.CreateJobRequest{
		ID:                   dto.ID,
		JobConfigurationType: dto.JobConfigurationType,
		JobConfiguration:     dto.JobConfiguration,
		Demands:              dto.Demands,
	})
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

// GetJob godoc
// @Summary Get job by id
// @Tags jobs
// @Produce json
// @Param id path string true "job id"
// @Success 200 {object} entity.Job
// @Failure 404 {object} apiError
// @Router /jobs/{id} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobSvc.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// UpdateJobConfiguration godoc
// @Summary Replace job configuration
// @Description Recomputes the job hash; the assigned worker receives the new configuration on its next heartbeat.
// @Tags jobs
// @Accept json
// @Produce json
// @Param id path string true "job id"
// @Param request body updateJobDTO true "configuration"
// @Success 200 {object} entity.Job
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /jobs/{id}/configuration [put]
func (h *Handler) UpdateJobConfiguration(w http.ResponseWriter, r *http.Request) {
	var dto updateJobDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	job, err := h.jobSvc.UpdateJobConfiguration(r.Context(), chi.URLParam(r, "id"), service.UpdateJobRequest{
		JobConfigurationType: dto.JobConfigurationType,
		JobConfiguration:     dto.JobConfiguration,
		Demands:              dto.Demands,
	})
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// CancelJob godoc
// @Summary Cancel a job
// @Description Queued and Running jobs become Cancelled; other states are returned unchanged.
// @Tags jobs
// @Produce json
// @Param id path string true "job id"
// @Success 200 {object} entity.Job
// @Failure 404 {object} apiError
// @Router /jobs/{id}/cancel [get]
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobSvc.CancelJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// RestartJob godoc
// @Summary Restart a finished job
// @Description Only Cancelled, Failed and Completed jobs can be restarted.
// @Tags jobs
// @Produce json
// @Param id path string true "job id"
// @Success 200 {object} entity.Job
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /jobs/{id}/restart [get]
func (h *Handler) RestartJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobSvc.RestartJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// DeleteJob godoc
// @Summary Delete a job
// @Tags jobs
// @Param id path string true "job id"
// @Success 204
// @Failure 404 {object} apiError
// @Router /jobs/{id} [delete]
func (h *Handler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := h.jobSvc.DeleteJob(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListWorkers godoc
// @Summary List workers
// @Tags workers
// @Produce json
// @Param continuationToken query string false "token from the previous page"
// @Param pageSize query int false "page size"
// @Success 200 {object} workerPage
// @Failure 400 {object} apiError
// @Router /workers [get]
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	size, ok := pageSizeParam(r)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid pageSize")
		return
	}

	workers, next, err := h.workerSvc.ListWorkers(r.Context(), r.URL.Query().Get("continuationToken"), size)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	if workers == nil {
		workers = []*entity.Worker{}
	}
	writeJSON(w, http.StatusOK, workerPage{Items: workers, ContinuationToken: next})
}

// GetWorker godoc
// @Summary Get worker by id
// @Tags workers
// @Produce json
// @Param id path string true "worker id"
// @Success 200 {object} entity.Worker
// @Failure 404 {object} apiError
// @Router /workers/{id} [get]
func (h *Handler) GetWorker(w http.ResponseWriter, r *http.Request) {
	worker, err := h.workerSvc.GetWorker(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, worker)
}

// DeleteWorker godoc
// @Summary Delete a worker
// @Tags workers
// @Param id path string true "worker id"
// @Success 204
// @Failure 404 {object} apiError
// @Router /workers/{id} [delete]
func (h *Handler) DeleteWorker(w http.ResponseWriter, r *http.Request) {
	if err := h.workerSvc.DeleteWorker(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func nonNil(jobs []*entity.Job) []*entity.Job {
	if jobs == nil {
		return []*entity.Job{}
	}
	return jobs
}
