package httptransport_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fleet-orchestrator/internal/entity"
	"fleet-orchestrator/internal/metrics"
	"fleet-orchestrator/internal/repository/memory"
	"fleet-orchestrator/internal/service"
	httptransport "fleet-orchestrator/internal/transport/http"
)

// ---- helpers ----

func newTestRouter() http.Handler {
	paging := service.Paging{Default: 50, Max: 500}
	m := metrics.NewCollector()
	jobRepo := memory.NewJobRepository()

	jobs := service.NewJobService(jobRepo, paging)
	workers := service.NewWorkerService(memory.NewWorkerRepository(), paging)
	heartbeats := service.NewHeartbeatService(jobRepo, workers, m, service.HeartbeatConfig{})

	h := httptransport.NewHandler(jobs, workers, heartbeats)
	return httptransport.Routes(h, m.Handler())
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid json response: %v, body=%s", err, rr.Body.String())
	}
	return v
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected %d, got %d, body=%s", want, rr.Code, rr.Body.String())
	}
}

func createJob(t *testing.T, h http.Handler, id string, demands string) entity.Job {
	t.Helper()
	body := `{"id":"` + id + `","jobConfigurationType":"opcua","jobConfiguration":{"endpoint":"opc.tcp://plc:4840"},"demands":` + demands + `}`
	rr := do(t, h, http.MethodPut, "/jobs", body)
	expectStatus(t, rr, http.StatusCreated)
	return decode[entity.Job](t, rr)
}

type entry struct {
	JobID                string      `json:"jobId"`
	HeartbeatInstruction string      `json:"heartbeatInstruction"`
	UpdatedJob           *entity.Job `json:"updatedJob"`
}

// ---- tests ----

func TestHTTP_Health(t *testing.T) {
	rr := do(t, newTestRouter(), http.MethodGet, "/health", "")
	expectStatus(t, rr, http.StatusOK)
	if rr.Body.String() != "ok" {
		t.Fatalf("expected ok, got %q", rr.Body.String())
	}
}

func TestHTTP_CreateJob_201_QueuedWithHash(t *testing.T) {
	router := newTestRouter()

	job := createJob(t, router, "J1", `{"os":"linux"}`)
	if job.Status != entity.JobQueued {
		t.Fatalf("expected Queued, got %s", job.Status)
	}
	if job.JobHash == "" {
		t.Fatalf("expected job hash to be set")
	}

	rr := do(t, router, http.MethodGet, "/jobs/J1", "")
	expectStatus(t, rr, http.StatusOK)
	got := decode[entity.Job](t, rr)
	if got.ID != "J1" || got.Demands["os"] != "linux" {
		t.Fatalf("unexpected job %+v", got)
	}

	rr = do(t, router, http.MethodPut, "/jobs", `{"id":"J1","jobConfigurationType":"opcua","jobConfiguration":{}}`)
	expectStatus(t, rr, http.StatusConflict)
}

func TestHTTP_CreateJob_400(t *testing.T) {
	router := newTestRouter()

	expectStatus(t, do(t, router, http.MethodPut, "/jobs", `{`), http.StatusBadRequest)
	expectStatus(t, do(t, router, http.MethodPut, "/jobs", `{"jobConfiguration":{}}`), http.StatusBadRequest)
}

func TestHTTP_Heartbeat_AssignsMatchingQueuedJob(t *testing.T) {
	router := newTestRouter()
	createJob(t, router, "J1", `{"os":"linux"}`)

	rr := do(t, router, http.MethodPost, "/heartbeat",
		`{"worker":{"workerId":"W1","agentId":"A1","status":"Running","capabilities":{"os":"linux"}}}`)
	expectStatus(t, rr, http.StatusOK)

	entries := decode[[]entry](t, rr)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %#v", entries)
	}
	if entries[0].JobID != "J1" || entries[0].HeartbeatInstruction != "SwitchToActive" || entries[0].UpdatedJob == nil {
		t.Fatalf("unexpected entry %#v", entries[0])
	}

	job := decode[entity.Job](t, do(t, router, http.MethodGet, "/jobs/J1", ""))
	if job.Status != entity.JobRunning || job.AssignedWorkerID == nil || *job.AssignedWorkerID != "W1" {
		t.Fatalf("expected J1 Running on W1, got %+v", job)
	}

	rr = do(t, router, http.MethodGet, "/workers/W1", "")
	expectStatus(t, rr, http.StatusOK)
}

func TestHTTP_Heartbeat_DemandMismatchGetsNothing(t *testing.T) {
	router := newTestRouter()
	createJob(t, router, "J1", `{"os":"linux"}`)

	rr := do(t, router, http.MethodPost, "/heartbeat",
		`{"worker":{"workerId":"W2","capabilities":{"os":"windows"}}}`)
	expectStatus(t, rr, http.StatusOK)
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %s", rr.Body.String())
	}
}

func TestHTTP_Heartbeat_KeepStaleAndComplete(t *testing.T) {
	router := newTestRouter()
	created := createJob(t, router, "J1", `{}`)

	do(t, router, http.MethodPost, "/heartbeat", `{"worker":{"workerId":"W1"}}`)

	// current hash, single "job" form
	rr := do(t, router, http.MethodPost, "/heartbeat",
		`{"worker":{"workerId":"W1"},"job":{"jobId":"J1","jobHash":"`+created.JobHash+`","status":"Running"}}`)
	expectStatus(t, rr, http.StatusOK)
	entries := decode[[]entry](t, rr)
	if len(entries) != 1 || entries[0].HeartbeatInstruction != "Keep" {
		t.Fatalf("expected Keep, got %#v", entries)
	}

	// stale hash
	rr = do(t, router, http.MethodPost, "/heartbeat",
		`{"worker":{"workerId":"W1"},"jobs":[{"jobId":"J1","jobHash":"old","status":"Running"}]}`)
	entries = decode[[]entry](t, rr)
	if len(entries) != 1 || entries[0].HeartbeatInstruction != "SwitchToActive" ||
		entries[0].UpdatedJob == nil || entries[0].UpdatedJob.JobHash != created.JobHash {
		t.Fatalf("expected SwitchToActive with current config, got %#v", entries)
	}

	// terminal report
	rr = do(t, router, http.MethodPost, "/heartbeat",
		`{"worker":{"workerId":"W1"},"jobs":[{"jobId":"J1","jobHash":"`+created.JobHash+`","status":"Completed"}]}`)
	entries = decode[[]entry](t, rr)
	if len(entries) != 1 || entries[0].HeartbeatInstruction != "Remove" {
		t.Fatalf("expected Remove, got %#v", entries)
	}
	job := decode[entity.Job](t, do(t, router, http.MethodGet, "/jobs/J1", ""))
	if job.Status != entity.JobCompleted {
		t.Fatalf("expected Completed, got %s", job.Status)
	}
}

func TestHTTP_Heartbeat_UnknownJobRemoved(t *testing.T) {
	router := newTestRouter()

	rr := do(t, router, http.MethodPost, "/heartbeat",
		`{"worker":{"workerId":"W1"},"jobs":[{"jobId":"ghost","jobHash":"x","status":"Running"}]}`)
	expectStatus(t, rr, http.StatusOK)
	entries := decode[[]entry](t, rr)
	if len(entries) != 1 || entries[0].JobID != "ghost" || entries[0].HeartbeatInstruction != "Remove" {
		t.Fatalf("expected Remove for ghost, got %#v", entries)
	}
}

func TestHTTP_Heartbeat_400(t *testing.T) {
	router := newTestRouter()

	expectStatus(t, do(t, router, http.MethodPost, "/heartbeat", `{"worker":{}}`), http.StatusBadRequest)
	expectStatus(t, do(t, router, http.MethodPost, "/heartbeat", `{"worker":{"workerId":"W1","status":"Sleeping"}}`), http.StatusBadRequest)
	expectStatus(t, do(t, router, http.MethodPost, "/heartbeat", `nope`), http.StatusBadRequest)
}

func TestHTTP_CancelRestartDelete(t *testing.T) {
	router := newTestRouter()
	createJob(t, router, "J1", `{}`)

	// restart of a Queued job is an illegal transition
	rr := do(t, router, http.MethodGet, "/jobs/J1/restart", "")
	expectStatus(t, rr, http.StatusConflict)
	if decode[entity.Job](t, do(t, router, http.MethodGet, "/jobs/J1", "")).Status != entity.JobQueued {
		t.Fatalf("restart must leave the job untouched")
	}

	rr = do(t, router, http.MethodGet, "/jobs/J1/cancel", "")
	expectStatus(t, rr, http.StatusOK)
	if decode[entity.Job](t, rr).Status != entity.JobCancelled {
		t.Fatalf("expected Cancelled")
	}

	rr = do(t, router, http.MethodGet, "/jobs/J1/restart", "")
	expectStatus(t, rr, http.StatusOK)
	if decode[entity.Job](t, rr).Status != entity.JobQueued {
		t.Fatalf("expected Queued after restart")
	}

	expectStatus(t, do(t, router, http.MethodDelete, "/jobs/J1", ""), http.StatusNoContent)
	expectStatus(t, do(t, router, http.MethodDelete, "/jobs/J1", ""), http.StatusNotFound)
	expectStatus(t, do(t, router, http.MethodGet, "/jobs/missing/cancel", ""), http.StatusNotFound)
	expectStatus(t, do(t, router, http.MethodGet, "/jobs/missing/restart", ""), http.StatusNotFound)
	expectStatus(t, do(t, router, http.MethodDelete, "/workers/missing", ""), http.StatusNotFound)
}

func TestHTTP_UpdateConfigurationChangesHash(t *testing.T) {
	router := newTestRouter()
	created := createJob(t, router, "J1", `{}`)

	rr := do(t, router, http.MethodPut, "/jobs/J1/configuration",
		`{"jobConfigurationType":"opcua","jobConfiguration":{"endpoint":"opc.tcp://plc2:4840"}}`)
	expectStatus(t, rr, http.StatusOK)
	updated := decode[entity.Job](t, rr)
	if updated.JobHash == created.JobHash {
		t.Fatalf("expected hash to change")
	}

	expectStatus(t, do(t, router, http.MethodPut, "/jobs/missing/configuration",
		`{"jobConfigurationType":"opcua","jobConfiguration":{}}`), http.StatusNotFound)
}

func TestHTTP_ListAndQueryJobs_Paged(t *testing.T) {
	router := newTestRouter()
	createJob(t, router, "J1", `{}`)
	createJob(t, router, "J2", `{}`)
	createJob(t, router, "J3", `{}`)

	type page struct {
		Items             []entity.Job `json:"items"`
		ContinuationToken string       `json:"continuationToken"`
	}

	var ids []string
	token := ""
	for i := 0; i < 5; i++ {
		rr := do(t, router, http.MethodGet, "/jobs?pageSize=2&continuationToken="+token, "")
		expectStatus(t, rr, http.StatusOK)
		p := decode[page](t, rr)
		for _, j := range p.Items {
			ids = append(ids, j.ID)
		}
		if p.ContinuationToken == "" {
			break
		}
		token = p.ContinuationToken
	}
	if strings.Join(ids, ",") != "J1,J2,J3" {
		t.Fatalf("expected J1,J2,J3 across pages, got %v", ids)
	}

	do(t, router, http.MethodGet, "/jobs/J2/cancel", "")
	rr := do(t, router, http.MethodPost, "/jobs", `{"statuses":["Cancelled"]}`)
	expectStatus(t, rr, http.StatusOK)
	p := decode[page](t, rr)
	if len(p.Items) != 1 || p.Items[0].ID != "J2" {
		t.Fatalf("expected only J2, got %+v", p.Items)
	}

	expectStatus(t, do(t, router, http.MethodPost, "/jobs", `{"statuses":["Sleeping"]}`), http.StatusBadRequest)
	expectStatus(t, do(t, router, http.MethodGet, "/jobs?continuationToken=not*base64", ""), http.StatusBadRequest)
	expectStatus(t, do(t, router, http.MethodGet, "/jobs?pageSize=-1", ""), http.StatusBadRequest)
}

func TestHTTP_Metrics(t *testing.T) {
	router := newTestRouter()
	do(t, router, http.MethodPost, "/heartbeat", `{"worker":{"workerId":"W1"}}`)

	rr := do(t, router, http.MethodGet, "/metrics", "")
	expectStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), "orchestrator_heartbeat_duration_seconds") {
		t.Fatalf("expected heartbeat histogram in metrics output")
	}
}
