package httptransport

import (
	"encoding/json"
	"net/http"

	"fleet-orchestrator/internal/entity"
)

// heartbeatDTO accepts either a single "job" or a "jobs" array; older agents send the former.
type heartbeatDTO struct {
	Worker entity.WorkerHeartbeat `json:"worker"`
	Job    *entity.JobHeartbeat   `json:"job,omitempty"`
	Jobs   []entity.JobHeartbeat  `json:"jobs,omitempty"`
}

// Heartbeat godoc
// @Summary Worker heartbeat
// @Description Reports worker and job state and returns one instruction per job (Keep, SwitchToActive, Cancel, Remove).
// @Tags heartbeat
// @Accept json
// @Produce json
// @Param request body heartbeatDTO true "heartbeat"
// @Success 200 {array} entity.HeartbeatResponseEntry
// @Failure 400 {object} apiError
// @Router /heartbeat [post]
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var dto heartbeatDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	hb := entity.Heartbeat{Worker: dto.Worker, Jobs: dto.Jobs}
	if dto.Job != nil {
		hb.Jobs = append(hb.Jobs, *dto.Job)
	}

	entries, err := h.heartbeatSvc.ProcessHeartbeat(r.Context(), hb)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	if entries == nil {
		entries = []entity.HeartbeatResponseEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
