package service

import (
	"sort"

	"fleet-orchestrator/internal/entity"
)

// SelectJob picks the job worker should run next, or nil if it should stay idle.
//
// A job is eligible when its demands are met by the worker's capabilities and it is either
// Queued and unassigned or Running under this worker. reported maps job ids the worker is
// already running to the hash it holds. Preference:
//  1. an owned job whose hash the worker already has,
//  2. any other owned job,
//  3. the oldest Queued job.
//
// Callers that have already reconciled the reported jobs may leave them out of candidates and
// pass a nil reported map; the heartbeat path does this, so only preferences 2 and 3 apply there.
func SelectJob(worker *entity.Worker, reported map[string]string, candidates []*entity.Job) *entity.Job {
	var owned, queued []*entity.Job
	for _, j := range candidates {
		if j == nil || !worker.Satisfies(j.Demands) {
			continue
		}
		switch {
		case j.Status == entity.JobRunning && j.AssignedTo(worker.WorkerID):
			owned = append(owned, j)
		case j.Status == entity.JobQueued && j.AssignedWorkerID == nil:
			queued = append(queued, j)
		}
	}

	sortFIFO(owned)
	for _, j := range owned {
		if h, ok := reported[j.ID]; ok && h == j.JobHash {
			return j
		}
	}
	if len(owned) > 0 {
		return owned[0]
	}

	if len(queued) == 0 {
		return nil
	}
	sortFIFO(queued)
	return queued[0]
}

func sortFIFO(jobs []*entity.Job) {
	sort.SliceStable(jobs, func(a, b int) bool {
		if !jobs[a].CreatedAt.Equal(jobs[b].CreatedAt) {
			return jobs[a].CreatedAt.Before(jobs[b].CreatedAt)
		}
		return jobs[a].ID < jobs[b].ID
	})
}
