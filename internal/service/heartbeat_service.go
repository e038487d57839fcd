package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"fleet-orchestrator/internal/entity"
	"fleet-orchestrator/internal/metrics"
	"fleet-orchestrator/internal/repository"
)

var ErrInvalidHeartbeat = errors.New("invalid heartbeat")

type HeartbeatConfig struct {
	// LivenessTimeout is how long a Running job may go without a heartbeat before
	// orphan recovery puts it back in the queue.
	LivenessTimeout time.Duration
	// MaxJobsPerWorker caps how many jobs one worker is asked to run at once.
	MaxJobsPerWorker int
	// AssignmentScanLimit is the page size used when scanning the queue for a match.
	AssignmentScanLimit int
	// AssignmentScanPages bounds how many queue pages one heartbeat may scan.
	AssignmentScanPages int
}

func (c HeartbeatConfig) withDefaults() HeartbeatConfig {
	if c.LivenessTimeout <= 0 {
		c.LivenessTimeout = 2 * time.Minute
	}
	if c.MaxJobsPerWorker <= 0 {
		c.MaxJobsPerWorker = 1
	}
	if c.AssignmentScanLimit <= 0 {
		c.AssignmentScanLimit = 100
	}
	if c.AssignmentScanPages <= 0 {
		c.AssignmentScanPages = 10
	}
	return c
}

// HeartbeatService answers worker heartbeats: it refreshes the worker record, reconciles
// every job the worker reports and hands out new work. It never fails a heartbeat because of
// job state; mismatches are expressed as instructions.
type HeartbeatService struct {
	jobs    JobRepository
	workers *WorkerService
	metrics *metrics.Collector
	cfg     HeartbeatConfig
	now     func() time.Time
}

func NewHeartbeatService(jobs JobRepository, workers *WorkerService, m *metrics.Collector, cfg HeartbeatConfig) *HeartbeatService {
	return &HeartbeatService{
		jobs:    jobs,
		workers: workers,
		metrics: m,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
	}
}

func (s *HeartbeatService) ProcessHeartbeat(ctx context.Context, hb entity.Heartbeat) ([]entity.HeartbeatResponseEntry, error) {
	if hb.Worker.WorkerID == "" {
		return nil, fmt.Errorf("%w: workerId is required", ErrInvalidHeartbeat)
	}
	if hb.Worker.Status == "" {
		hb.Worker.Status = entity.WorkerRunning
	}
	if !hb.Worker.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown worker status %q", ErrInvalidHeartbeat, hb.Worker.Status)
	}

	start := s.now()
	defer func() { s.metrics.ObserveHeartbeat(time.Since(start).Seconds()) }()

	worker, err := s.workers.Touch(ctx, hb.Worker, start)
	if err != nil {
		// the heartbeat is still answered from what the worker told us
		log.Printf("[heartbeat] worker_id=%s upsert error=%v", hb.Worker.WorkerID, err)
		worker = &entity.Worker{
			WorkerID:     hb.Worker.WorkerID,
			AgentID:      hb.Worker.AgentID,
			Capabilities: hb.Worker.Capabilities,
			Status:       hb.Worker.Status,
			LastSeen:     start,
		}
	}

	entries := make([]entity.HeartbeatResponseEntry, 0, len(hb.Jobs)+1)
	covered := make(map[string]bool, len(hb.Jobs))
	active := 0
	var reclaims []entity.JobHeartbeat
	for _, jh := range hb.Jobs {
		if jh.JobID == "" || covered[jh.JobID] {
			continue
		}
		covered[jh.JobID] = true
		e, wantsClaim := s.processJob(ctx, worker, jh, false)
		if wantsClaim {
			reclaims = append(reclaims, jh)
			continue
		}
		if e.Active() {
			active++
		}
		entries = append(entries, e)
	}

	// reclaimed jobs only get the slots left over by jobs the worker still holds
	for _, jh := range reclaims {
		e, _ := s.processJob(ctx, worker, jh, active < s.cfg.MaxJobsPerWorker)
		if e.Active() {
			active++
		}
		entries = append(entries, e)
	}

	if worker.Status != entity.WorkerStopped && active < s.cfg.MaxJobsPerWorker {
		if e := s.assign(ctx, worker, covered); e != nil {
			entries = append(entries, *e)
		}
	}

	for _, e := range entries {
		s.metrics.RecordInstruction(string(e.HeartbeatInstruction))
	}
	return entries, nil
}

// jobDecision is the answer for one reported job. write, when set, must be persisted for
// the answer to hold; lost is the answer to give if that write keeps losing to other writers.
// wantsClaim marks a reclaimable job that was refused only for lack of a free slot.
type jobDecision struct {
	entry      entity.HeartbeatResponseEntry
	write      *entity.Job
	lost       entity.HeartbeatInstruction
	wantsClaim bool
}

func decideJob(job *entity.Job, worker *entity.Worker, jh entity.JobHeartbeat, now time.Time, canClaim bool) jobDecision {
	workerID := worker.WorkerID
	reportedTerminal := jh.Status == entity.JobCompleted || jh.Status == entity.JobFailed
	d := jobDecision{entry: entity.HeartbeatResponseEntry{JobID: job.ID}}

	switch {
	case job.AssignedWorkerID != nil && !job.AssignedTo(workerID):
		// the job belongs to someone else now
		if reportedTerminal {
			d.entry.HeartbeatInstruction = entity.InstructionRemove
		} else {
			d.entry.HeartbeatInstruction = entity.InstructionCancel
		}
		return d

	case job.Status == entity.JobCancelled:
		if reportedTerminal {
			d.entry.HeartbeatInstruction = entity.InstructionRemove
		} else {
			d.entry.HeartbeatInstruction = entity.InstructionCancel
		}
		return d

	case job.Status.Terminal():
		d.entry.HeartbeatInstruction = entity.InstructionRemove
		return d

	case reportedTerminal && !job.AssignedTo(workerID):
		// nobody holds the job, so the result is dropped and the job runs again
		d.entry.HeartbeatInstruction = entity.InstructionRemove
		return d

	case reportedTerminal:
		next := job.Clone()
		next.Status = jh.Status
		next.Touch(now)
		d.write = next
		d.entry.HeartbeatInstruction = entity.InstructionRemove
		d.lost = entity.InstructionKeep
		return d
	}

	next := job.Clone()
	if job.Status == entity.JobRunning && job.AssignedTo(workerID) {
		next.Touch(now)
		d.lost = entity.InstructionKeep
	} else {
		// Queued after orphan recovery, or never confirmed: the reporting worker may reclaim it
		// under the same rules as a fresh assignment
		if worker.Status == entity.WorkerStopped || !worker.Satisfies(job.Demands) {
			d.entry.HeartbeatInstruction = entity.InstructionCancel
			return d
		}
		if !canClaim {
			d.entry.HeartbeatInstruction = entity.InstructionCancel
			d.wantsClaim = true
			return d
		}
		next.Assign(workerID, now)
		d.lost = entity.InstructionCancel
	}
	d.write = next

	if jh.JobHash == job.JobHash {
		d.entry.HeartbeatInstruction = entity.InstructionKeep
	} else {
		d.entry.HeartbeatInstruction = entity.InstructionSwitchToActive
		d.entry.UpdatedJob = job
	}
	return d
}

// processJob reconciles one reported job. The second result is true when the job could be
// reclaimed but canClaim was false; nothing has been written in that case.
func (s *HeartbeatService) processJob(ctx context.Context, worker *entity.Worker, jh entity.JobHeartbeat, canClaim bool) (entity.HeartbeatResponseEntry, bool) {
	workerID := worker.WorkerID
	now := s.now()
	var last jobDecision
	for attempt := 0; attempt < 2; attempt++ {
		job, err := s.jobs.Get(ctx, jh.JobID)
		if errors.Is(err, repository.ErrNotFound) {
			log.Printf("[heartbeat] worker_id=%s job_id=%s unknown job instruction=%s", workerID, jh.JobID, entity.InstructionRemove)
			return entity.HeartbeatResponseEntry{JobID: jh.JobID, HeartbeatInstruction: entity.InstructionRemove}, false
		}
		if err != nil {
			log.Printf("[heartbeat] worker_id=%s job_id=%s get error=%v", workerID, jh.JobID, err)
			return entity.HeartbeatResponseEntry{JobID: jh.JobID, HeartbeatInstruction: entity.InstructionKeep}, false
		}

		last = decideJob(job, worker, jh, now, canClaim)
		if last.write == nil {
			return last.entry, last.wantsClaim
		}

		stored, err := s.jobs.CompareAndSwap(ctx, job.ID, job.Version, last.write)
		switch {
		case err == nil:
			e := last.entry
			e.LastActiveHeartbeat = stored.LastActiveHeartbeat
			if e.UpdatedJob != nil {
				e.UpdatedJob = stored
			}
			if e.HeartbeatInstruction != entity.InstructionKeep {
				log.Printf("[heartbeat] worker_id=%s job_id=%s status=%s instruction=%s",
					workerID, job.ID, stored.Status, e.HeartbeatInstruction)
			}
			return e, false
		case errors.Is(err, repository.ErrNotFound):
			return entity.HeartbeatResponseEntry{JobID: jh.JobID, HeartbeatInstruction: entity.InstructionRemove}, false
		case errors.Is(err, repository.ErrVersionConflict):
			continue
		default:
			log.Printf("[heartbeat] worker_id=%s job_id=%s update error=%v", workerID, jh.JobID, err)
			return entity.HeartbeatResponseEntry{JobID: jh.JobID, HeartbeatInstruction: entity.InstructionKeep}, false
		}
	}

	log.Printf("[heartbeat] worker_id=%s job_id=%s update lost twice instruction=%s", workerID, jh.JobID, last.lost)
	e := entity.HeartbeatResponseEntry{JobID: jh.JobID, HeartbeatInstruction: last.lost}
	if last.lost == entity.InstructionKeep && last.entry.UpdatedJob != nil {
		e.HeartbeatInstruction = entity.InstructionSwitchToActive
		e.UpdatedJob = last.entry.UpdatedJob
	}
	return e, false
}

// assign tries to hand the worker a new job. A lost race is retried once against fresh
// state; after that the worker simply asks again on its next heartbeat.
func (s *HeartbeatService) assign(ctx context.Context, worker *entity.Worker, covered map[string]bool) *entity.HeartbeatResponseEntry {
	for attempt := 0; attempt < 2; attempt++ {
		job, err := s.nextJob(ctx, worker, covered)
		if err != nil {
			log.Printf("[heartbeat] worker_id=%s select job error=%v", worker.WorkerID, err)
			return nil
		}
		if job == nil {
			return nil
		}

		next := job.Clone()
		next.Assign(worker.WorkerID, s.now())
		stored, err := s.jobs.CompareAndSwap(ctx, job.ID, job.Version, next)
		switch {
		case err == nil:
			s.metrics.RecordAssignment()
			log.Printf("[heartbeat] worker_id=%s job_id=%s assigned instruction=%s",
				worker.WorkerID, stored.ID, entity.InstructionSwitchToActive)
			return &entity.HeartbeatResponseEntry{
				JobID:                stored.ID,
				HeartbeatInstruction: entity.InstructionSwitchToActive,
				LastActiveHeartbeat:  stored.LastActiveHeartbeat,
				UpdatedJob:           stored,
			}
		case errors.Is(err, repository.ErrVersionConflict), errors.Is(err, repository.ErrNotFound):
			s.metrics.RecordAssignmentConflict()
			continue
		default:
			log.Printf("[heartbeat] worker_id=%s job_id=%s assign error=%v", worker.WorkerID, job.ID, err)
			return nil
		}
	}
	return nil
}

// nextJob looks at the jobs the worker already owns first and then scans the queue oldest
// first, page by page, until a job matches. Jobs the worker reported were reconciled by
// processJob and are left out, so SelectJob gets no reported hashes here.
func (s *HeartbeatService) nextJob(ctx context.Context, worker *entity.Worker, covered map[string]bool) (*entity.Job, error) {
	owned, err := s.collect(ctx, entity.JobFilter{
		Statuses:         []entity.JobStatus{entity.JobRunning},
		AssignedWorkerID: worker.WorkerID,
	}, covered, 1)
	if err != nil {
		return nil, err
	}
	if j := SelectJob(worker, nil, owned); j != nil {
		return j, nil
	}

	token := ""
	for page := 0; page < s.cfg.AssignmentScanPages; page++ {
		jobs, next, err := s.jobs.List(ctx, entity.JobFilter{Statuses: []entity.JobStatus{entity.JobQueued}}, token, s.cfg.AssignmentScanLimit)
		if err != nil {
			return nil, err
		}
		if j := SelectJob(worker, nil, uncovered(jobs, covered)); j != nil {
			return j, nil
		}
		if next == "" {
			break
		}
		token = next
	}
	return nil, nil
}

func (s *HeartbeatService) collect(ctx context.Context, filter entity.JobFilter, covered map[string]bool, pages int) ([]*entity.Job, error) {
	var out []*entity.Job
	token := ""
	for page := 0; page < pages; page++ {
		jobs, next, err := s.jobs.List(ctx, filter, token, s.cfg.AssignmentScanLimit)
		if err != nil {
			return nil, err
		}
		out = append(out, uncovered(jobs, covered)...)
		if next == "" {
			break
		}
		token = next
	}
	return out, nil
}

func uncovered(jobs []*entity.Job, covered map[string]bool) []*entity.Job {
	out := jobs[:0:0]
	for _, j := range jobs {
		if !covered[j.ID] {
			out = append(out, j)
		}
	}
	return out
}

// RecoverOrphans returns Running jobs whose worker has been silent for longer than the
// liveness timeout to the queue. Jobs that change concurrently are left for the next sweep.
func (s *HeartbeatService) RecoverOrphans(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.LivenessTimeout)
	filter := entity.JobFilter{
		Statuses:     []entity.JobStatus{entity.JobRunning},
		ActiveBefore: &cutoff,
	}

	recovered := 0
	defer func() { s.metrics.RecordOrphans(recovered) }()

	token := ""
	for {
		jobs, next, err := s.jobs.List(ctx, filter, token, s.cfg.AssignmentScanLimit)
		if err != nil {
			return recovered, err
		}
		for _, j := range jobs {
			reset := j.Clone()
			reset.Status = entity.JobQueued
			reset.Unassign()

			_, err := s.jobs.CompareAndSwap(ctx, j.ID, j.Version, reset)
			switch {
			case err == nil:
				recovered++
				prev := ""
				if j.AssignedWorkerID != nil {
					prev = *j.AssignedWorkerID
				}
				log.Printf("[orphans] job_id=%s worker_id=%s requeued", j.ID, prev)
			case errors.Is(err, repository.ErrVersionConflict), errors.Is(err, repository.ErrNotFound):
				// a heartbeat or an operator got there first
			default:
				if ctx.Err() != nil {
					return recovered, ctx.Err()
				}
				log.Printf("[orphans] job_id=%s requeue error=%v", j.ID, err)
			}
		}
		if next == "" {
			return recovered, nil
		}
		token = next
	}
}
