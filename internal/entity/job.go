package entity

import (
	"encoding/json"
	"time"
)

type JobStatus string

const (
	JobQueued    JobStatus = "Queued"
	JobRunning   JobStatus = "Running"
	JobCompleted JobStatus = "Completed"
	JobCancelled JobStatus = "Cancelled"
	JobFailed    JobStatus = "Failed"
	JobUnknown   JobStatus = "Unknown"
)

// Terminal reports whether no worker should be running a job in this status.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobCancelled || s == JobFailed
}

func (s JobStatus) Valid() bool {
	switch s {
	case JobQueued, JobRunning, JobCompleted, JobCancelled, JobFailed, JobUnknown:
		return true
	}
	return false
}

// Job is a unit of configuration work handed out to exactly one worker at a time.
// Version is bumped by the repository on every successful write.
type Job struct {
	ID                   string            `json:"id"`
	JobConfigurationType string            `json:"jobConfigurationType"`
	JobConfiguration     json.RawMessage   `json:"jobConfiguration"`
	JobHash              string            `json:"jobHash"`
	Demands              map[string]string `json:"demands,omitempty"`
	Status               JobStatus         `json:"status"`
	AssignedWorkerID     *string           `json:"assignedWorkerId,omitempty"`
	LastActiveHeartbeat  *time.Time        `json:"lastActiveHeartbeat,omitempty"`
	Version              int64             `json:"version"`
	CreatedAt            time.Time         `json:"createdAt"`
	UpdatedAt            time.Time         `json:"updatedAt"`
}

// AssignedTo reports whether the job is currently held by workerID.
func (j *Job) AssignedTo(workerID string) bool {
	return j.AssignedWorkerID != nil && *j.AssignedWorkerID == workerID
}

func (j *Job) Assign(workerID string, at time.Time) {
	id := workerID
	j.AssignedWorkerID = &id
	j.Status = JobRunning
	j.Touch(at)
}

func (j *Job) Unassign() {
	j.AssignedWorkerID = nil
	j.LastActiveHeartbeat = nil
}

// Touch records progress reported by the assigned worker.
func (j *Job) Touch(at time.Time) {
	t := at.UTC()
	j.LastActiveHeartbeat = &t
}

// Clone returns a deep copy so callers can mutate it before a compare-and-swap.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	if j.JobConfiguration != nil {
		c.JobConfiguration = append(json.RawMessage(nil), j.JobConfiguration...)
	}
	if j.Demands != nil {
		c.Demands = make(map[string]string, len(j.Demands))
		for k, v := range j.Demands {
			c.Demands[k] = v
		}
	}
	if j.AssignedWorkerID != nil {
		id := *j.AssignedWorkerID
		c.AssignedWorkerID = &id
	}
	if j.LastActiveHeartbeat != nil {
		t := *j.LastActiveHeartbeat
		c.LastActiveHeartbeat = &t
	}
	return &c
}

// JobFilter narrows a job listing. Zero fields do not filter.
type JobFilter struct {
	Statuses             []JobStatus `json:"statuses,omitempty"`
	JobConfigurationType string      `json:"jobConfigurationType,omitempty"`
	AssignedWorkerID     string      `json:"assignedWorkerId,omitempty"`
	// ActiveBefore matches jobs whose last heartbeat is older than the given instant
	// (or that never had one).
	ActiveBefore *time.Time `json:"activeBefore,omitempty"`
}

func (f JobFilter) Matches(j *Job) bool {
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if j.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.JobConfigurationType != "" && j.JobConfigurationType != f.JobConfigurationType {
		return false
	}
	if f.AssignedWorkerID != "" && !j.AssignedTo(f.AssignedWorkerID) {
		return false
	}
	if f.ActiveBefore != nil && j.LastActiveHeartbeat != nil && !j.LastActiveHeartbeat.Before(*f.ActiveBefore) {
		return false
	}
	return true
}
