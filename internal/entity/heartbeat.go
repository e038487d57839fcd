package entity

import (
	"encoding/json"
	"time"
)

type HeartbeatInstruction string

const (
	InstructionKeep           HeartbeatInstruction = "Keep"
	InstructionSwitchToActive HeartbeatInstruction = "SwitchToActive"
	InstructionCancel         HeartbeatInstruction = "Cancel"
	InstructionRemove         HeartbeatInstruction = "Remove"
)

type ProcessMode string

const (
	ProcessModeActive  ProcessMode = "Active"
	ProcessModePassive ProcessMode = "Passive"
)

type WorkerHeartbeat struct {
	WorkerID string       `json:"workerId"`
	AgentID  string       `json:"agentId"`
	Status   WorkerStatus `json:"status"`
	// Capabilities replaces the stored set when non-nil.
	Capabilities map[string]string `json:"capabilities,omitempty"`
}

type JobHeartbeat struct {
	JobID       string          `json:"jobId"`
	JobHash     string          `json:"jobHash"`
	Status      JobStatus       `json:"status"`
	ProcessMode ProcessMode     `json:"processMode,omitempty"`
	State       json.RawMessage `json:"state,omitempty"`
}

type Heartbeat struct {
	Worker WorkerHeartbeat
	Jobs   []JobHeartbeat
}

type HeartbeatResponseEntry struct {
	JobID                string               `json:"jobId"`
	HeartbeatInstruction HeartbeatInstruction `json:"heartbeatInstruction"`
	LastActiveHeartbeat  *time.Time           `json:"lastActiveHeartbeat,omitempty"`
	UpdatedJob           *Job                 `json:"updatedJob,omitempty"`
}

// Active reports whether the worker is expected to be running the job after this entry.
func (e HeartbeatResponseEntry) Active() bool {
	return e.HeartbeatInstruction == InstructionKeep || e.HeartbeatInstruction == InstructionSwitchToActive
}
