package entity

import "time"

type WorkerStatus string

const (
	WorkerStarting WorkerStatus = "Starting"
	WorkerRunning  WorkerStatus = "Running"
	WorkerStopped  WorkerStatus = "Stopped"
)

func (s WorkerStatus) Valid() bool {
	switch s {
	case WorkerStarting, WorkerRunning, WorkerStopped:
		return true
	}
	return false
}

// Worker is the identity of one edge agent process. Many workers may share an AgentID.
type Worker struct {
	WorkerID     string            `json:"workerId"`
	AgentID      string            `json:"agentId"`
	Capabilities map[string]string `json:"capabilities,omitempty"`
	Status       WorkerStatus      `json:"status"`
	LastSeen     time.Time         `json:"lastSeen"`
	Version      int64             `json:"version"`
}

// Satisfies reports whether every demanded key is advertised with an equal value.
func (w *Worker) Satisfies(demands map[string]string) bool {
	for k, want := range demands {
		got, ok := w.Capabilities[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}
