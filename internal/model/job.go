package model

const (
	JobKindIngestDocument   = "ingest_document"
	JobKindReindexWorkspace = "reindex_workspace"
)

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Job is one schedulable unit of background work. RunAt gates delayed
// retries; Attempt counts deliveries (at-least-once).
type Job struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Payload     string `json:"payload"`
	Status      string `json:"status"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
	RunAt       int64  `json:"run_at"`
	LastError   string `json:"last_error,omitempty"`
	Ctime       int64  `json:"ctime"`
	Mtime       int64  `json:"mtime"`
}
