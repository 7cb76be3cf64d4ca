package model

const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

const (
	StageExtract = "extract"
	StageChunk   = "chunk"
	StageEmbed   = "embed"
	StageIndex   = "index"
)

// PipelineRun records one ingestion attempt for a document. Created at
// pipeline start, stage updated at each boundary, closed at success or
// terminal failure.
type PipelineRun struct {
	ID           string `json:"id"`
	DocumentID   string `json:"document_id"`
	Status       string `json:"status"`
	Stage        string `json:"stage"`
	Attempt      int    `json:"attempt"`
	ErrorMessage string `json:"error_message,omitempty"`
	StartedAt    int64  `json:"started_at"`
	CompletedAt  int64  `json:"completed_at,omitempty"`
}
