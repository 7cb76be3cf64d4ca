package model

// Document lifecycle. Status only moves forward through the pipeline stages,
// except StatusFailed which is reachable from any in-progress state.
// Reprocessing a failed document restarts from extract.
const (
	DocStatusUploaded   = "uploaded"
	DocStatusProcessing = "processing"
	DocStatusExtracted  = "extracted"
	DocStatusChunked    = "chunked"
	DocStatusEmbedded   = "embedded"
	DocStatusIndexed    = "indexed"
	DocStatusFailed     = "failed"
)

type Document struct {
	ID            string                 `json:"id"`
	WorkspaceID   string                 `json:"workspace_id"`
	Title         string                 `json:"title"`
	Filename      string                 `json:"filename"`
	FileKey       string                 `json:"file_key"`
	FileSize      int64                  `json:"file_size"`
	MimeType      string                 `json:"mime_type"`
	Status        string                 `json:"status"`
	PageCount     int                    `json:"page_count"`
	ExtractedText string                 `json:"-"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	ErrorMessage  string                 `json:"error_message,omitempty"`
	UploadedBy    string                 `json:"uploaded_by"`
	Ctime         int64                  `json:"ctime"`
	Mtime         int64                  `json:"mtime"`
	ProcessedAt   int64                  `json:"processed_at,omitempty"`
}
