package model

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatSession struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Ctime       int64  `json:"ctime"`
	Mtime       int64  `json:"mtime"`
}

type ChatMessage struct {
	ID                string     `json:"id"`
	SessionID         string     `json:"session_id"`
	Role              string     `json:"role"`
	Content           string     `json:"content"`
	Citations         []Citation `json:"citations,omitempty"`
	RetrievedChunkIDs []string   `json:"retrieved_chunk_ids,omitempty"`
	ModelConfigID     string     `json:"model_config_id,omitempty"`
	Ctime             int64      `json:"ctime"`
}

// Citation points an answer back at a source chunk. Score is optional and
// unset for heuristic matches.
type Citation struct {
	DocumentID    string   `json:"document_id"`
	DocumentTitle string   `json:"document_title"`
	ChunkID       string   `json:"chunk_id"`
	PageNumber    int      `json:"page_number,omitempty"`
	Snippet       string   `json:"snippet"`
	Score         *float64 `json:"score"`
}
