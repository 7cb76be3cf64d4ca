package model

const (
	AuditDocumentUpload  = "document_upload"
	AuditDocumentDelete  = "document_delete"
	AuditQuery           = "query"
	AuditSummarize       = "summarize"
	AuditChat            = "chat"
	AuditWorkspaceCreate = "workspace_create"
	AuditWorkspaceDelete = "workspace_delete"
)

type AuditLog struct {
	ID           string                 `json:"id"`
	UserID       string                 `json:"user_id"`
	Action       string                 `json:"action"`
	ResourceType string                 `json:"resource_type,omitempty"`
	ResourceID   string                 `json:"resource_id,omitempty"`
	IPAddress    string                 `json:"ip_address,omitempty"`
	UserAgent    string                 `json:"user_agent,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Ctime        int64                  `json:"ctime"`
}
