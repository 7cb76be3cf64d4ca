package model

type Workspace struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	OwnerID     string `json:"owner_id"`
	Ctime       int64  `json:"ctime"`
	Mtime       int64  `json:"mtime"`
}
