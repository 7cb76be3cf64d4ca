package model

// EmbeddingModelConfig describes one versioned embedding backend.
// At most one config is active; the active one is used for all new
// ingestion and queries. (name, version) is unique.
type EmbeddingModelConfig struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Version   string `json:"version"`
	ModelID   string `json:"model_id"`
	Dimension int    `json:"dimension"`
	IsActive  bool   `json:"is_active"`
	Ctime     int64  `json:"ctime"`
}

// GenerationModelConfig selects which generation backend answers queries.
type GenerationModelConfig struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Version  string `json:"version"`
	Provider string `json:"provider"`
	ModelID  string `json:"model_id"`
	IsActive bool   `json:"is_active"`
	Ctime    int64  `json:"ctime"`
}
