package model

// ChunkEmbedding is the 1:1 vector for a chunk, tagged with the embedding
// model config that produced it. len(Vector) must equal the config's
// declared dimension.
type ChunkEmbedding struct {
	ChunkID       string    `json:"chunk_id"`
	ModelConfigID string    `json:"model_config_id"`
	Vector        []float32 `json:"vector"`
	Ctime         int64     `json:"ctime"`
}

// IndexedEmbedding carries the scoping columns the vector index needs
// alongside the vector itself.
type IndexedEmbedding struct {
	ChunkID     string
	DocumentID  string
	WorkspaceID string
	Vector      []float32
}
