package model

// Chunk is an immutable text segment of a document, the unit of retrieval.
// ChunkIndex is zero-based and unique within the document; StartChar/EndChar
// are offsets into the document's extracted text. PageNumber and TokenCount
// are optional (0 = unknown).
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
	StartChar  int    `json:"start_char"`
	EndChar    int    `json:"end_char"`
	PageNumber int    `json:"page_number,omitempty"`
	TokenCount int    `json:"token_count,omitempty"`
	Ctime      int64  `json:"ctime"`
}
