package model

import "fmt"

// IndexDocument is the document stored in the vector index.
type IndexDocument struct {
	ID            string    `json:"id"`
	ISOCode       string    `json:"iso_code"`
	Chunk         string    `json:"chunk"`
	ChunkType     ChunkKind `json:"chunk_type"`
	TableMarkdown string    `json:"table_md,omitempty"`
	ImageID       string    `json:"image_id,omitempty"`
	ImageURL      string    `json:"image_url,omitempty"`
	Embedding     []float32 `json:"embedding"`
}

// DocumentID derives the deterministic id of the seq-th chunk of a jurisdiction.
func DocumentID(isoCode string, seq int) string {
	return fmt.Sprintf("%s-%d", isoCode, seq)
}

// NewIndexDocument builds the seq-th document of isoCode from a chunk and its vector.
func NewIndexDocument(isoCode string, seq int, chunk Chunk, vector []float32) IndexDocument {
	return IndexDocument{
		ID:            DocumentID(isoCode, seq),
		ISOCode:       isoCode,
		Chunk:         chunk.Content,
		ChunkType:     chunk.Kind,
		TableMarkdown: chunk.TableMarkdown,
		ImageID:       chunk.ImageID,
		ImageURL:      chunk.ImageURL,
		Embedding:     vector,
	}
}

// RetrievedChunk is one search hit. The order of a result slice defines the
// source numbering used when composing an answer.
type RetrievedChunk struct {
	ID      string  `json:"id"`
	ISOCode string  `json:"iso_code"`
	Chunk   string  `json:"chunk"`
	Score   float64 `json:"score"`
}
