package model

// ChunkKind is the retrieval unit type stored as chunk_type.
type ChunkKind string

const (
	ChunkText  ChunkKind = "text"
	ChunkTable ChunkKind = "table"
	ChunkImage ChunkKind = "image"
)

// Chunk is the unit of retrieval granularity. Chunks are immutable once built.
type Chunk struct {
	Content       string
	Kind          ChunkKind
	TableMarkdown string
	ImageID       string
	OCRText       string
	ImageURL      string
}
