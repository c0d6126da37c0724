package domain

import "time"

// Chunk is a bounded slice of a corpus entry's text, the unit stored in the semantic index.
type Chunk struct {
	ID         int64
	DocumentID string
	Date       string
	Time       string
	ChunkIndex int
	Content    string
	Metadata   map[string]string
	Embedding  []float32
	CreatedAt  time.Time
}

// RetrievedDocument is a chunk returned by a nearest-neighbour search.
type RetrievedDocument struct {
	DocumentID string
	Date       string
	Time       string
	Content    string
	Metadata   map[string]string
	Score      float32
}
