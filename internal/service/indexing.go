package service

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/cloo-solutions/remind/internal/domain"
	"github.com/cloo-solutions/remind/internal/telemetry"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkIndex is the semantic index.
type ChunkIndex interface {
	AddChunks(ctx context.Context, chunks []domain.Chunk) error
	SearchByEmbedding(ctx context.Context, embedding []float32, rng domain.DateRange, limit int) ([]domain.RetrievedDocument, error)
}

// CorpusReader loads the delta or full corpus.
type CorpusReader interface {
	Load(delta bool) (domain.Corpus, error)
}

// ProcessedIDs is the set of document ids already in the index, shared by
// every process syncing the same corpus home.
type ProcessedIDs interface {
	Contains(id string) bool
	Commit(ids []string) error
	// Refresh picks up ids committed by other processes.
	Refresh() error
	// LockCycle excludes other sync cycles until the returned func is called.
	LockCycle(ctx context.Context) (func(), error)
}

type SyncConfig struct {
	// UseDelta indexes the latest consolidation cycle's delta ahead of the
	// rest of the full corpus. The full corpus is still scanned, because the
	// delta is replaced every cycle and may hold only part of what is pending.
	UseDelta bool
	// MaxEntries caps entries embedded per cycle; 0 means no cap.
	MaxEntries int
}

// SyncResult summarises one cycle.
type SyncResult struct {
	Entries int `json:"entries"`
	New     int `json:"new"`
	Chunks  int `json:"chunks"`
	Pending int `json:"pending"`
}

// IndexSynchronizer merges corpus entries that are not yet in the processed-id
// set into the semantic index. Re-running over an unchanged corpus adds nothing.
type IndexSynchronizer struct {
	corpus   CorpusReader
	ids      ProcessedIDs
	index    ChunkIndex
	embedder EmbeddingClient
	chunker  *Chunker
	cfg      SyncConfig

	mu sync.Mutex
}

func NewIndexSynchronizer(corpus CorpusReader, ids ProcessedIDs, index ChunkIndex, embedder EmbeddingClient, chunker *Chunker, cfg SyncConfig) *IndexSynchronizer {
	return &IndexSynchronizer{
		corpus:   corpus,
		ids:      ids,
		index:    index,
		embedder: embedder,
		chunker:  chunker,
		cfg:      cfg,
	}
}

// Sync runs one cycle: load, skip known ids, chunk, embed, add to the index, and
// only then record the new ids. A failure before the last step leaves the id set
// unchanged so the same entries are retried next cycle.
func (s *IndexSynchronizer) Sync(ctx context.Context) (*SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	release, err := s.ids.LockCycle(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.ids.Refresh(); err != nil {
		return nil, err
	}
	entries, err := s.loadEntries()
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}
	res := &SyncResult{}

	var pending []domain.CorpusEntry
	var pendingIDs []string
	seen := make(map[string]struct{})
	for _, e := range entries {
		id := e.DocumentID()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if s.ids.Contains(id) {
			continue
		}
		pending = append(pending, e)
		pendingIDs = append(pendingIDs, id)
	}
	res.Entries = len(seen)
	if s.cfg.MaxEntries > 0 && len(pending) > s.cfg.MaxEntries {
		res.Pending = len(pending) - s.cfg.MaxEntries
		pending = pending[:s.cfg.MaxEntries]
		pendingIDs = pendingIDs[:s.cfg.MaxEntries]
	}
	res.New = len(pending)
	if len(pending) == 0 {
		return res, nil
	}

	chunks := s.buildChunks(pending, nil)
	if err := s.embedAndAdd(ctx, chunks); err != nil {
		return nil, err
	}
	res.Chunks = len(chunks)

	if err := s.ids.Commit(pendingIDs); err != nil {
		return nil, fmt.Errorf("failed to persist processed ids: %w", err)
	}
	return res, nil
}

// loadEntries returns the full corpus entries, preceded by the delta's in
// delta mode. The delta is read first so an entry committed in between is
// still found in the full corpus.
func (s *IndexSynchronizer) loadEntries() ([]domain.CorpusEntry, error) {
	var entries []domain.CorpusEntry
	if s.cfg.UseDelta {
		delta, err := s.corpus.Load(true)
		if err != nil {
			return nil, err
		}
		entries = delta.Entries()
	}
	full, err := s.corpus.Load(false)
	if err != nil {
		return nil, err
	}
	return append(entries, full.Entries()...), nil
}

func (s *IndexSynchronizer) buildChunks(entries []domain.CorpusEntry, metadata map[string]string) []domain.Chunk {
	var chunks []domain.Chunk
	for _, e := range entries {
		id := e.DocumentID()
		for i, piece := range s.chunker.Split(e.Text) {
			meta := map[string]string{"date": e.Date, "time": e.Time}
			for k, v := range metadata {
				meta[k] = v
			}
			chunks = append(chunks, domain.Chunk{
				DocumentID: id,
				Date:       e.Date,
				Time:       e.Time,
				ChunkIndex: i,
				Content:    domain.CorpusEntry{Date: e.Date, Time: e.Time, Text: piece}.PageContent(),
				Metadata:   meta,
			})
		}
	}
	return chunks
}

func (s *IndexSynchronizer) embedAndAdd(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}
	embeddings, err := s.embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("expected %d embeddings, got %d", len(chunks), len(embeddings))
	}
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}
	if err := s.index.AddChunks(ctx, chunks); err != nil {
		return fmt.Errorf("failed to add chunks to index: %w", err)
	}
	return nil
}

// AddDocument indexes free text stamped with the current date and time and
// records its id, outside the corpus files.
func (s *IndexSynchronizer) AddDocument(ctx context.Context, entry domain.CorpusEntry, metadata map[string]string) (string, int, error) {
	if entry.Text == "" {
		return "", 0, domain.ErrEmptyDocument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := entry.DocumentID()
	if s.ids.Contains(id) {
		return id, 0, nil
	}
	chunks := s.buildChunks([]domain.CorpusEntry{entry}, metadata)
	if err := s.embedAndAdd(ctx, chunks); err != nil {
		return "", 0, err
	}
	if err := s.ids.Commit([]string{id}); err != nil {
		return "", 0, fmt.Errorf("failed to persist processed ids: %w", err)
	}
	return id, len(chunks), nil
}

// Run implements jobs.Task.
func (s *IndexSynchronizer) Run(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "sync")
	defer span.Finish()

	res, err := s.Sync(ctx)
	if err != nil {
		span.SetError(err)
		return err
	}
	span.SetData("chunks", res.Chunks)
	if res.New > 0 {
		log.Printf("sync: indexed %d new entries as %d chunks (%d of %d entries pending)",
			res.New, res.Chunks, res.Pending, res.Entries)
	}
	return nil
}
