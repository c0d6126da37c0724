package service

import (
	"context"

	"github.com/cloo-solutions/remind/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockLedgerStore is a mock implementation of LedgerStore
type MockLedgerStore struct {
	mock.Mock
}

func (m *MockLedgerStore) FetchUnprocessed(ctx context.Context) ([]domain.LedgerRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LedgerRecord), args.Error(1)
}

func (m *MockLedgerStore) MarkProcessed(ctx context.Context, refs []domain.RecordRef) error {
	args := m.Called(ctx, refs)
	return args.Error(0)
}

func (m *MockLedgerStore) RecordDeadLetter(ctx context.Context, path, stage string, cause error) error {
	args := m.Called(ctx, path, stage, cause)
	return args.Error(0)
}

// MockCorpusWriter is a mock implementation of CorpusWriter
type MockCorpusWriter struct {
	mock.Mock
}

// LockCycle is not recorded; the cycle lock itself is covered against corpus.Store.
func (m *MockCorpusWriter) LockCycle(ctx context.Context) (func(), error) {
	return func() {}, nil
}

func (m *MockCorpusWriter) Commit(delta domain.Corpus) (int, error) {
	args := m.Called(delta)
	return args.Int(0), args.Error(1)
}

func (m *MockCorpusWriter) ReadFullRaw() ([]byte, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockArchiver is a mock implementation of SnapshotArchiver
type MockArchiver struct {
	mock.Mock
}

func (m *MockArchiver) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	args := m.Called(ctx, key, body, contentType)
	return args.Error(0)
}

// MockEmbeddingClient is a mock implementation of EmbeddingClient
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEmbeddingClient) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if fn, ok := args.Get(0).(func(context.Context, []string) [][]float32); ok {
		return fn(ctx, texts), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

// MockChunkIndex is a mock implementation of ChunkIndex
type MockChunkIndex struct {
	mock.Mock
}

func (m *MockChunkIndex) AddChunks(ctx context.Context, chunks []domain.Chunk) error {
	args := m.Called(ctx, chunks)
	return args.Error(0)
}

func (m *MockChunkIndex) SearchByEmbedding(ctx context.Context, embedding []float32, rng domain.DateRange, limit int) ([]domain.RetrievedDocument, error) {
	args := m.Called(ctx, embedding, rng, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RetrievedDocument), args.Error(1)
}

// MockLanguageModel is a mock implementation of LanguageModel
type MockLanguageModel struct {
	mock.Mock
}

func (m *MockLanguageModel) Complete(ctx context.Context, system, prompt string) (string, error) {
	args := m.Called(ctx, system, prompt)
	return args.String(0), args.Error(1)
}

// embeddingsFor returns one fixed vector per requested text.
func embeddingsFor(texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out
}
