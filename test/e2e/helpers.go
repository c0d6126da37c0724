//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/remind/internal/api/handlers"
	"github.com/cloo-solutions/remind/internal/corpus"
	"github.com/cloo-solutions/remind/internal/ingest"
	"github.com/cloo-solutions/remind/internal/ledger"
	"github.com/cloo-solutions/remind/internal/repository"
	"github.com/cloo-solutions/remind/internal/server"
	"github.com/cloo-solutions/remind/internal/service"
	"github.com/cloo-solutions/remind/internal/storage"
	"github.com/cloo-solutions/remind/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

const e2eToken = "e2e-secret-token"

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	S3Client     *storage.S3Client
	Home         string
	Ledger       *ledger.Store
	Corpus       *corpus.Store
	Index        *repository.ChunkRepository
	Watcher      *ingest.Watcher
	Consolidator *service.Consolidator
	Sync         *service.IndexSynchronizer
	Gate         *service.RetrievalGate
	ServerURL    string
	ServerCloser func()
	BinaryDir    string
	HTTPClient   *http.Client
}

// SetupE2EEnv wires the whole pipeline against real containers. The language
// model is replaced by a deterministic fake.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC)

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.S3AccessKey,
		SecretAccessKey: testutil.S3SecretKey,
		Bucket:          "test-snapshots",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	home := t.TempDir()
	store, err := ledger.Open(ctx, filepath.Join(home, "regular_data.db"))
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	corpusStore := corpus.NewStore(filepath.Join(home, "new_texts.json"), filepath.Join(home, "all_texts.json"))
	ids, err := corpus.LoadIDSet(filepath.Join(home, "processed_ids.json"))
	if err != nil {
		t.Fatalf("failed to load id set: %v", err)
	}

	watcher, err := ingest.NewWatcher(store, failingRecognizer{}, ingest.Options{
		ImageRoot:      filepath.Join(home, "screenshots"),
		TranscriptRoot: filepath.Join(home, "transcription"),
		PollInterval:   10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	model := &fakeModel{}
	index := repository.NewChunkRepository(pool)

	env := &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Pool:         pool,
		S3Client:     s3Client,
		Home:         home,
		Ledger:       store,
		Corpus:       corpusStore,
		Index:        index,
		Watcher:      watcher,
		Consolidator: service.NewConsolidator(store, corpusStore).WithArchiver(s3Client),
		Sync:         service.NewIndexSynchronizer(corpusStore, ids, index, model, service.NewChunker(200, 20), service.SyncConfig{}),
		Gate:         service.NewRetrievalGate(model, model, index, 0),
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}
	env.ServerURL, env.ServerCloser = env.startServer(port)

	return env
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Ledger != nil {
		e.Ledger.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// DropTranscript writes a transcript file and hands it to the watcher.
func (e *E2ETestEnv) DropTranscript(name, text string, modTime time.Time) {
	path := filepath.Join(e.Home, "transcription", name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		e.T.Fatalf("failed to create transcript dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		e.T.Fatalf("failed to write transcript: %v", err)
	}
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		e.T.Fatalf("failed to set transcript mtime: %v", err)
	}
	if err := e.Watcher.Handle(e.Ctx, ingest.Event{Kind: ingest.FileCreated, Path: path}); err != nil {
		e.T.Fatalf("failed to ingest transcript: %v", err)
	}
}

// DropImage writes an image file and hands it to the watcher, returning the
// watcher's error.
func (e *E2ETestEnv) DropImage(name string) error {
	path := filepath.Join(e.Home, "screenshots", time.Now().Format("2006-01-02"), name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		e.T.Fatalf("failed to create screenshot dir: %v", err)
	}
	if err := os.WriteFile(path, []byte("not really a jpeg"), 0o644); err != nil {
		e.T.Fatalf("failed to write image: %v", err)
	}
	return e.Watcher.Handle(e.Ctx, ingest.Event{Kind: ingest.FileCreated, Path: path})
}

// BuildBinaries builds the remind and remindd binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "remind-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	for _, name := range []string{"remind", "remindd"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, name), "./cmd/"+name)
		cmd.Dir = "../.."
		if out, err := cmd.CombinedOutput(); err != nil {
			e.T.Fatalf("failed to build %s: %v\n%s", name, err, out)
		}
	}
}

// RunRemind runs the remind CLI against the test server
func (e *E2ETestEnv) RunRemind(args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "remind"), args...)
	cmd.Dir = e.Home
	cmd.Env = append(os.Environ(),
		"HOME="+e.Home,
		"XDG_CONFIG_HOME="+filepath.Join(e.Home, ".config"),
		fmt.Sprintf("REMIND_API_TOKEN=%s", e2eToken),
		fmt.Sprintf("REMIND_API_URL=%s", e.ServerURL),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// PostJSON sends an authenticated JSON request and returns the status and body.
func (e *E2ETestEnv) PostJSON(path string, body any, token string) (int, []byte) {
	data, err := json.Marshal(body)
	if err != nil {
		e.T.Fatalf("failed to marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, e.ServerURL+path, strings.NewReader(string(data)))
	if err != nil {
		e.T.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		e.T.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var raw json.RawMessage
	_ = json.NewDecoder(resp.Body).Decode(&raw)
	return resp.StatusCode, raw
}

func (e *E2ETestEnv) startServer(port int) (string, func()) {
	router := server.NewRouter(server.RouterConfig{
		APIToken:          e2eToken,
		QueryHandler:      handlers.NewQueryHandler(e.Gate),
		DocumentHandler:   handlers.NewDocumentHandler(e.Sync),
		DeadLetterHandler: handlers.NewDeadLetterHandler(e.Ledger),
		HealthHandler:     handlers.NewHealthHandler(e.Ledger, map[string]handlers.Check{"index": e.Index.Ping}),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.T.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(e.T, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

type failingRecognizer struct{}

func (failingRecognizer) Recognize(ctx context.Context, path string) (string, error) {
	return "", errors.New("tesseract: exit status 1")
}

const embeddingDims = 64

// fakeModel embeds text as a hashed bag of words and answers from its prompt.
type fakeModel struct{}

func (m *fakeModel) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, embeddingDims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(word, ".,:?!")))
		vec[h.Sum32()%embeddingDims]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	for i := range vec {
		vec[i] /= float32(math.Sqrt(norm))
	}
	return vec, nil
}

func (m *fakeModel) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := m.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (m *fakeModel) Complete(ctx context.Context, system, prompt string) (string, error) {
	switch {
	case strings.Contains(system, "Reply YES"):
		if strings.Contains(strings.ToLower(prompt), " i ") {
			return "YES", nil
		}
		return "NO", nil
	case strings.Contains(system, "Decide which period"):
		return "TODAY", nil
	case strings.Contains(prompt, "quarterly budget"):
		return "You reviewed the quarterly budget.", nil
	default:
		return "Paris.", nil
	}
}
