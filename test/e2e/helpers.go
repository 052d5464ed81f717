//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloo-solutions/interviewqa/internal/api/handlers"
	"github.com/cloo-solutions/interviewqa/internal/api/middleware"
	"github.com/cloo-solutions/interviewqa/internal/cli/client"
	"github.com/cloo-solutions/interviewqa/internal/domain"
	"github.com/cloo-solutions/interviewqa/internal/embedding"
	"github.com/cloo-solutions/interviewqa/internal/repository"
	"github.com/cloo-solutions/interviewqa/internal/server"
	"github.com/cloo-solutions/interviewqa/internal/service"
	"github.com/cloo-solutions/interviewqa/internal/storage"
	"github.com/cloo-solutions/interviewqa/internal/testutil"
)

const (
	apiToken   = "e2e-token"
	bucket     = "interviewqa-e2e"
	dimensions = 384
)

// E2ETestEnv is a running interviewqad stack: the real router over a
// pgvector chunk index and a RustFS archive. Upstream models are replaced
// by the deterministic fakes below. Everything is released by t.Cleanup.
type E2ETestEnv struct {
	T         *testing.T
	Ctx       context.Context
	Archive   *storage.S3Client
	ServerURL string
	Client    *client.APIClient

	binary string
}

func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	t.Helper()
	ctx := context.Background()

	pg := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })
	objects := testutil.NewRustFSContainer(ctx, t)
	t.Cleanup(func() { _ = objects.Terminate(ctx) })

	pool := testutil.NewTestPool(ctx, t, pg, "../../migrations")
	t.Cleanup(pool.Close)

	archive, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        objects.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.RustFSAccessKey,
		SecretAccessKey: testutil.RustFSSecretKey,
		Bucket:          bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := archive.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	store := service.NewKnowledgeStore(repository.NewChunkIndex(pool), embedding.NewHashingEmbedder(dimensions), 0)
	registry := service.NewKnowledgeBaseService(store).WithArchive(archive)
	if err := registry.EnsureGlobal(ctx); err != nil {
		t.Fatalf("failed to ensure global: %v", err)
	}
	ingest := service.NewIngestService(store, plainTextExtractor{}, service.DefaultChunkConfig()).WithArchive(archive)
	qa := service.NewQAService(
		registry,
		service.NewIntentRouter(keywordClassifier{}, service.DefaultRouteThreshold, 0),
		store,
		service.NewAnswerGenerator(promptEchoLLM{}, nil, 0),
		service.DefaultTopK,
	)

	srv := httptest.NewServer(server.NewRouter(server.RouterConfig{
		TokenValidator:       middleware.StaticToken(apiToken),
		QAHandler:            handlers.NewQAHandler(qa),
		UploadHandler:        handlers.NewUploadHandler(ingest, 0),
		KnowledgeBaseHandler: handlers.NewKnowledgeBaseHandler(registry, archive),
	}))
	t.Cleanup(srv.Close)

	return &E2ETestEnv{
		T:         t,
		Ctx:       ctx,
		Archive:   archive,
		ServerURL: srv.URL,
		Client:    client.NewAPIClientWithConfig(apiToken, srv.URL),
	}
}

// WritePDF writes text under name; plainTextExtractor reads it back verbatim.
func (e *E2ETestEnv) WritePDF(name, text string) string {
	path := filepath.Join(e.T.TempDir(), name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		e.T.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// BuildClient compiles cmd/interviewqa for RunClient.
func (e *E2ETestEnv) BuildClient() {
	e.binary = filepath.Join(e.T.TempDir(), "interviewqa")
	cmd := exec.Command("go", "build", "-o", e.binary, "./cmd/interviewqa")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build interviewqa: %v\n%s", err, out)
	}
}

// RunClient runs the built binary against the test server with an empty
// user config directory, so credentials come from the environment only.
func (e *E2ETestEnv) RunClient(args ...string) (string, error) {
	if e.binary == "" {
		e.T.Fatal("RunClient called before BuildClient")
	}
	cmd := exec.Command(e.binary, args...)
	cmd.Dir = e.T.TempDir()
	cmd.Env = append(os.Environ(),
		"INTERVIEWQA_API_URL="+e.ServerURL,
		"INTERVIEWQA_API_TOKEN="+apiToken,
		"XDG_CONFIG_HOME="+e.T.TempDir(),
		"HOME="+e.T.TempDir(),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

type plainTextExtractor struct{}

func (plainTextExtractor) Extract(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err)
	}
	return string(data), nil
}

// keywordClassifier scores a label 0.9 when the question mentions it.
type keywordClassifier struct{}

func (keywordClassifier) Classify(_ context.Context, text string, labels []string) (map[string]float64, error) {
	lower := strings.ToLower(text)
	scores := make(map[string]float64, len(labels))
	for _, l := range labels {
		scores[l] = 0.1
		if strings.Contains(lower, l) {
			scores[l] = 0.9
		}
	}
	return scores, nil
}

// promptEchoLLM answers with the prompt, exposing the retrieved context.
type promptEchoLLM struct{}

func (promptEchoLLM) Complete(_ context.Context, prompt string) (domain.Completion, error) {
	return domain.TextCompletion{Text: prompt}, nil
}
