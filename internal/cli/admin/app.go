package admin

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cloo-solutions/interviewqa/internal/classifier"
	"github.com/cloo-solutions/interviewqa/internal/config"
	"github.com/cloo-solutions/interviewqa/internal/dashscope"
	"github.com/cloo-solutions/interviewqa/internal/database"
	"github.com/cloo-solutions/interviewqa/internal/embedding"
	"github.com/cloo-solutions/interviewqa/internal/jobs"
	"github.com/cloo-solutions/interviewqa/internal/openai"
	"github.com/cloo-solutions/interviewqa/internal/pdf"
	"github.com/cloo-solutions/interviewqa/internal/ratelimit"
	"github.com/cloo-solutions/interviewqa/internal/repository"
	"github.com/cloo-solutions/interviewqa/internal/service"
	"github.com/cloo-solutions/interviewqa/internal/storage"
	"github.com/cloo-solutions/interviewqa/internal/vectorstore"
	"github.com/cloo-solutions/interviewqa/internal/websearch"
	goopenai "github.com/sashabaranov/go-openai"
)

// migrationsSource is relative to the working directory, like the Dockerfile layout.
const migrationsSource = "file://migrations"

// app holds the services shared by serve, ingest and kb.
type app struct {
	cfg      *config.Config
	store    *service.KnowledgeStore
	registry *service.KnowledgeBaseService
	ingest   *service.IngestService
	archive  *storage.S3Client
	embed    service.EmbeddingClient

	snapshotter *vectorstore.Snapshotter
	closers     []func()
}

type appOptions struct {
	migrate bool
}

// newApp opens the configured index and builds the knowledge services on top.
func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	a := &app{cfg: cfg}

	index, err := a.openIndex(ctx, opts)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.embed = a.embedder()
	a.store = service.NewKnowledgeStore(index, a.embed, cfg.EmbeddingTimeout)
	a.registry = service.NewKnowledgeBaseService(a.store)
	a.ingest = service.NewIngestService(a.store, pdf.NewExtractor(), service.ChunkConfig{
		Size:    cfg.ChunkSize,
		Overlap: cfg.ChunkOverlap,
	})

	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		a.archive = s3Client
		a.ingest.WithArchive(s3Client)
		a.registry.WithArchive(s3Client)
	}

	if err := a.registry.EnsureGlobal(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to ensure global knowledge base: %w", err)
	}
	return a, nil
}

func (a *app) openIndex(ctx context.Context, opts appOptions) (service.ChunkIndex, error) {
	cfg := a.cfg
	if cfg.VectorStore == config.VectorStorePostgres {
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		log.Println("connected to database")

		if opts.migrate {
			if err := database.Migrate(cfg.DatabaseURL, migrationsSource); err != nil {
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		return repository.NewChunkIndex(pool), nil
	}

	index := vectorstore.NewMemoryIndex()
	if !cfg.HasSnapshots() {
		log.Println("vector store: in memory, nothing persists across restarts")
		return index, nil
	}

	snapStore, err := vectorstore.OpenSnapshotStore(cfg.SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	a.snapshotter = vectorstore.NewSnapshotter(index, snapStore)
	a.closers = append(a.closers, func() {
		if err := a.snapshotter.Close(); err != nil {
			log.Printf("snapshot: close failed: %v", err)
		}
	})

	n, err := a.snapshotter.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	log.Printf("vector store: restored %d chunks from %s", n, cfg.SnapshotPath)
	return index, nil
}

func (a *app) embedder() service.EmbeddingClient {
	cfg := a.cfg
	if cfg.EmbeddingProvider == config.EmbeddingProviderOpenAI {
		log.Printf("embeddings: %s (%d dimensions)", cfg.EmbeddingModel, cfg.EmbeddingDimensions)
		return openai.NewClientWithConfig(openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			BaseURL:             cfg.EmbeddingBaseURL,
			EmbeddingModel:      goopenai.EmbeddingModel(cfg.EmbeddingModel),
			EmbeddingDimensions: cfg.EmbeddingDimensions,
		})
	}
	log.Printf("embeddings: local hashing (%d dimensions)", cfg.EmbeddingDimensions)
	return embedding.NewHashingEmbedder(cfg.EmbeddingDimensions)
}

func (a *app) classifier() service.Classifier {
	cfg := a.cfg
	if cfg.Classifier == config.ClassifierHuggingFace {
		return classifier.NewHuggingFace(classifier.HuggingFaceConfig{
			URL:     cfg.HFZeroShotURL,
			Token:   cfg.HFAPIToken,
			Timeout: cfg.ClassifierTimeout,
		})
	}
	return classifier.NewEmbeddingSimilarity(a.embed).WithEvidence(a.store)
}

// llm returns nil when the selected provider has no credential; answers then
// degrade to an error message instead of failing startup.
func (a *app) llm() service.LLM {
	cfg := a.cfg
	if !cfg.HasLLMCredential() {
		log.Printf("llm: no API key for %s, answers will report the missing credential", cfg.LLMProvider)
		return nil
	}
	if cfg.LLMProvider == config.LLMProviderOpenAI {
		return openai.NewChatClient(openai.ChatConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.LLMBaseURL,
			Model:   cfg.LLMModel,
		})
	}
	return dashscope.NewClient(dashscope.Config{
		APIKey:  cfg.DashScopeAPIKey,
		BaseURL: cfg.LLMBaseURL,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
	})
}

func (a *app) qaService() *service.QAService {
	cfg := a.cfg
	generator := service.NewAnswerGenerator(a.llm(), ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.LLMRateLimit,
		BurstSize:         cfg.LLMBurst,
	}), cfg.LLMTimeout)

	if cfg.HasWebSearch() {
		generator.WithWebSearch(websearch.NewSerpAPI(websearch.Config{
			APIKey:  cfg.SerpAPIKey,
			Results: cfg.WebSearchResults,
		}, ratelimit.New(ratelimit.Config{RequestsPerSecond: 1, BurstSize: 2})))
		log.Println("web search: enabled")
	}

	return service.NewQAService(
		a.registry,
		service.NewIntentRouter(a.classifier(), cfg.RouteThreshold, cfg.ClassifierTimeout),
		a.store,
		generator,
		cfg.TopK,
	)
}

// startSnapshots runs the periodic snapshot worker when snapshots are on.
// The returned stop function halts it; the worker saves a final time.
func (a *app) startSnapshots(ctx context.Context) func() {
	if a.snapshotter == nil {
		return func() {}
	}
	worker := jobs.NewWorker("snapshot", jobs.NewSnapshotJob(a.snapshotter), a.cfg.SnapshotInterval)
	worker.Start(ctx)
	return worker.Stop
}

func (a *app) saveSnapshot() {
	if a.snapshotter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := a.snapshotter.Save(ctx); err != nil {
		log.Printf("snapshot: save failed: %v", err)
	}
}

// Close releases the index in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
