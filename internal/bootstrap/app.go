package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"nci-backend/internal/ingest"
	"nci-backend/internal/llm"
	"nci-backend/internal/llm/gemini"
	"nci-backend/internal/llm/openai"
	"nci-backend/internal/services/health"
	"nci-backend/internal/session"
	"nci-backend/internal/shared/config"
	"nci-backend/internal/shared/server"
	"nci-backend/internal/shared/storage/db"
	"nci-backend/internal/shared/storage/kv"
	localkv "nci-backend/internal/shared/storage/kv/local"
	mongokv "nci-backend/internal/shared/storage/kv/mongo"
	postgreskv "nci-backend/internal/shared/storage/kv/postgres"
	rediskv "nci-backend/internal/shared/storage/kv/redis"
	s3kv "nci-backend/internal/shared/storage/kv/s3"
	sqlitekv "nci-backend/internal/shared/storage/kv/sqlite"
	"nci-backend/internal/snapshots"
)

// App holds shared dependencies.
type App struct {
	Config    config.Config
	Router    *gin.Engine
	DB        *sql.DB
	KV        kv.Store
	Snapshots *snapshots.Store
	LLM       llm.Client
	Session   *session.Session
	Service   *session.Service
	Handler   *session.Handler
	Events    *session.EventStream

	closers []func() error
}

// Build prepares every dependency and the HTTP router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	app, err := BuildCore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app.Events = session.NewEventStream(app.Session, cfg.CORSAllowOrigin)
	app.Handler = session.NewHandler(app.Service, app.Events, server.AnalyzeRateLimit(cfg))
	app.Router = server.NewRouter(server.RouterDeps{
		Config:         cfg,
		Health:         health.NewService(cfg.LLMProvider, cfg.SnapshotStore),
		SessionHandler: app.Handler,
	})
	return app, nil
}

// BuildCore wires the session service without any HTTP surface. The CLI uses
// it directly.
func BuildCore(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{Config: cfg}

	store, err := app.buildStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.KV = store
	app.Snapshots = snapshots.NewStore(store)
	app.LLM = BuildLLM(cfg)

	app.Session = session.New()
	app.Service = session.NewService(
		app.Session,
		ingest.New(ingest.Options{ExtractPDFText: cfg.PDFLocalText}),
		app.LLM,
		app.Snapshots,
	)
	app.Service.Provider = cfg.LLMProvider
	app.Service.Model = cfg.LLMModel
	if cfg.LLMTimeout > 0 {
		app.Service.Timeout = cfg.LLMTimeout
	}
	return app, nil
}

// Close releases backend connections. It waits for in-flight analyses first.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Service != nil {
		a.Service.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("bootstrap: close: %v", err)
		}
	}
	a.closers = nil
}

// BuildLLM selects the analysis provider. Transport failures are retried
// once.
func BuildLLM(cfg config.Config) llm.Client {
	validation := llm.ParseValidation(cfg.AnalysisValidation)
	switch cfg.LLMProvider {
	case "none":
		return llm.PlaceholderClient{}
	case "openai":
		return llm.WithRetry(openai.NewClient(openai.Options{
			APIKey:     cfg.OpenAIAPIKey,
			Model:      cfg.LLMModel,
			Timeout:    cfg.LLMTimeout,
			Validation: validation,
		}))
	default:
		return llm.WithRetry(gemini.NewClient(gemini.Options{
			APIKey:     cfg.GeminiAPIKey,
			Model:      cfg.LLMModel,
			Timeout:    cfg.LLMTimeout,
			Validation: validation,
		}))
	}
}

func (a *App) buildStore(ctx context.Context) (kv.Store, error) {
	cfg := a.Config
	switch cfg.SnapshotStore {
	case "memory":
		return kv.NewMemoryStore(), nil
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, errors.New("SNAPSHOT_STORE=s3 requires S3_BUCKET")
		}
		return s3kv.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "postgres":
		sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.DefaultServerOptions())
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, sqlDB.Close)
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		a.DB = sqlDB
		return postgreskv.New(sqlDB), nil
	case "sqlite":
		store, err := sqlitekv.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case "redis":
		store, err := rediskv.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case "mongo":
		store, err := mongokv.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error {
			return store.Close(context.Background())
		})
		return store, nil
	default:
		return localkv.New(cfg.LocalStoreDir)
	}
}
