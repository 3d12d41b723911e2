package bootstrap

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/seatrade/rag-backend/internal/config"
	"github.com/seatrade/rag-backend/internal/knowledge"
	"github.com/seatrade/rag-backend/internal/logger"
	"github.com/seatrade/rag-backend/internal/services"
	"github.com/seatrade/rag-backend/internal/source"
)

// App encapsulates the service objects shared by the controllers and the
// resources that need to be cleaned up on shutdown.
type App struct {
	Config *config.Config
	Sync   *services.SyncService
	Ask    *services.AskService
	// Files is only set when the minio source is active; the file
	// endpoints reject requests otherwise.
	Files *source.MinIOSource

	cleanupTasks []func() error
}

// Global app instance for controllers to access
var globalApp *App

// GetApp returns the global app instance
func GetApp() *App {
	return globalApp
}

// SetGlobalApp sets the global app instance
func SetGlobalApp(app *App) {
	globalApp = app
}

// Init bootstraps configuration, logger and the service objects required by
// the Beego application. Missing required configuration is a fatal error:
// the service must not accept traffic without its credentials.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	if err := logger.InitLogger(); err != nil {
		return nil, err
	}

	if err := config.LoadConfig(); err != nil {
		return nil, err
	}
	cfg := config.AppConfig
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	embedder := knowledge.NewOpenAIEmbedder(cfg.AI.OpenAIAPIKey, cfg.AI.EmbeddingModel)

	// The embedding space is fixed per index: the collection dimensionality
	// comes from the embedder so ingestion and query always agree.
	milvusCfg := cfg.Knowledge.VectorStore.Milvus
	store, err := knowledge.NewMilvusVectorStore(knowledge.MilvusOptions{
		Address:    milvusCfg.Address,
		Username:   milvusCfg.Username,
		Password:   milvusCfg.Password,
		Collection: milvusCfg.Collection,
		Database:   milvusCfg.Database,
		UseTLS:     milvusCfg.TLS,
		VectorSize: embedder.Dimensions(),
	})
	if err != nil {
		// Liveness stays up even when the index is unreachable; the ask and
		// sync paths report the failure per request.
		logger.Warn("vector index unreachable, feature paths degraded", zap.Error(err))
		store = &knowledge.UnavailableVectorStore{Err: err}
	}

	app := &App{Config: cfg}

	var docSource source.Source
	switch cfg.Source.Provider {
	case "minio":
		minioSource, err := source.NewMinIOSource(cfg.Source.MinIO)
		if err != nil {
			return nil, fmt.Errorf("init minio source: %w", err)
		}
		docSource = minioSource
		app.Files = minioSource
	case "drive":
		driveSource, err := source.NewDriveSource(context.Background(), cfg.Source.Drive)
		if err != nil {
			return nil, fmt.Errorf("init drive source: %w", err)
		}
		docSource = driveSource
	default:
		return nil, fmt.Errorf("unknown source provider %q", cfg.Source.Provider)
	}

	statusStore := services.NewStatusStore(cfg.Redis)
	chunker := knowledge.NewChunker(cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap)
	extractor := knowledge.NewExtractorManager()
	chat := services.NewOpenAIChat(cfg.AI.OpenAIAPIKey, cfg.AI.ChatModel)

	app.Sync = services.NewSyncService(docSource, extractor, chunker, embedder, store, statusStore, cfg.Knowledge.EmbedBatchSize)
	app.Ask = services.NewAskService(embedder, store, chat)

	SetGlobalApp(app)

	logger.Info("application bootstrapped",
		zap.String("source", cfg.Source.Provider),
		zap.String("collection", milvusCfg.Collection),
		zap.String("embedding_model", cfg.AI.EmbeddingModel))
	return app, nil
}

// Shutdown runs registered cleanup tasks and flushes the logger.
func (a *App) Shutdown() {
	for _, task := range a.cleanupTasks {
		if err := task(); err != nil {
			logger.Error("cleanup task failed", zap.Error(err))
		}
	}
	logger.Sync()
}
