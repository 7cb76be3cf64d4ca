package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/paperbotai/paperbot/internal/config"
	"github.com/paperbotai/paperbot/internal/db"
	"github.com/paperbotai/paperbot/internal/dispatch"
	"github.com/paperbotai/paperbot/internal/embedding"
	"github.com/paperbotai/paperbot/internal/filestore"
	"github.com/paperbotai/paperbot/internal/handler"
	"github.com/paperbotai/paperbot/internal/job"
	"github.com/paperbotai/paperbot/internal/middleware"
	"github.com/paperbotai/paperbot/internal/pipeline"
	"github.com/paperbotai/paperbot/internal/repo"
	"github.com/paperbotai/paperbot/internal/schedule"
	"github.com/paperbotai/paperbot/internal/service"
	"github.com/paperbotai/paperbot/internal/vectorindex"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "paperbot",
		Short: "paperbot backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run paperbot server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			database, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(database); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, database)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, database *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
		zap.String("index_dir", cfg.Index.Dir),
	)

	userRepo := repo.NewUserRepo(database)
	workspaceRepo := repo.NewWorkspaceRepo(database)
	documentRepo := repo.NewDocumentRepo(database)
	chunkRepo := repo.NewChunkRepo(database)
	embeddingRepo := repo.NewEmbeddingRepo(database)
	modelConfigRepo := repo.NewModelConfigRepo(database)
	runRepo := repo.NewPipelineRunRepo(database)
	chatRepo := repo.NewChatRepo(database)
	auditRepo := repo.NewAuditRepo(database)
	jobRepo := repo.NewJobRepo(database)

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}
	indexes, err := vectorindex.NewManager(cfg.Index.Dir)
	if err != nil {
		return fmt.Errorf("init index manager: %w", err)
	}
	engine := embedding.NewEngine(modelConfigRepo, cfg.Embedding)

	ingestPipeline := pipeline.New(pipeline.Deps{
		Documents:  documentRepo,
		Chunks:     chunkRepo,
		Embeddings: embeddingRepo,
		Runs:       runRepo,
		Files:      store,
		Embedder:   engine,
		Indexes:    indexes,
	})
	dispatcher := dispatch.NewDispatcher(jobRepo)
	pool := dispatch.NewPool(jobRepo, ingestPipeline, cfg.Jobs.Workers,
		time.Duration(cfg.Jobs.PollIntervalMS)*time.Millisecond)

	auditService := service.NewAuditService(auditRepo)
	authService := service.NewAuthService(userRepo, []byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTLHours))
	workspaceService := service.NewWorkspaceService(workspaceRepo, auditService)
	documentService := service.NewDocumentService(documentRepo, runRepo, workspaceRepo, store, dispatcher, indexes, auditService)
	retrievalService := service.NewRetrievalService(engine, indexes, chunkRepo, documentRepo, workspaceRepo)
	generationService, err := service.NewGenerationService(modelConfigRepo, cfg.Generation)
	if err != nil {
		return fmt.Errorf("init generation service: %w", err)
	}
	queryService := service.NewQueryService(retrievalService, generationService, documentRepo, chunkRepo, workspaceRepo, auditService)
	chatService := service.NewChatService(chatRepo, workspaceRepo, modelConfigRepo, retrievalService, generationService, auditService)
	modelService := service.NewModelService(modelConfigRepo)

	deps := handler.RouterDeps{
		Auth:       handler.NewAuthHandler(authService),
		Workspaces: handler.NewWorkspaceHandler(workspaceService),
		Documents:  handler.NewDocumentHandler(documentService),
		Queries:    handler.NewQueryHandler(queryService, retrievalService),
		Chats:      handler.NewChatHandler(chatService),
		Models:     handler.NewModelHandler(modelService),
		Audit:      handler.NewAuditHandler(auditService),
		JWTSecret:  []byte(cfg.JWTSecret),
	}

	engineHTTP, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSAllowlist),
			middleware.RequestMeta(),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewIndexCheckpointJob(indexes), cfg.Index.CheckpointSpec); err != nil {
		return err
	}
	if err := scheduler.AddJob(job.NewPipelineJanitorJob(runRepo, jobRepo), "*/10 * * * *"); err != nil {
		return err
	}
	if err := scheduler.AddJob(job.NewAuditCleanupJob(auditRepo, cfg.Audit.RetentionDays), "0 4 * * *"); err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	poolDone := make(chan error, 1)
	go func() {
		poolDone <- pool.Run(ctx)
	}()

	go func() {
		if err := engineHTTP.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	if err := <-poolDone; err != nil {
		logutil.GetLogger(context.Background()).Error("worker pool error", zap.Error(err))
	}
	if err := indexes.SaveAll(context.Background()); err != nil {
		logutil.GetLogger(context.Background()).Error("final index checkpoint failed", zap.Error(err))
	}
	return nil
}
