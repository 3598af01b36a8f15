// Package admin implements the caseforged server commands.
package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/cloo-solutions/caseforge/internal/api/handlers"
	"github.com/cloo-solutions/caseforge/internal/config"
	"github.com/cloo-solutions/caseforge/internal/jobs"
	"github.com/cloo-solutions/caseforge/internal/openai"
	"github.com/cloo-solutions/caseforge/internal/project"
	"github.com/cloo-solutions/caseforge/internal/server"
	"github.com/cloo-solutions/caseforge/internal/service"
	"github.com/cloo-solutions/caseforge/internal/storage"
	"github.com/cloo-solutions/caseforge/internal/telemetry"
	"github.com/cloo-solutions/caseforge/internal/textsplit"
	"github.com/cloo-solutions/caseforge/internal/vectorstore"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the caseforge API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.SentryDSN != "" {
		environment := cfg.SentryEnvironment
		if environment == "" {
			environment = "development"
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      environment,
			TracesSampleRate: cfg.SentrySampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	projects, err := project.NewStore(cfg.DataRoot)
	if err != nil {
		return fmt.Errorf("failed to initialize data root: %w", err)
	}

	var backend vectorstore.Backend
	switch cfg.VectorBackend {
	case "pgvector":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("failed to ping database: %w", err)
		}
		log.Println("connected to database")

		noMigrate, _ := cmd.Flags().GetBool("no-migrate")
		if !noMigrate {
			if err := runMigrations(cfg.DatabaseURL); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		backend = vectorstore.NewPGVectorBackend(pool, cfg.EmbeddingDimensions)
	default:
		backend = vectorstore.NewSQLiteBackend(cfg.EmbeddingDimensions)
	}
	log.Printf("vector backend: %s", cfg.VectorBackend)

	if !cfg.HasOpenAI() {
		log.Println("OPENAI_API_KEY not set: embedding and generation calls will fail")
	}
	openaiClient := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		EmbeddingModel:      goopenai.EmbeddingModel(cfg.EmbeddingModel),
		GenerationModel:     cfg.GenerationModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
	})

	var archiver service.Archiver
	var archiveWorker *jobs.Worker
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
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)

		archiveProcessor := jobs.NewArchiveProcessor(s3Client)
		archiver = archiveProcessor
		archiveWorker = jobs.NewWorker(archiveProcessor, 10*time.Second)
		go archiveWorker.Start(ctx)
		log.Println("upload archive worker started")
	}

	splitCfg := textsplit.Config{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap}

	ingestSvc := service.NewIngestService(projects, backend, openaiClient, archiver, splitCfg)
	retrieveSvc := service.NewRetrieveService(projects, backend, openaiClient)
	testCaseSvc := service.NewTestCaseService(retrieveSvc, openaiClient, cfg.RetrieveTopK)
	scriptSvc := service.NewScriptService(projects, retrieveSvc, openaiClient, cfg.RetrieveTopK)

	router := server.NewRouter(server.RouterConfig{
		ProjectHandler:  handlers.NewProjectHandler(ingestSvc, retrieveSvc, cfg.EmbedTimeout),
		RetrieveHandler: handlers.NewRetrieveHandler(retrieveSvc),
		GenerateHandler: handlers.NewGenerateHandler(testCaseSvc, scriptSvc, cfg.GenerateTimeout),
		MaxBodyBytes:    cfg.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if archiveWorker != nil {
		archiveWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func runMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
