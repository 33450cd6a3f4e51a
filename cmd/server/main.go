// Package main is the entry point of the jurisdiction-aware legal RAG service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"juris-rag-go/internal/config"
	"juris-rag-go/internal/handler"
	"juris-rag-go/internal/middleware"
	"juris-rag-go/internal/pipeline"
	"juris-rag-go/internal/repository"
	"juris-rag-go/internal/service"
	"juris-rag-go/pkg/database"
	"juris-rag-go/pkg/embedding"
	"juris-rag-go/pkg/es"
	"juris-rag-go/pkg/httpclient"
	"juris-rag-go/pkg/kafka"
	"juris-rag-go/pkg/llm"
	"juris-rag-go/pkg/log"
	"juris-rag-go/pkg/retry"
	"juris-rag-go/pkg/storage"
	"juris-rag-go/pkg/token"
)

func main() {
	// 1. Configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Logger
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Shared HTTP pool and retry policy
	pool := httpclient.New(cfg.HTTP)
	go pool.Recycle(ctx)
	policy := retry.FromConfig(cfg.Retry)

	// 4. Stores
	db, err := database.NewMySQL(cfg.Database.MySQL.DSN)
	if err != nil {
		log.Fatal("init mysql", err)
	}
	rdb, err := database.NewRedis(ctx, cfg.Database.Redis)
	if err != nil {
		log.Fatal("init redis", err)
	}
	defer rdb.Close()

	store, err := storage.New(cfg.MinIO, pool.Transport, policy)
	if err != nil {
		log.Fatal("init minio", err)
	}
	if err := store.EnsureBuckets(ctx); err != nil {
		log.Fatal("init minio buckets", err)
	}

	esClient, err := es.NewClient(cfg.Elasticsearch, pool.Transport)
	if err != nil {
		log.Fatal("init elasticsearch", err)
	}
	if err := es.EnsureIndex(ctx, esClient, cfg.Elasticsearch.IndexName, cfg.Model.Dimensions); err != nil {
		log.Fatal("init elasticsearch index", err)
	}

	producer := kafka.NewProducer(cfg.Kafka)
	defer producer.Close()

	// 5. Repositories and model clients
	indexRepo := repository.NewIndexRepository(esClient, cfg.Elasticsearch.IndexName, policy, cfg.Retrieval.SearchTimeout)
	runRepo := repository.NewIngestionRunRepository(db)

	openAI := llm.NewOpenAI(cfg.Model, pool.Client)
	embeddingClient := embedding.NewClient(openAI, cfg.Model, policy)
	llmClient := llm.NewClient(openAI, cfg.Model, policy)

	// 6. Services
	jurisdictionService := service.NewJurisdictionService(llmClient, indexRepo)
	searchService := service.NewSearchService(embeddingClient, indexRepo)
	answerService := service.NewAnswerService(llmClient)
	askService := service.NewAskService(jurisdictionService, searchService, answerService, cfg.Retrieval.TopK)
	indexService := service.NewIndexService(indexRepo)
	uploadService := service.NewUploadService(store, producer, runRepo)
	diagnosticService := service.NewDiagnosticService([]service.Check{
		{Name: "elasticsearch", Probe: indexRepo.Ping},
		{Name: "minio", Probe: store.Ping},
		{Name: "redis", Probe: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		{Name: "kafka", Probe: func(ctx context.Context) error { return kafka.Ping(ctx, cfg.Kafka) }},
		{Name: "mysql", Probe: runRepo.Ping},
	}, map[string]bool{
		"model_endpoint":   cfg.Model.Endpoint != "",
		"vision_captions":  llmClient.VisionEnabled(),
		"ingestion_runs":   db != nil,
		"admin_auth":       cfg.JWT.Secret != "",
		"ask_rate_limited": cfg.RateLimit.Requests > 0,
	})

	// 7. Ingestion pipeline behind the Kafka consumer
	processor := pipeline.NewProcessor(
		store,
		pipeline.NewCaptioner(llmClient, store),
		embeddingClient,
		indexService,
		runRepo,
		cfg.Ingestion.ChunkMaxChars,
		cfg.Ingestion.EmbeddingWorkers,
	)
	consumer := kafka.NewConsumer(cfg.Kafka, processor, kafka.NewRedisAttemptCounter(rdb, 24*time.Hour))
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Run(ctx); err != nil {
			log.Error("kafka consumer stopped", err)
		}
	}()

	// 8. Router
	var jwtManager *token.JWTManager
	if cfg.JWT.Secret != "" {
		jwtManager = token.NewJWTManager(cfg.JWT.Secret)
	} else {
		log.Warnf("no JWT secret configured, admin endpoints are unauthenticated")
	}

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger("/api/upload_blob"), gin.Recovery())

	askHandler := handler.NewAskHandler(askService)
	uploadHandler := handler.NewUploadHandler(uploadService)
	indexHandler := handler.NewIndexHandler(indexService)
	diagnosticHandler := handler.NewDiagnosticHandler(diagnosticService)

	api := r.Group("/api")
	{
		rateLimit := middleware.RateLimit(middleware.NewRedisWindowCounter(rdb), cfg.RateLimit.Requests, cfg.RateLimit.Window)
		api.GET("/ask", askHandler.Ping)
		api.POST("/ask", rateLimit, askHandler.Ask)

		api.GET("/diagnostic", diagnosticHandler.Report)
		api.POST("/diagnostic", diagnosticHandler.Report)

		admin := api.Group("")
		admin.Use(middleware.AdminAuth(jwtManager))
		{
			admin.POST("/upload_blob", uploadHandler.UploadBlob)
			admin.POST("/cleanup_index", indexHandler.Cleanup)
			admin.GET("/ingestion_runs", uploadHandler.ListRuns)
		}
	}

	// 9. Serve with graceful shutdown
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}
	go func() {
		log.Infof("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("http server shutdown: %v", err)
	}
	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		log.Warnf("kafka consumer did not stop in time")
	}
	log.Info("server stopped")
}
