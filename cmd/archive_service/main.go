package main

import (
	"context"
	"log"
	"time"

	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/archive_service/api"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/archive_service/chat"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/archive_service/indexer"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/archive_service/search"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/archive_service/service"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/archive_service/store"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/archive_service/tasks"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/config"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/database/kafka"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/database/minio"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/database/mongo"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/database/redis"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/embedding"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/llm"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/speech"
	"github.com/ikaraev-code/Intelligent-archive-02-22/pkg/logger"

	"github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger
	level, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.Init(level)
	appLogger := logger.New("archive_service", "", "")

	appLogger.Info("Logger initialized")

	ctx := context.Background()

	// Initialize storage backends
	mongoClient, err := mongo.GetClient(&cfg.Databases.Mongo)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	db := mongoClient.Database(cfg.Databases.Mongo.Database)

	redisClient, err := redis.GetClient(&cfg.Databases.Redis)
	if err != nil {
		appLogger.Fatal(err.Error())
	}

	minioClient, err := minio.GetClient(&cfg.Databases.MinIO)
	if err != nil {
		appLogger.Fatal(err.Error())
	}

	kafkaClient, err := kafka.GetClient(&cfg.Databases.Kafka)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	appLogger.Info("Storage backends connected")

	// Initialize stores
	documents := store.NewMongoDocumentStore(db, "documents")
	chunks := store.NewMongoChunkStore(db, "chunks")
	stories := store.NewMongoStoryStore(db)
	taskRecords := store.NewMongoTaskStore(db, "tasks")
	sessions := store.NewRedisSessionStore(redisClient)

	artifacts, err := store.NewMinioArtifactStore(ctx, minioClient, cfg.Databases.MinIO.Bucket)
	if err != nil {
		appLogger.Fatal(err.Error())
	}

	indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := documents.EnsureIndexes(indexCtx); err != nil {
		cancel()
		appLogger.Fatal(err.Error())
	}
	cancel()
	appLogger.Info("Stores initialized")

	// Initialize AI providers. A missing API key is a supported state: the
	// archive stays usable with lexical search only.
	var (
		embedder   indexer.Embedder
		querier    search.QueryEmbedder
		generator  chat.TextGenerator
		translator tasks.Translator
		synth      tasks.Synthesizer
		embedModel string
	)
	if cfg.OpenAI.APIKey != "" {
		policy := cfg.Retry.Policy()

		model, err := embedding.NewOpenAIModel(cfg.OpenAI.APIKey, cfg.OpenAI.EmbeddingModel, policy)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
		embedder = model
		querier = model
		embedModel = cfg.OpenAI.EmbeddingModel

		gen, err := llm.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.CompletionModel, policy)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
		generator = gen
		translator = gen

		tts, err := speech.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.SpeechModel, cfg.OpenAI.SpeechVoice, policy)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
		synth = tts
		appLogger.Info("AI providers configured")
	} else {
		appLogger.Warn("no OpenAI API key configured, semantic features disabled")
	}

	// Initialize the indexing pipeline
	chunker, err := indexer.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	ix := indexer.NewIndexer(documents, chunks, embedder, chunker, cfg.Chunking.BatchSize, appLogger)
	publisher := indexer.NewJobPublisher(kafkaClient.Writer, appLogger)
	consumer := indexer.NewJobConsumer(kafkaClient.Reader, ix, documents, appLogger)
	consumer.Start(ctx)

	// Initialize retrieval, chat and task layers
	engine := search.NewEngine(documents, chunks, querier, cfg.Search, appLogger)
	assistant := chat.NewAssistant(engine, documents, stories, sessions, generator, appLogger)

	orch := tasks.NewOrchestrator(taskRecords, appLogger)
	orch.StartRetentionGC(ctx, cfg.Tasks.RetentionDuration())
	reindex := tasks.NewReindexRunner(documents, ix, orch)
	translate := tasks.NewTranslateRunner(stories, translator, orch)
	exportAudio := tasks.NewExportAudioRunner(stories, synth, artifacts, orch)

	documentService := service.NewDocumentService(documents, chunks, stories, artifacts, publisher, embedModel, appLogger)
	storyService := service.NewStoryService(stories, documents, appLogger)
	appLogger.Info("Dependencies injected")

	// Setup and start Gin router
	handler := api.NewHandler(documentService, storyService, assistant, engine, orch, reindex, translate, exportAudio, artifacts, appLogger)
	router := api.SetupRouter(handler)
	appLogger.Info("Starting server on " + cfg.Server.Address)

	if err := router.Run(cfg.Server.Address); err != nil {
		appLogger.Fatal(err.Error())
	}
}
