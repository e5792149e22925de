package bootstrap

import (
	"context"
	"fmt"
	"time"

	gcstorage "cloud.google.com/go/storage"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"docchat/internal/ai"
	"docchat/internal/app"
	"docchat/internal/cache"
	"docchat/internal/config"
	"docchat/internal/model"
	"docchat/internal/notify"
	"docchat/internal/objectstore"
	mysqlClient "docchat/internal/platform/mysql"
	rabbitmqClient "docchat/internal/platform/rabbitmq"
	redisClient "docchat/internal/platform/redis"
	"docchat/internal/repository"
	"docchat/internal/vectorstore"
	"docchat/internal/worker"
)

type App struct {
	Config *config.Config
	MySQL  *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection
	GCS    *gcstorage.Client

	Notifier      *notify.Notifier
	UploadService *app.UploadService
	ChatService   *app.ChatService

	answerWorker *worker.AnswerWorker
	ingestWorker *worker.IngestWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(&model.File{}, &model.Chat{}, &model.Message{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	gcsCli, err := gcstorage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client failed: %w", err)
	}
	slots := objectstore.New(
		gcsCli,
		cfg.Storage.Bucket,
		cfg.Storage.UploadPrefix,
		time.Duration(cfg.Storage.SignedURLExpirySec)*time.Second,
	)

	qdrant := vectorstore.NewQdrant(vectorstore.QdrantConfig{
		URL:        cfg.Vector.URL,
		APIKey:     cfg.Vector.APIKey,
		Collection: cfg.Vector.Collection,
	})
	if err := qdrant.EnsureCollection(ctx, cfg.Vector.Dimension); err != nil {
		return nil, fmt.Errorf("ensure vector collection failed: %w", err)
	}

	chatRepo := repository.NewChatRepository(mysqlDB)
	fileRepo := repository.NewFileRepository(mysqlDB)
	messageRepo := repository.NewMessageRepository(mysqlDB)

	historyCache := cache.NewHistoryCache(
		redisCli,
		time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)
	generateTimeout := time.Duration(cfg.Answer.GenerateTimeoutSec) * time.Second
	answerSlot := cache.NewAnswerSlot(redisCli, 2*generateTimeout)
	notifier := notify.NewNotifier(redisCli)

	llmClient := ai.NewClient()
	chatCfg := ai.ChatConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	}
	embCfg := ai.EmbeddingConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.EmbeddingModel,
	}

	answerQueue := rabbitmqClient.NewJobPublisher(mqConn, cfg.RabbitMQ.AnswerQueue)
	ingestQueue := rabbitmqClient.NewJobPublisher(mqConn, cfg.RabbitMQ.IngestQueue)

	uploadService := app.NewUploadService(slots, chatRepo, fileRepo, ingestQueue)
	chatService := app.NewChatService(chatRepo, messageRepo, answerQueue, historyCache, notifier)
	answerService := app.NewAnswerService(
		chatRepo, fileRepo, messageRepo,
		qdrant, llmClient, historyCache, notifier,
		chatCfg, embCfg,
		cfg.Answer.TopK, cfg.Answer.MaxHistoryMessages, generateTimeout,
	)
	ingestService := app.NewIngestService(
		fileRepo, slots, qdrant, llmClient, embCfg,
		cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap, cfg.Ingest.EmbedBatch,
	)

	answerWorker := worker.NewAnswerWorker(mqConn, answerService, answerSlot, cfg.RabbitMQ.AnswerQueue)
	if err := answerWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start answer worker failed: %w", err)
	}
	ingestWorker := worker.NewIngestWorker(mqConn, ingestService, cfg.RabbitMQ.IngestQueue)
	if err := ingestWorker.Start(ctx); err != nil {
		answerWorker.Close()
		return nil, fmt.Errorf("start ingest worker failed: %w", err)
	}

	return &App{
		Config:        cfg,
		MySQL:         mysqlDB,
		Redis:         redisCli,
		MQConn:        mqConn,
		GCS:           gcsCli,
		Notifier:      notifier,
		UploadService: uploadService,
		ChatService:   chatService,
		answerWorker:  answerWorker,
		ingestWorker:  ingestWorker,
		StartedAt:     time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.answerWorker != nil {
		a.answerWorker.Close()
	}
	if a.ingestWorker != nil {
		a.ingestWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.GCS != nil {
		if err := a.GCS.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
