package wire

import (
	"Realty/internal/api"
	"Realty/internal/api/config"
	"Realty/internal/api/handler"
	"Realty/internal/job"
	"Realty/internal/pkg/cron"
	"Realty/internal/pkg/es"
	"Realty/internal/pkg/kafka"
	"Realty/internal/pkg/memstore"
	"Realty/internal/pkg/mongo"
	"Realty/internal/pkg/redis"
	"Realty/internal/pkg/security"
	"Realty/internal/realtime"
	"Realty/internal/repository"
	"Realty/internal/service"
	log "log/slog"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gin-gonic/gin"
	goRedis "github.com/redis/go-redis/v9"
)

// Stores 已连接的存储后端；Redis / Elastic 为 nil 表示对应功能关闭
type Stores struct {
	Threads  repository.ThreadRepo
	Messages mongo.MessageRepo
	Redis    *goRedis.Client
	Elastic  *elasticsearch.TypedClient
}

// NewMemoryStores 本地开发与测试用的内存存储
func NewMemoryStores() *Stores {
	return &Stores{
		Threads:  memstore.NewThreadStore(),
		Messages: memstore.NewMessageStore(),
	}
}

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router        *gin.Engine
	Hub           *realtime.Hub
	ChatService   service.ChatService
	Tokens        *security.TokenManager
	RedisBus      *realtime.RedisBus
	KafkaManager  *kafka.ConsumerManager
	EventProducer *kafka.EventProducer
	CronMgr       *cron.Manager
}

func BuildApplication(cfg *config.Config, stores *Stores) (*ApplicationContainer, error) {
	app := &ApplicationContainer{Hub: realtime.NewHub()}

	// 广播总线：有 Redis 时跨实例扇出
	var bus service.Broadcaster = realtime.NewLocalBus(app.Hub)
	if stores.Redis != nil {
		app.RedisBus = realtime.NewRedisBus(app.Hub, stores.Redis)
		bus = app.RedisBus
	}

	dedupeTTL := time.Duration(cfg.Chat.DedupeTTL) * time.Second
	var deduper service.Deduper = memstore.NewDeduper(dedupeTTL)
	if stores.Redis != nil {
		deduper = redis.NewDeduper(stores.Redis, dedupeTTL)
	}

	var events service.EventSink
	if cfg.Kafka.Enable {
		producer, err := kafka.NewEventProducer(cfg.Kafka, cfg.KafkaChatProducer.Topic)
		if err != nil {
			return nil, err
		}
		app.EventProducer = producer
		events = producer
	}

	var searcher service.ThreadSearcher
	if stores.Elastic != nil {
		threadESRepo := es.NewThreadRepo(stores.Elastic, cfg.Elastic.Indices.ThreadIndex)
		searcher = threadESRepo

		if cfg.Kafka.Enable {
			kafkaMgr, err := kafka.NewConsumerManager(cfg, stores.Threads, threadESRepo)
			if err != nil {
				return nil, err
			}
			app.KafkaManager = kafkaMgr
		} else {
			log.Warn("Elasticsearch enabled without Kafka, thread index will not be updated")
		}
	}

	app.ChatService = service.NewChatService(cfg.Chat, stores.Threads, stores.Messages, bus, deduper, events, searcher)
	app.Tokens = security.NewTokenManager(cfg.JWT)

	relay := realtime.NewRelay(app.Hub, app.ChatService, cfg.Chat.SendBuffer)
	handlers := &api.HandlersGroup{
		ChatHandler: handler.NewChatHandler(app.ChatService),
		WSHandler:   handler.NewWsHandler(cfg.Chat, relay, app.Tokens),
		Tokens:      app.Tokens,
	}
	app.Router = api.SetupRouter(cfg, handlers)

	reconcileJob := job.NewUnreadReconcileJob(app.ChatService, stores.Redis, time.Duration(cfg.Cron.ReconcileWindow)*time.Second)
	app.CronMgr = cron.NewCronManager(cfg.Cron.UnreadReconcile, reconcileJob)

	return app, nil
}

// Close 断开实时连接，等待消息补写完成并刷出事件
func (a *ApplicationContainer) Close() {
	a.Hub.Close()
	a.ChatService.Close()
	if a.EventProducer != nil {
		if err := a.EventProducer.Close(); err != nil {
			log.Error("Failed to close event producer", "err", err)
		}
	}
}
