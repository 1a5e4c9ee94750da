package main

import (
	"Realty/internal/api/config"
	"Realty/internal/pkg/database"
	"Realty/internal/pkg/es"
	"Realty/internal/pkg/logger"
	"Realty/internal/pkg/mongo"
	"Realty/internal/pkg/redis"
	"Realty/internal/repository"
	"Realty/internal/wire"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

func main() {
	// 加载配置
	if err := config.LoadConfig(); err != nil {
		log.Error("Fatal error: failed to load configuration", "err", err)
		panic(err)
	}
	cfg := config.Cfg

	// 初始化日志
	logger.InitLogger(cfg.Logstash)

	stores, err := openStores(cfg)
	if err != nil {
		log.Error("Fatal error: failed to open storage", "err", err)
		panic(err)
	}

	// 依赖注入
	app, err := wire.BuildApplication(cfg, stores)
	if err != nil {
		log.Error("Fatal error: failed to create application", "err", err)
		panic(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	// 定时任务
	err = app.CronMgr.Run()
	if err != nil {
		log.Error("Fatal error: failed to start cron jobs", "err", err)
		panic(err)
	}
	g.Go(func() error {
		<-ctx.Done()
		log.Info("Cron Jobs stopping...")
		app.CronMgr.Stop()
		return nil
	})

	// Redis 广播订阅
	if app.RedisBus != nil {
		g.Go(func() error {
			log.Info("Chat bus subscriber starting...")
			return app.RedisBus.Run(ctx)
		})
	}

	// Kafka 消费者
	if app.KafkaManager != nil {
		g.Go(func() error {
			log.Info("Kafka Consumers starting...")
			return app.KafkaManager.Start(ctx)
		})
	}

	// HTTP 服务器
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: app.Router,
	}
	g.Go(func() error {
		log.Info("HTTP Server starting...", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// 优雅退出
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-ctx.Done():
		case sig := <-quit:
			log.Info("Received signal, shutting down...", "signal", sig)
			cancel()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP Server shutdown failed", "err", err)
		}
		// 已升级的 WebSocket 连接不受 Shutdown 管理，需要单独断开
		app.Close()
		return nil
	})

	if err = g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("App exited with error", "err", err)
	}
	log.Info("App exited successfully.")
}

// openStores 按 storage.driver 建立存储连接
func openStores(cfg *config.Config) (*wire.Stores, error) {
	var stores *wire.Stores

	switch cfg.Storage.Driver {
	case "memory":
		log.Warn("Using in-memory storage, data is lost on restart")
		stores = wire.NewMemoryStores()
	case "mysql", "":
		// 数据库连接
		dbCfg := cfg.DB
		db, err := database.NewGormDB(&dbCfg)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}

		// Mongo 连接
		mongoConn, err := mongo.InitMongo(cfg.Mongo)
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}

		stores = &wire.Stores{
			Threads:  repository.NewThreadRepo(db),
			Messages: mongo.NewMessageRepo(mongoConn),
		}
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	// Redis 连接
	if cfg.Redis.Enable {
		rdb, err := redis.InitRedis(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		stores.Redis = rdb
	}

	// ElasticSearch 连接
	if cfg.Elastic.Enable {
		client, err := es.NewClient(cfg.Elastic)
		if err != nil {
			return nil, fmt.Errorf("elasticsearch: %w", err)
		}
		stores.Elastic = client
	}

	return stores, nil
}
