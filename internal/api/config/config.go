package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Cfg 全局可访问的配置实例
var Cfg *Config

const envPrefix = "REALTY"

// LoadConfig 从文件加载配置并填充到 Cfg，环境变量 REALTY_* 覆盖文件中的值
func LoadConfig() error {
	// .env 文件可选
	_ = godotenv.Load()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	Cfg = &cfg

	return nil
}

// Default 返回只包含默认值的配置，用于测试与本地内存模式
func Default() *Config {
	var cfg Config
	_ = newViper().Unmarshal(&cfg)
	return &cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.trusted_proxies", []string{"localhost"})
	v.SetDefault("server.shutdown_timeout", 5)

	v.SetDefault("storage.driver", "mysql")
	v.SetDefault("database.max_idle", 10)
	v.SetDefault("database.max_open", 50)
	v.SetDefault("database.max_lifetime", 30)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.slow_threshold", 200)
	v.SetDefault("mongo.database", "realty")
	v.SetDefault("mongo.max_pool_size", 100)
	v.SetDefault("mongo.slow_threshold", 200)

	v.SetDefault("redis.enable", false)
	v.SetDefault("redis.pool_size", 20)

	v.SetDefault("chat.ws_path", "/api/chat/ws")
	v.SetDefault("chat.require_admin_auth", true)
	v.SetDefault("chat.max_connections", 0)
	v.SetDefault("chat.send_buffer", 64)
	v.SetDefault("chat.thread_list_limit", 200)
	v.SetDefault("chat.message_list_limit", 1000)
	v.SetDefault("chat.dedupe_ttl", 600)

	v.SetDefault("jwt.secret", "realty-dev-secret")
	v.SetDefault("jwt.issuer", "Realty")
	v.SetDefault("jwt.expiration", 24)

	v.SetDefault("elastic.indices.thread_index", "chat_threads")

	v.SetDefault("kafka.consumer.session_timeout", 10)
	v.SetDefault("kafka.consumer.heartbeat_interval", 3)
	v.SetDefault("kafka.consumer.rebalance_timeout", 60)
	v.SetDefault("kafka.consumer.max_processing_time", 5)
	v.SetDefault("kafka_chat_producer.topic", "chat_events")
	v.SetDefault("kafka_index_consumer.topic", "chat_events")
	v.SetDefault("kafka_index_consumer.group_id", "chat-thread-indexer")

	v.SetDefault("cron.unread_reconcile", "@every 30s")
	v.SetDefault("cron.reconcile_window", 600)

	v.SetDefault("logstash.index", "logstash-realty")
	return v
}
