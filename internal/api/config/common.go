package config

// Config 配置主体
type Config struct {
	Server             ServerConfig       `mapstructure:"server"`
	Storage            StorageConfig      `mapstructure:"storage"`
	DB                 DBConfig           `mapstructure:"database"`
	Mongo              MongoConfig        `mapstructure:"mongo"`
	Redis              RedisConfig        `mapstructure:"redis"`
	Chat               ChatConfig         `mapstructure:"chat"`
	JWT                JWTConfig          `mapstructure:"jwt"`
	Elastic            ElasticConfig      `mapstructure:"elastic"`
	Kafka              KafkaConfig        `mapstructure:"kafka"`
	KafkaChatProducer  KafkaChatProducer  `mapstructure:"kafka_chat_producer"`
	KafkaIndexConsumer KafkaIndexConsumer `mapstructure:"kafka_index_consumer"`
	Cron               CronConfig         `mapstructure:"cron"`
	Logstash           LogstashConfig     `mapstructure:"logstash"`
}

// ServerConfig Server配置
type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	TrustedProxies  []string `mapstructure:"trusted_proxies"`
	ShutdownTimeout int      `mapstructure:"shutdown_timeout"`
}

// StorageConfig 选择存储后端：mysql (线程元数据) + mongo (消息)，或 memory (本地开发)
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

// DBConfig 数据库配置
type DBConfig struct {
	DSN           string `mapstructure:"dsn"`
	MaxIdle       int    `mapstructure:"max_idle"`
	MaxOpen       int    `mapstructure:"max_open"`
	MaxLifetime   int    `mapstructure:"max_lifetime"`
	AutoMigrate   bool   `mapstructure:"auto_migrate"`
	SlowThreshold int    `mapstructure:"slow_threshold"` // 慢查询阈值，毫秒
}

type MongoConfig struct {
	URL           string `mapstructure:"url"`
	Database      string `mapstructure:"database"`
	MaxPoolSize   uint64 `mapstructure:"max_pool_size"`
	SlowThreshold int    `mapstructure:"slow_threshold"` // 毫秒
}

type RedisConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// ChatConfig 聊天中继配置
type ChatConfig struct {
	WSPath           string   `mapstructure:"ws_path"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	RequireAdminAuth bool     `mapstructure:"require_admin_auth"`
	MaxConnections   int64    `mapstructure:"max_connections"`
	SendBuffer       int      `mapstructure:"send_buffer"`
	ThreadListLimit  int      `mapstructure:"thread_list_limit"`
	MessageListLimit int      `mapstructure:"message_list_limit"`
	DedupeTTL        int      `mapstructure:"dedupe_ttl"`
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`
	Issuer     string `mapstructure:"issuer"`
	Expiration int    `mapstructure:"expiration"`
}

// ElasticConfig Elastic配置
type ElasticConfig struct {
	Enable   bool           `mapstructure:"enable"`
	Address  string         `mapstructure:"address"`
	Username string         `mapstructure:"username"`
	Password string         `mapstructure:"password"`
	Indices  ElasticIndices `mapstructure:"indices"`
}

// ElasticIndices Elastic索引
type ElasticIndices struct {
	ThreadIndex string `mapstructure:"thread_index"`
}

type KafkaConfig struct {
	Enable   bool           `mapstructure:"enable"`
	Brokers  []string       `mapstructure:"brokers"`
	Sasl     SaslConfig     `mapstructure:"sasl"`
	Consumer ConsumerConfig `mapstructure:"consumer"`
}

type SaslConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type ConsumerConfig struct {
	SessionTimeout    int `mapstructure:"session_timeout"`
	HeartbeatInterval int `mapstructure:"heartbeat_interval"`
	RebalanceTimeout  int `mapstructure:"rebalance_timeout"`
	MaxProcessingTime int `mapstructure:"max_processing_time"`
}

type KafkaChatProducer struct {
	Topic string `mapstructure:"topic"`
}

type KafkaIndexConsumer struct {
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

type CronConfig struct {
	UnreadReconcile string `mapstructure:"unread_reconcile"`
	ReconcileWindow int    `mapstructure:"reconcile_window"`
}

type LogstashConfig struct {
	Address string `mapstructure:"address"`
	Index   string `mapstructure:"index"`
	Token   string `mapstructure:"token"`
}
