package kafka

import (
	"Realty/internal/api/config"
	"Realty/internal/pkg/es"
	"Realty/internal/repository"
	"context"
	log "log/slog"
	"time"

	"github.com/IBM/sarama"
)

// ConsumerManager 管理 Kafka 消费者
type ConsumerManager struct {
	indexConsumer sarama.ConsumerGroup
	indexHandler  sarama.ConsumerGroupHandler
	indexTopic    string
}

// NewConsumerManager 构造函数
func NewConsumerManager(cfg *config.Config, threadRepo repository.ThreadRepo, threadESRepo es.ThreadRepo) (*ConsumerManager, error) {
	saramaCfg := newSaramaConfig(cfg.Kafka)

	indexConsumer, err := sarama.NewConsumerGroup(cfg.Kafka.Brokers, cfg.KafkaIndexConsumer.GroupID, saramaCfg)
	if err != nil {
		return nil, err
	}

	return &ConsumerManager{
		indexConsumer: indexConsumer,
		indexHandler:  NewThreadIndexHandler(threadRepo, threadESRepo),
		indexTopic:    cfg.KafkaIndexConsumer.Topic,
	}, nil
}

// Start 启动所有消费者，阻塞直到 ctx 结束
func (m *ConsumerManager) Start(ctx context.Context) error {
	go func() {
		for err := range m.indexConsumer.Errors() {
			log.Error("Error from thread index consumer", "err", err)
		}
	}()

	go func() {
		log.Info("Thread index consumer started", "topic", m.indexTopic)
		for {
			if err := m.indexConsumer.Consume(ctx, []string{m.indexTopic}, m.indexHandler); err != nil {
				log.Error("Error from consumer", "err", err)
				time.Sleep(time.Second)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	<-ctx.Done()
	log.Info("Kafka Manager shutting down...")

	if err := m.indexConsumer.Close(); err != nil {
		log.Error("Failed to close thread index consumer", "err", err)
	}
	return nil
}
