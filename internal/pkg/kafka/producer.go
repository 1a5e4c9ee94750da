package kafka

import (
	"Realty/internal/api/config"
	"Realty/internal/api/dto"
	"context"
	log "log/slog"
	"sync"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
)

// EventProducer 把聊天领域事件异步写入 Kafka，写入失败只记录日志
type EventProducer struct {
	producer sarama.AsyncProducer
	topic    string
	wg       sync.WaitGroup
}

func NewEventProducer(kafkaCfg config.KafkaConfig, topic string) (*EventProducer, error) {
	producer, err := sarama.NewAsyncProducer(kafkaCfg.Brokers, newSaramaConfig(kafkaCfg))
	if err != nil {
		return nil, err
	}
	return newEventProducer(producer, topic), nil
}

func newEventProducer(producer sarama.AsyncProducer, topic string) *EventProducer {
	p := &EventProducer{producer: producer, topic: topic}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for e := range producer.Errors() {
			log.Error("Failed to deliver chat event", "topic", p.topic, "err", e.Err)
		}
	}()
	return p
}

func (p *EventProducer) Emit(ctx context.Context, evt *dto.ChatEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		log.ErrorContext(ctx, "marshal chat event error", "err", err)
		return
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(evt.ThreadID),
		Value: sarama.ByteEncoder(data),
	}
	select {
	case p.producer.Input() <- msg:
	case <-ctx.Done():
		log.WarnContext(ctx, "chat event dropped", "type", evt.Type, "thread_id", evt.ThreadID)
	}
}

// Close 刷出缓冲区中的事件
func (p *EventProducer) Close() error {
	p.producer.AsyncClose()
	p.wg.Wait()
	return nil
}
