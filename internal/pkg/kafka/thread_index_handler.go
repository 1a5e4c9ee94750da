package kafka

import (
	"Realty/internal/api/dto"
	"Realty/internal/pkg/es"
	"Realty/internal/repository"
	"context"
	"errors"
	log "log/slog"

	"github.com/IBM/sarama"
)

// ThreadIndexHandler 消费聊天事件，把会话最新状态同步到 ES
type ThreadIndexHandler struct {
	threadRepo   repository.ThreadRepo
	threadESRepo es.ThreadRepo
}

func NewThreadIndexHandler(threadRepo repository.ThreadRepo, threadESRepo es.ThreadRepo) *ThreadIndexHandler {
	return &ThreadIndexHandler{
		threadRepo:   threadRepo,
		threadESRepo: threadESRepo,
	}
}

func (s *ThreadIndexHandler) Setup(sarama.ConsumerGroupSession) error {
	log.Info("thread index consumer setup")
	return nil
}

func (s *ThreadIndexHandler) Cleanup(sarama.ConsumerGroupSession) error {
	log.Info("thread index consumer cleanup")
	return nil
}

func (s *ThreadIndexHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	err := pullMessageBatch(session, claim, s.logic)
	if err != nil {
		log.Error("process batch error", "err", err)
		return err
	}
	return nil
}

func (s *ThreadIndexHandler) logic(ctx context.Context, msg *sarama.ConsumerMessage) error {
	evt, err := ToChatEvent(msg)
	if err != nil {
		// 坏消息重试也没用，跳过
		return nil
	}
	return s.handle(ctx, evt)
}

func (s *ThreadIndexHandler) handle(ctx context.Context, evt *dto.ChatEvent) error {
	// 无论事件类型都回源读取最新状态，批内折叠后只剩最后一条也能索引到最新内容
	thread, err := s.threadRepo.GetThread(ctx, evt.ThreadID)
	if err != nil {
		if errors.Is(err, repository.ErrThreadNotFound) {
			log.Warn("thread not found while indexing, skip", "thread_id", evt.ThreadID)
			return nil
		}
		return err
	}

	return s.threadESRepo.IndexThread(ctx, es.NewThreadES(thread), thread.UpdatedAt.UnixNano())
}
