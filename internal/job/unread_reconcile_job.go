package job

import (
	"Realty/internal/pkg/consts"
	"Realty/internal/pkg/logger"
	"Realty/internal/pkg/redis"
	"Realty/internal/service"
	"context"
	log "log/slog"
	"time"

	"github.com/google/uuid"
	goRedis "github.com/redis/go-redis/v9"
)

// UnreadReconcileJob 定期把仍有未读的会话重新推给客服，实时推送丢失时由它兜底
type UnreadReconcileJob struct {
	chatSvc service.ChatService
	rdb     *goRedis.Client
	window  time.Duration
	timeout time.Duration
}

// NewUnreadReconcileJob rdb 为 nil 时不加分布式锁 (单实例)
func NewUnreadReconcileJob(chatSvc service.ChatService, rdb *goRedis.Client, window time.Duration) *UnreadReconcileJob {
	return &UnreadReconcileJob{
		chatSvc: chatSvc,
		rdb:     rdb,
		window:  window,
		timeout: 20 * time.Second,
	}
}

func (s *UnreadReconcileJob) Run() {
	traceID := "job-" + uuid.NewString()
	ctx := logger.WithTraceID(context.Background(), traceID)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// 多实例只需要一个执行
	if s.rdb != nil {
		ok, err := redis.TryLock(ctx, s.rdb, consts.UnreadReconcileLock, traceID, s.timeout)
		if err != nil {
			log.ErrorContext(ctx, "acquire reconcile lock error", "err", err)
			return
		}
		if !ok {
			return
		}
		defer redis.UnLock(context.WithoutCancel(ctx), s.rdb, consts.UnreadReconcileLock, traceID)
	}

	n, err := s.chatSvc.ReconcileUnread(ctx, time.Now().Add(-s.window))
	if err != nil {
		log.ErrorContext(ctx, "reconcile unread threads error", "err", err)
		return
	}
	if n > 0 {
		log.InfoContext(ctx, "reconcile unread threads success", "threads", n)
	}
}
