package realtime

import (
	"Realty/internal/pkg/consts"
	"Realty/internal/pkg/redis"
	"context"
	log "log/slog"
	"strings"

	goRedis "github.com/redis/go-redis/v9"
)

// LocalBus 单实例部署：直接投递到本进程 Hub
type LocalBus struct {
	hub *Hub
}

func NewLocalBus(hub *Hub) *LocalBus {
	return &LocalBus{hub: hub}
}

func (b *LocalBus) Publish(_ context.Context, group string, event string, payload interface{}) error {
	frame, err := EncodeFrame(event, payload)
	if err != nil {
		return err
	}
	b.hub.Deliver(group, frame)
	return nil
}

// RedisBus 多实例部署：发布到 im:chat:<group>，每个进程模式订阅后投递到本地 Hub
type RedisBus struct {
	hub *Hub
	rdb *goRedis.Client
}

func NewRedisBus(hub *Hub, rdb *goRedis.Client) *RedisBus {
	return &RedisBus{hub: hub, rdb: rdb}
}

func (b *RedisBus) Publish(ctx context.Context, group string, event string, payload interface{}) error {
	frame, err := EncodeFrame(event, payload)
	if err != nil {
		return err
	}
	return redis.Publish(ctx, b.rdb, consts.ChatChannelPrefix+group, frame)
}

// Run 阻塞直到 ctx 结束
func (b *RedisBus) Run(ctx context.Context) error {
	pubsub := redis.PSubscribe(ctx, b.rdb, consts.ChatChannelPrefix+"*")
	defer func() {
		_ = pubsub.Close()
	}()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	log.Info("Chat bus subscribed", "pattern", consts.ChatChannelPrefix+"*")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			group := strings.TrimPrefix(msg.Channel, consts.ChatChannelPrefix)
			b.hub.Deliver(group, []byte(msg.Payload))
		}
	}
}
