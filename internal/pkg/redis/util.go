package redis

import (
	"Realty/internal/pkg/consts"
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper 基于 SETNX 的消息幂等键占位
type Deduper struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewDeduper(rdb *redis.Client, ttl time.Duration) *Deduper {
	return &Deduper{rdb: rdb, ttl: ttl}
}

// Claim 首次占位返回 true，键已存在返回 false
func (s *Deduper) Claim(ctx context.Context, threadID string, key string) (bool, error) {
	return s.rdb.SetNX(ctx, dedupeKey(threadID, key), 1, s.ttl).Result()
}

// Release 落库失败时释放占位，允许客户端重试
func (s *Deduper) Release(ctx context.Context, threadID string, key string) error {
	return s.rdb.Del(ctx, dedupeKey(threadID, key)).Err()
}

func dedupeKey(threadID, key string) string {
	return consts.ChatDedupeKey + threadID + ":" + key
}

// Publish 发布消息到频道
func Publish(ctx context.Context, rdb *redis.Client, channel string, message interface{}) error {
	return rdb.Publish(ctx, channel, message).Err()
}

// PSubscribe 按模式订阅频道
func PSubscribe(ctx context.Context, rdb *redis.Client, patterns ...string) *redis.PubSub {
	return rdb.PSubscribe(ctx, patterns...)
}

// TryLock 抢占分布式锁，过期自动释放
func TryLock(ctx context.Context, rdb *redis.Client, key string, value interface{}, expiration time.Duration) (bool, error) {
	return rdb.SetNX(ctx, key, value, expiration).Result()
}

// UnLock 释放锁
func UnLock(ctx context.Context, rdb *redis.Client, key string, value interface{}) {
	rdb.Eval(ctx, "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end", []string{key}, value)
}
