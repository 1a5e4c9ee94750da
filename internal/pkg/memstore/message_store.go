package memstore

import (
	"Realty/internal/pkg/mongo"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type MessageStore struct {
	mu       sync.RWMutex
	seqID    uint64
	messages map[string][]*mongo.Message
}

func NewMessageStore() *MessageStore {
	return &MessageStore{messages: make(map[string][]*mongo.Message)}
}

func (s *MessageStore) SaveMessage(_ context.Context, msg *mongo.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.messages[msg.ThreadID] {
		if m.Seq != msg.Seq {
			continue
		}
		// 重试写入同一条消息
		if msg.ID != "" && m.ID == msg.ID {
			return nil
		}
		return fmt.Errorf("duplicate seq %d in thread %s", msg.Seq, msg.ThreadID)
	}
	if msg.ID == "" {
		s.seqID++
		msg.ID = fmt.Sprintf("m%08d", s.seqID)
	}
	cp := *msg
	list := append(s.messages[msg.ThreadID], &cp)
	sort.Slice(list, func(i, j int) bool { return list[i].Seq < list[j].Seq })
	s.messages[msg.ThreadID] = list
	return nil
}

func (s *MessageStore) ListMessages(_ context.Context, threadID string, limit int) ([]*mongo.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.messages[threadID]
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	res := make([]*mongo.Message, 0, len(list))
	for _, m := range list {
		cp := *m
		res = append(res, &cp)
	}
	return res, nil
}

func (s *MessageStore) GetByClientMsgID(_ context.Context, threadID string, clientMsgID string) (*mongo.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.messages[threadID] {
		if m.ClientMsgID != "" && m.ClientMsgID == clientMsgID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, mongo.ErrMessageNotFound
}

// Deduper 内存版幂等键占位
type Deduper struct {
	mu        sync.Mutex
	ttl       time.Duration
	claimed   map[string]time.Time
	lastPrune time.Time
}

func NewDeduper(ttl time.Duration) *Deduper {
	return &Deduper{ttl: ttl, claimed: make(map[string]time.Time)}
}

func (d *Deduper) Claim(_ context.Context, threadID string, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	k := threadID + ":" + key
	now := time.Now()
	if exp, ok := d.claimed[k]; ok && now.Before(exp) {
		return false, nil
	}
	if now.Sub(d.lastPrune) >= d.ttl {
		d.prune(now)
	}
	d.claimed[k] = now.Add(d.ttl)
	return true, nil
}

// prune 清理过期占位，每个 ttl 周期最多一次，调用方持有锁
func (d *Deduper) prune(now time.Time) {
	d.lastPrune = now
	for k, exp := range d.claimed {
		if !now.Before(exp) {
			delete(d.claimed, k)
		}
	}
}

func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.claimed)
}

func (d *Deduper) Release(_ context.Context, threadID string, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.claimed, threadID+":"+key)
	return nil
}
