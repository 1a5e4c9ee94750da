// Package memstore 提供线程与消息存储的内存实现，用于本地开发 (storage.driver=memory) 与测试。
package memstore

import (
	"Realty/internal/model"
	"Realty/internal/repository"
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/datatypes"
)

type ThreadStore struct {
	mu      sync.Mutex
	threads map[string]*model.ChatThread
	now     func() time.Time
}

func NewThreadStore() *ThreadStore {
	return &ThreadStore{
		threads: make(map[string]*model.ChatThread),
		now:     time.Now,
	}
}

func (s *ThreadStore) EnsureThread(_ context.Context, id string, meta map[string]interface{}) (*model.ChatThread, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	t, ok := s.threads[id]
	if !ok {
		t = &model.ChatThread{
			ID:              id,
			ParticipantMeta: datatypes.JSONMap{},
			Status:          model.ThreadStatusOpen,
			LastMessageAt:   now,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		s.threads[id] = t
	}
	if len(meta) > 0 {
		for k, v := range meta {
			// 与 JSON_MERGE_PATCH 一致：null 删除键
			if v == nil {
				delete(t.ParticipantMeta, k)
				continue
			}
			t.ParticipantMeta[k] = v
		}
		if ok {
			t.UpdatedAt = now
		}
	}
	return clone(t), !ok, nil
}

func (s *ThreadStore) GetThread(_ context.Context, id string) (*model.ChatThread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[id]
	if !ok {
		return nil, repository.ErrThreadNotFound
	}
	return clone(t), nil
}

func (s *ThreadStore) GetThreads(_ context.Context, ids []string) ([]*model.ChatThread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]*model.ChatThread, 0, len(ids))
	for _, id := range ids {
		if t, ok := s.threads[id]; ok {
			res = append(res, clone(t))
		}
	}
	return res, nil
}

func (s *ThreadStore) AppendMessage(_ context.Context, id string, sender string, preview string) (*repository.AppendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[id]
	if !ok {
		return nil, repository.ErrThreadNotFound
	}

	ts := s.now()
	if ts.Before(t.LastMessageAt) {
		ts = t.LastMessageAt
	}

	t.MaxMsgSeq++
	if sender == model.SenderAdmin {
		t.AdminMsgSeq++
	} else {
		t.UserMsgSeq++
	}
	t.LastMessageText = preview
	t.LastSender = sender
	t.LastMessageAt = ts
	t.UpdatedAt = ts

	return &repository.AppendResult{Seq: t.MaxMsgSeq, TS: ts, Thread: clone(t)}, nil
}

func (s *ThreadStore) MarkRead(_ context.Context, id string, side string) (*model.ChatThread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[id]
	if !ok {
		return nil, repository.ErrThreadNotFound
	}
	if side == model.SenderAdmin {
		t.AdminReadSeq = t.UserMsgSeq
	} else {
		t.UserReadSeq = t.AdminMsgSeq
	}
	return clone(t), nil
}

func (s *ThreadStore) ListThreads(_ context.Context, limit int) ([]*model.ChatThread, error) {
	return s.list(func(*model.ChatThread) bool { return true }, limit), nil
}

func (s *ThreadStore) ListUnreadForAdmin(_ context.Context, since time.Time, limit int) ([]*model.ChatThread, error) {
	return s.list(func(t *model.ChatThread) bool {
		return t.UnreadForAdmin() > 0 && !t.LastMessageAt.Before(since)
	}, limit), nil
}

func (s *ThreadStore) list(keep func(*model.ChatThread) bool, limit int) []*model.ChatThread {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]*model.ChatThread, 0, len(s.threads))
	for _, t := range s.threads {
		if keep(t) {
			res = append(res, clone(t))
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].LastMessageAt.Equal(res[j].LastMessageAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].LastMessageAt.After(res[j].LastMessageAt)
	})
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res
}

func clone(t *model.ChatThread) *model.ChatThread {
	c := *t
	c.ParticipantMeta = make(datatypes.JSONMap, len(t.ParticipantMeta))
	for k, v := range t.ParticipantMeta {
		c.ParticipantMeta[k] = v
	}
	return &c
}
