package es

import (
	"Realty/internal/model"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ThreadES 写入 ES 的会话文档，只用于检索，展示数据以 MySQL 为准
type ThreadES struct {
	ID              string    `json:"id"`
	ParticipantText string    `json:"participant_text"`
	LastMessageText string    `json:"last_message_text"`
	LastSender      string    `json:"last_sender"`
	Status          string    `json:"status"`
	LastMessageAt   time.Time `json:"last_message_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewThreadES participant_meta 是自由格式，按 key 排序拼成一段文本供全文检索
func NewThreadES(t *model.ChatThread) *ThreadES {
	keys := make([]string, 0, len(t.ParticipantMeta))
	for k := range t.ParticipantMeta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if v := t.ParticipantMeta[k]; v != nil {
			parts = append(parts, fmt.Sprint(v))
		}
	}

	return &ThreadES{
		ID:              t.ID,
		ParticipantText: strings.Join(parts, " "),
		LastMessageText: t.LastMessageText,
		LastSender:      t.LastSender,
		Status:          t.Status,
		LastMessageAt:   t.LastMessageAt,
		CreatedAt:       t.CreatedAt,
	}
}
