package dto

import "time"

// SendMessageReq 发送消息请求体 (HTTP 与 WebSocket 共用)
type SendMessageReq struct {
	ThreadID    string `json:"threadId" binding:"max=64" validate:"max=64"`
	Text        string `json:"text" binding:"max=4000" validate:"max=4000"`
	Sender      string `json:"sender" binding:"omitempty,oneof=user admin" validate:"omitempty,oneof=user admin"` // 仅作参考，以会话身份为准
	ClientMsgID string `json:"clientMsgId" binding:"max=64" validate:"max=64"`                                    // 客户端幂等键，原样回传
}

// MarkReadReq 标记已读请求
type MarkReadReq struct {
	ThreadID string `json:"threadId" binding:"required,max=64" validate:"required,max=64"`
	Side     string `json:"side" binding:"required,oneof=user admin" validate:"required,oneof=user admin"`
}

// JoinReq WebSocket join 事件
type JoinReq struct {
	ThreadID string                 `json:"threadId" validate:"max=64"`
	Role     string                 `json:"role" validate:"omitempty,oneof=user admin"`
	UserMeta map[string]interface{} `json:"userMeta"`
}

// StartThreadReq 开启会话：可选的客户端 threadId + 访客信息
type StartThreadReq struct {
	ThreadID string
	Meta     map[string]interface{}
}

// MessageDTO 消息明细响应 / 广播
type MessageDTO struct {
	ID          string    `json:"id,omitempty"`
	ThreadID    string    `json:"threadId"`
	Sender      string    `json:"sender"`
	Text        string    `json:"text"`
	Seq         uint64    `json:"seq"`
	ClientMsgID string    `json:"clientMsgId,omitempty"`
	TS          time.Time `json:"ts"`
}

// ThreadDTO 会话列表项响应
type ThreadDTO struct {
	ID              string                 `json:"id"`
	ParticipantMeta map[string]interface{} `json:"participantMeta"`
	LastMessageText string                 `json:"lastMessageText"`
	LastSender      string                 `json:"lastSender,omitempty"`
	LastMessageAt   time.Time              `json:"lastMessageAt"`
	CreatedAt       time.Time              `json:"createdAt"`
	UnreadForAdmin  uint64                 `json:"unreadForAdmin"`
	UnreadForUser   uint64                 `json:"unreadForUser"`
	Status          string                 `json:"status"`
	MaxMsgSeq       uint64                 `json:"maxMsgSeq"`
}

// ThreadEventDTO thread:new / thread:update 推送
type ThreadEventDTO struct {
	ThreadID string     `json:"threadId"`
	Thread   *ThreadDTO `json:"thread,omitempty"`
}

const (
	EventThreadCreated = "thread.created"
	EventThreadUpdated = "thread.updated"
	EventMessageSent   = "message.created"
	EventThreadRead    = "thread.read"
)

// ChatEvent 投递到 Kafka 的领域事件
type ChatEvent struct {
	Type     string    `json:"type"`
	ThreadID string    `json:"threadId"`
	Sender   string    `json:"sender,omitempty"`
	Side     string    `json:"side,omitempty"`
	Seq      uint64    `json:"seq,omitempty"`
	At       time.Time `json:"at"`
}
