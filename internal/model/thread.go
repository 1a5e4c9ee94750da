package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	SenderUser  = "user"
	SenderAdmin = "admin"
)

const ThreadStatusOpen = "open"

// ChatThread 访客与客服之间的会话
type ChatThread struct {
	ID              string            `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ParticipantMeta datatypes.JSONMap `gorm:"type:json" json:"participantMeta"`
	LastMessageText string            `gorm:"type:varchar(512)" json:"lastMessageText"`
	LastSender      string            `gorm:"type:varchar(8)" json:"lastSender"`
	LastMessageAt   time.Time         `gorm:"type:datetime(3);index" json:"lastMessageAt"`
	Status          string            `gorm:"type:varchar(16);not null;default:open" json:"status"`

	MaxMsgSeq   uint64 `gorm:"not null;default:0" json:"maxMsgSeq"`   // 会话内序列号
	UserMsgSeq  uint64 `gorm:"not null;default:0" json:"userMsgSeq"`  // 访客已发送条数
	AdminMsgSeq uint64 `gorm:"not null;default:0" json:"adminMsgSeq"` // 客服已发送条数

	// 已读水位：分别记录到对方的第几条消息为止
	AdminReadSeq uint64 `gorm:"not null;default:0" json:"adminReadSeq"`
	UserReadSeq  uint64 `gorm:"not null;default:0" json:"userReadSeq"`

	CreatedAt time.Time `gorm:"type:datetime(3)" json:"createdAt"`
	UpdatedAt time.Time `gorm:"type:datetime(3)" json:"updatedAt"`
}

func (ChatThread) TableName() string { return "chat_threads" }

// UnreadForAdmin 客服侧未读：水位之后的访客消息数
func (t *ChatThread) UnreadForAdmin() uint64 {
	if t.UserMsgSeq < t.AdminReadSeq {
		return 0
	}
	return t.UserMsgSeq - t.AdminReadSeq
}

// UnreadForUser 访客侧未读：水位之后的客服消息数
func (t *ChatThread) UnreadForUser() uint64 {
	if t.AdminMsgSeq < t.UserReadSeq {
		return 0
	}
	return t.AdminMsgSeq - t.UserReadSeq
}

// IsValidSender 角色只有 user / admin 两种
func IsValidSender(s string) bool {
	return s == SenderUser || s == SenderAdmin
}
