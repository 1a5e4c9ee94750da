package mongo

import (
	"time"
)

// Message MongoDB 消息明细模型
type Message struct {
	ID          string    `bson:"_id,omitempty" json:"id"`                              // MongoDB 自动生成的 ObjectID
	ThreadID    string    `bson:"thread_id" json:"threadId"`                            // 关联 MySQL 的会话 ID
	Sender      string    `bson:"sender" json:"sender"`                                 // user / admin
	Text        string    `bson:"text" json:"text"`                                     // 文本内容
	Seq         uint64    `bson:"seq" json:"seq"`                                       // 会话内唯一序号 (来自 MySQL)
	ClientMsgID string    `bson:"client_msg_id,omitempty" json:"clientMsgId,omitempty"` // 客户端幂等键
	TS          time.Time `bson:"ts" json:"ts"`                                         // 服务端落库时间
}
