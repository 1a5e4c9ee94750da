package realtime

import (
	"Realty/internal/api/dto"

	"github.com/goccy/go-json"
)

// InboundFrame 客户端 → 服务端：{"event": "...", "data": {...}, "ack": 1}
type InboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Ack   *int64          `json:"ack,omitempty"`
}

// OutboundFrame 服务端 → 客户端
type OutboundFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// AckPayload message 事件的回执
type AckPayload struct {
	Ack     int64           `json:"ack"`
	OK      bool            `json:"ok"`
	Message *dto.MessageDTO `json:"message,omitempty"`
}

// EncodeFrame 编码一次即可投递给组内所有连接
func EncodeFrame(event string, data interface{}) ([]byte, error) {
	return json.Marshal(&OutboundFrame{Event: event, Data: data})
}
