package realtime

import (
	"Realty/internal/api/dto"
	"Realty/internal/model"
	"Realty/internal/pkg/consts"
	"Realty/internal/pkg/logger"
	"Realty/internal/pkg/metrics"
	"Realty/internal/pkg/security"
	"Realty/internal/pkg/util"
	"Realty/internal/service"
	"context"
	"errors"
	log "log/slog"
	"runtime/debug"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// Relay 实时通道：把 join / message / read 事件交给 ChatService，并维护连接所属的广播组
type Relay struct {
	hub        *Hub
	chat       service.ChatService
	sendBuffer int
}

func NewRelay(hub *Hub, chat service.ChatService, sendBuffer int) *Relay {
	return &Relay{hub: hub, chat: chat, sendBuffer: sendBuffer}
}

func (r *Relay) Hub() *Hub { return r.hub }

// Serve 接管已升级的连接，直到连接断开才返回
func (r *Relay) Serve(ctx context.Context, conn *websocket.Conn, sess security.Session) {
	c := NewClient(r.hub, conn, sess, r.sendBuffer)
	r.hub.Register(c)

	ctx = logger.WithConnID(ctx, c.ID())
	log.InfoContext(ctx, "chat connection established", "role", sess.Role(), "subject", sess.Subject())

	// 客服连接建立即订阅全局组，无需等待 join
	if sess.IsAdmin() {
		r.hub.Join(c, consts.GroupAdmin)
	}

	go c.writePump()
	c.readPump(ctx, r.Handle)

	log.InfoContext(ctx, "chat connection closed")
}

// Handle 分发单个事件；处理器内的 panic 不会影响连接
func (r *Relay) Handle(ctx context.Context, c *Client, f *InboundFrame) {
	defer func() {
		if p := recover(); p != nil {
			log.ErrorContext(ctx, "chat handler panic", "event", f.Event, "panic", p, "stack", string(debug.Stack()))
			r.ack(c, f, false, nil)
		}
	}()

	metrics.InboundEvents.WithLabelValues(f.Event).Inc()

	switch f.Event {
	case consts.EventJoin:
		r.onJoin(ctx, c, f)
	case consts.EventMessage:
		r.onMessage(ctx, c, f)
	case consts.EventRead:
		r.onRead(ctx, c, f)
	default:
		log.DebugContext(ctx, "ignore unknown event", "event", f.Event)
	}
}

func (r *Relay) onJoin(ctx context.Context, c *Client, f *InboundFrame) {
	var req dto.JoinReq
	if err := decode(f.Data, &req); err != nil {
		return
	}

	sess := c.Session()
	// 角色以会话为准：访客声称 admin 直接忽略
	if req.Role == model.SenderAdmin && !sess.IsAdmin() {
		log.WarnContext(ctx, "join ignored, role claim rejected", "claimed", req.Role)
		return
	}
	if sess.IsAdmin() {
		r.hub.Join(c, consts.GroupAdmin)
	}
	if req.ThreadID == "" {
		return
	}

	if _, err := r.chat.JoinThread(ctx, sess, req.ThreadID, req.UserMeta); err != nil {
		logHandlerError(ctx, "join", req.ThreadID, err)
		return
	}
	r.hub.Join(c, consts.ThreadGroup(req.ThreadID))
	c.setCurrentThread(req.ThreadID)
}

func (r *Relay) onMessage(ctx context.Context, c *Client, f *InboundFrame) {
	var req dto.SendMessageReq
	if err := decode(f.Data, &req); err != nil {
		r.ack(c, f, false, nil)
		return
	}
	if req.ThreadID == "" {
		req.ThreadID = c.CurrentThread()
	}

	msg, err := r.chat.SendMessage(ctx, c.Session(), &req)
	if err != nil {
		// 同一 clientMsgId 的首次发送仍在处理中，视为已受理
		if errors.Is(err, service.ErrDuplicateMessage) {
			r.ack(c, f, true, nil)
			return
		}
		logHandlerError(ctx, "message", req.ThreadID, err)
		r.ack(c, f, false, nil)
		return
	}
	r.ack(c, f, true, msg)
}

func (r *Relay) onRead(ctx context.Context, c *Client, f *InboundFrame) {
	var req dto.MarkReadReq
	if err := decode(f.Data, &req); err != nil {
		return
	}
	if _, err := r.chat.MarkRead(ctx, c.Session(), req.ThreadID, req.Side); err != nil {
		logHandlerError(ctx, "read", req.ThreadID, err)
	}
}

func (r *Relay) ack(c *Client, f *InboundFrame, ok bool, msg *dto.MessageDTO) {
	if f.Ack == nil {
		return
	}
	c.Send(consts.EventAck, &AckPayload{Ack: *f.Ack, OK: ok, Message: msg})
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return errors.New("empty payload")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return err
	}
	return util.ValidateDTO(v)
}

// logHandlerError 参数错误只记 Warn，存储错误记 Error
func logHandlerError(ctx context.Context, event string, threadID string, err error) {
	if _, ok := service.ErrorMap[err]; ok {
		log.WarnContext(ctx, "chat event rejected", "event", event, "thread_id", threadID, "err", err)
		return
	}
	log.ErrorContext(ctx, "chat event failed", "event", event, "thread_id", threadID, "err", err)
}
