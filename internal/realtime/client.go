package realtime

import (
	"Realty/internal/pkg/security"
	"context"
	log "log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024

	defaultSendBuffer = 64
)

// Client 一条 WebSocket 连接。session 在握手时签发，之后只读
type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	session security.Session
	send    chan []byte

	mu     sync.Mutex
	closed bool

	// 由 hub.mu 保护
	groups map[string]struct{}

	threadMu sync.RWMutex
	threadID string
}

func NewClient(hub *Hub, conn *websocket.Conn, sess security.Session, sendBuffer int) *Client {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	return &Client{
		id:      sess.ID(),
		hub:     hub,
		conn:    conn,
		session: sess,
		send:    make(chan []byte, sendBuffer),
		groups:  make(map[string]struct{}),
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) Session() security.Session { return c.session }

// CurrentThread 最近一次 join 的会话，message 未带 threadId 时使用
func (c *Client) CurrentThread() string {
	c.threadMu.RLock()
	defer c.threadMu.RUnlock()
	return c.threadID
}

func (c *Client) setCurrentThread(id string) {
	c.threadMu.Lock()
	c.threadID = id
	c.threadMu.Unlock()
}

// Send 直接发给本连接 (ack 等)
func (c *Client) Send(event string, data interface{}) bool {
	frame, err := EncodeFrame(event, data)
	if err != nil {
		log.Error("encode frame failed", "event", event, "err", err)
		return false
	}
	return c.trySend(frame)
}

func (c *Client) trySend(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump 顺序处理同一连接的事件，保证同一客户端的消息按发送顺序落库
func (c *Client) readPump(ctx context.Context, handle func(context.Context, *Client, *InboundFrame)) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WarnContext(ctx, "ws read error", "err", err)
			}
			return
		}

		var frame InboundFrame
		if err = json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
			log.DebugContext(ctx, "ignore malformed frame", "err", err)
			continue
		}
		handle(ctx, c, &frame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
