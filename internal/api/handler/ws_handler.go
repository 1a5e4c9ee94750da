package handler

import (
	"Realty/internal/api/config"
	"Realty/internal/api/middleware"
	"Realty/internal/pkg/metrics"
	"Realty/internal/pkg/response"
	"Realty/internal/pkg/security"
	"Realty/internal/realtime"
	"Realty/internal/service"
	log "log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/semaphore"
)

type WsHandler struct {
	relay    *realtime.Relay
	tokens   *security.TokenManager
	upgrader websocket.Upgrader
	sem      *semaphore.Weighted
}

func NewWsHandler(cfg config.ChatConfig, relay *realtime.Relay, tokens *security.TokenManager) *WsHandler {
	h := &WsHandler{
		relay:  relay,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     middleware.OriginChecker(cfg.AllowedOrigins),
		},
	}
	if cfg.MaxConnections > 0 {
		h.sem = semaphore.NewWeighted(cfg.MaxConnections)
	}
	return h
}

// Connect 升级为 WebSocket。身份在握手时一次性确定：token 可放在 query 或 Authorization 头
func (s *WsHandler) Connect(c *gin.Context) {
	if s.sem != nil {
		if !s.sem.TryAcquire(1) {
			metrics.WSRejected.WithLabelValues("capacity").Inc()
			response.Fail(c, http.StatusServiceUnavailable, "too many connections")
			return
		}
		defer s.sem.Release(1)
	}

	token := c.Query("token")
	if token == "" {
		token = security.BearerToken(c.GetHeader("Authorization"))
	}
	sess, err := s.tokens.SessionFromToken(token)
	if err != nil {
		log.WarnContext(c.Request.Context(), "WS 鉴权失败", "err", err)
		metrics.WSRejected.WithLabelValues("token").Inc()
		response.Error(c, service.UnauthorizedError)
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.ErrorContext(c.Request.Context(), "WS 协议升级失败", "err", err)
		metrics.WSRejected.WithLabelValues("upgrade").Inc()
		return
	}

	s.relay.Serve(c.Request.Context(), conn, sess)
}
