package api

import (
	"Realty/internal/api/handler"
	"Realty/internal/pkg/security"
)

// HandlersGroup 封装了所有已初始化的 Handler 实例
type HandlersGroup struct {
	ChatHandler *handler.ChatHandler
	WSHandler   *handler.WsHandler
	Tokens      *security.TokenManager
}
