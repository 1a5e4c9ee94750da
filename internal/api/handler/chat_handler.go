package handler

import (
	"Realty/internal/api/dto"
	"Realty/internal/pkg/consts"
	"Realty/internal/pkg/response"
	"Realty/internal/pkg/security"
	"Realty/internal/service"
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
)

const maxMetaKeys = 32

type ChatHandler struct {
	chatService service.ChatService
}

func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// StartThread 请求体即访客信息，可选的 threadId 字段作为客户端指定的会话 ID
func (s *ChatHandler) StartThread(c *gin.Context) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	req := &dto.StartThreadReq{Meta: make(map[string]interface{}, len(body))}
	for k, v := range body {
		if k == "threadId" {
			id, ok := v.(string)
			if !ok {
				response.Error(c, service.ErrThreadIDInvalid)
				return
			}
			req.ThreadID = id
			continue
		}
		req.Meta[k] = v
	}
	if len(req.Meta) > maxMetaKeys {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	thread, created, err := s.chatService.StartThread(c.Request.Context(), currentSession(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.StartThreadResp{OK: true, ThreadID: thread.ID, Created: created})
}

// SendMessage HTTP 兜底发送，效果与实时通道 message 事件一致
func (s *ChatHandler) SendMessage(c *gin.Context) {
	var req dto.SendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	msg, err := s.chatService.SendMessage(c.Request.Context(), currentSession(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.SendMessageResp{OK: true, Message: msg})
}

// MarkRead 标记已读
func (s *ChatHandler) MarkRead(c *gin.Context) {
	var req dto.MarkReadReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	if _, err := s.chatService.MarkRead(c.Request.Context(), currentSession(c), req.ThreadID, req.Side); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.Response{OK: true})
}

// ListThreads 会话列表，客服端轮询兜底
func (s *ChatHandler) ListThreads(c *gin.Context) {
	response.NoStore(c)
	res, err := s.chatService.ListThreads(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Items(c, res, "")
}

// SearchThreads 会话检索
func (s *ChatHandler) SearchThreads(c *gin.Context) {
	response.NoStore(c)
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	res, next, err := s.chatService.SearchThreads(c.Request.Context(), c.Query("q"), c.Query("cursor"), size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Items(c, res, next)
}

// ListMessages 会话消息，最旧的在前
func (s *ChatHandler) ListMessages(c *gin.Context) {
	response.NoStore(c)
	res, err := s.chatService.ListMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Items(c, res, "")
}

func currentSession(c *gin.Context) security.Session {
	if v, ok := c.Get(consts.SessionKey); ok {
		if sess, ok := v.(security.Session); ok {
			return sess
		}
	}
	return security.NewVisitorSession()
}
