package handler

import (
	"Realty/internal/api/config"
	"Realty/internal/api/middleware"
	"Realty/internal/model"
	"Realty/internal/pkg/memstore"
	"Realty/internal/pkg/security"
	"Realty/internal/repository"
	"Realty/internal/service"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type itemsBody[T any] struct {
	OK    bool   `json:"ok"`
	Items []T    `json:"items"`
	Next  string `json:"next"`
	Error string `json:"error"`
}

type threadItem struct {
	ID              string                 `json:"id"`
	ParticipantMeta map[string]interface{} `json:"participantMeta"`
	LastMessageText string                 `json:"lastMessageText"`
	UnreadForAdmin  uint64                 `json:"unreadForAdmin"`
	UnreadForUser   uint64                 `json:"unreadForUser"`
}

type messageItem struct {
	ThreadID string `json:"threadId"`
	Sender   string `json:"sender"`
	Text     string `json:"text"`
	Seq      uint64 `json:"seq"`
}

func newTestRouter(t *testing.T) (*gin.Engine, *security.TokenManager) {
	return newTestRouterWith(t, memstore.NewThreadStore())
}

func newTestRouterWith(t *testing.T, threads repository.ThreadRepo) (*gin.Engine, *security.TokenManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := service.NewChatService(config.ChatConfig{}, threads, memstore.NewMessageStore(),
		nil, memstore.NewDeduper(time.Minute), nil, nil)
	t.Cleanup(svc.Close)

	tokens := security.NewTokenManager(config.JWTConfig{Secret: "test-secret", Issuer: "Realty", Expiration: 1})
	h := NewChatHandler(svc)

	r := gin.New()
	g := r.Group("/api/chat", middleware.SessionMiddleware(tokens))
	g.POST("/start", h.StartThread)
	g.POST("/message", h.SendMessage)
	g.POST("/read", h.MarkRead)
	g.GET("/:id/messages", h.ListMessages)
	g.GET("/threads", h.ListThreads)
	g.GET("/threads/search", h.SearchThreads)
	return r, tokens
}

func do(r http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStartSendList_RoundTrip(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/chat/start", `{"name":"Ani","listing":"apt-12"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	var start struct {
		OK       bool   `json:"ok"`
		ThreadID string `json:"threadId"`
		Created  bool   `json:"created"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &start))
	assert.True(t, start.OK)
	assert.True(t, start.Created)
	require.NotEmpty(t, start.ThreadID)

	w = do(r, http.MethodPost, "/api/chat/message", `{"threadId":"`+start.ThreadID+`","text":"Is it still available?"}`, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/chat/"+start.ThreadID+"/messages", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list itemsBody[messageItem]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.True(t, list.OK)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Is it still available?", list.Items[0].Text)
	assert.Equal(t, "user", list.Items[0].Sender)
	assert.Equal(t, uint64(1), list.Items[0].Seq)
}

func TestStartThread_ClientIDIsIdempotent(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/chat/start", `{"threadId":"th_1","name":"Ani"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"created":true`)

	w = do(r, http.MethodPost, "/api/chat/start", `{"threadId":"th_1"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"created":false`)
	assert.Contains(t, w.Body.String(), `"threadId":"th_1"`)
}

func TestStartThread_BadThreadID(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/chat/start", `{"threadId":42}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/chat/start", `{"threadId":"has space"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestThreadsListing(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/chat/start", `{"threadId":"th_1","name":"Ani"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	w = do(r, http.MethodPost, "/api/chat/message", `{"threadId":"th_1","text":"Hello","sender":"user"}`, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/chat/threads", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	var list itemsBody[threadItem]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	th := list.Items[0]
	assert.Equal(t, "th_1", th.ID)
	assert.Equal(t, "Ani", th.ParticipantMeta["name"])
	assert.Equal(t, "Hello", th.LastMessageText)
	assert.Equal(t, uint64(1), th.UnreadForAdmin)
	assert.Equal(t, uint64(0), th.UnreadForUser)
}

func TestSendMessage_Whitespace(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/chat/message", `{"threadId":"th_1","text":"  \t "}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":false`)

	w = do(r, http.MethodGet, "/api/chat/threads", "", "")
	var list itemsBody[threadItem]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Empty(t, list.Items)
}

func TestSendMessage_AdminToken(t *testing.T) {
	r, tokens := newTestRouter(t)
	token, err := tokens.GenerateToken("agent-1", []string{"ADMIN"})
	require.NoError(t, err)

	w := do(r, http.MethodPost, "/api/chat/message", `{"threadId":"th_1","text":"Welcome!"}`, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sender":"admin"`)

	// 非法 token 按访客处理
	w = do(r, http.MethodPost, "/api/chat/message", `{"threadId":"th_1","text":"Thanks","sender":"admin"}`, "not-a-token")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sender":"user"`)
}

func TestListMessages_Empty(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/chat/th_unknown/messages", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"ok":true,"items":[]}`, w.Body.String())
}

func TestMarkRead(t *testing.T) {
	r, tokens := newTestRouter(t)
	token, err := tokens.GenerateToken("agent-1", []string{"ADMIN"})
	require.NoError(t, err)

	w := do(r, http.MethodPost, "/api/chat/message", `{"threadId":"th_1","text":"Hello"}`, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPost, "/api/chat/read", `{"threadId":"th_1","side":"admin"}`, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodPost, "/api/chat/read", `{"threadId":"th_1","side":"admin"}`, token)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPost, "/api/chat/read", `{"threadId":"th_missing","side":"admin"}`, token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPost, "/api/chat/read", `{"threadId":"th_1","side":"bot"}`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/chat/threads", "", "")
	var list itemsBody[threadItem]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, uint64(0), list.Items[0].UnreadForAdmin)
}

func TestSearchThreads_Disabled(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/chat/threads/search?q=Ani", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type downThreadStore struct {
	*memstore.ThreadStore
	down atomic.Bool
}

func (s *downThreadStore) EnsureThread(ctx context.Context, id string, meta map[string]interface{}) (*model.ChatThread, bool, error) {
	if s.down.Load() {
		return nil, false, errors.New("mysql: connection refused")
	}
	return s.ThreadStore.EnsureThread(ctx, id, meta)
}

func TestStoreDown_Returns500(t *testing.T) {
	threads := &downThreadStore{ThreadStore: memstore.NewThreadStore()}
	r, _ := newTestRouterWith(t, threads)
	threads.down.Store(true)

	w := do(r, http.MethodPost, "/api/chat/start", `{"threadId":"th_1","name":"Ani"}`, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"ok":false,"error":"`+service.UnExpectedError.Error()+`"}`, w.Body.String())

	body := `{"threadId":"th_1","text":"Hello","clientMsgId":"c-1"}`
	w = do(r, http.MethodPost, "/api/chat/message", body, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":false`)

	// 失败后释放幂等键，恢复后同一 clientMsgId 可以重新发送
	threads.down.Store(false)
	w = do(r, http.MethodPost, "/api/chat/message", body, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"clientMsgId":"c-1"`)
	assert.Contains(t, w.Body.String(), `"seq":1`)
}
