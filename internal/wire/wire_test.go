package wire

import (
	"Realty/internal/api/config"
	"Realty/internal/pkg/consts"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func startServer(t *testing.T) (*ApplicationContainer, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.JWT.Secret = "test-secret"
	app, err := BuildApplication(cfg, NewMemoryStores())
	require.NoError(t, err)

	srv := httptest.NewServer(app.Router)
	t.Cleanup(func() {
		srv.Close()
		app.Close()
	})
	return app, srv
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chat/ws"
	if token != "" {
		url += "?token=" + token
	}
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var f wsFrame
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func send(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func TestLiveChat_EndToEnd(t *testing.T) {
	app, srv := startServer(t)

	adminToken, err := app.Tokens.GenerateToken("agent-1", []string{consts.RoleAdmin})
	require.NoError(t, err)

	admin := dial(t, srv, adminToken)
	require.Eventually(t, func() bool { return app.Hub.GroupSize(consts.GroupAdmin) == 1 }, 2*time.Second, 10*time.Millisecond)

	visitor := dial(t, srv, "")
	require.Eventually(t, func() bool { return app.Hub.Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	send(t, visitor, `{"event":"join","data":{"threadId":"th_1","role":"user","userMeta":{"name":"Ani"}}}`)
	send(t, visitor, `{"event":"message","data":{"text":"Hello","clientMsgId":"c-1"},"ack":1}`)

	f := readFrame(t, visitor)
	assert.Equal(t, consts.EventMessage, f.Event)
	var msg struct {
		ThreadID string `json:"threadId"`
		Sender   string `json:"sender"`
		Text     string `json:"text"`
		Seq      uint64 `json:"seq"`
	}
	require.NoError(t, json.Unmarshal(f.Data, &msg))
	assert.Equal(t, "th_1", msg.ThreadID)
	assert.Equal(t, "user", msg.Sender)
	assert.Equal(t, "Hello", msg.Text)
	assert.Equal(t, uint64(1), msg.Seq)

	f = readFrame(t, visitor)
	assert.Equal(t, consts.EventAck, f.Event)
	assert.Contains(t, string(f.Data), `"ok":true`)

	// join 创建会话 → thread:new + thread:update，消息 → thread:update
	assert.Equal(t, consts.EventThreadNew, readFrame(t, admin).Event)
	assert.Equal(t, consts.EventThreadUpdate, readFrame(t, admin).Event)
	f = readFrame(t, admin)
	assert.Equal(t, consts.EventThreadUpdate, f.Event)
	assert.Contains(t, string(f.Data), `"unreadForAdmin":1`)
	assert.Contains(t, string(f.Data), `"lastMessageText":"Hello"`)

	// 客服加入会话并回复
	send(t, admin, `{"event":"join","data":{"threadId":"th_1","role":"admin"}}`)
	send(t, admin, `{"event":"message","data":{"threadId":"th_1","text":"Hi Ani"},"ack":2}`)

	f = readFrame(t, visitor)
	assert.Equal(t, consts.EventMessage, f.Event)
	assert.Contains(t, string(f.Data), `"sender":"admin"`)
}

func TestLiveChat_RejectsBadToken(t *testing.T) {
	_, srv := startServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chat/ws?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	app, srv := startServer(t)

	resp, err := http.Get(srv.URL + "/api/chat/threads")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	visitorToken, err := app.Tokens.GenerateToken("someone", []string{"USER"})
	require.NoError(t, err)
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/chat/threads", nil)
	req.Header.Set("Authorization", "Bearer "+visitorToken)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	adminToken, err := app.Tokens.GenerateToken("agent-1", []string{consts.RoleAdmin})
	require.NoError(t, err)
	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/api/chat/threads", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
}

func TestPing(t *testing.T) {
	_, srv := startServer(t)

	resp, err := http.Get(srv.URL + "/api/ping")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
