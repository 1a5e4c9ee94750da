package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestMaskQuery(t *testing.T) {
	assert.Equal(t, "/api/chat/ws", maskQuery("/api/chat/ws"))
	assert.Equal(t, "/api/chat/ws?token=%5BREDACTED%5D&trace_id=t-1",
		maskQuery("/api/chat/ws?token=eyJhbGciOi&trace_id=t-1"))
	assert.Equal(t, "/api/chat/threads?limit=20", maskQuery("/api/chat/threads?limit=20"))
}

func TestFormatAccessLog(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set(TraceIDKey, "trace-1")

	line := formatAccessLog(gin.LogFormatterParams{
		TimeStamp:  time.Now(),
		StatusCode: http.StatusInternalServerError,
		Latency:    time.Millisecond,
		Method:     http.MethodGet,
		Path:       "/api/chat/ws?token=secret",
		Keys:       c.Keys,
	})

	assert.Contains(t, line, `"trace_id":"trace-1"`)
	assert.Contains(t, line, `"level":"ERROR"`)
	assert.NotContains(t, line, "secret")
}
