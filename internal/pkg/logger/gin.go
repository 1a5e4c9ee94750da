package logger

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

type accessLog struct {
	Time        string `json:"time"`
	Level       string `json:"level"`
	Msg         string `json:"msg"`
	TraceID     string `json:"trace_id,omitempty"`
	LogToken    string `json:"log_token"`
	TargetIndex string `json:"target_index"`
	Method      string `json:"method"`
	Path        string `json:"path"`
	Status      int    `json:"status"`
	Latency     string `json:"latency"`
	ClientIP    string `json:"client_ip"`
	Error       string `json:"error,omitempty"`
}

// SetupGin 访问日志 + panic 恢复，WebSocket 升级请求同样记录
func SetupGin(r *gin.Engine) {
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Output:    LogWriter,
		SkipPaths: []string{"/metrics"},
		Formatter: formatAccessLog,
	}))

	r.Use(gin.CustomRecoveryWithWriter(LogWriter, func(c *gin.Context, err any) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "internal error"})
	}))
}

func formatAccessLog(p gin.LogFormatterParams) string {
	entry := accessLog{
		Time:        p.TimeStamp.Format(time.RFC3339),
		Level:       "INFO",
		Msg:         "GIN_ACCESS",
		LogToken:    logToken,
		TargetIndex: logIndex,
		Method:      p.Method,
		Path:        maskQuery(p.Path),
		Status:      p.StatusCode,
		Latency:     p.Latency.String(),
		ClientIP:    p.ClientIP,
		Error:       p.ErrorMessage,
	}
	if p.Keys != nil {
		if id, ok := p.Keys[TraceIDKey].(string); ok {
			entry.TraceID = id
		}
	}
	if entry.TraceID == "" && p.Request != nil {
		if id, ok := p.Request.Context().Value(TraceIDKey).(string); ok {
			entry.TraceID = id
		}
	}
	if p.StatusCode >= http.StatusInternalServerError {
		entry.Level = "ERROR"
	}

	b, err := json.Marshal(entry)
	if err != nil {
		return ""
	}
	return string(b) + "\n"
}

// maskQuery WebSocket 握手把 token 放在查询参数里
func maskQuery(path string) string {
	p, raw, ok := strings.Cut(path, "?")
	if !ok {
		return path
	}
	q, err := url.ParseQuery(raw)
	if err != nil {
		return p
	}
	if q.Has("token") {
		q.Set("token", redacted)
	}
	return p + "?" + q.Encode()
}
