package logger

import (
	"context"
	log "log/slog"
)

// TraceIDKey 定义 Context 中的 Key，与 gin.Context 的 Keys 共用
const TraceIDKey = "trace_id"

// ConnIDKey WebSocket 连接标识
const ConnIDKey = "conn_id"

// ContextHandler 包装器，用于从 ctx 中提取 trace_id / conn_id
type ContextHandler struct {
	log.Handler
}

func (h *ContextHandler) Handle(ctx context.Context, r log.Record) error {
	if ctx != nil {
		if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
			r.AddAttrs(log.String(TraceIDKey, traceID))
		}
		if connID, ok := ctx.Value(ConnIDKey).(string); ok {
			r.AddAttrs(log.String(ConnIDKey, connID))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []log.Attr) log.Handler {
	return &ContextHandler{h.Handler.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) log.Handler {
	return &ContextHandler{h.Handler.WithGroup(name)}
}

// WithTraceID 把 trace_id 写入 ctx
//
//nolint:staticcheck
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithConnID 把连接标识写入 ctx
//
//nolint:staticcheck
func WithConnID(ctx context.Context, connID string) context.Context {
	return context.WithValue(ctx, ConnIDKey, connID)
}
