package logger

import (
	"bytes"
	"io"
	log "log/slog"
	"net/http"
	"time"
)

// ESTransport 记录检索索引的读写。文档与查询里都有聊天内容，正文脱敏后再记录
type ESTransport struct {
	Transport     http.RoundTripper
	SlowThreshold time.Duration
}

func (t *ESTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	var reqBody []byte
	if req.Body != nil {
		reqBody, _ = io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewBuffer(reqBody))
	}

	resp, err := t.Transport.RoundTrip(req)
	elapsed := time.Since(start)

	fields := []any{
		log.String("method", req.Method),
		log.String("path", req.URL.Path),
		log.Duration("latency", elapsed),
		log.String("req_body", RedactJSON(reqBody)),
	}

	if err != nil {
		log.ErrorContext(req.Context(), "ES Error", append(fields, log.Any("err", err))...)
		return nil, err
	}
	fields = append(fields, log.Int("status", resp.StatusCode))

	// 409 是外部版本号冲突，由调用方处理
	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode != http.StatusConflict {
		var resBody []byte
		if resp.Body != nil {
			resBody, _ = io.ReadAll(resp.Body)
			resp.Body = io.NopCloser(bytes.NewBuffer(resBody))
		}
		log.WarnContext(req.Context(), "ES Failed", append(fields, log.String("res_body", Truncate(string(resBody))))...)
		return resp, nil
	}

	threshold := t.SlowThreshold
	if threshold <= 0 {
		threshold = 500 * time.Millisecond
	}
	if elapsed > threshold {
		log.WarnContext(req.Context(), "ES Slow", fields...)
	} else {
		log.DebugContext(req.Context(), "ES Request", fields...)
	}

	return resp, nil
}
