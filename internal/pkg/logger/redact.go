package logger

import (
	"github.com/goccy/go-json"
)

const (
	redacted    = "[REDACTED]"
	truncateLen = 1000
)

// sensitiveKeys 聊天正文与访客资料不进日志
var sensitiveKeys = map[string]struct{}{
	"text":              {},
	"lastMessageText":   {},
	"last_message_text": {},
	"participantMeta":   {},
	"participant_text":  {},
	"userMeta":          {},
	"password":          {},
	"token":             {},
}

// RedactJSON 屏蔽 JSON 中的敏感字段并截断，非 JSON 内容只保留长度
func RedactJSON(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return "[non-json body]"
	}
	out, err := json.Marshal(redactValue(v))
	if err != nil {
		return "[unencodable body]"
	}
	return Truncate(string(out))
}

// Truncate 日志字段长度上限
func Truncate(s string) string {
	if len(s) > truncateLen {
		return s[:truncateLen] + "...[truncated]"
	}
	return s
}

func redactValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, val := range t {
			if _, ok := sensitiveKeys[k]; ok {
				t[k] = redacted
				continue
			}
			t[k] = redactValue(val)
		}
		return t
	case []interface{}:
		for i, val := range t {
			t[i] = redactValue(val)
		}
		return t
	default:
		return v
	}
}
