package util

import (
	"encoding/base64"
	"errors"

	"github.com/goccy/go-json"
)

const maxCursorValues = 4

var errInvalidCursor = errors.New("invalid cursor")

// EncodeCursor 将 ES 返回的 Sort 值数组编码为 URL 安全的 Base64 字符串，作为搜索翻页游标
func EncodeCursor(sortValues []interface{}) string {
	if len(sortValues) == 0 {
		return ""
	}
	b, _ := json.Marshal(sortValues)
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor 将前端传来的 Base64 字符串解码为 Sort 值数组
func DecodeCursor(cursor string) ([]interface{}, error) {
	if cursor == "" {
		return nil, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, err
	}
	var sortValues []interface{}
	if err = json.Unmarshal(b, &sortValues); err != nil {
		return nil, err
	}
	// 游标原样回传给 search_after，只接受标量
	if len(sortValues) > maxCursorValues {
		return nil, errInvalidCursor
	}
	for _, v := range sortValues {
		switch v.(type) {
		case string, float64, bool, nil:
		default:
			return nil, errInvalidCursor
		}
	}
	return sortValues, nil
}
