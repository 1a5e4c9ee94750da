package util

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var threadIDRegex = regexp.MustCompile(`^[A-Za-z0-9_\-:.]{1,64}$`)

// ValidThreadID 客户端提供的会话 ID 只允许安全字符
func ValidThreadID(id string) bool {
	return threadIDRegex.MatchString(id)
}

// Truncate 按字符截断，用于最后一条消息预览
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// Blank 去除首尾空白后是否为空
func Blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// ClampInt 限制分页参数
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
