package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxLogFieldLen 单个用户输入字段写入日志的最大长度
const maxLogFieldLen = 200

// SanitizeLogMessage 去除不可打印字符，防止日志注入
// 换行和制表符会被替换为空格，保证一条错误只占一行。
func SanitizeLogMessage(msg string) string {
	var sb strings.Builder
	sb.Grow(len(msg))
	for _, r := range msg {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			sb.WriteRune(' ')
		case unicode.IsPrint(r):
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// SanitizeLogField 清理并截断来自客户端的字段，如猫的名字或文件名
func SanitizeLogField(field string) string {
	field = SanitizeLogMessage(field)
	if len(field) > maxLogFieldLen {
		// 在字符边界截断
		cut := maxLogFieldLen
		for cut > 0 && !utf8.RuneStart(field[cut]) {
			cut--
		}
		field = field[:cut] + "..."
	}
	return field
}
