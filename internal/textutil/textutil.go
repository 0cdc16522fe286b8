// Package textutil 表单与Excel输入的文本规范化工具
package textutil

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// CollapseSpaces 去除首尾空白并把连续空白合并为一个空格
func CollapseSpaces(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// Capitalize 首字母大写，其余小写
func Capitalize(word string) string {
	if word == "" {
		return ""
	}
	runes := []rune(strings.ToLower(word))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// TitleWords 合并空白后每个单词首字母大写
func TitleWords(value string) string {
	parts := strings.Fields(value)
	for i, part := range parts {
		parts[i] = Capitalize(part)
	}
	return strings.Join(parts, " ")
}

// ParseLenientInt 宽松解析整数，接受 "4"、"4.0"、4.0 等写法
// 非整数或无法解析时返回 false
func ParseLenientInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case nil, bool:
		return 0, false
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return floatToInt(v)
	case string:
		text := strings.TrimSpace(v)
		if text == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return 0, false
		}
		return floatToInt(parsed)
	default:
		return ParseLenientInt(fmt.Sprint(v))
	}
}

func floatToInt(v float64) (int, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, false
	}
	return int(v), true
}

// ParseStrictInt 严格解析十进制整数，空串返回 false
func ParseStrictInt(value string) (int, bool) {
	text := strings.TrimSpace(value)
	if text == "" {
		return 0, false
	}
	parsed, err := strconv.Atoi(text)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

// ParseBoolFlag 解析复选框类的取值：1/true/yes/on 为真
func ParseBoolFlag(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Loose 表单或JSON中的原始取值，JSON 数字和布尔值按文本保存
// 便于同一个结构体同时绑定 form 和 json 请求
type Loose string

// UnmarshalJSON 接受字符串、数字、布尔和 null
func (l *Loose) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	if text == "null" {
		*l = ""
		return nil
	}
	if strings.HasPrefix(text, `"`) {
		var unquoted string
		if err := json.Unmarshal(data, &unquoted); err != nil {
			return err
		}
		*l = Loose(unquoted)
		return nil
	}
	*l = Loose(text)
	return nil
}

// String 原始文本
func (l Loose) String() string {
	return string(l)
}
