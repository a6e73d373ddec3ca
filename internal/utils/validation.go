package utils

import (
	"regexp"
	"strings"
	"unicode"
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// StripControlChars 移除控制字符（保留换行符和制表符）
func StripControlChars(input string) string {
	var result strings.Builder
	for _, r := range input {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		result.WriteRune(r)
	}
	return result.String()
}

// ValidateName 验证名称（去除首尾空白后校验长度与危险字符），返回清理后的名称
func ValidateName(name string, minLen, maxLen int) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", ErrEmptyName
	}

	length := len([]rune(trimmed))
	if minLen > 0 && length < minLen {
		return "", ErrNameTooShort
	}
	if maxLen > 0 && length > maxLen {
		return "", ErrNameTooLong
	}

	// 检查是否包含危险字符（XSS、SQL 注入等）
	if containsDangerousChars(trimmed) {
		return "", ErrDangerousChars
	}

	return StripControlChars(trimmed), nil
}

// ValidateID 验证 ID 格式
func ValidateID(id string) error {
	if id == "" {
		return ErrEmptyID
	}

	// 只允许字母、数字、连字符、下划线
	if !idPattern.MatchString(id) {
		return ErrInvalidIDFormat
	}

	if len(id) > 64 {
		return ErrIDTooLong
	}

	return nil
}

// containsDangerousChars 检查字符串是否包含危险字符
func containsDangerousChars(s string) bool {
	dangerousPatterns := []string{
		"<script",
		"</script>",
		"javascript:",
		"onerror=",
		"onload=",
		"';",
		"drop table",
		"delete from",
		"insert into",
		"union select",
		"<iframe",
	}

	lower := strings.ToLower(s)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}

	return false
}

// TrimAndValidate 去除首尾空白并验证非空与长度
func TrimAndValidate(s string, maxLen int) (string, error) {
	trimmed := strings.TrimSpace(s)

	if trimmed == "" {
		return "", ErrEmptyString
	}

	if maxLen > 0 && len([]rune(trimmed)) > maxLen {
		return "", ErrStringTooLong
	}

	return StripControlChars(trimmed), nil
}

// NormalizeTags 去除标签首尾空白并丢弃空标签，保持原有顺序
func NormalizeTags(tags []string) []string {
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}

// SplitCSV 拆分逗号分隔的查询参数
func SplitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return NormalizeTags(strings.Split(value, ","))
}

// 错误定义
var (
	ErrEmptyName       = &ValidationError{Code: "EMPTY_NAME", Message: "name cannot be empty"}
	ErrNameTooShort    = &ValidationError{Code: "NAME_TOO_SHORT", Message: "name is shorter than minimum length"}
	ErrNameTooLong     = &ValidationError{Code: "NAME_TOO_LONG", Message: "name exceeds maximum length"}
	ErrDangerousChars  = &ValidationError{Code: "DANGEROUS_CHARS", Message: "name contains dangerous characters"}
	ErrEmptyID         = &ValidationError{Code: "EMPTY_ID", Message: "id cannot be empty"}
	ErrInvalidIDFormat = &ValidationError{Code: "INVALID_ID_FORMAT", Message: "id contains invalid characters"}
	ErrIDTooLong       = &ValidationError{Code: "ID_TOO_LONG", Message: "id exceeds maximum length"}
	ErrEmptyString     = &ValidationError{Code: "EMPTY_STRING", Message: "string cannot be empty"}
	ErrStringTooLong   = &ValidationError{Code: "STRING_TOO_LONG", Message: "string exceeds maximum length"}
)

// ValidationError 验证错误
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
