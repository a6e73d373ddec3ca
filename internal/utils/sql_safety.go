package utils

import (
	"errors"
	"regexp"
	"strings"
)

var (
	sortFieldPattern = regexp.MustCompile(`^[a-zA-Z0-9_.]+$`)
	sqlKeywords      = []string{
		"SELECT", "INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "CREATE",
		"EXEC", "EXECUTE", "UNION", "SCRIPT", "DECLARE", "CAST", "CONVERT",
		"FROM", "WHERE", "ORDER", "BY", "GROUP", "HAVING", "JOIN", "INNER",
		"OUTER", "LEFT", "RIGHT", "ON", "AS", "AND", "OR", "NOT", "IN",
	}
	likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
)

// ValidateSortField 验证排序字段，防止 SQL 注入
func ValidateSortField(field string) error {
	if field == "" {
		return errors.New("sort field cannot be empty")
	}

	// 只允许字母、数字、下划线和点（用于表名.字段名）
	if !sortFieldPattern.MatchString(field) {
		return errors.New("invalid sort field format")
	}

	// 只检查完整的单词，避免误判（如 "created_at" 包含 "AT"）
	upperField := strings.ToUpper(field)
	for _, keyword := range sqlKeywords {
		pattern := regexp.MustCompile(`\b` + regexp.QuoteMeta(keyword) + `\b`)
		if pattern.MatchString(upperField) {
			return errors.New("sort field contains SQL keyword")
		}
	}

	return nil
}

// ValidateSortOrder 验证排序方向
func ValidateSortOrder(order string) error {
	upperOrder := strings.ToUpper(strings.TrimSpace(order))
	if upperOrder != "ASC" && upperOrder != "DESC" {
		return errors.New("sort order must be ASC or DESC")
	}
	return nil
}

// SanitizeSortOrder 清理排序方向，非法值回退到 fallback
func SanitizeSortOrder(order, fallback string) string {
	upperOrder := strings.ToUpper(strings.TrimSpace(order))
	if upperOrder == "ASC" || upperOrder == "DESC" {
		return upperOrder
	}
	return strings.ToUpper(fallback)
}

// EscapeLike 转义 LIKE 模式中的通配符，配合 ESCAPE '\' 使用
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// ContainsPattern 构造大小写不敏感的子串匹配模式（配合 LOWER(col) LIKE ? ESCAPE '\'）
func ContainsPattern(s string) string {
	return "%" + EscapeLike(strings.ToLower(s)) + "%"
}
