package utils

import (
	"regexp"
	"strings"
	"unicode"
)

// maxIDLength 与数据表 varchar(64) 主键一致
const maxIDLength = 64

// maxNoteLength 复核备注、取消原因的最大长度
const maxNoteLength = 2000

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

// ValidateID 验证任务、模板、角色等 ID 的格式
func ValidateID(id string) error {
	if id == "" {
		return ErrEmptyID
	}
	if len(id) > maxIDLength {
		return ErrIDTooLong
	}
	if !idPattern.MatchString(id) {
		return ErrInvalidIDFormat
	}
	return nil
}

// CleanNote 去除首尾空白和控制字符,保留换行和制表符
// 空字符串合法
func CleanNote(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) > maxNoteLength {
		return "", ErrNoteTooLong
	}

	var b strings.Builder
	b.Grow(len(trimmed))
	for _, r := range trimmed {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}

// 错误定义
var (
	ErrEmptyID         = &ValidationError{Code: "EMPTY_ID", Message: "id cannot be empty"}
	ErrInvalidIDFormat = &ValidationError{Code: "INVALID_ID_FORMAT", Message: "id contains invalid characters"}
	ErrIDTooLong       = &ValidationError{Code: "ID_TOO_LONG", Message: "id exceeds maximum length"}
	ErrNoteTooLong     = &ValidationError{Code: "NOTE_TOO_LONG", Message: "note exceeds maximum length"}
)

// ValidationError 验证错误
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
