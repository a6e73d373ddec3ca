package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/mautops/integration-monitor/internal/database"
	"gorm.io/gorm"
)

// ErrorKind 业务错误分类
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"
	KindNotFound           ErrorKind = "not_found"
	KindDuplicateKey       ErrorKind = "duplicate_key"
	KindInvalidState       ErrorKind = "invalid_state"
	KindStorageUnavailable ErrorKind = "storage_unavailable"
	KindInternal           ErrorKind = "internal"
)

// FieldError 字段级校验错误
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error 服务层错误
type Error struct {
	Kind    ErrorKind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError 创建校验错误
func NewValidationError(message string, fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// NewFieldError 创建单字段校验错误
func NewFieldError(field, message string) *Error {
	return NewValidationError("Validation error", FieldError{Field: field, Message: message})
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(entity string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found"}
}

// NewInvalidStateError 创建状态非法错误
func NewInvalidStateError(message string) *Error {
	return &Error{Kind: KindInvalidState, Message: message}
}

// NewDuplicateKeyError 创建唯一键冲突错误
func NewDuplicateKeyError(message string, err error) *Error {
	return &Error{Kind: KindDuplicateKey, Message: message, Err: err}
}

// KindOf 返回错误分类，非服务层错误视为内部错误
func KindOf(err error) ErrorKind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindInternal
}

// IsNotFound 是否为未找到错误
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}

// IsValidation 是否为校验错误
func IsValidation(err error) bool {
	return err != nil && KindOf(err) == KindValidation
}

// IsDuplicateKey 是否为唯一键冲突
func IsDuplicateKey(err error) bool {
	return err != nil && KindOf(err) == KindDuplicateKey
}

// IsInvalidState 是否为状态非法错误
func IsInvalidState(err error) bool {
	return err != nil && KindOf(err) == KindInvalidState
}

// IsStorageUnavailable 是否为存储不可用错误
func IsStorageUnavailable(err error) bool {
	return err != nil && KindOf(err) == KindStorageUnavailable
}

// classifyStoreError 将仓储层错误归类为服务层错误（必须在事务之外调用）
func classifyStoreError(db *gorm.DB, err error, entity string) error {
	if err == nil {
		return nil
	}

	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NewNotFoundError(entity)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return NewDuplicateKeyError(entity+" already exists", err)
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindStorageUnavailable, Message: "storage unavailable", Err: err}
	}

	if pingErr := database.Ping(context.Background(), db); pingErr != nil {
		return &Error{Kind: KindStorageUnavailable, Message: "storage unavailable", Err: err}
	}

	return &Error{Kind: KindInternal, Message: fmt.Sprintf("%s operation failed", entity), Err: err}
}
