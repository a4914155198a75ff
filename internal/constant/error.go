package constant

import (
	"errors"
	"fmt"
)

// Error 错误接口
type Error interface {
	error
	Code() int
	Message() string
	Data() interface{}
	WithData(data interface{}) Error
}

// CustomError 自定义错误实现
type CustomError struct {
	code    int
	message string
	detail  string
	data    interface{}
	cause   error
}

func (e *CustomError) Error() string {
	if e.detail != "" {
		return fmt.Sprintf("code: %d, message: %s, detail: %s", e.code, e.message, e.detail)
	}
	return fmt.Sprintf("code: %d, message: %s", e.code, e.message)
}

func (e *CustomError) Code() int {
	return e.code
}

func (e *CustomError) Message() string {
	return e.message
}

// Detail 具体原因（给调用方看的那部分）
func (e *CustomError) Detail() string {
	return e.detail
}

func (e *CustomError) Data() interface{} {
	return e.data
}

// WithData 返回带附加数据的副本，哨兵错误本身不被修改
func (e *CustomError) WithData(data interface{}) Error {
	cp := *e
	cp.data = data
	return &cp
}

func (e *CustomError) Unwrap() error {
	return e.cause
}

// Is 按错误码匹配，errors.Is(err, ErrInsufficientBalance) 对带 detail 的副本同样成立
func (e *CustomError) Is(target error) bool {
	var t *CustomError
	if !errors.As(target, &t) {
		return false
	}
	return t.code == e.code
}

// NewError 创建错误
func NewError(code int) Error {
	if info, exists := ErrorMessages[code]; exists {
		return &CustomError{code: code, message: info.CN}
	}
	return &CustomError{code: code, message: "未知错误"}
}

// Errorf 创建带具体原因的错误
func Errorf(code int, format string, args ...interface{}) Error {
	e := NewError(code).(*CustomError)
	e.detail = fmt.Sprintf(format, args...)
	return e
}

// Wrap 包装底层错误（数据库、网络等）
func Wrap(code int, cause error, format string, args ...interface{}) Error {
	e := Errorf(code, format, args...).(*CustomError)
	if cause != nil {
		e.detail = e.detail + ": " + cause.Error()
	}
	e.cause = cause
	return e
}

// CodeOf 取错误码，非 CustomError 统一视为系统错误
func CodeOf(err error) int {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.code
	}
	return CodeSystemError
}

// GetErrorInfo 获取错误信息
func GetErrorInfo(code int) (ErrorInfo, bool) {
	info, exists := ErrorMessages[code]
	return info, exists
}

// 哨兵错误，配合 errors.Is 使用
var (
	ErrConfiguration       = NewError(CodeConfigInvalid)
	ErrValidation          = NewError(CodeInvalidParams)
	ErrInsufficientBalance = NewError(CodeBalanceInsufficient)
	ErrBelowMinimum        = NewError(CodePayoutBelowMinimum)
	ErrTransferFailed      = NewError(CodeTransferFailed)
	ErrTransferTimeout     = NewError(CodeTransferTimeout)
	ErrNotFound            = NewError(CodeRecordNotFound)
	ErrStatusInvalid       = NewError(CodePayoutStatusInvalid)
	ErrSaleReversed        = NewError(CodeSaleReversed)
	ErrReconMismatch       = NewError(CodeReconDataMismatch)
)
