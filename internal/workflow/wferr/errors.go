package wferr

import (
	"errors"
	"fmt"
)

// Kind 工作流错误分类
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindInvalidTransition Kind = "invalid_state_transition"
	KindValidation        Kind = "validation_error"
	KindItemsAssigned     Kind = "items_already_assigned"
	KindAlreadySelected   Kind = "already_selected"
	KindSequenceExhausted Kind = "sequence_exhausted"
	KindNoApprover        Kind = "no_approver_found"
	KindInternal          Kind = "internal"
)

// Error 带分类和关联ID的工作流错误
type Error struct {
	Kind    Kind
	Message string
	IDs     map[string]string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// E 创建工作流错误
func E(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap 包装底层错误
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// WithID 附加关联ID（pr_id、item_ids、buyer_id等）
func (e *Error) WithID(key, value string) *Error {
	if e.IDs == nil {
		e.IDs = make(map[string]string)
	}
	e.IDs[key] = value
	return e
}

// KindOf 提取错误分类，非工作流错误归为internal
func KindOf(err error) Kind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	return KindInternal
}

// IDsOf 提取错误携带的关联ID
func IDsOf(err error) map[string]string {
	var we *Error
	if errors.As(err, &we) {
		return we.IDs
	}
	return nil
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
