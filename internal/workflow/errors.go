package workflow

import (
	"errors"
	"fmt"
)

// ErrorKind 错误分类
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration"
	KindAuthorization ErrorKind = "authorization"
	KindConcurrency   ErrorKind = "concurrency"
	KindPersistence   ErrorKind = "persistence"
	KindNotFound      ErrorKind = "not_found"
	KindInvalid       ErrorKind = "invalid"
)

// Error 工作流错误
// 调用方通过 KindOf 判断错误类别,通过 errors.Is 匹配具体的哨兵错误
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	// ErrAlreadyClaimed 任务已被他人认领(或已不在任务池中)
	ErrAlreadyClaimed = &Error{Kind: KindConcurrency, Msg: "task already claimed"}
	// ErrStaleState 工作流条目状态已被并发修改
	ErrStaleState = &Error{Kind: KindConcurrency, Msg: "workflow item changed concurrently"}

	ErrNotOwner         = &Error{Kind: KindAuthorization, Msg: "person is not the owner of this task"}
	ErrNotEligible      = &Error{Kind: KindAuthorization, Msg: "person is not eligible for this step"}
	ErrNotAdministrator = &Error{Kind: KindAuthorization, Msg: "person is not a workflow administrator"}

	ErrItemNotFound          = &Error{Kind: KindNotFound, Msg: "workflow item not found"}
	ErrWorkspaceItemNotFound = &Error{Kind: KindNotFound, Msg: "workspace item not found"}

	ErrInvalidTransition = &Error{Kind: KindInvalid, Msg: "invalid state transition"}
	ErrActionNotAllowed  = &Error{Kind: KindInvalid, Msg: "action not allowed on this step"}
	ErrInvalidState      = &Error{Kind: KindInvalid, Msg: "invalid workflow state"}
	ErrReasonRequired    = &Error{Kind: KindInvalid, Msg: "a reason is required"}
)

// Configuration 构造配置错误
func Configuration(format string, args ...interface{}) error {
	return &Error{Kind: KindConfiguration, Msg: fmt.Sprintf(format, args...)}
}

// Persistence 包装存储层错误
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var werr *Error
	if errors.As(err, &werr) {
		return err
	}
	return &Error{Kind: KindPersistence, Op: op, Err: err}
}

// Wrap 为哨兵错误附加上下文,保留 errors.Is 匹配
func Wrap(sentinel *Error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// KindOf 返回错误分类,非工作流错误返回空字符串
func KindOf(err error) ErrorKind {
	var werr *Error
	if errors.As(err, &werr) {
		return werr.Kind
	}
	return ""
}

// IsConfiguration 是否为配置错误
func IsConfiguration(err error) bool { return KindOf(err) == KindConfiguration }

// IsAuthorization 是否为授权错误
func IsAuthorization(err error) bool { return KindOf(err) == KindAuthorization }

// IsConcurrency 是否为并发冲突
func IsConcurrency(err error) bool { return KindOf(err) == KindConcurrency }

// IsPersistence 是否为存储错误
func IsPersistence(err error) bool { return KindOf(err) == KindPersistence }
