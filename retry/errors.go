package retry

import "github.com/ceyewan/aegis/xerrors"

var (
	// ErrConfigNil 配置为 nil
	ErrConfigNil = xerrors.New("retry: config is nil")
	// ErrConfigInvalid 配置字段不合法，错误信息中携带具体原因
	ErrConfigInvalid = xerrors.New("retry: invalid config")
	// ErrNilOperation 传入的操作为 nil
	ErrNilOperation = xerrors.New("retry: operation is nil")
)
