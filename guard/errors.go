package guard

import "github.com/ceyewan/aegis/xerrors"

// 错误定义
var (
	// ErrConfigNil 配置为空
	ErrConfigNil = xerrors.New("guard: config is nil")

	// ErrKeyEmpty 防线键为空
	ErrKeyEmpty = xerrors.New("guard: key is empty")

	// ErrNilOperation 传入的操作为空
	ErrNilOperation = xerrors.New("guard: operation is nil")
)
