package breaker

import (
	"github.com/ceyewan/aegis/failure"
	"github.com/ceyewan/aegis/xerrors"
)

// 错误定义
var (
	// ErrConfigNil 配置为空
	ErrConfigNil = xerrors.New("breaker: config is nil")

	// ErrConfigInvalid 配置非法
	ErrConfigInvalid = xerrors.New("breaker: config is invalid")

	// ErrKeyEmpty 熔断键为空
	ErrKeyEmpty = xerrors.New("breaker: key is empty")

	// ErrNilOperation 传入的操作为空
	ErrNilOperation = xerrors.New("breaker: operation is nil")

	// ErrOpenState 熔断拒绝时返回的错误。它本身就是一个
	// KindCircuitOpen 的 *failure.Failure，errors.Is(err, ErrOpenState)
	// 按 Kind 匹配任何熔断拒绝，重试引擎也因此绝不会重试它。
	ErrOpenState error = failure.CircuitOpen()
)
