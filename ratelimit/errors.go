package ratelimit

import "github.com/ceyewan/aegis/xerrors"

// 错误定义
var (
	// ErrConfigNil 配置为空
	ErrConfigNil = xerrors.New("ratelimit: config is nil")

	// ErrConfigInvalid 配置不合法（规则的 rate/burst 必须为正数）
	ErrConfigInvalid = xerrors.New("ratelimit: config is invalid")

	// ErrKeyEmpty 限流键为空
	ErrKeyEmpty = xerrors.New("ratelimit: key is empty")

	// ErrInvalidLimit 请求的令牌数无效
	ErrInvalidLimit = xerrors.New("ratelimit: invalid limit")
)
