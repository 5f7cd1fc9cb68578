package idem

import "github.com/ceyewan/aegis/xerrors"

// 错误定义
var (
	// ErrConfigNil 配置为空
	ErrConfigNil = xerrors.New("idem: config is nil")

	// ErrConfigInvalid 配置非法
	ErrConfigInvalid = xerrors.New("idem: invalid config")

	// ErrConnectorNil Redis 驱动缺少连接器
	ErrConnectorNil = xerrors.New("idem: redis connector is required")

	// ErrKeyEmpty 幂等键为空
	ErrKeyEmpty = xerrors.New("idem: key is empty")

	// ErrConcurrentRequest 同一幂等键的并发请求
	ErrConcurrentRequest = xerrors.New("idem: concurrent request detected")

	// ErrResultNotFound 结果未找到
	// Store 实现约定：GetResult 未命中时必须返回该错误
	ErrResultNotFound = xerrors.New("idem: result not found")

	// ErrOwnershipLost 锁持有权丢失（过期后被其他请求获取）
	ErrOwnershipLost = xerrors.New("idem: lock ownership lost")
)
