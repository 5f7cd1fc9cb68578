package xerrors

// 跨组件复用的通用哨兵错误。组件自有的哨兵仍定义在组件内。
var (
	// ErrNotFound 目标不存在（缓存未命中、结果未就绪等）。
	ErrNotFound = New("not found")

	// ErrInvalidInput 入参或配置不合法。
	ErrInvalidInput = New("invalid input")

	// ErrTimeout 操作超时。
	ErrTimeout = New("timeout")

	// ErrUnavailable 依赖的下游暂不可用。
	ErrUnavailable = New("unavailable")

	// ErrConflict 与已有状态冲突（重复提交、版本竞争等）。
	ErrConflict = New("conflict")
)
