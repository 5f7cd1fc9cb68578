package connector

import "github.com/ceyewan/aegis/xerrors"

// Sentinel Errors - 连接器专用的哨兵错误
var (
	ErrConfig        = xerrors.New("connector: invalid config")
	ErrAlreadyClosed = xerrors.New("connector: already closed")
)
