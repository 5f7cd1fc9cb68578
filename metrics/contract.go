package metrics

import (
	"strconv"
	"strings"

	"google.golang.org/grpc/codes"
)

// 常见的标签名，各组件的指标统一使用这里的常量，便于在监控面板中关联。
const (
	LabelService     = "service"
	LabelOperation   = "operation"
	LabelMethod      = "method"
	LabelRoute       = "route"
	LabelStatusClass = "status_class"
	LabelOutcome     = "outcome"
	LabelGRPCCode    = "grpc_code"
)

// 常见的操作
const (
	OperationHTTPServer = "http.server"
	OperationGRPCClient = "grpc.client"
)

// 常见的结果
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// UnknownRoute 未命中路由时的统一标签值，避免高基数
const UnknownRoute = "unknown"

// HTTPStatusClass 返回 HTTP 状态类标签值：1xx/2xx/3xx/4xx/5xx/unknown
func HTTPStatusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

// HTTPOutcome 将 HTTP 状态码映射为 success/error
func HTTPOutcome(status int) string {
	if status >= 200 && status < 400 {
		return OutcomeSuccess
	}
	return OutcomeError
}

// GRPCStatusClass 将 gRPC 状态码转换为稳定的小写类标签
func GRPCStatusClass(code codes.Code) string {
	if code == codes.OK {
		return "ok"
	}
	return strings.ToLower(code.String())
}

// GRPCOutcome 将 gRPC 状态码映射为 success/error
func GRPCOutcome(code codes.Code) string {
	if code == codes.OK {
		return OutcomeSuccess
	}
	return OutcomeError
}
