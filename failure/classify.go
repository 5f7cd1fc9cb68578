package failure

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Classifier 自定义分类函数。返回 nil 表示不认识该错误，交由默认规则处理。
type Classifier func(err error) *Failure

// Classify 将任意错误归一化为 *Failure。规则按优先级：
//
//  1. err 为 nil 时返回 nil。
//  2. 错误链中已存在 *Failure 时直接透传（不重复分类）。
//  3. classifier 非 nil 且返回非 nil 时采用其结果（调用方规则优先）。
//  4. context.DeadlineExceeded → KindTimeout。
//  5. context.Canceled → 不可重试的 KindNetwork（调用方主动放弃）。
//  6. gRPC status 错误 → FromGRPCCode。
//  7. 其余未知错误 → 可重试的 KindNetwork（乐观默认）。
func Classify(err error, classifier Classifier) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	if classifier != nil {
		if f := classifier(err); f != nil {
			return f
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout(0).WithCause(err)
	}
	if errors.Is(err, context.Canceled) {
		return Network(err, false)
	}
	if s, ok := status.FromError(err); ok && s.Code() != codes.OK {
		return FromGRPCCode(s.Code()).WithCause(err)
	}
	return Network(err, true)
}

// FromHTTPStatus 按 HTTP 状态码分类：
//
//   - 429 → KindRateLimited（Retry-After 需调用方另行解析后用 RateLimited 构造）
//   - 5xx → KindServerFault（可重试）
//   - 其余 4xx → KindRejected（永久失败）
//   - 1xx/2xx/3xx → nil（不是故障）
func FromHTTPStatus(status int) *Failure {
	switch {
	case status == http.StatusTooManyRequests:
		return RateLimited(0)
	case status >= 500 && status <= 599:
		return ServerFault(status)
	case status >= 400 && status <= 499:
		reason := http.StatusText(status)
		if reason == "" {
			reason = fmt.Sprintf("status %d", status)
		}
		return Rejected(reason)
	default:
		return nil
	}
}

// FromGRPCCode 按 gRPC 状态码分类。
// 可重试集合与 gRPC 重试策略惯例一致：仅 Unavailable、Aborted 视为
// 瞬时网络故障，ResourceExhausted 视为限流，DeadlineExceeded 视为超时；
// Internal、Unknown、DataLoss 属于服务端故障但盲目重试不安全，归为
// 不可重试的网络故障；参数与权限类错误归为永久拒绝。
func FromGRPCCode(code codes.Code) *Failure {
	switch code {
	case codes.OK:
		return nil
	case codes.Unavailable, codes.Aborted:
		return Network(nil, true)
	case codes.ResourceExhausted:
		return RateLimited(0)
	case codes.DeadlineExceeded:
		return Timeout(0)
	case codes.InvalidArgument, codes.NotFound, codes.AlreadyExists,
		codes.PermissionDenied, codes.Unauthenticated, codes.FailedPrecondition,
		codes.OutOfRange, codes.Unimplemented:
		return Rejected(code.String())
	default:
		// Internal、Unknown、DataLoss、Canceled 等
		return Network(nil, false)
	}
}
