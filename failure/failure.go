// Package failure 提供统一的故障分类模型，是重试引擎与熔断器的共同语言。
//
// 下游调用的任何错误都可以归一化为一个带 Kind 的 *Failure：
// 分类结果决定该错误是否可重试（retry 组件）以及是否计入熔断统计（breaker 组件）。
// 分类是纯函数，不产生副作用，也不会失败。
//
// ## 基本使用
//
//	// HTTP 响应分类
//	if f := failure.FromHTTPStatus(resp.StatusCode); f != nil {
//		if f.Retryable() {
//			// 安排重试
//		}
//		if wait, ok := f.SuggestedWait(); ok {
//			// 服务端建议的等待时长（429 Retry-After）
//			time.Sleep(wait)
//		}
//	}
//
//	// 任意错误归一化
//	f := failure.Classify(err, nil)
//	switch f.Kind() {
//	case failure.KindTimeout, failure.KindNetwork:
//		// 瞬时故障
//	case failure.KindRejected:
//		// 永久失败，重试无意义
//	}
//
// ## 按 Kind 匹配
//
// *Failure 实现了 error 接口并支持 errors.Is/As 按 Kind 匹配：
//
//	if errors.Is(err, failure.CircuitOpen()) {
//		// 被熔断器拒绝
//	}
package failure

import (
	"errors"
	"fmt"
	"time"
)

// Kind 故障类别，闭合枚举。
type Kind int

const (
	// KindNetwork 传输层故障（连接失败、对端重置等），是否可重试由构造方指定
	KindNetwork Kind = iota
	// KindRateLimited 服务端限流（如 HTTP 429），可携带建议等待时长
	KindRateLimited
	// KindServerFault 服务端错误，携带状态码，5xx 可重试
	KindServerFault
	// KindTimeout 超时，始终可重试，携带已耗时长
	KindTimeout
	// KindRejected 永久性拒绝（参数错误、权限不足等），不可重试
	KindRejected
	// KindCircuitOpen 熔断器快速失败，仅由 breaker 产生，不重试也不计入故障统计
	KindCircuitOpen
)

// String 返回类别的小写字符串表示，可直接用作指标标签值。
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindRateLimited:
		return "rate_limited"
	case KindServerFault:
		return "server_fault"
	case KindTimeout:
		return "timeout"
	case KindRejected:
		return "rejected"
	case KindCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// Failure 分类后的故障。值不可变，可安全共享。
type Failure struct {
	kind       Kind
	retryable  bool          // 仅 KindNetwork 使用
	statusCode int           // 仅 KindServerFault 使用
	retryAfter time.Duration // 仅 KindRateLimited 使用
	elapsed    time.Duration // 仅 KindTimeout 使用
	reason     string        // 仅 KindRejected 使用
	cause      error
}

// Network 构造传输层故障，retryable 指定该故障是否值得重试。
func Network(cause error, retryable bool) *Failure {
	return &Failure{kind: KindNetwork, retryable: retryable, cause: cause}
}

// RateLimited 构造限流故障，retryAfter 为服务端建议的等待时长（未知时传 0）。
func RateLimited(retryAfter time.Duration) *Failure {
	return &Failure{kind: KindRateLimited, retryAfter: retryAfter}
}

// ServerFault 构造服务端错误，statusCode 为 HTTP 状态码或等价值。
func ServerFault(statusCode int) *Failure {
	return &Failure{kind: KindServerFault, statusCode: statusCode}
}

// Timeout 构造超时故障，elapsed 为超时前已经过的时长（未知时传 0）。
func Timeout(elapsed time.Duration) *Failure {
	return &Failure{kind: KindTimeout, elapsed: elapsed}
}

// Rejected 构造永久性拒绝，reason 描述拒绝原因。
func Rejected(reason string) *Failure {
	return &Failure{kind: KindRejected, reason: reason}
}

// CircuitOpen 构造熔断快速失败。正常情况下仅由 breaker 组件产生。
func CircuitOpen() *Failure {
	return &Failure{kind: KindCircuitOpen}
}

// Kind 返回故障类别。
func (f *Failure) Kind() Kind {
	return f.kind
}

// Retryable 返回该故障是否值得重试。纯函数，按类别映射：
// Network 取构造时的值；RateLimited、Timeout 恒为 true；
// ServerFault 仅 5xx 为 true；Rejected、CircuitOpen 恒为 false。
func (f *Failure) Retryable() bool {
	switch f.kind {
	case KindNetwork:
		return f.retryable
	case KindRateLimited, KindTimeout:
		return true
	case KindServerFault:
		return f.statusCode >= 500 && f.statusCode <= 599
	default:
		return false
	}
}

// SuggestedWait 返回服务端建议的等待时长。
// 仅当故障为 KindRateLimited 且携带非零 RetryAfter 时 ok 为 true，
// 此时重试引擎将用该值取代计算出的退避时长。
func (f *Failure) SuggestedWait() (time.Duration, bool) {
	if f.kind == KindRateLimited && f.retryAfter > 0 {
		return f.retryAfter, true
	}
	return 0, false
}

// StatusCode 返回 KindServerFault 携带的状态码，其余类别为 0。
func (f *Failure) StatusCode() int {
	return f.statusCode
}

// RetryAfter 返回 KindRateLimited 携带的建议等待时长，其余类别为 0。
func (f *Failure) RetryAfter() time.Duration {
	return f.retryAfter
}

// Elapsed 返回 KindTimeout 携带的已耗时长，其余类别为 0。
func (f *Failure) Elapsed() time.Duration {
	return f.elapsed
}

// Reason 返回 KindRejected 携带的拒绝原因，其余类别为空。
func (f *Failure) Reason() string {
	return f.reason
}

// Cause 返回底层原因错误，没有时为 nil。
func (f *Failure) Cause() error {
	return f.cause
}

// WithCause 返回携带底层原因的副本，原值不变。
func (f *Failure) WithCause(cause error) *Failure {
	clone := *f
	clone.cause = cause
	return &clone
}

// Error 实现 error 接口。
func (f *Failure) Error() string {
	switch f.kind {
	case KindNetwork:
		if f.cause != nil {
			return "network failure: " + f.cause.Error()
		}
		return "network failure"
	case KindRateLimited:
		if f.retryAfter > 0 {
			return fmt.Sprintf("rate limited, retry after %s", f.retryAfter)
		}
		return "rate limited"
	case KindServerFault:
		return fmt.Sprintf("server fault: status %d", f.statusCode)
	case KindTimeout:
		if f.elapsed > 0 {
			return fmt.Sprintf("timeout after %s", f.elapsed)
		}
		return "timeout"
	case KindRejected:
		if f.reason != "" {
			return "rejected: " + f.reason
		}
		return "rejected"
	case KindCircuitOpen:
		return "circuit open"
	default:
		return "unknown failure"
	}
}

// Unwrap 返回底层原因错误，支持 errors.Is/As 沿链匹配。
func (f *Failure) Unwrap() error {
	return f.cause
}

// Is 支持 errors.Is 按 Kind 匹配：目标为 *Failure 时只比较类别。
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	if !ok {
		return false
	}
	return f.kind == t.kind
}

// KindOf 提取错误链中第一个 *Failure 的类别。
// 链中不存在 *Failure 时 ok 为 false。
func KindOf(err error) (Kind, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.kind, true
	}
	return 0, false
}

// IsKind 报告错误链中是否存在指定类别的 *Failure。
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
