package breaker

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"
)

// KeyFunc 从 gRPC 调用上下文中提取熔断 Key
type KeyFunc func(ctx context.Context, fullMethod string, cc *grpc.ClientConn) string

// ========================================
// 内置 KeyFunc 实现
// ========================================

// ServiceLevelKey 服务级别 Key（默认策略）
// 使用连接目标作为熔断维度，同一下游的所有方法共享一个门控
// 返回示例: "dns:///exchange.example.com:443"
func ServiceLevelKey() KeyFunc {
	return func(ctx context.Context, fullMethod string, cc *grpc.ClientConn) string {
		if cc == nil {
			return fullMethod
		}
		return cc.Target()
	}
}

// MethodLevelKey 方法级别 Key
// 按方法进行熔断，单个方法的故障不影响同服务的其他方法
// 返回示例: "/exchange.Orders/Submit"
func MethodLevelKey() KeyFunc {
	return func(ctx context.Context, fullMethod string, cc *grpc.ClientConn) string {
		return fullMethod
	}
}

// BackendLevelKey 后端级别 Key
// 尝试从 Peer 信息中提取真实后端地址，按实例熔断
// 返回示例: "10.0.0.1:9001"
// 注意: 需要等连接建立后才能获取 Peer 信息，第一次调用可能回退到服务级 Key
func BackendLevelKey() KeyFunc {
	return func(ctx context.Context, fullMethod string, cc *grpc.ClientConn) string {
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			if addr := p.Addr.String(); addr != "" {
				return addr
			}
		}
		return ServiceLevelKey()(ctx, fullMethod, cc)
	}
}

// ServiceMethodKey 服务+方法组合 Key
// 返回示例: "dns:///exchange.example.com:443@/exchange.Orders/Submit"
func ServiceMethodKey() KeyFunc {
	return CompositeKey(ServiceLevelKey(), MethodLevelKey())
}

// CompositeKey 组合 Key
// 组合多个 KeyFunc，使用 @ 分隔
func CompositeKey(primary KeyFunc, secondary ...KeyFunc) KeyFunc {
	return func(ctx context.Context, fullMethod string, cc *grpc.ClientConn) string {
		parts := make([]string, 0, 1+len(secondary))
		parts = append(parts, primary(ctx, fullMethod, cc))
		for _, kf := range secondary {
			parts = append(parts, kf(ctx, fullMethod, cc))
		}
		return strings.Join(parts, "@")
	}
}

// CompositeKeyWithSeparator 使用自定义分隔符组合 Key
func CompositeKeyWithSeparator(separator string, keyFuncs ...KeyFunc) KeyFunc {
	if len(keyFuncs) == 0 {
		return ServiceLevelKey()
	}
	if len(keyFuncs) == 1 {
		return keyFuncs[0]
	}

	return func(ctx context.Context, fullMethod string, cc *grpc.ClientConn) string {
		parts := make([]string, 0, len(keyFuncs))
		for _, kf := range keyFuncs {
			parts = append(parts, kf(ctx, fullMethod, cc))
		}
		return strings.Join(parts, separator)
	}
}
