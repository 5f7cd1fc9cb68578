package ratelimit

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// GinMiddlewareOptions Gin 限流中间件选项
type GinMiddlewareOptions struct {
	// KeyFunc 从请求中提取限流键。为 nil 时默认使用客户端 IP。
	// 返回空串表示放行该请求。
	KeyFunc func(*gin.Context) string

	// Headers 为 true 时在响应中写入 X-RateLimit-* 头
	Headers bool
}

// GinMiddleware 创建 Gin 限流中间件。
//
// 限流规则来自 limiter 的配置；中间件只负责提取 key 并在
// 被限流时返回 429。限流器出错时放行，避免影响业务。
//
// 使用示例:
//
//	r := gin.New()
//	r.Use(ratelimit.GinMiddleware(limiter, nil)) // 按客户端 IP 限流
//
//	// 按 路径+IP 限流，规则用路径前缀声明，如 "/api/login:"
//	r.Use(ratelimit.GinMiddleware(limiter, &ratelimit.GinMiddlewareOptions{
//	    KeyFunc: ratelimit.PathKeyFunc(),
//	}))
func GinMiddleware(limiter Limiter, o *GinMiddlewareOptions) gin.HandlerFunc {
	if o == nil {
		o = &GinMiddlewareOptions{}
	}
	keyFunc := o.KeyFunc
	if keyFunc == nil {
		// 默认使用客户端 IP 作为限流键
		keyFunc = func(c *gin.Context) string {
			return c.ClientIP()
		}
	}

	return func(c *gin.Context) {
		key := keyFunc(c)
		if key == "" {
			c.Next()
			return
		}

		if o.Headers {
			if limit, ok := limiter.LimitFor(key); ok {
				c.Header("X-RateLimit-Limit", formatLimit(limit))
			}
		}

		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			// 降级策略：限流器出错时放行，避免影响业务
			c.Next()
			return
		}

		if !allowed {
			if o.Headers {
				c.Header("X-RateLimit-Remaining", "0")
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}

// PathKeyFunc 返回按 路径+IP 组合限流键的提取函数。
// 键形如 "/api/login:203.0.113.7"，配合 "/api/login:" 这样的
// 前缀规则可为不同路径配置不同阈值，同一路径下各 IP 独立计数。
func PathKeyFunc() func(*gin.Context) string {
	return func(c *gin.Context) string {
		return c.Request.URL.Path + ":" + c.ClientIP()
	}
}

// UserKeyFunc 返回按用户限流键的提取函数。
// 需要上游中间件将用户 ID 写入 gin 上下文的 "userID"；
// 缺失时回退为 "ip:" + 客户端 IP。
func UserKeyFunc() func(*gin.Context) string {
	return func(c *gin.Context) string {
		if userID, exists := c.Get("userID"); exists {
			if uid, ok := userID.(string); ok && uid != "" {
				return "user:" + uid
			}
		}
		return "ip:" + c.ClientIP()
	}
}

// formatLimit 格式化限流规则为字符串
func formatLimit(limit Limit) string {
	return fmt.Sprintf("rate=%.2f, burst=%d", limit.Rate, limit.Burst)
}
