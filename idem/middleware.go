package idem

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/xerrors"
)

// defaultHeaderKey 默认的幂等键 HTTP 头名称
const defaultHeaderKey = "X-Idempotency-Key"

// GinMiddleware 创建 Gin 幂等性中间件
//
// 使用示例:
//
//	r := gin.New()
//	r.POST("/orders", idemComp.GinMiddleware(), func(c *gin.Context) {
//	    c.JSON(200, gin.H{"order_id": "123"})
//	})
//
// 存储故障时请求被拒绝（500）而不是放行：幂等是正确性保证，
// 放行可能导致副作用重复执行。
func (i *idem) GinMiddleware(opts ...MiddlewareOption) gin.HandlerFunc {
	opt := middlewareOptions{
		headerKey: defaultHeaderKey,
	}
	for _, o := range opts {
		o(&opt)
	}

	return func(c *gin.Context) {
		key := c.GetHeader(opt.headerKey)
		if key == "" {
			// 没有幂等键，直接放行
			c.Next()
			return
		}

		ctx := c.Request.Context()
		cached, token, locked, err := i.waitForResultOrLock(ctx, key)
		if err != nil {
			if xerrors.Is(err, ErrConcurrentRequest) {
				i.metrics.record(ctx, OutcomeConflict)
				i.logger.Debug("concurrent request rejected", clog.String("key", key))
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "request in flight"})
				return
			}
			i.logger.Error("failed to resolve idempotency state", clog.Error(err), clog.String("key", key))
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		if !locked {
			i.metrics.record(ctx, OutcomeHit)
			i.logger.Debug("replaying cached response", clog.String("key", key))
			if i.writeCachedResponse(c, cached, key) {
				c.Abort()
				return
			}
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		lockReleased := false
		defer func() {
			if lockReleased {
				return
			}
			if err := i.store.Unlock(ctx, key, token); err != nil {
				i.logger.Error("failed to release lock", clog.Error(err), clog.String("key", key))
			}
		}()
		stopRefresh := i.startLockRefresh(key, token)
		defer stopRefresh()

		// 包装 ResponseWriter 捕获响应体
		writer := &captureWriter{
			ResponseWriter: c.Writer,
			body:           bytes.NewBuffer(nil),
		}
		c.Writer = writer

		c.Next()

		// 非 2xx 不缓存：锁由 defer 释放，客户端可以携带同一个键重试
		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}

		resp := cachedResponse{
			Status: status,
			Header: cloneHeader(c.Writer.Header()),
			Body:   append([]byte(nil), writer.body.Bytes()...),
		}
		// 回放时重新写入响应体，长度由框架计算
		resp.Header.Del("Content-Length")

		data, err := i.ser.Marshal(resp)
		if err != nil {
			i.logger.Error("failed to encode response", clog.Error(err), clog.String("key", key))
			return
		}
		if err := i.store.SetResult(ctx, key, data, i.cfg.DefaultTTL, token); err != nil {
			i.logger.Error("failed to cache response", clog.Error(err), clog.String("key", key))
			return
		}
		lockReleased = true
		i.metrics.record(ctx, OutcomeExecuted)
	}
}

// cachedResponse 缓存的 HTTP 响应
type cachedResponse struct {
	Status int         `json:"status" msgpack:"status"`
	Header http.Header `json:"header" msgpack:"header"`
	Body   []byte      `json:"body" msgpack:"body"`
}

func (i *idem) writeCachedResponse(c *gin.Context, data []byte, key string) bool {
	var resp cachedResponse
	if err := i.ser.Unmarshal(data, &resp); err != nil {
		i.logger.Error("failed to decode cached response", clog.Error(err), clog.String("key", key))
		return false
	}

	for name, values := range resp.Header {
		for _, v := range values {
			c.Writer.Header().Add(name, v)
		}
	}
	c.Status(resp.Status)
	_, _ = c.Writer.Write(resp.Body)
	return true
}

func cloneHeader(header http.Header) http.Header {
	dup := make(http.Header, len(header))
	for k, v := range header {
		dup[k] = append([]string(nil), v...)
	}
	return dup
}

// captureWriter 捕获响应体用于缓存，其余行为透传给底层 gin.ResponseWriter
type captureWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
