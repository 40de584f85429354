/*
 * @module api/middleware/rate_limit
 * @description 限流中间件，按客户端地址限制导入等重操作的请求频率
 * @architecture 中间件模式 - HTTP请求拦截
 * @documentReference DESIGN.md
 * @stateFlow 提取客户端地址 -> 限流检查 -> 写入限流响应头 -> 下一个处理器
 * @rules 超限返回 429；限流器自身故障时放行并记录日志
 * @dependencies github.com/go-chi/render
 * @refs service/rate_limiter, api/routes.go
 */

package middleware

import (
	"clientrisk-service/service/rate_limiter"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"
)

// RateLimit 返回按客户端地址限流的中间件
func RateLimit(limiter rate_limiter.Limiter, scope string, maxRequests int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule := rate_limiter.RateLimitRule{
				Scope:       scope,
				TargetID:    clientAddr(r),
				Window:      window,
				MaxRequests: maxRequests,
			}

			result, err := limiter.Allow(r.Context(), rule)
			if err != nil {
				slog.Warn("限流检查失败，放行请求", "scope", scope, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

			if !result.Allowed {
				slog.Warn("请求超过限流", "scope", scope, "client", rule.TargetID)
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, map[string]interface{}{
					"status": http.StatusTooManyRequests,
					"msg":    "请求过于频繁，请稍后重试",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientAddr 客户端地址，去掉端口
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
