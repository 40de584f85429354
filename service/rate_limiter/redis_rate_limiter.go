/*
 * @module service/rate_limiter/redis_rate_limiter
 * @description 基于Redis的分布式限流服务，多实例部署时共享导入接口的固定窗口计数
 * @architecture 工具层 - 提供分布式限流能力
 * @documentReference DESIGN.md
 * @stateFlow 构造窗口Key -> Lua脚本原子计数 -> 判断是否超限
 * @rules 使用Redis INCR和EXPIRE实现固定窗口限流；同一窗口内计数超过上限即拒绝
 * @dependencies github.com/go-redis/redis/v8
 * @refs api/middleware/rate_limit.go, service/init.go
 */

package rate_limiter

import (
	"clientrisk-service/service/config"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "clientrisk:rate_limit"

// RateLimitResult 限流检查结果
type RateLimitResult struct {
	Allowed   bool  `json:"allowed"`   // 是否允许请求
	Limit     int   `json:"limit"`     // 限制数量
	Remaining int   `json:"remaining"` // 剩余数量
	ResetAt   int64 `json:"reset_at"`  // 重置时间（Unix时间戳）
}

// RateLimitRule 限流规则
type RateLimitRule struct {
	Scope       string        // 限流范围，如 imports
	TargetID    string        // 目标ID（客户端地址）
	Window      time.Duration // 时间窗口
	MaxRequests int           // 窗口内最大请求数
}

func (rule RateLimitRule) windowSeconds() int64 {
	seconds := int64(rule.Window / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

// Limiter 限流器接口
type Limiter interface {
	Allow(ctx context.Context, rule RateLimitRule) (*RateLimitResult, error)
}

// 原子性检查并计数
var allowScript = redis.NewScript(`
	local key = KEYS[1]
	local max_requests = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local current = redis.call('GET', key)
	if current == false then
		current = 0
	else
		current = tonumber(current)
	end

	if current >= max_requests then
		local ttl = redis.call('TTL', key)
		if ttl < 0 then
			ttl = window
		end
		return {0, current, ttl}
	end

	local new_count = redis.call('INCR', key)
	if new_count == 1 then
		redis.call('EXPIRE', key, window)
	end

	local ttl = redis.call('TTL', key)
	if ttl < 0 then
		ttl = window
	end
	return {1, new_count, ttl}
`)

// RedisRateLimiter Redis限流器
type RedisRateLimiter struct {
	client *redis.Client
}

// NewRedisRateLimiter 根据配置创建Redis限流器并检查连接
func NewRedisRateLimiter(cfg config.RedisConfig) (*RedisRateLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis连接失败: %w", err)
	}

	slog.Info("Redis限流器初始化成功", "redis_addr", cfg.Addr)
	return &RedisRateLimiter{client: client}, nil
}

// Allow 检查并记录一次请求
func (r *RedisRateLimiter) Allow(ctx context.Context, rule RateLimitRule) (*RateLimitResult, error) {
	now := time.Now()
	key := buildKey(rule, now)

	raw, err := allowScript.Run(ctx, r.client, []string{key}, rule.MaxRequests, rule.windowSeconds()).Result()
	if err != nil {
		return nil, fmt.Errorf("限流检查失败: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 3 {
		return nil, fmt.Errorf("限流脚本返回值异常: %v", raw)
	}
	allowed, _ := values[0].(int64)
	current, _ := values[1].(int64)
	ttl, _ := values[2].(int64)

	return &RateLimitResult{
		Allowed:   allowed == 1,
		Limit:     rule.MaxRequests,
		Remaining: remaining(rule.MaxRequests, int(current)),
		ResetAt:   now.Add(time.Duration(ttl) * time.Second).Unix(),
	}, nil
}

// Close 关闭Redis客户端
func (r *RedisRateLimiter) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// buildKey 构造限流Key，窗口编号随时间递增
func buildKey(rule RateLimitRule, now time.Time) string {
	currentWindow := now.Unix() / rule.windowSeconds()
	return fmt.Sprintf("%s:%s:%s:%d", keyPrefix, rule.Scope, rule.TargetID, currentWindow)
}

func remaining(limit, current int) int {
	if current >= limit {
		return 0
	}
	return limit - current
}
