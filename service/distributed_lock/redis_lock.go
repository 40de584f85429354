/*
 * @module service/distributed_lock/redis_lock
 * @description 批处理互斥锁：Redis 分布式锁实现与带锁执行器，保证同一时间只有一个全量批处理在运行
 * @architecture 工具层 - 提供分布式锁能力
 * @documentReference DESIGN.md
 * @stateFlow 获取锁 -> 执行批处理(定期续期) -> 释放锁/自动过期
 * @rules 使用Redis SET NX实现；只有持有者能续期和释放；获取失败返回 ErrLockHeld
 * @dependencies github.com/go-redis/redis/v8
 * @refs service/pipeline/pipeline.go, service/init.go
 */

package distributed_lock

import (
	"clientrisk-service/service/config"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrLockHeld 锁已被其他持有者占用
var ErrLockHeld = errors.New("锁已被占用")

const keyPrefix = "clientrisk:lock:"

// Locker 锁接口
type Locker interface {
	// TryLock 尝试获取锁
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Unlock 释放锁
	Unlock(ctx context.Context, key string) error
	// Refresh 刷新锁的过期时间
	Refresh(ctx context.Context, key string, ttl time.Duration) error
	// IsLocked 检查锁是否存在
	IsLocked(ctx context.Context, key string) (bool, error)
}

// 只有持有者才能删除
const unlockScript = `
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`

// 只有持有者才能续期
const refreshScript = `
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`

// RedisLock Redis分布式锁实现
type RedisLock struct {
	client     *redis.Client
	instanceID string // 实例ID，用于标识锁的持有者
}

// NewRedisLock 根据配置创建Redis分布式锁并检查连接
func NewRedisLock(cfg config.RedisConfig) (*RedisLock, error) {
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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("Redis连接失败: %w", err)
	}

	// 生成实例ID（使用主机名+进程ID）
	hostname, _ := os.Hostname()
	instanceID := fmt.Sprintf("%s:%d", hostname, os.Getpid())

	slog.Info("Redis分布式锁初始化成功", "instance_id", instanceID, "redis_addr", cfg.Addr)

	return &RedisLock{client: client, instanceID: instanceID}, nil
}

// TryLock 尝试获取锁
// 使用SET NX命令，只有当key不存在时才会设置成功
func (r *RedisLock) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	result, err := r.client.SetNX(ctx, keyPrefix+key, r.instanceID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("获取锁失败: %w", err)
	}

	if result {
		slog.Debug("分布式锁: 成功获取锁", "key", key, "ttl", ttl, "instance", r.instanceID)
	}
	return result, nil
}

// Unlock 释放锁
func (r *RedisLock) Unlock(ctx context.Context, key string) error {
	result, err := r.client.Eval(ctx, unlockScript, []string{keyPrefix + key}, r.instanceID).Int64()
	if err != nil {
		return fmt.Errorf("释放锁失败: %w", err)
	}

	if result == 1 {
		slog.Debug("分布式锁: 成功释放锁", "key", key, "instance", r.instanceID)
	} else {
		slog.Warn("分布式锁: 锁不存在或已被其他实例持有", "key", key, "instance", r.instanceID)
	}
	return nil
}

// Refresh 刷新锁的过期时间
func (r *RedisLock) Refresh(ctx context.Context, key string, ttl time.Duration) error {
	result, err := r.client.Eval(ctx, refreshScript, []string{keyPrefix + key}, r.instanceID, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("刷新锁失败: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("刷新锁失败: %w", ErrLockHeld)
	}
	return nil
}

// IsLocked 检查锁是否存在
func (r *RedisLock) IsLocked(ctx context.Context, key string) (bool, error) {
	exists, err := r.client.Exists(ctx, keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("检查锁状态失败: %w", err)
	}
	return exists > 0, nil
}

// Close 关闭Redis客户端
func (r *RedisLock) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// LockExecutor 带锁执行器，用于简化锁的使用
type LockExecutor struct {
	lock Locker
}

// NewLockExecutor 创建带锁执行器
func NewLockExecutor(lock Locker) *LockExecutor {
	return &LockExecutor{lock: lock}
}

// ExecuteWithLock 在锁保护下执行函数，锁被占用时返回 ErrLockHeld
func (e *LockExecutor) ExecuteWithLock(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	return e.ExecuteWithLockAndRefresh(ctx, key, ttl, 0, fn)
}

// ExecuteWithLockAndRefresh 在锁保护下执行函数，refreshInterval 大于 0 时自动续期
func (e *LockExecutor) ExecuteWithLockAndRefresh(ctx context.Context, key string, ttl time.Duration, refreshInterval time.Duration, fn func() error) error {
	locked, err := e.lock.TryLock(ctx, key, ttl)
	if err != nil {
		return err
	}
	if !locked {
		slog.Debug("分布式锁: 锁已被占用，跳过执行", "key", key)
		return ErrLockHeld
	}

	// 释放锁不跟随调用方上下文，避免请求取消后锁残留到过期
	defer func() {
		if unlockErr := e.lock.Unlock(context.Background(), key); unlockErr != nil {
			slog.Error("分布式锁: 释放锁失败", "key", key, "error", unlockErr)
		}
	}()

	if refreshInterval > 0 {
		refreshCtx, cancelRefresh := context.WithCancel(ctx)
		defer cancelRefresh()

		go func() {
			ticker := time.NewTicker(refreshInterval)
			defer ticker.Stop()

			for {
				select {
				case <-refreshCtx.Done():
					return
				case <-ticker.C:
					if refreshErr := e.lock.Refresh(refreshCtx, key, ttl); refreshErr != nil {
						slog.Error("分布式锁: 续期失败", "key", key, "error", refreshErr)
					}
				}
			}
		}()
	}

	return fn()
}
