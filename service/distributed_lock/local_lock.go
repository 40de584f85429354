package distributed_lock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// LocalLock 进程内锁，单实例部署时使用；语义与 RedisLock 一致，过期后可被重新获取
type LocalLock struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewLocalLock 创建进程内锁
func NewLocalLock() *LocalLock {
	return &LocalLock{expires: make(map[string]time.Time), now: time.Now}
}

func (l *LocalLock) held(key string) bool {
	exp, ok := l.expires[key]
	if !ok {
		return false
	}
	if !l.now().Before(exp) {
		delete(l.expires, key)
		return false
	}
	return true
}

// TryLock 尝试获取锁
func (l *LocalLock) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held(key) {
		return false, nil
	}
	l.expires[key] = l.now().Add(ttl)
	return true, nil
}

// Unlock 释放锁
func (l *LocalLock) Unlock(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.expires, key)
	return nil
}

// Refresh 刷新锁的过期时间
func (l *LocalLock) Refresh(_ context.Context, key string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.held(key) {
		return fmt.Errorf("刷新锁失败: 锁 %s 不存在", key)
	}
	l.expires[key] = l.now().Add(ttl)
	return nil
}

// IsLocked 检查锁是否存在
func (l *LocalLock) IsLocked(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.held(key), nil
}
