package rate_limiter

import (
	"context"
	"sync"
	"time"
)

const staleSweepSize = 1024

type localWindow struct {
	id    int64
	count int
}

// LocalRateLimiter 单实例内存限流器，未启用Redis时使用
type LocalRateLimiter struct {
	mu      sync.Mutex
	windows map[string]*localWindow
	now     func() time.Time
}

// NewLocalRateLimiter 创建内存限流器
func NewLocalRateLimiter() *LocalRateLimiter {
	return &LocalRateLimiter{windows: make(map[string]*localWindow), now: time.Now}
}

// Allow 检查并记录一次请求
func (l *LocalRateLimiter) Allow(_ context.Context, rule RateLimitRule) (*RateLimitResult, error) {
	seconds := rule.windowSeconds()
	id := l.now().Unix() / seconds
	key := rule.Scope + ":" + rule.TargetID
	resetAt := (id + 1) * seconds

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.windows) >= staleSweepSize {
		l.sweep(id)
	}

	w, ok := l.windows[key]
	if !ok || w.id != id {
		w = &localWindow{id: id}
		l.windows[key] = w
	}

	if w.count >= rule.MaxRequests {
		return &RateLimitResult{Allowed: false, Limit: rule.MaxRequests, Remaining: 0, ResetAt: resetAt}, nil
	}
	w.count++

	return &RateLimitResult{
		Allowed:   true,
		Limit:     rule.MaxRequests,
		Remaining: remaining(rule.MaxRequests, w.count),
		ResetAt:   resetAt,
	}, nil
}

// sweep 删除已过期窗口
func (l *LocalRateLimiter) sweep(current int64) {
	for key, w := range l.windows {
		if w.id != current {
			delete(l.windows, key)
		}
	}
}
