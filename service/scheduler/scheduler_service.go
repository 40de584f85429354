/**
 * @module RefreshScheduler
 * @description 定时刷新调度器，按 Cron 表达式周期性重算评分并重训异常检测模型
 * @architecture 基于 robfig/cron 的调度器模式
 * @documentReference DESIGN.md
 * @stateFlow stopped --Start--> running --Stop--> stopped
 * @rules Cron 表达式带秒字段；Start/Stop 可重复调用；批处理冲突只记录日志
 * @dependencies github.com/robfig/cron/v3
 * @refs ../pipeline/pipeline.go, ../init.go
 */

package scheduler

import (
	"clientrisk-service/service/pipeline"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Refresher 执行一次全量刷新
type Refresher interface {
	Refresh(ctx context.Context) (*pipeline.RefreshResult, error)
}

// 与 cron.WithSeconds 相同的解析器，用于提前校验表达式
var secondsParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSpec 校验带秒字段的 Cron 表达式
func ValidateSpec(spec string) error {
	if _, err := secondsParser.Parse(spec); err != nil {
		return fmt.Errorf("无效的Cron表达式 %q: %w", spec, err)
	}
	return nil
}

// RefreshScheduler 定时刷新调度器
type RefreshScheduler struct {
	refresher Refresher
	spec      string

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// NewRefreshScheduler 创建调度器，表达式无效时返回错误
func NewRefreshScheduler(refresher Refresher, spec string) (*RefreshScheduler, error) {
	if err := ValidateSpec(spec); err != nil {
		return nil, err
	}
	return &RefreshScheduler{refresher: refresher, spec: spec}, nil
}

// Start 启动调度器，已启动时直接返回
func (s *RefreshScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron = cron.New(cron.WithSeconds())

	id, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(s.ctx) })
	if err != nil {
		s.cancel()
		return fmt.Errorf("添加定时任务失败: %w", err)
	}
	s.entryID = id

	s.cron.Start()
	s.started = true

	slog.Info("定时刷新调度器已启动", "cron", s.spec, "next_run", s.cron.Entry(id).Next)
	return nil
}

// Stop 停止调度器并等待正在执行的任务结束，未启动时直接返回
func (s *RefreshScheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.cancel()
	stopCtx := s.cron.Stop()
	s.mu.Unlock()

	<-stopCtx.Done()
	slog.Info("定时刷新调度器已停止")
}

// Running 调度器是否在运行
func (s *RefreshScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// NextRun 下次执行时间，未启动时为零值
func (s *RefreshScheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// RunOnce 执行一次刷新，错误只记录日志
func (s *RefreshScheduler) RunOnce(ctx context.Context) {
	slog.Info("开始执行定时刷新")

	result, err := s.refresher.Refresh(ctx)
	switch {
	case errors.Is(err, pipeline.ErrBatchInProgress):
		slog.Warn("定时刷新跳过，已有批处理正在运行")
	case err != nil:
		slog.Error("定时刷新失败", "error", err)
	default:
		slog.Info("定时刷新完成", "scored", result.Scored, "trained", result.Trained)
	}
}
