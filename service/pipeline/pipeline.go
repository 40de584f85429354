/*
 * @module service/pipeline/pipeline
 * @description 全量批处理编排：审计、导入（清洗入库）、评分重算与模型重训
 * @architecture 分层架构 - 业务编排层
 * @documentReference DESIGN.md
 * @stateFlow 审计 -> (InputError 拒绝) -> 清洗入库 -> 评分重算 -> 模型重训 -> 发布事件
 * @rules 同一时间只允许一个批处理运行，其余返回 ErrBatchInProgress；事件发布失败不影响批处理结果；
 *        模型训练失败只降级为规则模式，不使批处理失败；导入提交后的刷新失败作为 refresh_error 返回
 * @dependencies clientrisk-service/service/distributed_lock, clientrisk-service/service/event
 * @refs service/scheduler/scheduler_service.go, api/controllers/import_controller.go
 */

package pipeline

import (
	"clientrisk-service/service/anomaly"
	"clientrisk-service/service/cleaning"
	"clientrisk-service/service/distributed_lock"
	"clientrisk-service/service/event"
	"clientrisk-service/service/metrics"
	"clientrisk-service/service/models"
	"clientrisk-service/service/scoring"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// BatchLockKey 全量批处理互斥锁的键
const BatchLockKey = "clientrisk:batch"

const (
	defaultLockTTL         = 10 * time.Minute
	defaultRefreshInterval = time.Minute
)

// ErrBatchInProgress 已有批处理正在运行
var ErrBatchInProgress = errors.New("已有批处理正在运行")

// Store 批处理依赖的存储能力
type Store interface {
	GetAllRecords(ctx context.Context) ([]models.Client, error)
	BatchInsert(ctx context.Context, records []models.Client) error
	UpsertScoreRecord(ctx context.Context, score models.ClientScore) error
}

// ImportResult 导入结果
type ImportResult struct {
	Audit   *cleaning.AuditReport `json:"audit"`
	Clean   *cleaning.CleanResult `json:"clean"`
	Refresh *RefreshResult        `json:"refresh"`

	// RefreshError 数据已提交但评分刷新失败时的原因
	RefreshError string `json:"refresh_error,omitempty"`
}

// RefreshResult 重算与重训结果
type RefreshResult struct {
	Scored       int    `json:"scored"`
	Trained      bool   `json:"trained"`
	TrainWarning string `json:"train_warning,omitempty"`
}

// Pipeline 批处理编排器
type Pipeline struct {
	store     Store
	cleaner   *cleaning.Cleaner
	scorer    *scoring.Engine
	detector  *anomaly.Detector
	locks     *distributed_lock.LockExecutor
	publisher event.Publisher

	lockTTL         time.Duration
	refreshInterval time.Duration
}

// NewPipeline 创建批处理编排器
func NewPipeline(store Store, detector *anomaly.Detector, locker distributed_lock.Locker, publisher event.Publisher) *Pipeline {
	return &Pipeline{
		store:           store,
		cleaner:         cleaning.NewCleaner(store),
		scorer:          scoring.NewEngine(store),
		detector:        detector,
		locks:           distributed_lock.NewLockExecutor(locker),
		publisher:       publisher,
		lockTTL:         defaultLockTTL,
		refreshInterval: defaultRefreshInterval,
	}
}

// Detector 返回编排器使用的检测器
func (p *Pipeline) Detector() *anomaly.Detector {
	return p.detector
}

// AuditFile 只读审计，不需要批处理锁
func (p *Pipeline) AuditFile(path string) (*cleaning.AuditReport, error) {
	_, report, err := cleaning.AuditFile(path)
	return report, err
}

// ImportFile 审计文件，可读时清洗入库，然后重算评分并重训模型
func (p *Pipeline) ImportFile(ctx context.Context, path string) (*ImportResult, error) {
	var result *ImportResult
	err := p.runBatch(ctx, "import", func() error {
		startTime := time.Now()

		table, report, err := cleaning.AuditFile(path)
		if err != nil {
			return err
		}

		cleaned, err := p.cleaner.CleanAndCommit(ctx, table)
		if err != nil {
			return err
		}

		result = &ImportResult{Audit: report, Clean: cleaned}

		evt := event.NewPipelineEvent(event.EventImportCompleted)
		evt.BatchID = cleaned.BatchID
		evt.Committed = cleaned.Committed
		evt.Dropped = cleaned.DroppedDuplicates + cleaned.DroppedGhosts

		// 数据已提交，刷新失败只作为警告返回，下次刷新补齐评分
		refresh, err := p.refresh(ctx)
		if err != nil {
			slog.Warn("导入已提交，评分刷新失败", "batch_id", cleaned.BatchID, "error", err)
			result.RefreshError = err.Error()
			evt.Warning = result.RefreshError
		} else {
			result.Refresh = refresh
			evt.Scored = refresh.Scored
			evt.Trained = refresh.Trained
			evt.Warning = refresh.TrainWarning
		}
		evt.DurationMs = time.Since(startTime).Milliseconds()
		p.publish(ctx, evt)
		return nil
	})
	return result, err
}

// Refresh 重算全部评分，然后用最新数据重训模型
func (p *Pipeline) Refresh(ctx context.Context) (*RefreshResult, error) {
	var result *RefreshResult
	err := p.runBatch(ctx, "refresh", func() error {
		startTime := time.Now()

		r, err := p.refresh(ctx)
		if err != nil {
			return err
		}
		result = r

		evt := event.NewPipelineEvent(event.EventRefreshCompleted)
		evt.Scored = r.Scored
		evt.Trained = r.Trained
		evt.Warning = r.TrainWarning
		evt.DurationMs = time.Since(startTime).Milliseconds()
		p.publish(ctx, evt)
		return nil
	})
	return result, err
}

// Retrain 仅重训模型；训练失败时检测器回到规则模式并返回错误
func (p *Pipeline) Retrain(ctx context.Context) (anomaly.Status, error) {
	var status anomaly.Status
	err := p.runBatch(ctx, "retrain", func() error {
		startTime := time.Now()

		clients, err := p.store.GetAllRecords(ctx)
		if err != nil {
			return fmt.Errorf("读取训练数据失败: %w", err)
		}
		if err := p.detector.TrainFromClients(clients); err != nil {
			return err
		}
		status = p.detector.Status()

		evt := event.NewPipelineEvent(event.EventRetrainCompleted)
		evt.Trained = true
		evt.DurationMs = time.Since(startTime).Milliseconds()
		p.publish(ctx, evt)
		return nil
	})
	return status, err
}

// RecomputeScores 仅重算评分
func (p *Pipeline) RecomputeScores(ctx context.Context) (int, error) {
	var scored int
	err := p.runBatch(ctx, "recompute", func() error {
		n, err := p.scorer.RecomputeAll(ctx)
		scored = n
		return err
	})
	return scored, err
}

func (p *Pipeline) refresh(ctx context.Context) (*RefreshResult, error) {
	scored, err := p.scorer.RecomputeAll(ctx)
	if err != nil {
		return nil, err
	}

	clients, err := p.store.GetAllRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取训练数据失败: %w", err)
	}

	result := &RefreshResult{Scored: scored}
	if err := p.detector.TrainFromClients(clients); err != nil {
		result.TrainWarning = err.Error()
	} else {
		result.Trained = true
	}
	return result, nil
}

func (p *Pipeline) runBatch(ctx context.Context, operation string, fn func() error) error {
	startTime := time.Now()

	err := p.locks.ExecuteWithLockAndRefresh(ctx, BatchLockKey, p.lockTTL, p.refreshInterval, fn)
	if errors.Is(err, distributed_lock.ErrLockHeld) {
		slog.Warn("批处理被拒绝，已有批处理正在运行", "operation", operation)
		return ErrBatchInProgress
	}

	metrics.ObserveBatch(operation, time.Since(startTime))
	if err != nil {
		slog.Error("批处理失败", "operation", operation, "error", err)
		return err
	}
	slog.Info("批处理完成", "operation", operation, "duration_ms", time.Since(startTime).Milliseconds())
	return nil
}

func (p *Pipeline) publish(ctx context.Context, evt event.PipelineEvent) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, evt); err != nil {
		slog.Warn("发布批处理事件失败", "type", evt.Type, "error", err)
	}
}
