/*
 * @module service/scoring/engine
 * @description 评分引擎：全量读取客户记录，计算评分与风险等级并逐客户 upsert
 * @architecture 分层架构 - 业务服务层
 * @documentReference DESIGN.md
 * @stateFlow 存储读取全部客户 -> ComputeScore/ClassifyRisk -> UpsertScoreRecord(日期精度)
 * @rules 唯一修改评分记录的入口；对未变化的客户集合重复执行结果完全一致
 * @dependencies clientrisk-service/service/models
 * @refs service/database/store.go, service/pipeline
 */

package scoring

import (
	"clientrisk-service/service/metrics"
	"clientrisk-service/service/models"
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Store 评分引擎依赖的存储能力
type Store interface {
	GetAllRecords(ctx context.Context) ([]models.Client, error)
	UpsertScoreRecord(ctx context.Context, score models.ClientScore) error
}

// Engine 评分引擎，调用之间不保存状态
type Engine struct {
	store Store
	now   func() time.Time
}

// NewEngine 创建评分引擎
func NewEngine(store Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// WithClock 替换时钟
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// ScoreOf 计算单个客户的评分记录（不落库）
func ScoreOf(c models.Client, day time.Time) models.ClientScore {
	score := ComputeScore(c)
	return models.ClientScore{
		ClientID:   c.ID,
		FinalScore: score,
		RiskTier:   ClassifyRisk(score),
		ComputedAt: day,
	}
}

// RecomputeAll 重新计算全部客户的评分，返回处理的客户数
func (e *Engine) RecomputeAll(ctx context.Context) (int, error) {
	startTime := time.Now()

	clients, err := e.store.GetAllRecords(ctx)
	if err != nil {
		return 0, fmt.Errorf("读取客户记录失败: %w", err)
	}

	day := truncateToDay(e.now())
	tiers := make(map[models.RiskTier]int, 3)
	for _, c := range clients {
		score := ScoreOf(c, day)
		if err := e.store.UpsertScoreRecord(ctx, score); err != nil {
			return 0, fmt.Errorf("写入客户 %d 评分失败: %w", c.ID, err)
		}
		tiers[score.RiskTier]++
		metrics.IncScoreComputed(string(score.RiskTier))
	}

	slog.Info("评分重算完成",
		"clients", len(clients),
		"low", tiers[models.RiskTierLow],
		"medium", tiers[models.RiskTierMedium],
		"high", tiers[models.RiskTierHigh],
		"duration_ms", time.Since(startTime).Milliseconds())

	return len(clients), nil
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
