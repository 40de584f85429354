/*
 * @module service/scoring/score
 * @description 风险评分：由规范客户记录计算 [0,1000] 内的最终分数并映射风险等级
 * @architecture 分层架构 - 业务计算层
 * @documentReference DESIGN.md
 * @stateFlow 规范客户记录 -> 线性公式 -> 截断取整 -> 区间约束 -> 风险等级
 * @rules 纯函数，无 I/O；负余额不参与对数计算
 * @dependencies math
 * @refs service/scoring/engine.go
 */

package scoring

import (
	"clientrisk-service/service/models"
	"math"
)

// 评分公式系数
const (
	ageReference        = 60.0
	ageWeight           = 0.4
	balanceWeight       = 0.6
	tenureWeight        = 1.2
	lowRiskThreshold    = 750
	mediumRiskThreshold = 500
)

// ComputeScore 计算最终评分
// score = baseScore + 0.4·(60 − age) + 0.6·ln(1 + max(balance,0)) + 1.2·tenureYears
func ComputeScore(c models.Client) int {
	raw := c.BaseScore +
		ageWeight*(ageReference-float64(c.Age)) +
		balanceWeight*math.Log1p(math.Max(c.Balance, 0)) +
		tenureWeight*float64(c.TenureYears)

	if math.IsNaN(raw) {
		raw = 0
	}
	raw = math.Trunc(raw)
	if raw < models.MinFinalScore {
		return models.MinFinalScore
	}
	if raw > models.MaxFinalScore {
		return models.MaxFinalScore
	}
	return int(raw)
}

// ClassifyRisk 分数到风险等级的映射，分数越高风险越低
func ClassifyRisk(score int) models.RiskTier {
	switch {
	case score >= lowRiskThreshold:
		return models.RiskTierLow
	case score >= mediumRiskThreshold:
		return models.RiskTierMedium
	default:
		return models.RiskTierHigh
	}
}
