/*
 * @module service/statistics/stats
 * @description 统计引擎：为仪表盘与分析页提供 KPI、分布、交叉表与趋势数据
 * @architecture 分层架构 - 业务服务层
 * @documentReference DESIGN.md
 * @stateFlow 存储(客户+评分视图) -> 纯函数聚合 -> 图表数据
 * @rules 空数据返回零值而不是错误；只读，不修改任何记录
 * @dependencies clientrisk-service/service/database
 * @refs api/controllers/stats_controller.go
 */

package statistics

import (
	"clientrisk-service/service/database"
	"clientrisk-service/service/models"
	"clientrisk-service/service/utils"
	"context"
	"fmt"
	"sort"
)

// TenureSeriesSize 趋势图取客户年限最长的前 N 位
const TenureSeriesSize = 12

// Source 统计数据来源
type Source interface {
	ListClientViews(ctx context.Context, filter database.ClientFilter) ([]models.ClientView, error)
}

// KPIs 仪表盘关键指标
type KPIs struct {
	TotalClients  int     `json:"total_clients"`
	TotalBalance  float64 `json:"total_balance"`
	AverageScore  int     `json:"average_score"`
	HighRiskCount int     `json:"high_risk_count"`
}

// Insights 分析页指标
type Insights struct {
	AverageScore  float64 `json:"average_score"`
	ScoreVariance float64 `json:"score_variance"`
	MedianAge     float64 `json:"median_age"`
}

// Bucket 分类计数
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Crosstab 交叉表，Counts[i][j] 对应 Rows[i] × Columns[j]
type Crosstab struct {
	Rows    []string `json:"rows"`
	Columns []string `json:"columns"`
	Counts  [][]int  `json:"counts"`
}

// Point 年龄-余额散点
type Point struct {
	Age     int     `json:"age"`
	Balance float64 `json:"balance"`
}

// TenurePoint 年限-余额趋势点
type TenurePoint struct {
	TenureYears int     `json:"tenure_years"`
	Balance     float64 `json:"balance"`
}

// RiskSummary 各风险等级的平均余额与收入
type RiskSummary struct {
	RiskTier       string  `json:"risk_tier"`
	Clients        int     `json:"clients"`
	AverageBalance float64 `json:"average_balance"`
	AverageIncome  float64 `json:"average_income"`
}

// Engine 统计引擎
type Engine struct {
	source Source
}

// NewEngine 创建统计引擎
func NewEngine(source Source) *Engine {
	return &Engine{source: source}
}

// Load 读取全部客户视图
func (e *Engine) Load(ctx context.Context) ([]models.ClientView, error) {
	views, err := e.source.ListClientViews(ctx, database.ClientFilter{})
	if err != nil {
		return nil, fmt.Errorf("读取统计数据失败: %w", err)
	}
	return views, nil
}

// ComputeKPIs 计算关键指标；平均分只统计已有评分的客户
func ComputeKPIs(views []models.ClientView) KPIs {
	k := KPIs{TotalClients: len(views)}
	var scoreSum float64
	scored := 0
	for _, v := range views {
		k.TotalBalance += v.Balance
		if v.FinalScore != nil {
			scoreSum += float64(*v.FinalScore)
			scored++
		}
		if v.RiskTier != nil && *v.RiskTier == string(models.RiskTierHigh) {
			k.HighRiskCount++
		}
	}
	if scored > 0 {
		k.AverageScore = int(scoreSum / float64(scored))
	}
	return k
}

// ComputeInsights 平均分、样本方差与年龄中位数
func ComputeInsights(views []models.ClientView) Insights {
	var ins Insights

	scores := make([]float64, 0, len(views))
	ages := make([]float64, 0, len(views))
	for _, v := range views {
		if v.FinalScore != nil {
			scores = append(scores, float64(*v.FinalScore))
		}
		ages = append(ages, float64(v.Age))
	}

	if len(scores) > 0 {
		var sum float64
		for _, s := range scores {
			sum += s
		}
		ins.AverageScore = sum / float64(len(scores))
	}
	if len(scores) > 1 {
		var sq float64
		for _, s := range scores {
			d := s - ins.AverageScore
			sq += d * d
		}
		ins.ScoreVariance = sq / float64(len(scores)-1)
	}
	if med, ok := utils.Median(ages); ok {
		ins.MedianAge = med
	}
	return ins
}

// AgeDistribution 年龄序列（直方图原始数据）
func AgeDistribution(views []models.ClientView) []int {
	ages := make([]int, len(views))
	for i, v := range views {
		ages[i] = v.Age
	}
	return ages
}

// SegmentDistribution 分群分布；所有记录都没有分群时按性别统计
func SegmentDistribution(views []models.ClientView) []Bucket {
	counts := make(map[string]int)
	for _, v := range views {
		if v.Segment != "" {
			counts[string(v.Segment)]++
		}
	}
	if len(counts) == 0 {
		for _, v := range views {
			if v.Gender != "" {
				counts[string(v.Gender)]++
			}
		}
	}
	return toBuckets(counts)
}

// RegionDistribution 地区分布
func RegionDistribution(views []models.ClientView) []Bucket {
	counts := make(map[string]int)
	for _, v := range views {
		counts[v.Region]++
	}
	return toBuckets(counts)
}

// RegionSegmentCrosstab 地区 × 分群交叉表
func RegionSegmentCrosstab(views []models.ClientView) Crosstab {
	rowIdx := make(map[string]int)
	colIdx := make(map[string]int)
	for _, v := range views {
		rowIdx[v.Region] = 0
		colIdx[string(v.Segment)] = 0
	}

	ct := Crosstab{Rows: sortedKeys(rowIdx), Columns: sortedKeys(colIdx)}
	for i, r := range ct.Rows {
		rowIdx[r] = i
	}
	for j, c := range ct.Columns {
		colIdx[c] = j
	}

	ct.Counts = make([][]int, len(ct.Rows))
	for i := range ct.Counts {
		ct.Counts[i] = make([]int, len(ct.Columns))
	}
	for _, v := range views {
		ct.Counts[rowIdx[v.Region]][colIdx[string(v.Segment)]]++
	}
	return ct
}

// ScatterAgeBalance 年龄与余额散点
func ScatterAgeBalance(views []models.ClientView) []Point {
	points := make([]Point, len(views))
	for i, v := range views {
		points[i] = Point{Age: v.Age, Balance: v.Balance}
	}
	return points
}

// TenureSeries 按客户年限降序取前 12 位的余额
func TenureSeries(views []models.ClientView) []TenurePoint {
	sorted := make([]models.ClientView, len(views))
	copy(sorted, views)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TenureYears > sorted[j].TenureYears
	})
	if len(sorted) > TenureSeriesSize {
		sorted = sorted[:TenureSeriesSize]
	}

	series := make([]TenurePoint, len(sorted))
	for i, v := range sorted {
		series[i] = TenurePoint{TenureYears: v.TenureYears, Balance: v.Balance}
	}
	return series
}

// RiskBreakdown 各风险等级的平均余额与收入，未评分客户不计入
func RiskBreakdown(views []models.ClientView) []RiskSummary {
	type acc struct {
		n               int
		balance, income float64
	}
	groups := make(map[string]*acc)
	for _, v := range views {
		if v.RiskTier == nil {
			continue
		}
		a, ok := groups[*v.RiskTier]
		if !ok {
			a = &acc{}
			groups[*v.RiskTier] = a
		}
		a.n++
		a.balance += v.Balance
		a.income += v.Income
	}

	tiers := make([]string, 0, len(groups))
	for t := range groups {
		tiers = append(tiers, t)
	}
	sort.Strings(tiers)

	out := make([]RiskSummary, 0, len(tiers))
	for _, t := range tiers {
		a := groups[t]
		out = append(out, RiskSummary{
			RiskTier:       t,
			Clients:        a.n,
			AverageBalance: a.balance / float64(a.n),
			AverageIncome:  a.income / float64(a.n),
		})
	}
	return out
}

func toBuckets(counts map[string]int) []Bucket {
	buckets := make([]Bucket, 0, len(counts))
	for label, n := range counts {
		buckets = append(buckets, Bucket{Label: label, Count: n})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Label < buckets[j].Label
	})
	return buckets
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
