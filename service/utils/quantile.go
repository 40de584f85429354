/**
 * @module quantile
 * @description 数值统计工具：线性插值分位数与中位数，供清洗、异常检测与统计模块共用
 * @architecture 工具函数模式，无状态纯函数
 * @documentReference DESIGN.md
 * @stateFlow 无状态计算：输入切片 -> 排序副本 -> 插值结果
 * @rules
 *   - 不修改调用方传入的切片
 *   - 空输入不报错：Quantile 返回 0，Median 返回 false
 * @dependencies
 *   - math, sort
 * @refs
 *   - service/cleaning/columns.go
 *   - service/anomaly/forest.go
 *   - service/statistics/stats.go
 */

package utils

import (
	"math"
	"sort"
)

// Quantile 线性插值分位数，sorted 必须已升序排列
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// Median 中位数，空输入返回 false
func Median(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	return Quantile(SortedCopy(values), 0.5), true
}

// SortedCopy 返回升序排列的副本
func SortedCopy(values []float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted
}
