/*
 * @module service/utils/quantile_test
 * @description 分位数工具函数单元测试
 * @architecture 测试层 - 纯函数测试，无外部依赖
 * @documentReference DESIGN.md
 * @stateFlow 输入参数 -> 函数调用 -> 输出验证
 * @rules 确保插值结果与边界处理正确
 * @dependencies testing, testify
 * @refs quantile.go
 */

package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.75, Quantile(sorted, 0.25), 1e-9)
	assert.InDelta(t, 3.25, Quantile(sorted, 0.75), 1e-9)
	assert.Equal(t, 1.0, Quantile(sorted, 0))
	assert.Equal(t, 4.0, Quantile(sorted, 1))
	assert.Equal(t, 7.0, Quantile([]float64{7}, 0.3))
	assert.Zero(t, Quantile(nil, 0.5))
}

func TestMedian(t *testing.T) {
	values := []float64{5, 1, 3}
	med, ok := Median(values)
	require.True(t, ok)
	assert.Equal(t, 3.0, med)
	assert.Equal(t, []float64{5, 1, 3}, values, "不修改输入")

	med, ok = Median([]float64{4, 1, 3, 2})
	require.True(t, ok)
	assert.Equal(t, 2.5, med)

	_, ok = Median(nil)
	assert.False(t, ok)
}
