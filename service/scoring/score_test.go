package scoring

import (
	"clientrisk-service/service/models"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeScore(t *testing.T) {
	testCases := []struct {
		name     string
		client   models.Client
		expected int
	}{
		{
			name:     "基准客户",
			client:   models.Client{BaseScore: 500, Age: 60},
			expected: 500,
		},
		{
			name:     "余额贡献取对数后截断",
			client:   models.Client{BaseScore: 500, Age: 30, Balance: 2500},
			expected: 516,
		},
		{
			name:     "负余额不贡献且不报错",
			client:   models.Client{BaseScore: 500, Age: 60, Balance: -1e6},
			expected: 500,
		},
		{
			name:     "客户年限加分",
			client:   models.Client{BaseScore: 500, Age: 60, TenureYears: 10},
			expected: 512,
		},
		{
			name:     "上限1000",
			client:   models.Client{BaseScore: 1000, Age: 18, Balance: 1e9, TenureYears: 100},
			expected: 1000,
		},
		{
			name:     "下限0",
			client:   models.Client{BaseScore: 0, Age: 100},
			expected: 0,
		},
		{
			name:     "非有限初始分",
			client:   models.Client{BaseScore: math.NaN(), Age: 40},
			expected: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ComputeScore(tc.client))
		})
	}
}

func TestComputeScoreBounded(t *testing.T) {
	for _, base := range []float64{-5000, 0, 300, 500, 999, 5000} {
		for _, age := range []int{models.MinAge, 45, models.MaxAge} {
			for _, balance := range []float64{-1e9, -1, 0, 1, 1e12} {
				score := ComputeScore(models.Client{BaseScore: base, Age: age, Balance: balance, TenureYears: 7})
				assert.GreaterOrEqual(t, score, models.MinFinalScore)
				assert.LessOrEqual(t, score, models.MaxFinalScore)
			}
		}
	}
}

func TestClassifyRisk(t *testing.T) {
	assert.Equal(t, models.RiskTierLow, ClassifyRisk(1000))
	assert.Equal(t, models.RiskTierLow, ClassifyRisk(750))
	assert.Equal(t, models.RiskTierMedium, ClassifyRisk(749))
	assert.Equal(t, models.RiskTierMedium, ClassifyRisk(500))
	assert.Equal(t, models.RiskTierHigh, ClassifyRisk(499))
	assert.Equal(t, models.RiskTierHigh, ClassifyRisk(0))
}

func TestClassifyRiskMonotonic(t *testing.T) {
	rank := map[models.RiskTier]int{
		models.RiskTierHigh:   0,
		models.RiskTierMedium: 1,
		models.RiskTierLow:    2,
	}
	prev := rank[ClassifyRisk(models.MinFinalScore)]
	for score := models.MinFinalScore + 1; score <= models.MaxFinalScore; score++ {
		cur := rank[ClassifyRisk(score)]
		assert.GreaterOrEqual(t, cur, prev, "score %d", score)
		prev = cur
	}
}
