package anomaly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAveragePathLength(t *testing.T) {
	assert.Equal(t, 0.0, averagePathLength(0))
	assert.Equal(t, 0.0, averagePathLength(1))
	assert.Equal(t, 1.0, averagePathLength(2))
	assert.InDelta(t, 10.244772, averagePathLength(256), 1e-4)
}

func TestFitScaler(t *testing.T) {
	s := fitScaler([][]float64{{1, 5}, {3, 5}})
	assert.Equal(t, []float64{2, 5}, s.Mean)
	assert.Equal(t, []float64{1, 1}, s.Scale)

	out, err := s.transform([]float64{3, 7})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, out)

	_, err = s.transform([]float64{1})
	assert.Error(t, err)
}

func TestForestIsolatesOutlier(t *testing.T) {
	data := make([][]float64, 0, 101)
	for i := 0; i < 100; i++ {
		data = append(data, []float64{float64(i%10) * 0.1, float64(i/10) * 0.1})
	}
	data = append(data, []float64{50, 50})

	f := fitForest(data, DefaultForestConfig())
	require.Len(t, f.trees, 100)

	assert.Less(t, f.decision([]float64{50, 50}), 0.0)
	assert.Less(t, f.scoreSamples([]float64{50, 50}), f.scoreSamples([]float64{0.5, 0.5}))
}

func TestForestConstantData(t *testing.T) {
	data := [][]float64{{1, 1}, {1, 1}, {1, 1}}
	f := fitForest(data, DefaultForestConfig())

	// 无法切分时所有样本得分相同，不判定为异常
	assert.Equal(t, 0.0, f.decision([]float64{1, 1}))
}
