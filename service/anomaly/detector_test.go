package anomaly

import (
	"clientrisk-service/service/models"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func population(n int, seed int64) []Features {
	rng := rand.New(rand.NewSource(seed))
	out := make([]Features, n)
	for i := range out {
		out[i] = Features{
			models.FieldBalance:   1000 + rng.NormFloat64()*100,
			models.FieldAge:       40 + rng.NormFloat64()*5,
			models.FieldIncome:    2500 + rng.NormFloat64()*200,
			models.FieldBaseScore: 500 + rng.NormFloat64()*20,
		}
	}
	return out
}

func TestPredictByRules(t *testing.T) {
	d := NewDetector(DefaultForestConfig())
	require.False(t, d.Trained())

	testCases := []struct {
		name      string
		features  Features
		isAnomaly bool
		score     float64
	}{
		{
			name:      "单项违规不判定为异常",
			features:  Features{models.FieldBalance: -50, models.FieldAge: 30, models.FieldBaseScore: 600},
			isAnomaly: false,
			score:     -1,
		},
		{
			name:      "两项违规判定为异常",
			features:  Features{models.FieldBalance: -50, models.FieldAge: 150, models.FieldBaseScore: 600},
			isAnomaly: true,
			score:     -2,
		},
		{
			name:      "三项违规",
			features:  Features{models.FieldBalance: -1, models.FieldAge: 101, models.FieldBaseScore: 299},
			isAnomaly: true,
			score:     -3,
		},
		{
			name:      "缺失特征使用字段默认值",
			features:  Features{},
			isAnomaly: false,
			score:     0,
		},
		{
			name:      "边界值不违规",
			features:  Features{models.FieldBalance: 0, models.FieldAge: 100, models.FieldBaseScore: 300},
			isAnomaly: false,
			score:     0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := d.Predict(tc.features)
			assert.Equal(t, ModeRules, p.Mode)
			assert.Equal(t, tc.isAnomaly, p.IsAnomaly)
			assert.Equal(t, tc.score, p.AnomalyScore)
			assert.NoError(t, p.Err)
		})
	}
}

func TestTrainFailures(t *testing.T) {
	d := NewDetector(DefaultForestConfig())

	err := d.Train(nil)
	assert.ErrorIs(t, err, ErrEmptyPopulation)
	assert.False(t, d.Trained())

	require.NoError(t, d.Train(population(50, 1)))
	require.True(t, d.Trained())

	// 只有一个特征时回到未训练状态
	err = d.Train([]Features{{models.FieldBalance: 1}, {models.FieldBalance: 2}, {"unrelated": 3}})
	assert.ErrorIs(t, err, ErrInsufficientFeatures)
	assert.False(t, d.Trained())
	assert.Nil(t, d.FeatureOrder())
	assert.Equal(t, ModeRules, d.Predict(Features{}).Mode)
}

func TestTrainRecordsFeatureOrder(t *testing.T) {
	d := NewDetector(DefaultForestConfig())

	// 特征只要在任一记录中出现即视为存在
	pop := []Features{
		{models.FieldBaseScore: 500, models.FieldAge: 30},
		{models.FieldAge: 40},
		{models.FieldAge: 50, models.FieldBaseScore: 450},
	}
	require.NoError(t, d.Train(pop))
	assert.Equal(t, []string{models.FieldAge, models.FieldBaseScore}, d.FeatureOrder())

	status := d.Status()
	assert.True(t, status.Trained)
	assert.Equal(t, 3, status.Samples)
}

func TestTrainedPredict(t *testing.T) {
	d := NewDetector(DefaultForestConfig())
	pop := population(500, 7)
	require.NoError(t, d.Train(pop))

	t.Run("明显离群点判定为异常", func(t *testing.T) {
		p := d.Predict(Features{
			models.FieldBalance:   -50000,
			models.FieldAge:       99,
			models.FieldIncome:    90000,
			models.FieldBaseScore: 5,
		})
		assert.Equal(t, ModeModel, p.Mode)
		assert.True(t, p.IsAnomaly)
		assert.Less(t, p.AnomalyScore, 0.0)
	})

	t.Run("中心点判定为正常", func(t *testing.T) {
		p := d.Predict(Features{
			models.FieldBalance:   1000,
			models.FieldAge:       40,
			models.FieldIncome:    2500,
			models.FieldBaseScore: 500,
		})
		assert.Equal(t, ModeModel, p.Mode)
		assert.False(t, p.IsAnomaly)
		assert.Greater(t, p.AnomalyScore, 0.0)
	})

	t.Run("约5%的训练样本被判定为异常", func(t *testing.T) {
		outliers := 0
		for _, f := range pop {
			if d.Predict(f).IsAnomaly {
				outliers++
			}
		}
		assert.InDelta(t, 25, outliers, 5)
	})

	t.Run("缺失全部特征仍返回判定", func(t *testing.T) {
		p := d.Predict(Features{})
		assert.Equal(t, ModeModel, p.Mode)
		assert.NoError(t, p.Err)
		assert.False(t, math.IsNaN(p.AnomalyScore))
	})

	t.Run("非有限特征降级为中性判定", func(t *testing.T) {
		p := d.Predict(Features{models.FieldBalance: math.Inf(1)})
		assert.True(t, p.Degraded())
		assert.Error(t, p.Err)
		assert.False(t, p.IsAnomaly)
		assert.Equal(t, 0.0, p.AnomalyScore)
	})
}

func TestTrainingIsDeterministic(t *testing.T) {
	pop := population(300, 3)
	probe := Features{models.FieldBalance: 1500, models.FieldAge: 55, models.FieldIncome: 2000, models.FieldBaseScore: 450}

	a := NewDetector(DefaultForestConfig())
	b := NewDetector(DefaultForestConfig())
	require.NoError(t, a.Train(pop))
	require.NoError(t, b.Train(pop))

	assert.Equal(t, a.Predict(probe).AnomalyScore, b.Predict(probe).AnomalyScore)
}

func TestTrainSingleRecord(t *testing.T) {
	d := NewDetector(DefaultForestConfig())
	require.NoError(t, d.TrainFromClients([]models.Client{{Age: 40, Balance: 10, Income: 5, BaseScore: 500}}))

	p := d.Predict(Features{models.FieldAge: 40})
	assert.Equal(t, ModeModel, p.Mode)
	assert.False(t, math.IsNaN(p.AnomalyScore))
}

func TestConcurrentPredictDuringRetrain(t *testing.T) {
	d := NewDetector(DefaultForestConfig())
	require.NoError(t, d.Train(population(200, 11)))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				p := d.Predict(Features{models.FieldBalance: float64(i), models.FieldAge: 40})
				if p.Degraded() {
					errs <- p.Err
					return
				}
			}
		}()
	}

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Train(population(100+i*20, int64(i))))
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.True(t, d.Trained())
}
