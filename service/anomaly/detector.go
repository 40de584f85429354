/*
 * @module service/anomaly/detector
 * @description 异常检测器：未训练时使用确定性规则，训练后使用标准化 + 孤立森林模型
 * @architecture 分层架构 - 业务计算层
 * @documentReference DESIGN.md
 * @stateFlow untrained --Train(成功)--> trained；Train(失败) --> untrained；Predict 只读当前状态
 * @rules 训练结果整体原子替换，并发预测只会看到完整的旧模型或完整的新模型；Predict 从不向调用方报错
 * @dependencies sync/atomic, math/rand
 * @refs service/pipeline, api/controllers/anomaly_controller.go
 */

package anomaly

import (
	"clientrisk-service/service/metrics"
	"clientrisk-service/service/models"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"
)

var (
	// ErrEmptyPopulation 训练样本为空
	ErrEmptyPopulation = errors.New("训练样本为空")
	// ErrInsufficientFeatures 可用特征少于两个
	ErrInsufficientFeatures = errors.New("可用特征不足")
)

// Mode 预测路径
type Mode string

const (
	ModeRules    Mode = "rules"
	ModeModel    Mode = "model"
	ModeDegraded Mode = "degraded"
)

// 规则回退的阈值
const (
	ruleMaxAge       = models.MaxAge
	ruleMinBaseScore = 300
	ruleThreshold    = -1
)

// Verdict 异常判定
type Verdict struct {
	IsAnomaly    bool    `json:"is_anomaly"`
	AnomalyScore float64 `json:"anomaly_score"`
}

// Prediction 预测结果；Mode 为 degraded 时 Err 记录失败原因，Verdict 为中性值
type Prediction struct {
	Verdict
	Mode Mode  `json:"mode"`
	Err  error `json:"-"`
}

// Degraded 模型路径是否失败并回退为中性判定
func (p Prediction) Degraded() bool {
	return p.Mode == ModeDegraded
}

// state 检测器状态，只有 untrained 与 *trained 两种
type state interface {
	isState()
}

type untrained struct{}

type trained struct {
	featureOrder []string
	scaler       *standardScaler
	forest       *isolationForest
	trainedAt    time.Time
	samples      int
}

func (untrained) isState() {}
func (*trained) isState()  {}

type snapshot struct {
	state state
}

// Status 检测器状态概要
type Status struct {
	Trained      bool      `json:"trained"`
	FeatureOrder []string  `json:"feature_order,omitempty"`
	Samples      int       `json:"samples,omitempty"`
	TrainedAt    time.Time `json:"trained_at,omitempty"`
}

// Detector 异常检测器
type Detector struct {
	cfg     ForestConfig
	current atomic.Pointer[snapshot]
}

// NewDetector 创建未训练的检测器
func NewDetector(cfg ForestConfig) *Detector {
	d := &Detector{cfg: cfg}
	d.current.Store(&snapshot{state: untrained{}})
	return d
}

// Train 在给定样本上训练；失败时检测器回到未训练状态
func (d *Detector) Train(population []Features) error {
	startTime := time.Now()

	next, err := d.fit(population)
	if err != nil {
		d.current.Store(&snapshot{state: untrained{}})
		metrics.SetModelTrained(false)
		slog.Warn("异常检测模型训练失败，回退到规则模式", "samples", len(population), "error", err)
		return err
	}

	d.current.Store(&snapshot{state: next})
	metrics.SetModelTrained(true)
	metrics.ObserveTraining(time.Since(startTime))
	slog.Info("异常检测模型训练完成",
		"samples", next.samples,
		"features", next.featureOrder,
		"duration_ms", time.Since(startTime).Milliseconds())
	return nil
}

// TrainFromClients 使用规范客户记录训练
func (d *Detector) TrainFromClients(clients []models.Client) error {
	return d.Train(FeaturesFromClients(clients))
}

func (d *Detector) fit(population []Features) (*trained, error) {
	if len(population) == 0 {
		return nil, ErrEmptyPopulation
	}

	order := selectFeatures(population)
	if len(order) < MinFeatures {
		return nil, fmt.Errorf("%w: 需要至少 %d 个, 实际 %v", ErrInsufficientFeatures, MinFeatures, order)
	}

	matrix := buildMatrix(population, order)
	scaler := fitScaler(matrix)
	scaled, err := scaler.transformAll(matrix)
	if err != nil {
		return nil, fmt.Errorf("特征标准化失败: %w", err)
	}

	return &trained{
		featureOrder: order,
		scaler:       scaler,
		forest:       fitForest(scaled, d.cfg),
		trainedAt:    time.Now(),
		samples:      len(population),
	}, nil
}

// Predict 对单条记录做异常判定，从不返回错误
func (d *Detector) Predict(features Features) Prediction {
	var p Prediction
	switch st := d.current.Load().state.(type) {
	case *trained:
		p = st.predict(features)
	default:
		p = predictByRules(features)
	}

	metrics.IncPrediction(string(p.Mode), p.IsAnomaly)
	if p.Err != nil {
		slog.Warn("异常检测模型预测失败，返回中性判定", "error", p.Err)
	}
	return p
}

// Trained 是否已有可用模型
func (d *Detector) Trained() bool {
	_, ok := d.current.Load().state.(*trained)
	return ok
}

// FeatureOrder 训练时记录的特征顺序，未训练时为空
func (d *Detector) FeatureOrder() []string {
	st, ok := d.current.Load().state.(*trained)
	if !ok {
		return nil
	}
	order := make([]string, len(st.featureOrder))
	copy(order, st.featureOrder)
	return order
}

// Status 返回检测器状态概要
func (d *Detector) Status() Status {
	st, ok := d.current.Load().state.(*trained)
	if !ok {
		return Status{}
	}
	return Status{
		Trained:      true,
		FeatureOrder: d.FeatureOrder(),
		Samples:      st.samples,
		TrainedAt:    st.trainedAt,
	}
}

// predictByRules 未训练时的确定性规则：余额为负、年龄超过100、初始分低于300 各扣 1 分，
// 至少两项违规判定为异常
func predictByRules(f Features) Prediction {
	ruleScore := 0
	if f.valueOr(models.FieldBalance, models.DefaultFloat(models.FieldBalance)) < 0 {
		ruleScore--
	}
	if f.valueOr(models.FieldAge, models.DefaultFloat(models.FieldAge)) > ruleMaxAge {
		ruleScore--
	}
	if f.valueOr(models.FieldBaseScore, models.DefaultFloat(models.FieldBaseScore)) < ruleMinBaseScore {
		ruleScore--
	}
	return Prediction{
		Verdict: Verdict{IsAnomaly: ruleScore < ruleThreshold, AnomalyScore: float64(ruleScore)},
		Mode:    ModeRules,
	}
}

func (t *trained) predict(f Features) (p Prediction) {
	defer func() {
		if r := recover(); r != nil {
			p = degraded(fmt.Errorf("模型预测异常: %v", r))
		}
	}()

	vec := make([]float64, len(t.featureOrder))
	for j, name := range t.featureOrder {
		v, ok := f[name]
		if !ok {
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return degraded(fmt.Errorf("特征 %s 取值非有限: %v", name, v))
		}
		vec[j] = v
	}

	scaled, err := t.scaler.transform(vec)
	if err != nil {
		return degraded(err)
	}

	decision := t.forest.decision(scaled)
	return Prediction{
		Verdict: Verdict{IsAnomaly: decision < 0, AnomalyScore: decision},
		Mode:    ModeModel,
	}
}

func degraded(err error) Prediction {
	return Prediction{Mode: ModeDegraded, Err: err}
}
