/*
 * @module service/metrics/metrics
 * @description Prometheus 指标定义：清洗入库、评分重算、异常检测
 * @architecture 基础设施层 - 可观测性
 * @documentReference DESIGN.md
 * @stateFlow 业务组件 -> 指标采集 -> /metrics 暴露
 * @rules 指标在包初始化时注册一次；标签取值必须是有限集合
 * @dependencies github.com/prometheus/client_golang
 * @refs main.go
 */

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rowsCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clientrisk_cleaning_rows_committed_total",
		Help: "Canonical client records committed by the cleaner",
	})

	rowsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clientrisk_cleaning_rows_dropped_total",
		Help: "Raw rows dropped by the cleaner by reason",
	}, []string{"reason"}) // reason: "duplicate", "ghost"

	scoresComputed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clientrisk_scoring_scores_computed_total",
		Help: "Scores computed by risk tier",
	}, []string{"tier"})

	predictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clientrisk_anomaly_predictions_total",
		Help: "Anomaly predictions by mode and outcome",
	}, []string{"mode", "outcome"})

	trainingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "clientrisk_anomaly_training_duration_seconds",
		Help:    "Duration of anomaly model training",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	modelTrained = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "clientrisk_anomaly_model_trained",
		Help: "1 when the statistical anomaly model is trained, 0 in rule-based mode",
	})

	batchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clientrisk_batch_duration_seconds",
		Help:    "Duration of full-dataset batch operations",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"operation"}) // operation: "import", "refresh", "retrain", "recompute"
)

// AddRowsCommitted 记录入库行数
func AddRowsCommitted(n int) {
	rowsCommitted.Add(float64(n))
}

// AddRowsDropped 记录被丢弃的行数
func AddRowsDropped(reason string, n int) {
	if n > 0 {
		rowsDropped.WithLabelValues(reason).Add(float64(n))
	}
}

// IncScoreComputed 记录一次评分
func IncScoreComputed(tier string) {
	scoresComputed.WithLabelValues(tier).Inc()
}

// IncPrediction 记录一次异常预测
func IncPrediction(mode string, anomaly bool) {
	outcome := "normal"
	if anomaly {
		outcome = "anomaly"
	}
	predictions.WithLabelValues(mode, outcome).Inc()
}

// ObserveTraining 记录训练耗时
func ObserveTraining(d time.Duration) {
	trainingDuration.Observe(d.Seconds())
}

// SetModelTrained 设置模型训练状态
func SetModelTrained(trained bool) {
	if trained {
		modelTrained.Set(1)
		return
	}
	modelTrained.Set(0)
}

// ObserveBatch 记录批处理耗时
func ObserveBatch(operation string, d time.Duration) {
	batchDuration.WithLabelValues(operation).Observe(d.Seconds())
}
