/*
 * @module api/controllers/anomaly_controller
 * @description 评分与异常检测控制器，提供评分重算、模型训练、状态查询与预测接口
 * @architecture MVC架构 - 控制器层
 * @documentReference DESIGN.md
 * @stateFlow 请求 -> 批处理编排器/检测器 -> 响应
 * @rules 训练与重算经批处理锁串行；预测只读检测器快照，不持有锁
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/pipeline/pipeline.go, service/anomaly/detector.go
 */

package controllers

import (
	"clientrisk-service/service/anomaly"
	"clientrisk-service/service/database"
	"clientrisk-service/service/pipeline"
	"fmt"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/spf13/cast"
)

// AnomalyController 评分与异常检测控制器
type AnomalyController struct {
	pipeline *pipeline.Pipeline
	detector *anomaly.Detector
	store    *database.Store
}

// NewAnomalyController 创建控制器实例
func NewAnomalyController(deps Dependencies) *AnomalyController {
	return &AnomalyController{pipeline: deps.Pipeline, detector: deps.Detector, store: deps.Store}
}

// PredictionResponse 预测结果
type PredictionResponse struct {
	ClientID     uint         `json:"client_id,omitempty"`
	IsAnomaly    bool         `json:"is_anomaly"`
	AnomalyScore float64      `json:"anomaly_score"`
	Mode         anomaly.Mode `json:"mode"`
	Error        string       `json:"error,omitempty"`
}

func newPredictionResponse(p anomaly.Prediction) PredictionResponse {
	resp := PredictionResponse{IsAnomaly: p.IsAnomaly, AnomalyScore: p.AnomalyScore, Mode: p.Mode}
	if p.Err != nil {
		resp.Error = p.Err.Error()
	}
	return resp
}

// RecomputeScores 重算全部客户评分
// @Summary 重算评分
// @Tags 评分
// @Produce json
// @Success 200 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Router /scores/recompute [post]
func (c *AnomalyController) RecomputeScores(w http.ResponseWriter, r *http.Request) {
	n, err := c.pipeline.RecomputeScores(r.Context())
	if err != nil {
		respond(w, r, ErrorResponse("重算评分失败", err))
		return
	}
	respond(w, r, SuccessResponse("重算评分完成", map[string]int{"scored": n}))
}

// Refresh 重算评分并重训模型
// @Summary 刷新
// @Tags 评分
// @Produce json
// @Success 200 {object} APIResponse{data=pipeline.RefreshResult}
// @Failure 409 {object} APIResponse
// @Router /pipeline/refresh [post]
func (c *AnomalyController) Refresh(w http.ResponseWriter, r *http.Request) {
	result, err := c.pipeline.Refresh(r.Context())
	if err != nil {
		respond(w, r, ErrorResponse("刷新失败", err))
		return
	}
	respond(w, r, SuccessResponse("刷新完成", result))
}

// Train 在当前客户数据上重训模型
// @Summary 训练异常检测模型
// @Tags 异常检测
// @Produce json
// @Success 200 {object} APIResponse{data=anomaly.Status}
// @Failure 400 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Router /anomaly/train [post]
func (c *AnomalyController) Train(w http.ResponseWriter, r *http.Request) {
	status, err := c.pipeline.Retrain(r.Context())
	if err != nil {
		respond(w, r, ErrorResponse("训练失败", err))
		return
	}
	respond(w, r, SuccessResponse("训练完成", status))
}

// Status 查询检测器状态
// @Summary 检测器状态
// @Tags 异常检测
// @Produce json
// @Success 200 {object} APIResponse{data=anomaly.Status}
// @Router /anomaly/status [get]
func (c *AnomalyController) Status(w http.ResponseWriter, r *http.Request) {
	respond(w, r, SuccessResponse("获取成功", c.detector.Status()))
}

// Predict 对任意特征取值进行预测
// @Summary 异常预测
// @Description 请求体为特征名到数值的映射，如 {"balance": -50, "age": 150}
// @Tags 异常检测
// @Accept json
// @Produce json
// @Success 200 {object} APIResponse{data=PredictionResponse}
// @Failure 400 {object} APIResponse
// @Router /anomaly/predict [post]
func (c *AnomalyController) Predict(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		respond(w, r, BadRequestResponse("请求参数错误", err))
		return
	}

	features := anomaly.Features{}
	for name, raw := range body {
		if !slices.Contains(anomaly.CandidateFeatures, name) {
			respond(w, r, BadRequestResponse("请求参数错误", fmt.Errorf("未知特征: %s", name)))
			return
		}
		v, err := cast.ToFloat64E(raw)
		if err != nil {
			respond(w, r, BadRequestResponse("请求参数错误", fmt.Errorf("特征 %s 不是数值: %w", name, err)))
			return
		}
		features[name] = v
	}

	respond(w, r, SuccessResponse("预测完成", newPredictionResponse(c.detector.Predict(features))))
}

// PredictClient 对已存客户进行预测
// @Summary 客户异常预测
// @Tags 异常检测
// @Produce json
// @Param id path int true "客户ID"
// @Success 200 {object} APIResponse{data=PredictionResponse}
// @Failure 404 {object} APIResponse
// @Router /anomaly/clients/{id} [get]
func (c *AnomalyController) PredictClient(w http.ResponseWriter, r *http.Request) {
	id, err := cast.ToUintE(chi.URLParam(r, "id"))
	if err != nil {
		respond(w, r, BadRequestResponse("客户ID无效", err))
		return
	}

	client, err := c.store.GetClient(r.Context(), id)
	if err != nil {
		respond(w, r, ErrorResponse("查询客户失败", err))
		return
	}

	resp := newPredictionResponse(c.detector.Predict(anomaly.FeaturesFromClient(*client)))
	resp.ClientID = client.ID
	respond(w, r, SuccessResponse("预测完成", resp))
}
