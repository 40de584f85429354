/*
 * @module api/controllers/health_controller
 * @description 健康检查控制器，提供服务存活与就绪状态检查
 * @architecture MVC架构 - 控制器层
 * @documentReference DESIGN.md
 * @stateFlow HTTP请求处理流程
 * @rules 存活检查不访问外部依赖；就绪检查需要数据库可用
 * @dependencies net/http
 * @refs service/database/store.go
 */

package controllers

import (
	"clientrisk-service/service/anomaly"
	"clientrisk-service/service/database"
	"net/http"
	"time"

	"github.com/go-chi/render"
)

// HealthController 健康检查控制器
type HealthController struct {
	store    *database.Store
	detector *anomaly.Detector
	version  string
}

// NewHealthController 创建健康检查控制器实例
func NewHealthController(deps Dependencies) *HealthController {
	return &HealthController{store: deps.Store, detector: deps.Detector, version: deps.Version}
}

// HealthResponse 健康检查响应结构
type HealthResponse struct {
	Status       string    `json:"status" example:"ok"`
	Timestamp    time.Time `json:"timestamp" example:"2024-01-01T00:00:00Z"`
	Version      string    `json:"version" example:"1.0.0"`
	Service      string    `json:"service" example:"clientrisk-service"`
	ModelTrained *bool     `json:"model_trained,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// Health 健康检查
// @Summary 健康检查
// @Tags 系统
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (c *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   c.version,
		Service:   "clientrisk-service",
	})
}

// Ready 就绪检查
// @Summary 就绪检查
// @Description 数据库可用时返回 ready，否则返回 503
// @Tags 系统
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /ready [get]
func (c *HealthController) Ready(w http.ResponseWriter, r *http.Request) {
	trained := c.detector.Trained()
	response := HealthResponse{
		Status:       "ready",
		Timestamp:    time.Now(),
		Version:      c.version,
		Service:      "clientrisk-service",
		ModelTrained: &trained,
	}

	if err := c.store.Ping(r.Context()); err != nil {
		response.Status = "unavailable"
		response.Error = err.Error()
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, response)
}
