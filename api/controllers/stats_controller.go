/*
 * @module api/controllers/stats_controller
 * @description 统计控制器，提供仪表盘指标、分布、交叉表与 Excel 报告接口
 * @architecture MVC架构 - 控制器层
 * @documentReference DESIGN.md
 * @stateFlow 请求 -> 加载客户视图 -> 纯函数统计 -> 响应
 * @rules 空库返回零值而非错误；报告在无数据时返回 404
 * @dependencies github.com/go-chi/render
 * @refs service/statistics/stats.go, service/statistics/report.go
 */

package controllers

import (
	"bytes"
	"clientrisk-service/service/models"
	"clientrisk-service/service/statistics"
	"fmt"
	"net/http"
	"time"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// StatsController 统计控制器
type StatsController struct {
	engine *statistics.Engine
}

// NewStatsController 创建统计控制器实例
func NewStatsController(deps Dependencies) *StatsController {
	return &StatsController{engine: deps.Stats}
}

// serve 加载客户视图并输出 compute 的结果
func (c *StatsController) serve(w http.ResponseWriter, r *http.Request, compute func([]models.ClientView) interface{}) {
	views, err := c.engine.Load(r.Context())
	if err != nil {
		respond(w, r, InternalErrorResponse("加载统计数据失败", err))
		return
	}
	respond(w, r, SuccessResponse("获取成功", compute(views)))
}

// KPIs 仪表盘指标
// @Summary 仪表盘指标
// @Tags 统计
// @Produce json
// @Success 200 {object} APIResponse{data=statistics.KPIs}
// @Router /stats/kpis [get]
func (c *StatsController) KPIs(w http.ResponseWriter, r *http.Request) {
	c.serve(w, r, func(v []models.ClientView) interface{} { return statistics.ComputeKPIs(v) })
}

// Insights 评分方差与年龄中位数
// @Summary 统计洞察
// @Tags 统计
// @Produce json
// @Success 200 {object} APIResponse{data=statistics.Insights}
// @Router /stats/insights [get]
func (c *StatsController) Insights(w http.ResponseWriter, r *http.Request) {
	c.serve(w, r, func(v []models.ClientView) interface{} { return statistics.ComputeInsights(v) })
}

// AgeDistribution 年龄分布
// @Summary 年龄分布
// @Tags 统计
// @Produce json
// @Success 200 {object} APIResponse{data=[]int}
// @Router /stats/age-distribution [get]
func (c *StatsController) AgeDistribution(w http.ResponseWriter, r *http.Request) {
	c.serve(w, r, func(v []models.ClientView) interface{} { return statistics.AgeDistribution(v) })
}

// Segments 分群分布
// @Summary 分群分布
// @Tags 统计
// @Produce json
// @Success 200 {object} APIResponse{data=[]statistics.Bucket}
// @Router /stats/segments [get]
func (c *StatsController) Segments(w http.ResponseWriter, r *http.Request) {
	c.serve(w, r, func(v []models.ClientView) interface{} { return statistics.SegmentDistribution(v) })
}

// Regions 地区分布
// @Summary 地区分布
// @Tags 统计
// @Produce json
// @Success 200 {object} APIResponse{data=[]statistics.Bucket}
// @Router /stats/regions [get]
func (c *StatsController) Regions(w http.ResponseWriter, r *http.Request) {
	c.serve(w, r, func(v []models.ClientView) interface{} { return statistics.RegionDistribution(v) })
}

// Crosstab 地区与分群交叉表
// @Summary 地区分群交叉表
// @Tags 统计
// @Produce json
// @Success 200 {object} APIResponse{data=statistics.Crosstab}
// @Router /stats/crosstab [get]
func (c *StatsController) Crosstab(w http.ResponseWriter, r *http.Request) {
	c.serve(w, r, func(v []models.ClientView) interface{} { return statistics.RegionSegmentCrosstab(v) })
}

// Scatter 年龄-余额散点
// @Summary 年龄余额散点
// @Tags 统计
// @Produce json
// @Success 200 {object} APIResponse{data=[]statistics.Point}
// @Router /stats/scatter [get]
func (c *StatsController) Scatter(w http.ResponseWriter, r *http.Request) {
	c.serve(w, r, func(v []models.ClientView) interface{} { return statistics.ScatterAgeBalance(v) })
}

// TenureSeries 客户年限序列
// @Summary 年限序列
// @Tags 统计
// @Produce json
// @Success 200 {object} APIResponse{data=[]statistics.TenurePoint}
// @Router /stats/tenure-series [get]
func (c *StatsController) TenureSeries(w http.ResponseWriter, r *http.Request) {
	c.serve(w, r, func(v []models.ClientView) interface{} { return statistics.TenureSeries(v) })
}

// RiskBreakdown 各风险等级汇总
// @Summary 风险等级汇总
// @Tags 统计
// @Produce json
// @Success 200 {object} APIResponse{data=[]statistics.RiskSummary}
// @Router /stats/risk [get]
func (c *StatsController) RiskBreakdown(w http.ResponseWriter, r *http.Request) {
	c.serve(w, r, func(v []models.ClientView) interface{} { return statistics.RiskBreakdown(v) })
}

// Report 下载 Excel 报告
// @Summary Excel 报告
// @Tags 统计
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Failure 404 {object} APIResponse
// @Router /stats/report [get]
func (c *StatsController) Report(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := c.engine.WriteReport(r.Context(), &buf); err != nil {
		respond(w, r, ErrorResponse("生成报告失败", err))
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="rapport_risque_%s.xlsx"`, time.Now().Format("20060102")))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
