/*
 * @module api/controllers/client_controller
 * @description 客户与交易控制器，提供客户查询、增删改、清空、导出以及交易流水接口
 * @architecture MVC架构 - 控制器层
 * @documentReference DESIGN.md
 * @stateFlow 请求 -> 参数校验 -> 存储 -> 批处理锁内重算评分 -> 响应
 * @rules 手工录入的客户需满足业务边界；写入后经 Pipeline.RecomputeScores 重算评分，不绕过批处理锁
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/database/store.go, service/pipeline/pipeline.go
 */

package controllers

import (
	"bytes"
	"clientrisk-service/service/database"
	"clientrisk-service/service/models"
	"clientrisk-service/service/pipeline"
	"clientrisk-service/service/statistics"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/spf13/cast"
)

const dateLayout = "2006-01-02"

// ClientController 客户与交易控制器
type ClientController struct {
	store    *database.Store
	pipeline *pipeline.Pipeline
}

// NewClientController 创建控制器实例
func NewClientController(deps Dependencies) *ClientController {
	return &ClientController{store: deps.Store, pipeline: deps.Pipeline}
}

// ClientRequest 新增/修改客户请求
type ClientRequest struct {
	Name        string   `json:"name" example:"Jean Dupont"`
	Age         int      `json:"age" example:"42"`
	Gender      string   `json:"gender" example:"M"`
	Balance     float64  `json:"balance" example:"2500"`
	Income      float64  `json:"income" example:"3200"`
	Region      string   `json:"region" example:"Bretagne"`
	Segment     string   `json:"segment" example:"Standard"`
	TenureYears int      `json:"tenure_years" example:"5"`
	BaseScore   *float64 `json:"base_score,omitempty" example:"650"`
}

func (req ClientRequest) toClient() models.Client {
	client := models.Client{
		Name:        strings.TrimSpace(req.Name),
		Age:         req.Age,
		Gender:      models.Gender(strings.ToUpper(strings.TrimSpace(req.Gender))),
		Balance:     req.Balance,
		Income:      req.Income,
		Region:      strings.TrimSpace(req.Region),
		Segment:     models.Segment(strings.TrimSpace(req.Segment)),
		TenureYears: req.TenureYears,
		BaseScore:   models.DefaultFloat(models.FieldBaseScore),
	}
	if client.Segment == "" {
		client.Segment = models.SegmentStandard
	}
	if req.BaseScore != nil {
		client.BaseScore = *req.BaseScore
	}
	return client
}

// TransactionRequest 新增交易请求
type TransactionRequest struct {
	ClientID uint    `json:"client_id" example:"1"`
	Amount   float64 `json:"amount" example:"-120.5"`
	Date     string  `json:"date,omitempty" example:"2026-10-16"`
}

// List 查询客户列表
// @Summary 客户列表
// @Description 按地区、风险等级与名称过滤，"Toutes"/"Tous"/"All" 视为不过滤
// @Tags 客户
// @Produce json
// @Param region query string false "地区"
// @Param risk query string false "风险等级"
// @Param q query string false "名称关键字"
// @Success 200 {object} APIResponse{data=[]models.ClientView}
// @Router /clients [get]
func (c *ClientController) List(w http.ResponseWriter, r *http.Request) {
	views, err := c.store.ListClientViews(r.Context(), filterFromQuery(r))
	if err != nil {
		respond(w, r, InternalErrorResponse("查询客户失败", err))
		return
	}
	respond(w, r, SuccessResponse("获取成功", views))
}

// Regions 查询地区列表
// @Summary 地区列表
// @Tags 客户
// @Produce json
// @Success 200 {object} APIResponse{data=[]string}
// @Router /clients/regions [get]
func (c *ClientController) Regions(w http.ResponseWriter, r *http.Request) {
	regions, err := c.store.ListRegions(r.Context())
	if err != nil {
		respond(w, r, InternalErrorResponse("查询地区失败", err))
		return
	}
	respond(w, r, SuccessResponse("获取成功", regions))
}

// Get 查询单个客户
// @Summary 客户详情
// @Tags 客户
// @Produce json
// @Param id path int true "客户ID"
// @Success 200 {object} APIResponse{data=models.Client}
// @Failure 404 {object} APIResponse
// @Router /clients/{id} [get]
func (c *ClientController) Get(w http.ResponseWriter, r *http.Request) {
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
	respond(w, r, SuccessResponse("获取成功", client))
}

// Create 新增客户
// @Summary 新增客户
// @Tags 客户
// @Accept json
// @Produce json
// @Param client body ClientRequest true "客户信息"
// @Success 200 {object} APIResponse{data=models.Client}
// @Failure 400 {object} APIResponse
// @Router /clients [post]
func (c *ClientController) Create(w http.ResponseWriter, r *http.Request) {
	var req ClientRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		respond(w, r, BadRequestResponse("请求参数错误", err))
		return
	}

	client := req.toClient()
	if err := client.Validate(); err != nil {
		respond(w, r, BadRequestResponse("客户信息无效", err))
		return
	}
	if err := c.store.AddClient(r.Context(), &client); err != nil {
		respond(w, r, InternalErrorResponse("新增客户失败", err))
		return
	}
	c.rescore(r)

	respond(w, r, SuccessResponse("新增成功", client))
}

// Update 修改客户
// @Summary 修改客户
// @Tags 客户
// @Accept json
// @Produce json
// @Param id path int true "客户ID"
// @Param client body ClientRequest true "客户信息"
// @Success 200 {object} APIResponse{data=models.Client}
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /clients/{id} [put]
func (c *ClientController) Update(w http.ResponseWriter, r *http.Request) {
	id, err := cast.ToUintE(chi.URLParam(r, "id"))
	if err != nil {
		respond(w, r, BadRequestResponse("客户ID无效", err))
		return
	}

	var req ClientRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		respond(w, r, BadRequestResponse("请求参数错误", err))
		return
	}

	client := req.toClient()
	client.ID = id
	if err := client.Validate(); err != nil {
		respond(w, r, BadRequestResponse("客户信息无效", err))
		return
	}
	if err := c.store.UpdateClient(r.Context(), &client); err != nil {
		respond(w, r, ErrorResponse("修改客户失败", err))
		return
	}

	updated, err := c.store.GetClient(r.Context(), id)
	if err != nil {
		respond(w, r, ErrorResponse("查询客户失败", err))
		return
	}
	c.rescore(r)

	respond(w, r, SuccessResponse("修改成功", updated))
}

// Delete 删除客户及其评分与交易
// @Summary 删除客户
// @Tags 客户
// @Produce json
// @Param id path int true "客户ID"
// @Success 200 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /clients/{id} [delete]
func (c *ClientController) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := cast.ToUintE(chi.URLParam(r, "id"))
	if err != nil {
		respond(w, r, BadRequestResponse("客户ID无效", err))
		return
	}
	if err := c.store.DeleteClient(r.Context(), id); err != nil {
		respond(w, r, ErrorResponse("删除客户失败", err))
		return
	}
	respond(w, r, SuccessResponse("删除成功", nil))
}

// DeleteAll 清空全部数据
// @Summary 清空全部客户、评分与交易
// @Tags 客户
// @Produce json
// @Success 200 {object} APIResponse
// @Router /clients [delete]
func (c *ClientController) DeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := c.store.ClearAll(r.Context()); err != nil {
		respond(w, r, InternalErrorResponse("清空数据失败", err))
		return
	}
	slog.Warn("已清空全部客户数据")
	respond(w, r, SuccessResponse("清空成功", nil))
}

// Export 导出客户CSV
// @Summary 导出客户
// @Description 分号分隔、带 BOM 的 CSV，过滤参数同客户列表
// @Tags 客户
// @Produce text/csv
// @Success 200 {file} file
// @Failure 404 {object} APIResponse
// @Router /clients/export [get]
func (c *ClientController) Export(w http.ResponseWriter, r *http.Request) {
	views, err := c.store.ListClientViews(r.Context(), filterFromQuery(r))
	if err != nil {
		respond(w, r, InternalErrorResponse("查询客户失败", err))
		return
	}

	var buf bytes.Buffer
	if err := statistics.WriteClientsCSV(views, &buf); err != nil {
		respond(w, r, ErrorResponse("导出失败", err))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="clients_%s.csv"`, time.Now().Format("20060102")))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// ListTransactions 查询交易流水
// @Summary 交易列表
// @Tags 交易
// @Produce json
// @Param q query string false "客户名称关键字"
// @Success 200 {object} APIResponse{data=[]models.TransactionView}
// @Router /transactions [get]
func (c *ClientController) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txns, err := c.store.ListTransactions(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		respond(w, r, InternalErrorResponse("查询交易失败", err))
		return
	}
	respond(w, r, SuccessResponse("获取成功", txns))
}

// CreateTransaction 新增交易并更新客户余额
// @Summary 新增交易
// @Tags 交易
// @Accept json
// @Produce json
// @Param transaction body TransactionRequest true "交易信息"
// @Success 200 {object} APIResponse{data=models.Transaction}
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /transactions [post]
func (c *ClientController) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		respond(w, r, BadRequestResponse("请求参数错误", err))
		return
	}
	if req.ClientID == 0 {
		respond(w, r, BadRequestResponse("请求参数错误", errors.New("client_id 不能为空")))
		return
	}

	date := time.Now()
	if req.Date != "" {
		parsed, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			respond(w, r, BadRequestResponse("日期格式错误", err))
			return
		}
		date = parsed
	}

	txn := models.Transaction{ClientID: req.ClientID, Amount: req.Amount, Date: date}
	if err := c.store.AddTransaction(r.Context(), &txn); err != nil {
		respond(w, r, ErrorResponse("新增交易失败", err))
		return
	}

	c.rescore(r)
	respond(w, r, SuccessResponse("新增成功", txn))
}

// rescore 在批处理锁内全量重算评分；锁被占用或失败时只记录日志，由下次刷新补齐
func (c *ClientController) rescore(r *http.Request) {
	if _, err := c.pipeline.RecomputeScores(r.Context()); err != nil {
		if errors.Is(err, pipeline.ErrBatchInProgress) {
			slog.Warn("批处理进行中，评分将在下次刷新时更新")
			return
		}
		slog.Error("重算评分失败", "error", err)
	}
}

func filterFromQuery(r *http.Request) database.ClientFilter {
	q := r.URL.Query()
	return database.ClientFilter{
		Region:   q.Get("region"),
		RiskTier: q.Get("risk"),
		Search:   q.Get("q"),
	}
}
