/*
 * @module api/routes
 * @description API路由配置模块，负责初始化和配置所有HTTP路由
 * @architecture RESTful API架构
 * @documentReference DESIGN.md
 * @stateFlow 无状态HTTP请求处理
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/cors, github.com/go-chi/render
 * @refs api/controllers, service/init.go
 */

package api

import (
	"clientrisk-service/api/controllers"
	apimw "clientrisk-service/api/middleware"
	"clientrisk-service/service"
	"clientrisk-service/service/config"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
)

// InitRoute 使用已初始化的全局服务注册全部路由
func InitRoute(r *chi.Mux) {
	cfg := service.GlobalConfig
	Register(r, controllers.Dependencies{
		Store:    service.GlobalStore,
		Pipeline: service.GlobalPipeline,
		Detector: service.GlobalDetector,
		Stats:    service.GlobalStatsEngine,
		Import:   cfg.Import,
		Version:  cfg.App.Version,

		RateLimiter: service.GlobalRateLimiter,
	}, cfg.Server.CORS)
}

// Register 注册中间件与路由
func Register(r chi.Router, deps controllers.Dependencies, corsCfg config.CORSConfig) {
	// 基础中间件
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// CORS配置
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsCfg.AllowedOrigins,
		AllowedMethods:   corsCfg.AllowedMethods,
		AllowedHeaders:   corsCfg.AllowedHeaders,
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 健康检查
	healthController := controllers.NewHealthController(deps)
	r.Get("/health", healthController.Health)
	r.Get("/ready", healthController.Ready)

	// 文件导入
	r.Route("/imports", func(r chi.Router) {
		if deps.RateLimiter != nil && deps.Import.RateLimitPerMinute > 0 {
			r.Use(apimw.RateLimit(deps.RateLimiter, "imports", deps.Import.RateLimitPerMinute, time.Minute))
		}
		importController := controllers.NewImportController(deps)
		r.Post("/", importController.Import)
		r.Post("/audit", importController.Audit)
	})

	anomalyController := controllers.NewAnomalyController(deps)

	// 评分与批处理
	r.Post("/scores/recompute", anomalyController.RecomputeScores)
	r.Post("/pipeline/refresh", anomalyController.Refresh)

	// 异常检测
	r.Route("/anomaly", func(r chi.Router) {
		r.Post("/train", anomalyController.Train)
		r.Get("/status", anomalyController.Status)
		r.Post("/predict", anomalyController.Predict)
		r.Get("/clients/{id}", anomalyController.PredictClient)
	})

	clientController := controllers.NewClientController(deps)

	// 客户管理
	r.Route("/clients", func(r chi.Router) {
		r.Get("/", clientController.List)
		r.Post("/", clientController.Create)
		r.Delete("/", clientController.DeleteAll)
		r.Get("/regions", clientController.Regions)
		r.Get("/export", clientController.Export)
		r.Get("/{id}", clientController.Get)
		r.Put("/{id}", clientController.Update)
		r.Delete("/{id}", clientController.Delete)
	})

	// 交易流水
	r.Route("/transactions", func(r chi.Router) {
		r.Get("/", clientController.ListTransactions)
		r.Post("/", clientController.CreateTransaction)
	})

	// 统计
	r.Route("/stats", func(r chi.Router) {
		statsController := controllers.NewStatsController(deps)
		r.Get("/kpis", statsController.KPIs)
		r.Get("/insights", statsController.Insights)
		r.Get("/age-distribution", statsController.AgeDistribution)
		r.Get("/segments", statsController.Segments)
		r.Get("/regions", statsController.Regions)
		r.Get("/crosstab", statsController.Crosstab)
		r.Get("/scatter", statsController.Scatter)
		r.Get("/tenure-series", statsController.TenureSeries)
		r.Get("/risk", statsController.RiskBreakdown)
		r.Get("/report", statsController.Report)
	})
}
