package controllers

import (
	"clientrisk-service/service/anomaly"
	"clientrisk-service/service/config"
	"clientrisk-service/service/database"
	"clientrisk-service/service/pipeline"
	"clientrisk-service/service/rate_limiter"
	"clientrisk-service/service/statistics"
)

// Dependencies 控制器依赖的服务实例
type Dependencies struct {
	Store    *database.Store
	Pipeline *pipeline.Pipeline
	Detector *anomaly.Detector
	Stats    *statistics.Engine
	Import   config.ImportConfig
	Version  string

	// 导入接口限流器，为空时不限流
	RateLimiter rate_limiter.Limiter
}
