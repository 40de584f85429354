/*
 * @module service/init
 * @description 服务初始化模块，负责配置加载、数据库连接、迁移与各业务服务的装配
 * @architecture 分层架构 - 服务层
 * @documentReference DESIGN.md
 * @stateFlow 加载配置 -> 连接数据库 -> 迁移 -> 装配服务 -> 启动调度器 -> 首次刷新
 * @rules 确保所有依赖服务正常启动后才提供API服务；Redis 启用但不可用时启动失败
 * @dependencies gorm.io/gorm, clientrisk-service/service/*
 * @refs main.go, api/routes.go
 */

package service

import (
	"clientrisk-service/service/anomaly"
	"clientrisk-service/service/cleanup"
	"clientrisk-service/service/config"
	"clientrisk-service/service/database"
	"clientrisk-service/service/distributed_lock"
	"clientrisk-service/service/event"
	"clientrisk-service/service/pipeline"
	"clientrisk-service/service/rate_limiter"
	"clientrisk-service/service/scheduler"
	"clientrisk-service/service/statistics"
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

var (
	DB                     *gorm.DB
	GlobalConfig           *config.AppConfig
	GlobalStore            *database.Store
	GlobalDetector         *anomaly.Detector
	GlobalPipeline         *pipeline.Pipeline
	GlobalStatsEngine      *statistics.Engine
	GlobalPublisher        event.Publisher
	GlobalRefreshScheduler *scheduler.RefreshScheduler
	GlobalUploadCleanup    *cleanup.UploadCleanupService
	GlobalRateLimiter      rate_limiter.Limiter

	redisLock        *distributed_lock.RedisLock
	redisRateLimiter *rate_limiter.RedisRateLimiter
)

// Init 按配置初始化全部服务
func Init(cfg *config.AppConfig) error {
	GlobalConfig = cfg

	if err := initDatabase(cfg.Database); err != nil {
		return err
	}
	if err := initServices(cfg); err != nil {
		return err
	}
	if err := startSchedulers(cfg); err != nil {
		return err
	}

	// 启动时先用已有数据训练一次，避免重启后长时间停留在规则模式
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := GlobalPipeline.Refresh(ctx); err != nil {
			slog.Warn("启动时刷新失败", "error", err)
		}
	}()

	slog.Info("服务初始化完成", "app", cfg.App.Name, "version", cfg.App.Version)
	return nil
}

// initDatabase 初始化数据库连接并执行迁移
func initDatabase(cfg config.DatabaseConfig) error {
	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	if err := database.AutoMigrate(db); err != nil {
		return err
	}
	DB = db
	return nil
}

// initServices 初始化服务
func initServices(cfg *config.AppConfig) error {
	GlobalStore = database.NewStore(DB)
	GlobalDetector = anomaly.NewDetector(anomaly.DefaultForestConfig())
	GlobalStatsEngine = statistics.NewEngine(GlobalStore)
	GlobalPublisher = event.NewPublisher(cfg.Kafka)

	var locker distributed_lock.Locker = distributed_lock.NewLocalLock()
	GlobalRateLimiter = rate_limiter.NewLocalRateLimiter()
	if cfg.Redis.Enabled {
		lock, err := distributed_lock.NewRedisLock(cfg.Redis)
		if err != nil {
			return fmt.Errorf("初始化分布式锁失败: %w", err)
		}
		redisLock = lock
		locker = lock

		limiter, err := rate_limiter.NewRedisRateLimiter(cfg.Redis)
		if err != nil {
			return fmt.Errorf("初始化限流器失败: %w", err)
		}
		redisRateLimiter = limiter
		GlobalRateLimiter = limiter
	}

	GlobalPipeline = pipeline.NewPipeline(GlobalStore, GlobalDetector, locker, GlobalPublisher)
	GlobalUploadCleanup = cleanup.NewUploadCleanupService(cfg.Import.UploadDir, time.Duration(cfg.Import.RetentionHours)*time.Hour)
	return nil
}

// startSchedulers 启动定时刷新与上传文件清理
func startSchedulers(cfg *config.AppConfig) error {
	if !cfg.Scheduler.Enabled {
		slog.Info("定时调度已禁用")
		return nil
	}

	s, err := scheduler.NewRefreshScheduler(GlobalPipeline, cfg.Scheduler.RefreshCron)
	if err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		return err
	}
	GlobalRefreshScheduler = s

	if cfg.Scheduler.CleanupCron != "" {
		if err := GlobalUploadCleanup.StartScheduledCleanup(cfg.Scheduler.CleanupCron); err != nil {
			slog.Error("启动上传文件清理失败", "error", err)
		}
	}
	return nil
}

// Shutdown 停止调度器并释放外部连接
func Shutdown() {
	if GlobalRefreshScheduler != nil {
		GlobalRefreshScheduler.Stop()
	}
	if GlobalUploadCleanup != nil {
		GlobalUploadCleanup.StopScheduledCleanup()
	}
	if GlobalPublisher != nil {
		if err := GlobalPublisher.Close(); err != nil {
			slog.Warn("关闭事件发布器失败", "error", err)
		}
	}
	if redisLock != nil {
		if err := redisLock.Close(); err != nil {
			slog.Warn("关闭Redis连接失败", "error", err)
		}
	}
	if redisRateLimiter != nil {
		if err := redisRateLimiter.Close(); err != nil {
			slog.Warn("关闭Redis限流器失败", "error", err)
		}
	}
	if DB != nil {
		if sqlDB, err := DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
	slog.Info("服务已停止")
}
