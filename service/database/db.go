/*
 * @module service/database/db
 * @description 数据库连接，支持 sqlite（默认）与 postgres 两种驱动
 * @architecture 数据访问层 - 连接管理
 * @documentReference DESIGN.md
 * @stateFlow 配置 -> 方言选择 -> 建立连接 -> 连接池参数 -> schema 检查
 * @rules 连接失败返回错误，由调用方决定是否退出
 * @dependencies gorm.io/gorm, gorm.io/driver/sqlite, gorm.io/driver/postgres
 * @refs service/init.go
 */

package database

import (
	"clientrisk-service/service/config"
	"fmt"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open 按配置建立数据库连接
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(postgresDSN(cfg))
	case "sqlite", "":
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取数据库连接池失败: %w", err)
	}
	if cfg.Driver == "postgres" {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if err := EnsureSchema(db, cfg.Schema); err != nil {
			return nil, err
		}
	} else {
		// sqlite 单写者
		sqlDB.SetMaxOpenConns(1)
	}

	slog.Info("数据库连接成功", "driver", dialector.Name())
	return db, nil
}

// postgresDSN 优先使用完整连接串，否则由分离字段拼接
func postgresDSN(cfg config.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s search_path=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database, cfg.SSLMode, cfg.Schema)
}
