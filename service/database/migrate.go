/*
 * @module service/database/migrate
 * @description 数据库迁移模块，负责创建和更新客户、评分与交易表结构及客户风险视图
 * @architecture 数据访问层 - 迁移管理
 * @documentReference DESIGN.md
 * @stateFlow 应用启动时执行数据库迁移
 * @rules 确保数据库结构与模型定义保持一致
 * @dependencies clientrisk-service/service/models, gorm.io/gorm
 * @refs service/models/client.go
 */

package database

import (
	"clientrisk-service/service/models"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
)

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate(db *gorm.DB) error {
	slog.Info("开始数据库迁移...")

	err := db.AutoMigrate(
		&models.Client{},
		&models.ClientScore{},
		&models.Transaction{},
	)
	if err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}

	if err := AutoMigrateView(db); err != nil {
		return err
	}

	slog.Info("数据库迁移完成")
	return nil
}
