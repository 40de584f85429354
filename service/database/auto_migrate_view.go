package database

import (
	"clientrisk-service/service/database/views"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
)

// AutoMigrateView 重建全部视图
func AutoMigrateView(db *gorm.DB) error {
	for name, viewSQL := range views.ClientViews {
		if err := db.Exec(fmt.Sprintf("DROP VIEW IF EXISTS %s", name)).Error; err != nil {
			return fmt.Errorf("删除视图 %s 失败: %w", name, err)
		}
		if err := db.Exec(viewSQL).Error; err != nil {
			return fmt.Errorf("创建视图 %s 失败: %w", name, err)
		}
		slog.Info("成功创建视图", "view", name)
	}
	return nil
}
