package database

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"
)

// CheckSchemaExists 检查 postgres schema 是否存在
func CheckSchemaExists(db *gorm.DB, schemaName string) bool {
	var count int64
	db.Raw("SELECT COUNT(*) FROM information_schema.schemata WHERE schema_name = ?", schemaName).Scan(&count)
	return count > 0
}

// CreateSchema 创建 postgres schema (使用双引号避免保留关键字问题)
func CreateSchema(db *gorm.DB, schemaName string) error {
	slog.Info("开始创建 schema", "schema", schemaName)

	createSchemaSQL := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS \"%s\";", schemaName)
	if err := db.Exec(createSchemaSQL).Error; err != nil {
		return fmt.Errorf("创建 schema %s 失败: %w", schemaName, err)
	}

	slog.Info("成功创建 schema", "schema", schemaName)
	return nil
}

// EnsureSchema schema 不存在时创建
func EnsureSchema(db *gorm.DB, schemaName string) error {
	if schemaName == "" || schemaName == "public" || CheckSchemaExists(db, schemaName) {
		return nil
	}
	return CreateSchema(db, schemaName)
}
