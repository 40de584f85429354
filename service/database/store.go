/*
 * @module service/database/store
 * @description 持久化存储：客户记录批量写入、评分 upsert、客户与交易的增删改查及过滤视图
 * @architecture 数据访问层
 * @documentReference DESIGN.md
 * @stateFlow 清洗器 -> BatchInsert；评分引擎 -> GetAllRecords/UpsertScoreRecord；API -> 视图查询
 * @rules 批量写入在单个事务内完成，失败整体回滚；每个客户最多一条评分记录
 * @dependencies gorm.io/gorm, github.com/Masterminds/squirrel
 * @refs service/cleaning/cleaner.go, service/scoring/engine.go
 */

package database

import (
	"clientrisk-service/service/database/views"
	"clientrisk-service/service/models"
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrClientNotFound 客户不存在
var ErrClientNotFound = errors.New("客户不存在")

const insertBatchSize = 500

// 界面上表示"不过滤"的取值
var allSentinels = map[string]bool{
	"":       true,
	"toutes": true,
	"tous":   true,
	"all":    true,
}

// ClientFilter 客户视图过滤条件
type ClientFilter struct {
	Region   string
	RiskTier string
	Search   string
}

// Store 基于 gorm 的存储实现
type Store struct {
	db *gorm.DB
}

// NewStore 创建存储实例
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB 返回底层连接
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Ping 检查数据库可用性
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// GetAllRecords 按 id 顺序返回所有客户记录
func (s *Store) GetAllRecords(ctx context.Context) ([]models.Client, error) {
	var clients []models.Client
	if err := s.db.WithContext(ctx).Order("id").Find(&clients).Error; err != nil {
		return nil, fmt.Errorf("查询客户记录失败: %w", err)
	}
	return clients, nil
}

// BatchInsert 在单个事务内写入一批客户记录
func (s *Store) BatchInsert(ctx context.Context, records []models.Client) error {
	if len(records) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(records, insertBatchSize).Error
	})
}

// UpsertScoreRecord 写入评分，同一客户已有评分时覆盖
func (s *Store) UpsertScoreRecord(ctx context.Context, score models.ClientScore) error {
	score.ID = 0
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "client_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"final_score", "risk_tier", "computed_at"}),
	}).Create(&score).Error
}

// GetScore 查询客户评分
func (s *Store) GetScore(ctx context.Context, clientID uint) (*models.ClientScore, error) {
	var score models.ClientScore
	err := s.db.WithContext(ctx).Where("client_id = ?", clientID).First(&score).Error
	if err != nil {
		return nil, err
	}
	return &score, nil
}

// GetClient 查询单个客户
func (s *Store) GetClient(ctx context.Context, id uint) (*models.Client, error) {
	var client models.Client
	err := s.db.WithContext(ctx).First(&client, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrClientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询客户失败: %w", err)
	}
	return &client, nil
}

// AddClient 手工新增客户
func (s *Store) AddClient(ctx context.Context, client *models.Client) error {
	client.ID = 0
	if err := s.db.WithContext(ctx).Create(client).Error; err != nil {
		return fmt.Errorf("新增客户失败: %w", err)
	}
	return nil
}

// UpdateClient 更新客户全部业务字段
func (s *Store) UpdateClient(ctx context.Context, client *models.Client) error {
	result := s.db.WithContext(ctx).Model(&models.Client{ID: client.ID}).
		Select("name", "age", "gender", "balance", "income", "region", "segment", "tenure_years", "base_score").
		Updates(client)
	if result.Error != nil {
		return fmt.Errorf("更新客户失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrClientNotFound
	}
	return nil
}

// DeleteClient 删除客户及其评分与交易
func (s *Store) DeleteClient(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("client_id = ?", id).Delete(&models.ClientScore{}).Error; err != nil {
			return err
		}
		if err := tx.Where("client_id = ?", id).Delete(&models.Transaction{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Client{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrClientNotFound
		}
		return nil
	})
}

// ClearAll 清空全部客户、评分与交易
func (s *Store) ClearAll(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		global := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		for _, model := range []interface{}{&models.ClientScore{}, &models.Transaction{}, &models.Client{}} {
			if err := global.Delete(model).Error; err != nil {
				return fmt.Errorf("清空数据失败: %w", err)
			}
		}
		return nil
	})
}

// ListClientViews 查询客户及其评分（最新的在前），支持地区、风险等级与名称过滤
func (s *Store) ListClientViews(ctx context.Context, filter ClientFilter) ([]models.ClientView, error) {
	query := sq.Select("*").
		From(views.ClientRiskInfo).
		OrderBy("id DESC")

	if !isAll(filter.Region) {
		query = query.Where(sq.Eq{"region": strings.TrimSpace(filter.Region)})
	}
	if !isAll(filter.RiskTier) {
		query = query.Where(sq.Eq{"risk_tier": strings.TrimSpace(filter.RiskTier)})
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where(sq.Like{"LOWER(name)": "%" + strings.ToLower(search) + "%"})
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("构建客户查询失败: %w", err)
	}

	var views []models.ClientView
	if err := s.db.WithContext(ctx).Raw(sqlStr, args...).Scan(&views).Error; err != nil {
		return nil, fmt.Errorf("查询客户视图失败: %w", err)
	}
	return views, nil
}

// ListRegions 返回去重后的地区列表
func (s *Store) ListRegions(ctx context.Context) ([]string, error) {
	var regions []string
	err := s.db.WithContext(ctx).Model(&models.Client{}).Distinct("region").Order("region").Pluck("region", &regions).Error
	if err != nil {
		return nil, fmt.Errorf("查询地区失败: %w", err)
	}
	return regions, nil
}

// AddTransaction 写入交易并同步更新客户余额
func (s *Store) AddTransaction(ctx context.Context, txn *models.Transaction) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Client{}).Where("id = ?", txn.ClientID).
			UpdateColumn("balance", gorm.Expr("balance + ?", txn.Amount))
		if result.Error != nil {
			return fmt.Errorf("更新客户余额失败: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrClientNotFound
		}

		txn.ID = 0
		if err := tx.Create(txn).Error; err != nil {
			return fmt.Errorf("写入交易失败: %w", err)
		}
		return nil
	})
}

// ListTransactions 查询交易流水，按客户名称过滤，最新的在前
func (s *Store) ListTransactions(ctx context.Context, search string) ([]models.TransactionView, error) {
	query := sq.Select("t.id", "t.client_id", "c.name AS client_name", "t.amount", "t.date").
		From("transactions t").
		Join("clients c ON c.id = t.client_id").
		OrderBy("t.date DESC", "t.id DESC")

	if search = strings.TrimSpace(search); search != "" {
		query = query.Where(sq.Like{"LOWER(c.name)": "%" + strings.ToLower(search) + "%"})
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("构建交易查询失败: %w", err)
	}

	var views []models.TransactionView
	if err := s.db.WithContext(ctx).Raw(sqlStr, args...).Scan(&views).Error; err != nil {
		return nil, fmt.Errorf("查询交易失败: %w", err)
	}
	return views, nil
}

func isAll(value string) bool {
	return allSentinels[strings.ToLower(strings.TrimSpace(value))]
}
