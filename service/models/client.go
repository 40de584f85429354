/*
 * @module service/models/client
 * @description 客户规范记录、评分记录与交易记录模型
 * @architecture 数据模型层
 * @documentReference DESIGN.md
 * @stateFlow 原始表格 -> 清洗器 -> Client -> 评分引擎 -> ClientScore
 * @rules 入库的 Client 必须字段完整且处于业务边界内；每个客户最多一条 ClientScore
 * @dependencies gorm.io/gorm
 * @refs service/cleaning, service/scoring, service/database
 */

package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Gender 性别枚举
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

// Segment 客户分群枚举
type Segment string

const (
	SegmentStandard Segment = "Standard"
	SegmentVIP      Segment = "VIP"
	SegmentNouveau  Segment = "Nouveau"
)

// RiskTier 风险等级枚举
type RiskTier string

const (
	RiskTierLow    RiskTier = "Low"
	RiskTierMedium RiskTier = "Medium"
	RiskTierHigh   RiskTier = "High"
)

// Client 规范化后的客户记录
type Client struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string    `gorm:"type:varchar(255);not null;index" json:"name"`
	Age           int       `gorm:"not null" json:"age"`
	Gender        Gender    `gorm:"type:varchar(1);not null" json:"gender"`
	Balance       float64   `gorm:"not null" json:"balance"`
	Income        float64   `gorm:"not null" json:"income"`
	Region        string    `gorm:"type:varchar(255);not null;index" json:"region"`
	Segment       Segment   `gorm:"type:varchar(20);not null" json:"segment"`
	TenureYears   int       `gorm:"not null" json:"tenure_years"`
	BaseScore     float64   `gorm:"not null" json:"base_score"`
	ImportBatchID string    `gorm:"type:varchar(36);index" json:"import_batch_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Client) TableName() string {
	return "clients"
}

// Validate 校验手工录入的客户记录是否满足业务边界
func (c *Client) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("客户名称不能为空")
	}
	if c.Age < MinAge || c.Age > MaxAge {
		return fmt.Errorf("年龄必须在 %d 到 %d 之间: %d", MinAge, MaxAge, c.Age)
	}
	if c.Gender != GenderMale && c.Gender != GenderFemale {
		return fmt.Errorf("无效的性别: %q", c.Gender)
	}
	switch c.Segment {
	case SegmentStandard, SegmentVIP, SegmentNouveau:
	default:
		return fmt.Errorf("无效的客户分群: %q", c.Segment)
	}
	if c.TenureYears < 0 {
		return fmt.Errorf("客户年限不能为负数: %d", c.TenureYears)
	}
	if strings.TrimSpace(c.Region) == "" {
		c.Region = DefaultValue(FieldRegion)
	}
	return nil
}

// ClientScore 客户评分记录，client_id 唯一，重算时覆盖
type ClientScore struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ClientID   uint      `gorm:"not null;uniqueIndex" json:"client_id"`
	FinalScore int       `gorm:"not null" json:"final_score"`
	RiskTier   RiskTier  `gorm:"type:varchar(10);not null" json:"risk_tier"`
	ComputedAt time.Time `gorm:"not null" json:"computed_at"`
}

// TableName 指定表名
func (ClientScore) TableName() string {
	return "client_scores"
}

// Transaction 客户交易流水，写入时同步更新客户余额
type Transaction struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ClientID  uint      `gorm:"not null;index" json:"client_id"`
	Amount    float64   `gorm:"not null" json:"amount"`
	Date      time.Time `gorm:"not null;index" json:"date"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (Transaction) TableName() string {
	return "transactions"
}

// ClientView 客户及其（可选）评分的联合视图
type ClientView struct {
	Client
	FinalScore *int    `json:"final_score,omitempty"`
	RiskTier   *string `json:"risk_tier,omitempty"`
}

// TransactionView 交易及客户名称
type TransactionView struct {
	ID         uint      `json:"id"`
	ClientID   uint      `json:"client_id"`
	ClientName string    `json:"client_name"`
	Amount     float64   `json:"amount"`
	Date       time.Time `json:"date"`
}

// RawRow 原始行：任意列名到字符串值的映射，不保证任何键存在
type RawRow map[string]string

// RawTable 原始表格，Columns 保持文件中的列顺序
type RawTable struct {
	Columns []string `json:"columns"`
	Rows    []RawRow `json:"rows"`
}
