/*
 * @module testutil/test_helper
 * @description 测试工具和辅助函数
 * @architecture 测试基础设施 - 提供测试通用工具和数据工厂
 * @documentReference DESIGN.md
 * @stateFlow 测试环境初始化 -> 测试数据创建 -> 测试执行 -> 清理资源
 * @rules 提供可重用的测试工具，确保测试环境的一致性
 * @dependencies gorm, sqlite, testify, time
 * @refs service/models
 */

package testutil

import (
	"bytes"
	"clientrisk-service/service/database/views"
	"clientrisk-service/service/models"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbCounter atomic.Int64

// TestDB 测试数据库配置
type TestDB struct {
	DB *gorm.DB
}

// NewTestDB 创建测试数据库，每次调用得到独立的内存库
func NewTestDB(t testing.TB) *TestDB {
	t.Helper()

	dsn := fmt.Sprintf("file:clientrisk_test_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), dbCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "failed to connect test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 内存库只在连接存活期间存在
	sqlDB.SetMaxOpenConns(1)

	// 自动迁移所有模型
	err = db.AutoMigrate(
		&models.Client{},
		&models.ClientScore{},
		&models.Transaction{},
	)
	require.NoError(t, err, "failed to migrate test database")

	for name, viewSQL := range views.ClientViews {
		require.NoError(t, db.Exec(viewSQL).Error, "failed to create view %s", name)
	}

	tdb := &TestDB{DB: db}
	t.Cleanup(tdb.Close)
	return tdb
}

// Close 关闭数据库连接
func (tdb *TestDB) Close() {
	if db, err := tdb.DB.DB(); err == nil {
		db.Close()
	}
}

// TestDataFactory 测试数据工厂
type TestDataFactory struct {
	DB *gorm.DB
}

// NewTestDataFactory 创建测试数据工厂
func NewTestDataFactory(db *gorm.DB) *TestDataFactory {
	return &TestDataFactory{DB: db}
}

// ClientOption 客户选项函数类型
type ClientOption func(*models.Client)

// NewClient 构造一条合法的客户记录（不入库）
func NewClient(opts ...ClientOption) models.Client {
	client := models.Client{
		Name:        "Test Client " + generateSuffix(),
		Age:         40,
		Gender:      models.GenderMale,
		Balance:     1000,
		Income:      2500,
		Region:      "Bretagne",
		Segment:     models.SegmentStandard,
		TenureYears: 3,
		BaseScore:   500,
	}
	for _, opt := range opts {
		opt(&client)
	}
	return client
}

// WithName 设置客户名称
func WithName(name string) ClientOption {
	return func(c *models.Client) { c.Name = name }
}

// WithAge 设置年龄
func WithAge(age int) ClientOption {
	return func(c *models.Client) { c.Age = age }
}

// WithBalance 设置余额
func WithBalance(balance float64) ClientOption {
	return func(c *models.Client) { c.Balance = balance }
}

// WithRegion 设置地区
func WithRegion(region string) ClientOption {
	return func(c *models.Client) { c.Region = region }
}

// WithSegment 设置分群
func WithSegment(segment models.Segment) ClientOption {
	return func(c *models.Client) { c.Segment = segment }
}

// WithTenure 设置客户年限
func WithTenure(years int) ClientOption {
	return func(c *models.Client) { c.TenureYears = years }
}

// WithBaseScore 设置初始评分
func WithBaseScore(score float64) ClientOption {
	return func(c *models.Client) { c.BaseScore = score }
}

// CreateClient 创建测试客户
func (f *TestDataFactory) CreateClient(opts ...ClientOption) *models.Client {
	client := NewClient(opts...)
	if err := f.DB.Create(&client).Error; err != nil {
		panic(fmt.Sprintf("failed to create test client: %v", err))
	}
	return &client
}

// CreateScore 创建测试评分
func (f *TestDataFactory) CreateScore(clientID uint, finalScore int, tier models.RiskTier) *models.ClientScore {
	score := &models.ClientScore{
		ClientID:   clientID,
		FinalScore: finalScore,
		RiskTier:   tier,
		ComputedAt: time.Now().UTC().Truncate(24 * time.Hour),
	}
	if err := f.DB.Create(score).Error; err != nil {
		panic(fmt.Sprintf("failed to create test score: %v", err))
	}
	return score
}

// CreateTransaction 创建测试交易（不更新余额）
func (f *TestDataFactory) CreateTransaction(clientID uint, amount float64, date time.Time) *models.Transaction {
	txn := &models.Transaction{ClientID: clientID, Amount: amount, Date: date}
	if err := f.DB.Create(txn).Error; err != nil {
		panic(fmt.Sprintf("failed to create test transaction: %v", err))
	}
	return txn
}

func generateSuffix() string {
	return fmt.Sprintf("%d", time.Now().UnixNano()%100000)
}

// HTTPTestHelper HTTP测试辅助工具
type HTTPTestHelper struct{}

// NewHTTPTestHelper 创建HTTP测试辅助工具
func NewHTTPTestHelper() *HTTPTestHelper {
	return &HTTPTestHelper{}
}

// CreateJSONRequest 创建JSON请求
func (h *HTTPTestHelper) CreateJSONRequest(method, url string, body interface{}) (*http.Request, error) {
	var reqBody io.Reader

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// CreateFileUploadRequest 创建 multipart 文件上传请求
func (h *HTTPTestHelper) CreateFileUploadRequest(url, field, filename string, content []byte) (*http.Request, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}

// DecodeResponse 解析统一响应结构中的 data 字段
func (h *HTTPTestHelper) DecodeResponse(t *testing.T, w *httptest.ResponseRecorder, data interface{}) (status int, msg string) {
	t.Helper()

	var envelope struct {
		Status int             `json:"status"`
		Msg    string          `json:"msg"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	if data != nil && len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		require.NoError(t, json.Unmarshal(envelope.Data, data))
	}
	return envelope.Status, envelope.Msg
}
