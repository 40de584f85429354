/*
 * @module service/cleaning/cleaner_test
 * @description 清洗管道与审计的单元测试
 * @architecture 测试层 - 使用内存写入器替代持久化存储
 * @stateFlow 原始表格 -> 清洗/审计 -> 结果验证
 * @rules 验证缺列补齐、去重、幽灵行、端到端场景与写入失败传播
 * @dependencies testing, testify
 * @refs cleaner.go, audit.go
 */

package cleaning

import (
	"clientrisk-service/service/models"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryWriter struct {
	batches [][]models.Client
	err     error
}

func (w *memoryWriter) BatchInsert(ctx context.Context, records []models.Client) error {
	if w.err != nil {
		return w.err
	}
	w.batches = append(w.batches, records)
	return nil
}

func newTable(columns []string, rows ...[]string) *models.RawTable {
	table := &models.RawTable{Columns: columns}
	for _, values := range rows {
		row := models.RawRow{}
		for i, v := range values {
			row[columns[i]] = v
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

func TestCleanAndCommitEndToEnd(t *testing.T) {
	writer := &memoryWriter{}
	cleaner := NewCleaner(writer)

	table := newTable([]string{"Nom", "Solde"}, []string{"  jean dupont ", "2 500 €"})

	result, err := cleaner.CleanAndCommit(context.Background(), table)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Committed)
	assert.NotEmpty(t, result.BatchID)

	require.Len(t, writer.batches, 1)
	require.Len(t, writer.batches[0], 1)

	got := writer.batches[0][0]
	assert.Equal(t, "Jean Dupont", got.Name)
	assert.Equal(t, 30, got.Age)
	assert.Equal(t, 2500.0, got.Balance)
	assert.Equal(t, 0.0, got.Income)
	assert.Equal(t, "Unknown", got.Region)
	assert.Equal(t, models.SegmentStandard, got.Segment)
	assert.Equal(t, models.GenderMale, got.Gender)
	assert.Equal(t, 0, got.TenureYears)
	assert.Equal(t, 500.0, got.BaseScore)
	assert.Equal(t, result.BatchID, got.ImportBatchID)
}

func TestCleanDropsDuplicatesAndGhostRows(t *testing.T) {
	writer := &memoryWriter{}
	cleaner := NewCleaner(writer)

	table := newTable([]string{"nom", "age", "sexe"},
		[]string{"alice", "40", "F"},
		[]string{"alice", "40", "F"},
		[]string{"", "50", "M"},
		[]string{"nan", "50", "M"},
		[]string{"Unknown Client", "50", "M"},
		[]string{"bob", "200", "homme"},
	)

	result, err := cleaner.CleanAndCommit(context.Background(), table)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Committed)
	assert.Equal(t, 1, result.DroppedDuplicates)
	assert.Equal(t, 3, result.DroppedGhosts)

	records := writer.batches[0]
	assert.Equal(t, "Alice", records[0].Name)
	assert.Equal(t, models.GenderFemale, records[0].Gender)
	assert.Equal(t, "Bob", records[1].Name)
	// 幽灵行先于年龄修复移除：40, 200 -> 中位数 120 越界 -> 30
	assert.Equal(t, 40, records[0].Age)
	assert.Equal(t, 30, records[1].Age)
}

func TestCleanWithoutNameColumnCommitsNothing(t *testing.T) {
	writer := &memoryWriter{}
	cleaner := NewCleaner(writer)

	table := newTable([]string{"solde"}, []string{"100"}, []string{"200"})

	result, err := cleaner.CleanAndCommit(context.Background(), table)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Committed)
	assert.Equal(t, 2, result.DroppedGhosts)
}

func TestCleanRaggedRowsNeverFail(t *testing.T) {
	table := &models.RawTable{
		Columns: []string{"Name", "Age", "Balance", "Income", "Tenure", "Segment", "Unrelated"},
		Rows: []models.RawRow{
			{"Name": "a"},
			{"Name": "b", "Age": "x", "Balance": "garbage", "Income": "1,5", "Tenure": "-7.8", "Segment": "VIP"},
			{"Name": "c", "Age": "-1000", "Balance": "-3", "Unrelated": "ignored"},
		},
	}

	records := Clean(table)
	require.Len(t, records, 3)
	for _, r := range records {
		assert.NotEmpty(t, r.Name)
		assert.GreaterOrEqual(t, r.Age, models.MinAge)
		assert.LessOrEqual(t, r.Age, models.MaxAge)
		assert.GreaterOrEqual(t, r.TenureYears, 0)
		assert.NotEmpty(t, r.Region)
	}
	assert.Equal(t, 1.5, records[1].Income)
	assert.Equal(t, 7, records[1].TenureYears)
	assert.Equal(t, models.SegmentVIP, records[1].Segment)
	assert.Equal(t, -3.0, records[2].Balance)
}

func TestCleanCapsOutliers(t *testing.T) {
	table := newTable([]string{"nom", "solde"},
		[]string{"a", "100"},
		[]string{"b", "110"},
		[]string{"c", "120"},
		[]string{"d", "130"},
		[]string{"e", "140"},
		[]string{"f", "1 000 000"},
	)

	records := Clean(table)
	require.Len(t, records, 6)

	balances := []float64{100, 110, 120, 130, 140, 1000000}
	_, upper := IQRBounds(balances)
	assert.Equal(t, upper, records[5].Balance)
	assert.Equal(t, 100.0, records[0].Balance)
}

func TestCleanAndCommitPropagatesWriterError(t *testing.T) {
	writer := &memoryWriter{err: errors.New("disk full")}
	cleaner := NewCleaner(writer)

	_, err := cleaner.CleanAndCommit(context.Background(), newTable([]string{"nom"}, []string{"x"}))
	require.Error(t, err)
	assert.ErrorIs(t, err, writer.err)
}

func TestAudit(t *testing.T) {
	t.Run("识别名称列", func(t *testing.T) {
		table := newTable([]string{" Nom ", "Age", "Solde"},
			[]string{"a", "", "1"},
			[]string{"a", "", "1"},
			[]string{"b", "30", "nan"},
		)

		report := Audit(table)
		assert.Equal(t, 3, report.TotalRows)
		assert.Equal(t, 1, report.DuplicateRowCount)
		assert.Equal(t, []string{"nom", "age", "solde"}, report.DetectedColumns)
		assert.Equal(t, map[string]int{"nom": 0, "age": 2, "solde": 1}, report.MissingValuesPerColumn)
		assert.Equal(t, AuditStatusOK, report.Status)
		assert.True(t, report.OK())
	})

	t.Run("缺少名称列时给出提示", func(t *testing.T) {
		report := Audit(newTable([]string{"solde"}, []string{"1"}))
		assert.Equal(t, AuditStatusMissingName, report.Status)
		assert.False(t, report.OK())
	})

	t.Run("空表", func(t *testing.T) {
		report := Audit(&models.RawTable{})
		assert.Equal(t, 0, report.TotalRows)
		assert.Equal(t, AuditStatusMissingName, report.Status)
	})
}

func TestAuditFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("可读文件", func(t *testing.T) {
		path := filepath.Join(dir, "clients.csv")
		require.NoError(t, os.WriteFile(path, []byte("Nom;Solde\njean;10\n"), 0o644))

		table, report, err := AuditFile(path)
		require.NoError(t, err)
		assert.Len(t, table.Rows, 1)
		assert.Equal(t, AuditStatusOK, report.Status)
	})

	t.Run("不可读文件返回失败描述", func(t *testing.T) {
		_, report, err := AuditFile(filepath.Join(dir, "missing.csv"))
		require.Error(t, err)
		assert.Nil(t, report)
	})

	t.Run("不支持的格式", func(t *testing.T) {
		path := filepath.Join(dir, "clients.pdf")
		require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o644))

		_, _, err := AuditFile(path)
		require.Error(t, err)
	})
}
