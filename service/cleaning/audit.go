/*
 * @module service/cleaning/audit
 * @description 导入前只读审计：行数、重复行、各列缺失值、识别到的列与状态
 * @architecture 分层架构 - 数据清洗层
 * @documentReference DESIGN.md
 * @stateFlow 文件 -> 读取器 -> 原始表格 -> 审计报告
 * @rules 审计从不修改数据；不可读文件返回 InputError，调用方不得继续入库
 * @dependencies clientrisk-service/service/reader
 * @refs service/pipeline
 */

package cleaning

import (
	"clientrisk-service/service/models"
	"clientrisk-service/service/reader"
	"log/slog"
	"strings"
)

// 审计状态
const (
	AuditStatusOK          = "OK"
	AuditStatusMissingName = "ATTENTION (name column not found)"
)

// AuditReport 审计报告
type AuditReport struct {
	TotalRows              int            `json:"total_rows"`
	DuplicateRowCount      int            `json:"duplicate_row_count"`
	MissingValuesPerColumn map[string]int `json:"missing_values_per_column"`
	DetectedColumns        []string       `json:"detected_columns"`
	Status                 string         `json:"status"`
}

// OK 报告状态是否为 OK
func (r *AuditReport) OK() bool {
	return r != nil && r.Status == AuditStatusOK
}

// AuditFile 读取文件并生成审计报告；读取失败时返回 *reader.InputError
func AuditFile(path string) (*models.RawTable, *AuditReport, error) {
	table, err := reader.ParseTable(path)
	if err != nil {
		slog.Warn("审计读取文件失败", "path", path, "error", err)
		return nil, nil, err
	}
	return table, Audit(table), nil
}

// Audit 对原始表格进行只读审计
func Audit(table *models.RawTable) *AuditReport {
	normalized := normalizeTable(table)

	report := &AuditReport{
		TotalRows:              len(normalized.Rows),
		MissingValuesPerColumn: make(map[string]int, len(normalized.Columns)),
		DetectedColumns:        normalized.Columns,
		Status:                 AuditStatusMissingName,
	}

	for _, col := range normalized.Columns {
		missing := 0
		for _, row := range normalized.Rows {
			if IsMissing(row[col]) {
				missing++
			}
		}
		report.MissingValuesPerColumn[col] = missing

		if field, ok := models.ResolveColumn(col); ok && field == models.FieldName {
			report.Status = AuditStatusOK
		}
	}

	seen := make(map[string]struct{}, len(normalized.Rows))
	for _, row := range normalized.Rows {
		key := rowKey(normalized.Columns, row)
		if _, dup := seen[key]; dup {
			report.DuplicateRowCount++
			continue
		}
		seen[key] = struct{}{}
	}

	return report
}

// normalizeTable 规范化列名；规范化后重名的列只保留第一列
func normalizeTable(table *models.RawTable) *models.RawTable {
	out := &models.RawTable{}
	if table == nil {
		return out
	}

	source := make(map[string]string, len(table.Columns))
	for _, col := range table.Columns {
		name := NormalizeColumnName(col)
		if _, exists := source[name]; exists {
			continue
		}
		source[name] = col
		out.Columns = append(out.Columns, name)
	}

	out.Rows = make([]models.RawRow, 0, len(table.Rows))
	for _, row := range table.Rows {
		nr := make(models.RawRow, len(out.Columns))
		for _, name := range out.Columns {
			if v, ok := row[source[name]]; ok {
				nr[name] = v
			}
		}
		out.Rows = append(out.Rows, nr)
	}
	return out
}

// rowKey 行内容指纹，缺失单元格与空字符串视为相同
func rowKey(columns []string, row models.RawRow) string {
	var b strings.Builder
	for _, col := range columns {
		b.WriteString(row[col])
		b.WriteByte(0x1f)
	}
	return b.String()
}
