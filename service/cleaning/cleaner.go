/*
 * @module service/cleaning/cleaner
 * @description 规范化与清洗管道，将任意列集合的原始表格转换为规范客户记录并批量入库
 * @architecture 分层架构 - 数据清洗层
 * @documentReference DESIGN.md
 * @stateFlow 列名规范化 -> 补齐缺失字段 -> 去重/去幽灵行 -> 文本/性别/金额/年龄/年限 -> IQR 截断 -> 批量入库
 * @rules 任何输入都不得使管道崩溃；越界值按固定策略修复，不静默接受
 * @dependencies clientrisk-service/service/models, github.com/google/uuid
 * @refs service/database/store.go, service/pipeline
 */

package cleaning

import (
	"clientrisk-service/service/metrics"
	"clientrisk-service/service/models"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RecordWriter 规范记录的批量写入方
type RecordWriter interface {
	BatchInsert(ctx context.Context, records []models.Client) error
}

// CleanResult 清洗入库结果
type CleanResult struct {
	BatchID           string `json:"batch_id"`
	Committed         int    `json:"committed"`
	DroppedDuplicates int    `json:"dropped_duplicates"`
	DroppedGhosts     int    `json:"dropped_ghosts"`
}

// Cleaner 清洗器，不跨调用保存任何状态
type Cleaner struct {
	writer RecordWriter
}

// NewCleaner 创建清洗器实例
func NewCleaner(writer RecordWriter) *Cleaner {
	return &Cleaner{writer: writer}
}

// canonicalFrame 按规范字段组织的列式数据
type canonicalFrame struct {
	rows   int
	fields map[string][]string
}

// CleanAndCommit 执行完整清洗管道并以单个批次入库，返回入库行数等统计
func (c *Cleaner) CleanAndCommit(ctx context.Context, table *models.RawTable) (*CleanResult, error) {
	startTime := time.Now()
	result := &CleanResult{BatchID: uuid.NewString()}

	normalized := normalizeTable(table)

	// 合成列对所有行取值相同，在输入列上去重即可
	rows, dups := dropDuplicates(normalized)
	result.DroppedDuplicates = dups

	frame := enforceSchema(normalized.Columns, rows)

	frame, ghosts := dropGhostRows(frame)
	result.DroppedGhosts = ghosts

	records := transform(frame, result.BatchID)

	if err := c.writer.BatchInsert(ctx, records); err != nil {
		return nil, fmt.Errorf("批量写入客户记录失败: %w", err)
	}
	result.Committed = len(records)

	metrics.AddRowsCommitted(result.Committed)
	metrics.AddRowsDropped("duplicate", result.DroppedDuplicates)
	metrics.AddRowsDropped("ghost", result.DroppedGhosts)

	slog.Info("清洗入库完成",
		"batch_id", result.BatchID,
		"input_rows", len(normalized.Rows),
		"committed", result.Committed,
		"dropped_duplicates", result.DroppedDuplicates,
		"dropped_ghosts", result.DroppedGhosts,
		"duration_ms", time.Since(startTime).Milliseconds())

	return result, nil
}

// Clean 执行步骤 1-9，返回待入库的规范记录，不做任何写入
func Clean(table *models.RawTable) []models.Client {
	normalized := normalizeTable(table)
	rows, _ := dropDuplicates(normalized)
	frame, _ := dropGhostRows(enforceSchema(normalized.Columns, rows))
	return transform(frame, "")
}

func dropDuplicates(table *models.RawTable) ([]models.RawRow, int) {
	seen := make(map[string]struct{}, len(table.Rows))
	rows := make([]models.RawRow, 0, len(table.Rows))
	for _, row := range table.Rows {
		key := rowKey(table.Columns, row)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		rows = append(rows, row)
	}
	return rows, len(table.Rows) - len(rows)
}

// enforceSchema 为每个规范字段找到来源列；不存在的字段用默认值合成
func enforceSchema(columns []string, rows []models.RawRow) *canonicalFrame {
	sources := make(map[string]string, len(models.ClientSchema))
	for _, col := range columns {
		field, ok := models.ResolveColumn(col)
		if !ok {
			continue
		}
		if _, taken := sources[field]; !taken {
			sources[field] = col
		}
	}

	frame := &canonicalFrame{rows: len(rows), fields: make(map[string][]string, len(models.ClientSchema))}
	for _, spec := range models.ClientSchema {
		values := make([]string, len(rows))
		col, present := sources[spec.Name]
		for i, row := range rows {
			if present {
				values[i] = row[col]
			} else {
				values[i] = spec.Default
			}
		}
		frame.fields[spec.Name] = values
	}
	return frame
}

// dropGhostRows 去除名称为空、缺失标记或仍为默认占位名的行
func dropGhostRows(frame *canonicalFrame) (*canonicalFrame, int) {
	sentinel := models.DefaultValue(models.FieldName)
	names := frame.fields[models.FieldName]

	keep := make([]int, 0, frame.rows)
	for i, name := range names {
		name = strings.TrimSpace(name)
		if IsMissing(name) || strings.EqualFold(name, sentinel) {
			continue
		}
		keep = append(keep, i)
	}

	out := &canonicalFrame{rows: len(keep), fields: make(map[string][]string, len(frame.fields))}
	for field, values := range frame.fields {
		kept := make([]string, len(keep))
		for j, idx := range keep {
			kept[j] = values[idx]
		}
		out.fields[field] = kept
	}
	return out, frame.rows - len(keep)
}

// transform 执行步骤 4-9 并投影为规范记录
func transform(frame *canonicalFrame, batchID string) []models.Client {
	names := NormalizeNameColumn(frame.fields[models.FieldName])
	regions := NormalizeRegionColumn(frame.fields[models.FieldRegion])
	segments := NormalizeSegmentColumn(frame.fields[models.FieldSegment])
	genders := NormalizeGenderColumn(frame.fields[models.FieldGender])

	balances := ParseMoneyColumn(frame.fields[models.FieldBalance])
	incomes := ParseMoneyColumn(frame.fields[models.FieldIncome])
	baseScores := ParseMoneyColumn(frame.fields[models.FieldBaseScore])

	ages := RepairAgeColumn(frame.fields[models.FieldAge])
	tenures := RepairTenureColumn(frame.fields[models.FieldTenureYears])

	balances = CapOutliersIQR(balances)
	incomes = CapOutliersIQR(incomes)

	records := make([]models.Client, frame.rows)
	for i := 0; i < frame.rows; i++ {
		records[i] = models.Client{
			Name:          names[i],
			Age:           ages[i],
			Gender:        genders[i],
			Balance:       balances[i],
			Income:        incomes[i],
			Region:        regions[i],
			Segment:       segments[i],
			TenureYears:   tenures[i],
			BaseScore:     baseScores[i],
			ImportBatchID: batchID,
		}
	}
	return records
}
