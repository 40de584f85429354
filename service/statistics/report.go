/*
 * @module service/statistics/report
 * @description 报表导出：多工作表 Excel 分析报告与客户清单 CSV
 * @architecture 分层架构 - 业务服务层
 * @documentReference DESIGN.md
 * @stateFlow 客户视图 -> KPI/风险汇总/明细 -> xlsx 或 csv 字节流
 * @rules 无数据时返回 ErrNoData；CSV 使用分号分隔并带 UTF-8 BOM，便于法语版 Excel 直接打开
 * @dependencies github.com/xuri/excelize/v2, encoding/csv
 * @refs api/controllers/stats_controller.go, api/controllers/client_controller.go
 */

package statistics

import (
	"clientrisk-service/service/models"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cast"
	"github.com/xuri/excelize/v2"
)

// ErrNoData 没有可导出的数据
var ErrNoData = errors.New("没有可导出的数据")

// 报告工作表名称
const (
	SheetSummary = "Synthèse Exécutive"
	SheetRisk    = "Analyse des Risques"
	SheetData    = "Données Complètes"
)

var dataHeaders = []string{
	"id", "nom", "age", "sexe", "solde", "revenu", "region",
	"segment", "anciennete", "score_initial", "score", "niveau_risque",
}

var exportHeaders = []string{"ID", "Nom Complet", "Âge", "Région", "Solde (€)", "Score Crédit", "Risque"}

// WriteReport 生成三个工作表的 Excel 报告
func (e *Engine) WriteReport(ctx context.Context, w io.Writer) error {
	views, err := e.Load(ctx)
	if err != nil {
		return err
	}
	return WriteReport(views, w)
}

// WriteReport 将客户视图写为 Excel 报告
func WriteReport(views []models.ClientView, w io.Writer) error {
	if len(views) == 0 {
		return ErrNoData
	}

	f := excelize.NewFile()
	defer f.Close()

	// 新文件自带 Sheet1，重命名为第一个工作表
	if err := f.SetSheetName(f.GetSheetName(0), SheetSummary); err != nil {
		return fmt.Errorf("创建工作表失败: %w", err)
	}
	for _, name := range []string{SheetRisk, SheetData} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("创建工作表 %s 失败: %w", name, err)
		}
	}

	kpis := ComputeKPIs(views)
	summary := [][]interface{}{
		{"total_clients", "total_balance", "average_score", "high_risk_count"},
		{kpis.TotalClients, kpis.TotalBalance, kpis.AverageScore, kpis.HighRiskCount},
	}
	if err := writeRows(f, SheetSummary, summary); err != nil {
		return err
	}

	risk := [][]interface{}{{"niveau_risque", "clients", "solde", "revenu"}}
	for _, r := range RiskBreakdown(views) {
		risk = append(risk, []interface{}{r.RiskTier, r.Clients, r.AverageBalance, r.AverageIncome})
	}
	if err := writeRows(f, SheetRisk, risk); err != nil {
		return err
	}

	data := make([][]interface{}, 0, len(views)+1)
	data = append(data, toInterfaces(dataHeaders))
	for _, v := range views {
		data = append(data, []interface{}{
			v.ID, v.Name, v.Age, string(v.Gender), v.Balance, v.Income, v.Region,
			string(v.Segment), v.TenureYears, v.BaseScore, optionalScore(v.FinalScore), optionalTier(v.RiskTier),
		})
	}
	if err := writeRows(f, SheetData, data); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("写出 Excel 报告失败: %w", err)
	}
	return nil
}

// WriteClientsCSV 导出客户清单（可以是过滤后的结果）
func WriteClientsCSV(views []models.ClientView, w io.Writer) error {
	if len(views) == 0 {
		return ErrNoData
	}

	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return fmt.Errorf("写出 CSV 失败: %w", err)
	}

	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(exportHeaders); err != nil {
		return fmt.Errorf("写出 CSV 失败: %w", err)
	}
	for _, v := range views {
		record := []string{
			cast.ToString(v.ID),
			v.Name,
			cast.ToString(v.Age),
			v.Region,
			cast.ToString(v.Balance),
			cast.ToString(optionalScore(v.FinalScore)),
			optionalTier(v.RiskTier),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("写出 CSV 失败: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("写入工作表 %s 失败: %w", sheet, err)
		}
	}
	return nil
}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func optionalScore(score *int) interface{} {
	if score == nil {
		return ""
	}
	return *score
}

func optionalTier(tier *string) string {
	if tier == nil {
		return ""
	}
	return *tier
}
