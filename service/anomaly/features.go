/*
 * @module service/anomaly/features
 * @description 候选特征定义与客户记录到特征向量的转换
 * @architecture 分层架构 - 业务计算层
 * @documentReference DESIGN.md
 * @rules 特征顺序固定；只选用至少出现过一次的候选特征，训练矩阵中缺失值取 0
 * @dependencies clientrisk-service/service/models
 * @refs detector.go, api/controllers/anomaly_controller.go
 */

package anomaly

import (
	"clientrisk-service/service/models"
	"math"
)

// CandidateFeatures 参与训练的候选特征，顺序即特征向量顺序
var CandidateFeatures = []string{
	models.FieldBalance,
	models.FieldAge,
	models.FieldIncome,
	models.FieldBaseScore,
}

// MinFeatures 训练所需的最少特征数
const MinFeatures = 2

// Features 单条记录的特征取值，不存在的键表示缺失
type Features map[string]float64

// FeaturesFromClient 由规范客户记录构造特征
func FeaturesFromClient(c models.Client) Features {
	return Features{
		models.FieldBalance:   c.Balance,
		models.FieldAge:       float64(c.Age),
		models.FieldIncome:    c.Income,
		models.FieldBaseScore: c.BaseScore,
	}
}

// FeaturesFromClients 批量构造特征
func FeaturesFromClients(clients []models.Client) []Features {
	out := make([]Features, len(clients))
	for i, c := range clients {
		out[i] = FeaturesFromClient(c)
	}
	return out
}

// valueOr 取特征值，缺失或非有限值时返回 fallback
func (f Features) valueOr(name string, fallback float64) float64 {
	v, ok := f[name]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

// selectFeatures 选出在任一记录中出现过的候选特征
func selectFeatures(population []Features) []string {
	present := make(map[string]bool, len(CandidateFeatures))
	for _, row := range population {
		for name := range row {
			present[name] = true
		}
	}

	order := make([]string, 0, len(CandidateFeatures))
	for _, name := range CandidateFeatures {
		if present[name] {
			order = append(order, name)
		}
	}
	return order
}

// buildMatrix 按特征顺序构造训练矩阵，缺失值取 0
func buildMatrix(population []Features, order []string) [][]float64 {
	matrix := make([][]float64, len(population))
	for i, row := range population {
		vec := make([]float64, len(order))
		for j, name := range order {
			vec[j] = row.valueOr(name, 0)
		}
		matrix[i] = vec
	}
	return matrix
}
