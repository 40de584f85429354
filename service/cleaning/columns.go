/*
 * @module service/cleaning/columns
 * @description 列级清洗函数：每个清洗步骤都是从一列值到清洗后一列值的纯函数
 * @architecture 分层架构 - 数据清洗层
 * @documentReference DESIGN.md
 * @stateFlow 原始字符串列 -> 类型转换/插补/截断 -> 规范列
 * @rules 所有函数均为全函数：任何输入都映射到合法输出，绝不返回错误
 * @dependencies github.com/spf13/cast, golang.org/x/text/cases
 * @refs service/cleaning/cleaner.go
 */

package cleaning

import (
	"clientrisk-service/service/models"
	"clientrisk-service/service/utils"
	"math"
	"strings"

	"github.com/spf13/cast"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// IQRMultiplier IQR 截断倍数
const IQRMultiplier = 1.5

// MinDistinctForIQR 少于该数量的不同取值时跳过截断
const MinDistinctForIQR = 5

var missingMarkers = map[string]bool{
	"nan":  true,
	"none": true,
	"null": true,
	"n/a":  true,
}

var femaleTokens = map[string]bool{
	"f":      true,
	"femme":  true,
	"woman":  true,
	"female": true,
	"fille":  true,
}

// NormalizeColumnName 列名规范化：小写并去除首尾空白
func NormalizeColumnName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IsMissing 判断单元格是否为空值或缺失标记
func IsMissing(value string) bool {
	v := strings.TrimSpace(value)
	return v == "" || missingMarkers[strings.ToLower(v)]
}

// ParseNumber 解析普通数值，缺失、无法解析或非有限值返回 false
func ParseNumber(value string) (float64, bool) {
	if IsMissing(value) {
		return 0, false
	}
	f, err := cast.ToFloat64E(strings.TrimSpace(value))
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// NormalizeGender 性别归一化：女性词表映射为 F，其余一律为 M
func NormalizeGender(value string) models.Gender {
	if femaleTokens[strings.ToLower(strings.TrimSpace(value))] {
		return models.GenderFemale
	}
	return models.GenderMale
}

// NormalizeGenderColumn 对整列执行性别归一化
func NormalizeGenderColumn(col []string) []models.Gender {
	out := make([]models.Gender, len(col))
	for i, v := range col {
		out[i] = NormalizeGender(v)
	}
	return out
}

// TitleCase 首字母大写并折叠多余空白
func TitleCase(value string) string {
	return titleWith(cases.Title(language.French), value)
}

func titleWith(caser cases.Caser, value string) string {
	return caser.String(strings.Join(strings.Fields(value), " "))
}

// NormalizeNameColumn 客户名称列标题化
func NormalizeNameColumn(col []string) []string {
	caser := cases.Title(language.French)
	out := make([]string, len(col))
	for i, v := range col {
		out[i] = titleWith(caser, v)
	}
	return out
}

// NormalizeRegionColumn 地区列标题化，无法识别的值归为默认地区
func NormalizeRegionColumn(col []string) []string {
	caser := cases.Title(language.French)
	fallback := models.DefaultValue(models.FieldRegion)
	out := make([]string, len(col))
	for i, v := range col {
		if IsMissing(v) {
			out[i] = fallback
			continue
		}
		out[i] = titleWith(caser, v)
	}
	return out
}

// NormalizeSegment 分群归一化，枚举之外的值归为 Standard
func NormalizeSegment(value string) models.Segment {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "vip":
		return models.SegmentVIP
	case "nouveau", "new":
		return models.SegmentNouveau
	default:
		return models.SegmentStandard
	}
}

// NormalizeSegmentColumn 对整列执行分群归一化
func NormalizeSegmentColumn(col []string) []models.Segment {
	out := make([]models.Segment, len(col))
	for i, v := range col {
		out[i] = NormalizeSegment(v)
	}
	return out
}

// ParseMoneyColumn 对整列执行金额解析
func ParseMoneyColumn(col []string) []float64 {
	out := make([]float64, len(col))
	for i, v := range col {
		out[i] = ParseMoney(v)
	}
	return out
}

// RepairAgeColumn 年龄修复：
// 无法解析的值用批内中位数替代，取绝对值，超出 [18,100] 的值同样替换为中位数（不做截断）。
// 没有任何可解析值，或中位数本身越界时，使用默认年龄 30。
func RepairAgeColumn(col []string) []int {
	spec, _ := models.FieldByName(models.FieldAge)

	parsed := make([]float64, len(col))
	ok := make([]bool, len(col))
	valid := make([]float64, 0, len(col))
	for i, v := range col {
		if f, good := ParseNumber(v); good {
			parsed[i], ok[i] = f, true
			valid = append(valid, f)
		}
	}

	med, found := utils.Median(valid)
	if !found || !spec.InBounds(med) {
		med = models.DefaultFloat(models.FieldAge)
	}

	out := make([]int, len(col))
	for i := range col {
		v := med
		if ok[i] {
			v = math.Abs(parsed[i])
		}
		if !spec.InBounds(v) {
			v = med
		}
		out[i] = int(v)
	}
	return out
}

// RepairTenureColumn 客户年限修复：无法解析为0，取绝对值后截断为整数
func RepairTenureColumn(col []string) []int {
	out := make([]int, len(col))
	for i, v := range col {
		f, ok := ParseNumber(v)
		if !ok {
			continue
		}
		f = math.Abs(f)
		if f > math.MaxInt32 {
			f = math.MaxInt32
		}
		out[i] = int(f)
	}
	return out
}

// CapOutliersIQR 使用 IQR 方法截断异常值，只做边界约束，不删除任何行
func CapOutliersIQR(col []float64) []float64 {
	out := make([]float64, len(col))
	copy(out, col)

	if countDistinct(col) < MinDistinctForIQR {
		return out
	}

	lower, upper := IQRBounds(col)
	for i, v := range out {
		if v < lower {
			out[i] = lower
		} else if v > upper {
			out[i] = upper
		}
	}
	return out
}

// IQRBounds 计算 [Q1 - 1.5*IQR, Q3 + 1.5*IQR]
func IQRBounds(col []float64) (float64, float64) {
	sorted := utils.SortedCopy(col)
	q1 := utils.Quantile(sorted, 0.25)
	q3 := utils.Quantile(sorted, 0.75)
	iqr := q3 - q1
	return q1 - IQRMultiplier*iqr, q3 + IQRMultiplier*iqr
}

func countDistinct(values []float64) int {
	seen := make(map[float64]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}
