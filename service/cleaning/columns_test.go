/*
 * @module service/cleaning/columns_test
 * @description 列级清洗函数单元测试
 * @architecture 测试层 - 纯函数测试，无外部依赖
 * @stateFlow 输入列 -> 函数调用 -> 输出验证
 * @rules 覆盖金额解析、性别、年龄修复、年限修复与 IQR 截断的边界
 * @dependencies testing, testify
 * @refs columns.go, money.go
 */

package cleaning

import (
	"clientrisk-service/service/models"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected float64
	}{
		{name: "空格千位分隔与欧元符号", input: "1 000 €", expected: 1000.0},
		{name: "逗号千位分隔点号小数", input: "1,500.00", expected: 1500.00},
		{name: "点号千位分隔逗号小数", input: "1.500,25", expected: 1500.25},
		{name: "小数逗号", input: "12,5", expected: 12.5},
		{name: "美元符号", input: "$250", expected: 250},
		{name: "不换行空格", input: "2\u00a0500\u00a0€", expected: 2500},
		{name: "多个逗号千位分隔", input: "1,000,000", expected: 1000000},
		{name: "多个点号千位分隔", input: "1.000.000", expected: 1000000},
		{name: "负数", input: "-50", expected: -50},
		{name: "普通小数", input: "42.75", expected: 42.75},
		{name: "无法解析", input: "abc", expected: 0},
		{name: "空字符串", input: "", expected: 0},
		{name: "缺失标记", input: "nan", expected: 0},
		{name: "只有符号", input: "€", expected: 0},
		{name: "无穷大", input: "Inf", expected: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, ParseMoney(tc.input), 1e-9)
		})
	}
}

func TestNormalizeGender(t *testing.T) {
	for _, female := range []string{"f", "F", " Femme ", "WOMAN", "female", "Fille"} {
		assert.Equal(t, models.GenderFemale, NormalizeGender(female), female)
	}
	for _, other := range []string{"m", "Homme", "", "nan", "x", "feminin"} {
		assert.Equal(t, models.GenderMale, NormalizeGender(other), other)
	}
}

func TestNormalizeColumnName(t *testing.T) {
	assert.Equal(t, "nom", NormalizeColumnName("  Nom "))
	assert.Equal(t, "solde", NormalizeColumnName("SOLDE"))
}

func TestTitleCaseAndRegion(t *testing.T) {
	assert.Equal(t, "Jean Dupont", TitleCase("  jean   dupont "))

	regions := NormalizeRegionColumn([]string{"ile de france", "", "nan", " bretagne "})
	assert.Equal(t, []string{"Ile De France", "Unknown", "Unknown", "Bretagne"}, regions)
}

func TestNormalizeSegment(t *testing.T) {
	assert.Equal(t, models.SegmentVIP, NormalizeSegment("vip"))
	assert.Equal(t, models.SegmentNouveau, NormalizeSegment("Nouveau"))
	assert.Equal(t, models.SegmentStandard, NormalizeSegment("gold"))
	assert.Equal(t, models.SegmentStandard, NormalizeSegment(""))
}

func TestRepairAgeColumn(t *testing.T) {
	t.Run("越界与无法解析的值替换为中位数", func(t *testing.T) {
		// 可解析值: 20, 40, 150, -30 -> 排序 -30, 20, 40, 150 -> 中位数 30
		col := []string{"20", "abc", "40", "150", "-30", ""}
		assert.Equal(t, []int{20, 30, 40, 30, 30, 30}, RepairAgeColumn(col))
	})

	t.Run("负数取绝对值后在范围内则保留", func(t *testing.T) {
		col := []string{"-25", "30", "35"}
		assert.Equal(t, []int{25, 30, 35}, RepairAgeColumn(col))
	})

	t.Run("没有可解析的值时使用30", func(t *testing.T) {
		col := []string{"", "n/a", "old"}
		assert.Equal(t, []int{30, 30, 30}, RepairAgeColumn(col))
	})

	t.Run("中位数本身越界时使用30", func(t *testing.T) {
		col := []string{"150", "160", "170"}
		assert.Equal(t, []int{30, 30, 30}, RepairAgeColumn(col))
	})

	t.Run("小数截断为整数", func(t *testing.T) {
		col := []string{"45.9", "18", "100"}
		assert.Equal(t, []int{45, 18, 100}, RepairAgeColumn(col))
	})

	t.Run("输出始终处于边界内", func(t *testing.T) {
		col := []string{"1", "5", "17", "101", "999", "-500", "x", "60"}
		for _, age := range RepairAgeColumn(col) {
			assert.GreaterOrEqual(t, age, models.MinAge)
			assert.LessOrEqual(t, age, models.MaxAge)
		}
	})
}

func TestRepairTenureColumn(t *testing.T) {
	col := []string{"5", "-3", "2.9", "abc", ""}
	assert.Equal(t, []int{5, 3, 2, 0, 0}, RepairTenureColumn(col))
}

func TestCapOutliersIQR(t *testing.T) {
	t.Run("不同取值少于5个时跳过", func(t *testing.T) {
		col := []float64{1, 1, 2, 3, 1000000}
		assert.Equal(t, col, CapOutliersIQR(col))
	})

	t.Run("截断到 IQR 边界且行数不变", func(t *testing.T) {
		col := []float64{10, 12, 11, 13, 14, 15, 1000, -500}
		lower, upper := IQRBounds(col)

		capped := CapOutliersIQR(col)
		require.Len(t, capped, len(col))
		for _, v := range capped {
			assert.GreaterOrEqual(t, v, lower)
			assert.LessOrEqual(t, v, upper)
		}
		assert.Equal(t, upper, capped[6])
		assert.Equal(t, lower, capped[7])
		assert.Equal(t, 10.0, capped[0])
	})

	t.Run("不修改输入切片", func(t *testing.T) {
		col := []float64{1, 2, 3, 4, 5, 100}
		_ = CapOutliersIQR(col)
		assert.Equal(t, 100.0, col[5])
	})
}
