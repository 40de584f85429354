/*
 * @module service/models/schema
 * @description 客户规范字段表：字段顺序、默认值、边界与列名别名的唯一来源
 * @architecture 数据模型层
 * @documentReference DESIGN.md
 * @stateFlow 清洗器/异常检测器/记录重建 -> 查询字段表
 * @rules 所有默认值与边界只在此处定义，避免组件之间的漂移
 * @dependencies strconv
 * @refs service/cleaning, service/anomaly
 */

package models

import (
	"strconv"
)

// FieldKind 字段类型
type FieldKind string

const (
	FieldKindText  FieldKind = "text"
	FieldKindInt   FieldKind = "int"
	FieldKindFloat FieldKind = "float"
	FieldKindEnum  FieldKind = "enum"
	FieldKindMoney FieldKind = "money"
)

// 规范字段名
const (
	FieldName        = "name"
	FieldAge         = "age"
	FieldGender      = "gender"
	FieldBalance     = "balance"
	FieldIncome      = "income"
	FieldRegion      = "region"
	FieldSegment     = "segment"
	FieldTenureYears = "tenure_years"
	FieldBaseScore   = "base_score"
)

// 业务边界
const (
	MinAge        = 18
	MaxAge        = 100
	MinFinalScore = 0
	MaxFinalScore = 1000
)

// FieldSpec 规范字段定义
type FieldSpec struct {
	Name    string
	Kind    FieldKind
	Default string
	Aliases []string
	Min     *float64
	Max     *float64
}

func bound(v float64) *float64 { return &v }

// ClientSchema 规范字段表，顺序即入库列顺序
var ClientSchema = []FieldSpec{
	{
		Name:    FieldName,
		Kind:    FieldKindText,
		Default: "Unknown Client",
		Aliases: []string{"name", "nom", "client", "client_name", "nom_client", "full_name", "nom complet", "nom_complet"},
	},
	{
		Name:    FieldAge,
		Kind:    FieldKindInt,
		Default: "30",
		Aliases: []string{"age", "âge", "age_client"},
		Min:     bound(MinAge),
		Max:     bound(MaxAge),
	},
	{
		Name:    FieldGender,
		Kind:    FieldKindEnum,
		Default: string(GenderMale),
		Aliases: []string{"gender", "sexe", "sex", "genre"},
	},
	{
		Name:    FieldBalance,
		Kind:    FieldKindMoney,
		Default: "0",
		Aliases: []string{"balance", "solde", "solde (€)"},
	},
	{
		Name:    FieldIncome,
		Kind:    FieldKindMoney,
		Default: "0",
		Aliases: []string{"income", "revenu", "revenus", "revenue", "salaire", "salary"},
	},
	{
		Name:    FieldRegion,
		Kind:    FieldKindText,
		Default: "Unknown",
		Aliases: []string{"region", "région", "area"},
	},
	{
		Name:    FieldSegment,
		Kind:    FieldKindEnum,
		Default: string(SegmentStandard),
		Aliases: []string{"segment", "categorie", "catégorie"},
	},
	{
		Name:    FieldTenureYears,
		Kind:    FieldKindInt,
		Default: "0",
		Aliases: []string{"tenure_years", "tenure", "anciennete", "ancienneté", "seniority"},
		Min:     bound(0),
	},
	{
		Name:    FieldBaseScore,
		Kind:    FieldKindMoney,
		Default: "500",
		Aliases: []string{"base_score", "score_initial", "initial_score", "score"},
	},
}

var (
	fieldIndex = map[string]FieldSpec{}
	aliasIndex = map[string]string{}
)

func init() {
	for _, f := range ClientSchema {
		fieldIndex[f.Name] = f
		for _, alias := range f.Aliases {
			aliasIndex[alias] = f.Name
		}
	}
}

// CanonicalFieldNames 返回规范字段名（按入库顺序）
func CanonicalFieldNames() []string {
	names := make([]string, 0, len(ClientSchema))
	for _, f := range ClientSchema {
		names = append(names, f.Name)
	}
	return names
}

// FieldByName 按规范字段名查找字段定义
func FieldByName(name string) (FieldSpec, bool) {
	f, ok := fieldIndex[name]
	return f, ok
}

// ResolveColumn 将已规范化（小写、去空格）的列名解析为规范字段名
func ResolveColumn(column string) (string, bool) {
	name, ok := aliasIndex[column]
	return name, ok
}

// DefaultValue 返回字段的字符串默认值
func DefaultValue(name string) string {
	return fieldIndex[name].Default
}

// DefaultFloat 返回数值字段的默认值，非数值字段返回0
func DefaultFloat(name string) float64 {
	v, err := strconv.ParseFloat(fieldIndex[name].Default, 64)
	if err != nil {
		return 0
	}
	return v
}

// InBounds 检查数值是否处于字段声明的边界内
func (f FieldSpec) InBounds(v float64) bool {
	if f.Min != nil && v < *f.Min {
		return false
	}
	if f.Max != nil && v > *f.Max {
		return false
	}
	return true
}
