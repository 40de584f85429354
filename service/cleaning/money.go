/*
 * @module service/cleaning/money
 * @description 金额字符串解析，兼容 "1 000 €"、"1,500.00"、"12,5" 等格式
 * @architecture 分层架构 - 数据清洗层
 * @documentReference DESIGN.md
 * @stateFlow 原始字符串 -> 去除空白与货币符号 -> 小数分隔符识别 -> 十进制解析
 * @rules 无法解析的值一律为 0.0
 * @dependencies github.com/shopspring/decimal
 * @refs service/cleaning/columns.go
 */

package cleaning

import (
	"math"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var currencyStripper = strings.NewReplacer(
	"€", "",
	"$", "",
	"£", "",
	"'", "",
	"’", "",
)

// ParseMoney 解析金额字符串，失败返回 0
func ParseMoney(value string) float64 {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, value)
	s = currencyStripper.Replace(s)
	if s == "" {
		return 0
	}

	s = normalizeSeparators(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// normalizeSeparators 统一小数分隔符为点号：
// 同时出现逗号与点号时，最右侧的为小数分隔符；只有一个逗号时视为小数逗号；
// 同一分隔符出现多次时视为千位分隔符。
func normalizeSeparators(s string) string {
	commas := strings.Count(s, ",")
	dots := strings.Count(s, ".")

	switch {
	case commas > 0 && dots > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case commas == 1:
		return strings.Replace(s, ",", ".", 1)
	case commas > 1:
		return strings.ReplaceAll(s, ",", "")
	case dots > 1:
		return strings.ReplaceAll(s, ".", "")
	default:
		return s
	}
}
