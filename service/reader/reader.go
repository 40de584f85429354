/*
 * @module service/reader/reader
 * @description 表格读取器，将 CSV / Excel 文件读取为全字符串的原始表格
 * @architecture 分层架构 - 数据接入层
 * @documentReference DESIGN.md
 * @stateFlow 文件路径 -> 格式识别 -> 解码 -> 原始表格
 * @rules 所有单元格按字符串读取；不可读文件返回可区分的 InputError，绝不 panic
 * @dependencies encoding/csv, golang.org/x/text/encoding/charmap, github.com/xuri/excelize/v2
 * @refs service/cleaning
 */

package reader

import (
	"bytes"
	"clientrisk-service/service/models"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// InputError 输入文件不可读或无法解析
type InputError struct {
	Path   string
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("无法读取输入文件 %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("无法读取输入文件 %s: %s", e.Path, e.Reason)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// IsInputError 判断错误是否为输入错误
func IsInputError(err error) bool {
	var inputErr *InputError
	return errors.As(err, &inputErr)
}

// ParseTable 按扩展名读取文件为原始表格
func ParseTable(path string) (*models.RawTable, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &InputError{Path: path, Reason: "读取文件失败", Err: err}
		}
		table, err := ParseCSV(bytes.NewReader(data))
		if err != nil {
			return nil, wrapInputError(path, err)
		}
		return table, nil
	case ".xlsx", ".xlsm":
		return parseExcel(path)
	default:
		return nil, &InputError{Path: path, Reason: fmt.Sprintf("不支持的文件格式 %q", filepath.Ext(path))}
	}
}

// ParseCSV 读取 CSV 数据，自动识别分隔符与字符集
func ParseCSV(r io.Reader) (*models.RawTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &InputError{Reason: "读取数据失败", Err: err}
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &InputError{Reason: "文件为空"}
	}

	if !utf8.Valid(data) {
		decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
		if err != nil {
			return nil, &InputError{Reason: "字符集解码失败", Err: err}
		}
		data = decoded
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = detectSeparator(data)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, &InputError{Reason: "CSV 解析失败", Err: err}
	}
	return buildTable(records)
}

func parseExcel(path string) (*models.RawTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &InputError{Path: path, Reason: "打开 Excel 文件失败", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &InputError{Path: path, Reason: "Excel 文件没有工作表"}
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &InputError{Path: path, Reason: "读取工作表失败", Err: err}
	}

	table, err := buildTable(rows)
	if err != nil {
		return nil, wrapInputError(path, err)
	}
	return table, nil
}

// buildTable 以第一行非空记录为表头构建原始表格
func buildTable(records [][]string) (*models.RawTable, error) {
	start := -1
	for i, rec := range records {
		if !isBlankRecord(rec) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, &InputError{Reason: "未找到表头"}
	}

	columns := uniqueHeaders(records[start])
	table := &models.RawTable{
		Columns: columns,
		Rows:    make([]models.RawRow, 0, len(records)-start-1),
	}

	for _, rec := range records[start+1:] {
		if isBlankRecord(rec) {
			continue
		}
		row := make(models.RawRow, len(columns))
		for i, col := range columns {
			// 缺失的单元格不写入
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func uniqueHeaders(header []string) []string {
	seen := make(map[string]int, len(header))
	columns := make([]string, 0, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = "column_" + strconv.Itoa(i+1)
		}
		if n, ok := seen[h]; ok {
			seen[h] = n + 1
			h = h + "." + strconv.Itoa(n+1)
		} else {
			seen[h] = 0
		}
		columns = append(columns, h)
	}
	return columns
}

func isBlankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// detectSeparator 根据表头行中出现次数最多的候选字符确定分隔符
func detectSeparator(data []byte) rune {
	line := data
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		line = data[:idx]
	}

	best, bestCount := ',', 0
	for _, sep := range []rune{',', ';', '\t'} {
		if n := strings.Count(string(line), string(sep)); n > bestCount {
			best, bestCount = sep, n
		}
	}
	return best
}

func wrapInputError(path string, err error) error {
	var inputErr *InputError
	if errors.As(err, &inputErr) {
		inputErr.Path = path
		return inputErr
	}
	return &InputError{Path: path, Reason: "解析失败", Err: err}
}
