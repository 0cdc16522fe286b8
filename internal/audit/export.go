package audit

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// SheetName 导出Excel的工作表名称
const SheetName = "Audit Log"

// headerFill 表头背景色
const headerFill = "0F766E"

var columnWidths = map[string]float64{
	"A": 13, "B": 11, "C": 16, "D": 18, "E": 14, "F": 28, "G": 46, "H": 12, "I": 34,
	"J": 10, "K": 14, "L": 14, "M": 20, "N": 16, "O": 13, "P": 20, "Q": 42,
}

// maxLineSize 单行日志最大长度
const maxLineSize = 1024 * 1024

// EachRow 逐行读取日志并转换为报表行，跳过空行
// 文件不存在时不产生任何行
func EachRow(path string, fn func(Row) error) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := fn(ParseLine(line)); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}
	return nil
}

// WriteCSV 以流的方式输出CSV报表
func WriteCSV(w io.Writer, path string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Fields); err != nil {
		return err
	}

	err := EachRow(path, func(row Row) error {
		if err := writer.Write(row); err != nil {
			return err
		}
		writer.Flush()
		return writer.Error()
	})
	if err != nil {
		return err
	}

	writer.Flush()
	return writer.Error()
}

// BuildXLSX 生成Excel报表，表头着色并冻结首行
func BuildXLSX(path string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return nil, err
	}

	for i := range Fields {
		name, _ := excelize.ColumnNumberToName(i + 1)
		if width, ok := columnWidths[name]; ok {
			if err := sw.SetColWidth(i+1, i+1, width); err != nil {
				return nil, err
			}
		}
	}
	if err := sw.SetPanes(&excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, err
	}

	header := make([]interface{}, len(Fields))
	for i, field := range Fields {
		header[i] = excelize.Cell{StyleID: headerStyle, Value: field}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return nil, err
	}

	rowNum := 2
	err = EachRow(path, func(row Row) error {
		values := make([]interface{}, len(row))
		for i, v := range row {
			values[i] = v
		}
		cell, _ := excelize.CoordinatesToCellName(1, rowNum)
		rowNum++
		return sw.SetRow(cell, values)
	})
	if err != nil {
		return nil, err
	}
	if err := sw.Flush(); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportFilename 生成下载文件名，如 system_audit_20250101_120000.csv
func ExportFilename(logPath, ext string, now time.Time) string {
	base := filepath.Base(logPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("%s_%s.%s", stem, now.UTC().Format("20060102_150405"), ext)
}
