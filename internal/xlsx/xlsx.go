// Package xlsx 基于 excelize 的工作簿生成辅助函数
package xlsx

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// 常用颜色
const (
	ColorPrimary = "0F766E"
	ColorBorder  = "D6DEEA"
	ColorStripe  = "F6FAFF"
	ColorWhite   = "FFFFFF"
)

// File 生成好的下载文件
type File struct {
	Name string
	Data []byte
}

// ThinBorder 四边细边框
func ThinBorder(color string) []excelize.Border {
	sides := []string{"left", "right", "top", "bottom"}
	borders := make([]excelize.Border, 0, len(sides))
	for _, side := range sides {
		borders = append(borders, excelize.Border{Type: side, Color: color, Style: 1})
	}
	return borders
}

// HeaderStyle 白色粗体、纯色填充、居中的表头样式
func HeaderStyle(f *excelize.File, fill string, bordered bool) (int, error) {
	style := &excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: ColorWhite},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{fill}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	}
	if bordered {
		style.Border = ThinBorder(ColorBorder)
	}
	return f.NewStyle(style)
}

// WriteHeader 写入表头并应用样式
func WriteHeader(f *excelize.File, sheet string, headers []string, styleID int) error {
	values := make([]interface{}, len(headers))
	for i, h := range headers {
		values[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &values); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, styleID)
}

// SetWidths 按列名设置列宽，如 {"A": 18}
func SetWidths(f *excelize.File, sheet string, widths map[string]float64) error {
	for col, width := range widths {
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return err
		}
	}
	return nil
}

// FreezeHeader 冻结首行
func FreezeHeader(f *excelize.File, sheet string) error {
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// AppendRow 在指定行写入一行数据
func AppendRow(f *excelize.File, sheet string, row int, values ...interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// Bytes 输出工作簿内容
func Bytes(f *excelize.File) ([]byte, error) {
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
