package subject

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/weiwangfds/tis/internal/auth"
	"github.com/weiwangfds/tis/internal/database"
	apperrors "github.com/weiwangfds/tis/internal/errors"
	"github.com/weiwangfds/tis/internal/logger"
	"github.com/weiwangfds/tis/internal/textutil"
	"github.com/weiwangfds/tis/internal/xlsx"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// TemplateHeaders 导入模板的表头
var TemplateHeaders = []string{"subject_code", "subject_name", "weekly_hours", "grade"}

// 导入相关提示
const (
	MsgImportNoFile       = "Please choose an Excel file before importing."
	MsgImportNotXLSX      = "Only .xlsx Excel files are supported."
	MsgImportUnreadable   = "Unable to read the Excel file. Please use the template and try again."
	MsgImportBadTemplate  = "Invalid template format."
	MsgImportHeaderDetail = "Expected first row headers: subject_code, subject_name, weekly_hours, grade."
	MsgImportNoRows       = "No valid data rows found in the file."
	MsgImportBlocked      = "Import blocked. Please fix the file and try again."
)

// gradeColors 导出时各年级工作表的颜色
var gradeColors = map[int]string{
	0:  "0F766E",
	1:  "1D4ED8",
	2:  "2563EB",
	3:  "3B82F6",
	4:  "0891B2",
	5:  "0EA5E9",
	6:  "0D9488",
	7:  "059669",
	8:  "65A30D",
	9:  "CA8A04",
	10: "D97706",
	11: "EA580C",
	12: "DC2626",
}

// Template 生成导入模板
func (s *subjectService) Template() (*xlsx.File, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Subjects"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	style, err := xlsx.HeaderStyle(f, xlsx.ColorPrimary, false)
	if err != nil {
		return nil, err
	}
	if err := xlsx.WriteHeader(f, sheet, TemplateHeaders, style); err != nil {
		return nil, err
	}
	if err := xlsx.AppendRow(f, sheet, 2, "ENG101", "English", 4, 5); err != nil {
		return nil, err
	}
	if err := xlsx.AppendRow(f, sheet, 3, "MAT102", "Mathematics", 5, 6); err != nil {
		return nil, err
	}
	if err := xlsx.SetWidths(f, sheet, map[string]float64{"A": 18, "B": 30, "C": 16, "D": 12}); err != nil {
		return nil, err
	}
	if err := xlsx.FreezeHeader(f, sheet); err != nil {
		return nil, err
	}

	data, err := xlsx.Bytes(f)
	if err != nil {
		return nil, err
	}
	return &xlsx.File{Name: "subjects_template.xlsx", Data: data}, nil
}

// exportStyles 导出用到的单元格样式
type exportStyles struct {
	stripe    int
	plain     int
	centered  int
	stripeMid int
	empty     int
	link      int
	totals    int
}

type styleDef struct {
	target *int
	style  *excelize.Style
}

func newExportStyles(f *excelize.File) (*exportStyles, error) {
	border := xlsx.ThinBorder(xlsx.ColorBorder)
	left := &excelize.Alignment{Horizontal: "left", Vertical: "center"}
	center := &excelize.Alignment{Horizontal: "center", Vertical: "center"}
	stripe := excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{xlsx.ColorStripe}}

	styles := &exportStyles{}
	defs := []styleDef{
		{&styles.plain, &excelize.Style{Border: border, Alignment: left}},
		{&styles.centered, &excelize.Style{Border: border, Alignment: center}},
		{&styles.stripe, &excelize.Style{Border: border, Alignment: left, Fill: stripe}},
		{&styles.stripeMid, &excelize.Style{Border: border, Alignment: center, Fill: stripe}},
		{&styles.empty, &excelize.Style{Border: border, Alignment: left, Font: &excelize.Font{Italic: true, Color: "667085"}}},
		{&styles.link, &excelize.Style{Border: border, Alignment: center, Font: &excelize.Font{Bold: true, Color: "2563EB", Underline: "single"}}},
		{&styles.totals, &excelize.Style{
			Border:    border,
			Alignment: center,
			Font:      &excelize.Font{Bold: true, Color: "0B4F4A"},
			Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"E3F3EF"}},
		}},
	}

	for _, def := range defs {
		id, err := f.NewStyle(def.style)
		if err != nil {
			return nil, err
		}
		*def.target = id
	}
	return styles, nil
}

// Export 导出科目：汇总表加 KG 到 12 年级共 13 个工作表
func (s *subjectService) Export(actor *auth.Actor) (*xlsx.File, error) {
	var subjects []database.Subject
	if err := s.scoped(actor).Order("grade ASC").Order("subject_code ASC").Find(&subjects).Error; err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}

	byGrade := make(map[int][]database.Subject, 13)
	for _, subject := range subjects {
		if subject.Grade < 0 || subject.Grade > 12 {
			continue
		}
		byGrade[subject.Grade] = append(byGrade[subject.Grade], subject)
	}

	f := excelize.NewFile()
	defer f.Close()

	const summary = "Summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return nil, err
	}
	styles, err := newExportStyles(f)
	if err != nil {
		return nil, err
	}

	summaryHeader, err := xlsx.HeaderStyle(f, xlsx.ColorPrimary, true)
	if err != nil {
		return nil, err
	}
	if err := xlsx.WriteHeader(f, summary, []string{"Grade Level", "Subjects Count", "Total Weekly Hours", "Open Sheet"}, summaryHeader); err != nil {
		return nil, err
	}
	if err := xlsx.SetWidths(f, summary, map[string]float64{"A": 18, "B": 16, "C": 20, "D": 14}); err != nil {
		return nil, err
	}
	if err := xlsx.FreezeHeader(f, summary); err != nil {
		return nil, err
	}

	totalCount, totalHours := 0, 0
	summaryRow := 2
	for grade := 0; grade <= 12; grade++ {
		label := GradeLabel(grade)
		gradeSubjects := byGrade[grade]
		hours := 0
		for _, subject := range gradeSubjects {
			hours += subject.WeeklyHours
		}
		totalCount += len(gradeSubjects)
		totalHours += hours

		if err := s.writeGradeSheet(f, styles, grade, label, gradeSubjects); err != nil {
			return nil, err
		}

		if err := xlsx.AppendRow(f, summary, summaryRow, label, len(gradeSubjects), hours, "Open"); err != nil {
			return nil, err
		}
		linkCell := fmt.Sprintf("D%d", summaryRow)
		if err := f.SetCellHyperLink(summary, linkCell, fmt.Sprintf("'%s'!A1", label), "Location"); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(summary, fmt.Sprintf("A%d", summaryRow), fmt.Sprintf("C%d", summaryRow), styles.centered); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(summary, linkCell, linkCell, styles.link); err != nil {
			return nil, err
		}
		summaryRow++
	}

	if err := xlsx.AppendRow(f, summary, summaryRow, "All Levels", totalCount, totalHours, "-"); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(summary, fmt.Sprintf("A%d", summaryRow), fmt.Sprintf("D%d", summaryRow), styles.totals); err != nil {
		return nil, err
	}
	if err := f.AutoFilter(summary, fmt.Sprintf("A1:D%d", summaryRow), nil); err != nil {
		return nil, err
	}
	f.SetActiveSheet(0)

	data, err := xlsx.Bytes(f)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("subjects_export_%s.xlsx", s.now().UTC().Format("20060102_150405"))
	return &xlsx.File{Name: name, Data: data}, nil
}

func (s *subjectService) writeGradeSheet(f *excelize.File, styles *exportStyles, grade int, label string, subjects []database.Subject) error {
	sheet := label
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	color := gradeColors[grade]
	header, err := xlsx.HeaderStyle(f, color, true)
	if err != nil {
		return err
	}
	if err := xlsx.WriteHeader(f, sheet, []string{"Subject Code", "Subject Name", "Weekly Hours", "Grade Level"}, header); err != nil {
		return err
	}
	if err := xlsx.FreezeHeader(f, sheet); err != nil {
		return err
	}
	if err := f.SetSheetProps(sheet, &excelize.SheetPropsOptions{TabColorRGB: &color}); err != nil {
		return err
	}

	lastRow := 2
	if len(subjects) == 0 {
		if err := xlsx.AppendRow(f, sheet, 2, "-", "No subjects found for this grade.", "-", label); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A2", "D2", styles.plain); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "B2", "B2", styles.empty); err != nil {
			return err
		}
	} else {
		for i, subject := range subjects {
			row := i + 2
			if err := xlsx.AppendRow(f, sheet, row, subject.SubjectCode, subject.SubjectName, subject.WeeklyHours, label); err != nil {
				return err
			}
			textStyle, midStyle := styles.plain, styles.centered
			if row%2 == 0 {
				textStyle, midStyle = styles.stripe, styles.stripeMid
			}
			if err := f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("B%d", row), textStyle); err != nil {
				return err
			}
			if err := f.SetCellStyle(sheet, fmt.Sprintf("C%d", row), fmt.Sprintf("D%d", row), midStyle); err != nil {
				return err
			}
			lastRow = row
		}
	}

	if err := xlsx.SetWidths(f, sheet, map[string]float64{"A": 18, "B": 34, "C": 16, "D": 14}); err != nil {
		return err
	}
	return f.AutoFilter(sheet, fmt.Sprintf("A1:D%d", lastRow), nil)
}

// importRow 通过校验的一行
type importRow struct {
	code        string
	name        string
	weeklyHours int
	grade       int
}

// Import 导入科目
func (s *subjectService) Import(actor *auth.Actor, filename string, r io.Reader) (int, error) {
	if !actor.Can(auth.CanModifyData) {
		return 0, apperrors.Forbidden(msgReadOnlyImport)
	}
	if r == nil || strings.TrimSpace(filename) == "" {
		return 0, apperrors.Validation(MsgImportNoFile)
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".xlsx") {
		return 0, apperrors.Validation(MsgImportNotXLSX)
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		logger.Warnf("[科目服务] 无法读取导入文件 %s: %v", filename, err)
		return 0, apperrors.Validation(MsgImportUnreadable)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		return 0, apperrors.Validation(MsgImportUnreadable)
	}

	if !headersMatch(rows) {
		return 0, apperrors.Validation(MsgImportBadTemplate, MsgImportHeaderDetail)
	}

	var (
		rowErrors []string
		prepared  []importRow
		codeCount = map[string]int{}
		codes     []string
	)
	for i := 1; i < len(rows); i++ {
		cells := padRow(rows[i], 4)
		if isBlankRow(cells) {
			continue
		}

		code := NormalizeCode(cells[0])
		name := NormalizeName(cells[1])
		var weeklyHours, grade *int
		if v, ok := textutil.ParseLenientInt(cells[2]); ok {
			weeklyHours = &v
		}
		if v, ok := textutil.ParseLenientInt(cells[3]); ok {
			grade = &v
		}

		if errs := Validate(code, name, weeklyHours, grade); len(errs) > 0 {
			rowErrors = append(rowErrors, fmt.Sprintf("Row %d: %s", i+1, strings.Join(errs, " ")))
			continue
		}

		if codeCount[code] == 0 {
			codes = append(codes, code)
		}
		codeCount[code]++
		prepared = append(prepared, importRow{code: code, name: name, weeklyHours: *weeklyHours, grade: *grade})
	}

	if len(prepared) == 0 && len(rowErrors) == 0 {
		return 0, apperrors.Validation(MsgImportNoRows)
	}

	var duplicates []string
	for code, count := range codeCount {
		if count > 1 {
			duplicates = append(duplicates, code)
		}
	}
	if len(duplicates) > 0 {
		sort.Strings(duplicates)
		rowErrors = append(rowErrors, "Duplicate subject codes inside Excel file: "+strings.Join(duplicates, ", "))
	}

	if len(codes) > 0 {
		var existing []string
		if err := s.db.Model(&database.Subject{}).Where("subject_code IN ?", codes).Distinct().Pluck("subject_code", &existing).Error; err != nil {
			return 0, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
		}
		if len(existing) > 0 {
			sort.Strings(existing)
			rowErrors = append(rowErrors, "These subject codes already exist in the system: "+strings.Join(existing, ", "))
		}
	}

	if len(rowErrors) > 0 {
		return 0, apperrors.New(apperrors.ErrImportBlocked, MsgImportBlocked).WithErrors(rowErrors...)
	}

	subjects := make([]database.Subject, 0, len(prepared))
	for _, row := range prepared {
		subjects = append(subjects, database.Subject{
			SubjectCode:    row.code,
			SubjectName:    row.name,
			WeeklyHours:    row.weeklyHours,
			Grade:          row.grade,
			BranchID:       actor.ScopeBranchID,
			AcademicYearID: actor.ScopeAcademicYearID,
		})
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&subjects).Error
	})
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrRecordAlreadyExists, "Import failed due to duplicate subject code conflict.", err)
	}

	logger.Infof("[科目服务] 账号 %s 从 %s 导入 %d 个科目", actor.User.UserID, filename, len(subjects))
	return len(subjects), nil
}

func headersMatch(rows [][]string) bool {
	if len(rows) == 0 {
		return false
	}
	header := padRow(rows[0], 4)
	for i, expected := range TemplateHeaders {
		if textutil.CollapseSpaces(strings.ToLower(header[i])) != expected {
			return false
		}
	}
	return true
}

func padRow(row []string, n int) []string {
	cells := make([]string, n)
	copy(cells, row)
	return cells
}

func isBlankRow(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// ImportMessage 导入成功提示
func ImportMessage(count int) string {
	return fmt.Sprintf("Import successful. %d subject(s) added.", count)
}
