package subject

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/tis/internal/auth"
	"github.com/weiwangfds/tis/internal/database"
	apperrors "github.com/weiwangfds/tis/internal/errors"
	"github.com/weiwangfds/tis/internal/testutil"
	"github.com/xuri/excelize/v2"
)

func intPtr(v int) *int { return &v }

func TestNormalizeAndValidate(t *testing.T) {
	assert.Equal(t, "ENG101", NormalizeCode("  eng 101 "))
	assert.Equal(t, "Social Studies", NormalizeName(" social   STUDIES"))

	assert.Empty(t, Validate("ENG101", "English", intPtr(4), intPtr(0)))
	assert.Equal(t, []string{MsgCodeRequired, MsgNameRequired, MsgWeeklyHours, MsgGrade},
		Validate("", "", nil, nil))
	assert.Equal(t, []string{MsgCodeFormat, MsgNameFormat, MsgWeeklyHours, MsgGrade},
		Validate("EN101", "1st", intPtr(0), intPtr(13)))
}

func TestSubjectCRUD(t *testing.T) {
	f := testutil.NewFixture(t)
	svc := NewSubjectService(f.DB)
	admin := f.Actor(t, "admin", auth.RoleAdministrator)
	limited := f.Actor(t, "viewer", auth.RoleLimited)

	t.Run("创建科目", func(t *testing.T) {
		subject, err := svc.Create(admin, &Input{SubjectCode: "eng101", SubjectName: "english", WeeklyHours: intPtr(4), Grade: intPtr(5)})
		require.NoError(t, err)
		assert.Equal(t, "ENG101", subject.SubjectCode)
		assert.Equal(t, "English", subject.SubjectName)
		assert.Equal(t, f.Branch.ID, subject.BranchID)
	})

	t.Run("编码重复", func(t *testing.T) {
		_, err := svc.Create(admin, &Input{SubjectCode: "ENG101", SubjectName: "English", WeeklyHours: intPtr(4), Grade: intPtr(5)})
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrRecordAlreadyExists))
	})

	t.Run("校验失败", func(t *testing.T) {
		_, err := svc.Create(admin, &Input{SubjectCode: "bad", SubjectName: "English"})
		appErr, ok := apperrors.GetAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrValidation, appErr.Code)
		assert.Equal(t, []string{MsgCodeFormat, MsgWeeklyHours, MsgGrade}, appErr.Errors)
	})

	t.Run("只读角色不能创建", func(t *testing.T) {
		_, err := svc.Create(limited, &Input{SubjectCode: "ART101", SubjectName: "Art", WeeklyHours: intPtr(2), Grade: intPtr(1)})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))
	})

	t.Run("列表与权限标记", func(t *testing.T) {
		result, err := svc.List(limited)
		require.NoError(t, err)
		assert.Len(t, result.Subjects, 1)
		assert.False(t, result.CanModify)
	})

	t.Run("更新与范围检查", func(t *testing.T) {
		list, err := svc.List(admin)
		require.NoError(t, err)
		id := list.Subjects[0].ID

		updated, err := svc.Update(admin, id, &Input{SubjectCode: "ENG102", SubjectName: "English Language", WeeklyHours: intPtr(5), Grade: intPtr(5)})
		require.NoError(t, err)
		assert.Equal(t, "ENG102", updated.SubjectCode)

		other := *admin
		other.ScopeAcademicYearID = f.PastYear.ID
		_, err = svc.Get(&other, id)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
	})
}

func TestSubjectDelete(t *testing.T) {
	f := testutil.NewFixture(t)
	svc := NewSubjectService(f.DB)
	admin := f.Actor(t, "admin", auth.RoleAdministrator)
	editor := f.Actor(t, "editor", auth.RoleEditor)

	used := f.CreateSubject(t, admin, "MAT101", 24, 1)
	free := f.CreateSubject(t, admin, "ART101", 2, 1)
	free2 := f.CreateSubject(t, admin, "MUS101", 2, 1)
	f.CreateTeacher(t, admin, "1234567890", 24, "MAT101")

	assert.True(t, apperrors.HasCode(svc.Delete(editor, free.ID), apperrors.ErrForbidden))
	assert.True(t, apperrors.HasCode(svc.Delete(admin, used.ID), apperrors.ErrSubjectInUse))
	require.NoError(t, svc.Delete(admin, 9999))
	require.NoError(t, svc.Delete(admin, free.ID))

	t.Run("批量删除", func(t *testing.T) {
		_, err := svc.BulkDelete(admin, nil)
		assert.Equal(t, MsgBulkEmpty, err.(*apperrors.AppError).Message)

		_, err = svc.BulkDelete(admin, []uint{free2.ID, 9999})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

		_, err = svc.BulkDelete(admin, []uint{free2.ID, used.ID})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrSubjectInUse))

		msg, err := svc.BulkDelete(admin, []uint{free2.ID, free2.ID})
		require.NoError(t, err)
		assert.Equal(t, "Subject deleted successfully.", msg)

		var count int64
		f.DB.Model(&database.Subject{}).Count(&count)
		assert.Equal(t, int64(1), count)
	})
}

func buildWorkbook(t *testing.T, rows [][]interface{}) *bytes.Reader {
	t.Helper()
	wb := excelize.NewFile()
	defer wb.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, wb.SetSheetRow("Sheet1", cell, &r))
	}
	buf, err := wb.WriteToBuffer()
	require.NoError(t, err)
	return bytes.NewReader(buf.Bytes())
}

func TestSubjectImport(t *testing.T) {
	f := testutil.NewFixture(t)
	svc := NewSubjectService(f.DB)
	admin := f.Actor(t, "admin", auth.RoleAdministrator)
	f.CreateSubject(t, admin, "SCI101", 3, 2)

	header := []interface{}{"Subject_Code", " subject_name ", "weekly_hours", "grade"}

	t.Run("文件检查", func(t *testing.T) {
		_, err := svc.Import(admin, "", nil)
		assert.Equal(t, MsgImportNoFile, err.(*apperrors.AppError).Message)
		_, err = svc.Import(admin, "subjects.csv", bytes.NewReader(nil))
		assert.Equal(t, MsgImportNotXLSX, err.(*apperrors.AppError).Message)
		_, err = svc.Import(admin, "subjects.xlsx", bytes.NewReader([]byte("not a zip")))
		assert.Equal(t, MsgImportUnreadable, err.(*apperrors.AppError).Message)
	})

	t.Run("表头不匹配", func(t *testing.T) {
		_, err := svc.Import(admin, "s.xlsx", buildWorkbook(t, [][]interface{}{{"code", "name"}}))
		appErr := err.(*apperrors.AppError)
		assert.Equal(t, MsgImportBadTemplate, appErr.Message)
		assert.Equal(t, []string{MsgImportHeaderDetail}, appErr.Errors)
	})

	t.Run("没有数据行", func(t *testing.T) {
		_, err := svc.Import(admin, "s.xlsx", buildWorkbook(t, [][]interface{}{header, {"", "", "", ""}}))
		assert.Equal(t, MsgImportNoRows, err.(*apperrors.AppError).Message)
	})

	t.Run("任意错误阻止导入", func(t *testing.T) {
		_, err := svc.Import(admin, "s.xlsx", buildWorkbook(t, [][]interface{}{
			header,
			{"eng101", "english", 4, 5},
			{"ENG101", "English", "4.0", 5},
			{"SCI101", "Science", 3, 2},
			{"BAD", "English", 4.5, 14},
		}))
		appErr := err.(*apperrors.AppError)
		assert.Equal(t, apperrors.ErrImportBlocked, appErr.Code)
		assert.Equal(t, []string{
			"Row 5: " + MsgCodeFormat + " " + MsgWeeklyHours + " " + MsgGrade,
			"Duplicate subject codes inside Excel file: ENG101",
			"These subject codes already exist in the system: SCI101",
		}, appErr.Errors)

		var count int64
		f.DB.Model(&database.Subject{}).Count(&count)
		assert.Equal(t, int64(1), count)
	})

	t.Run("导入成功", func(t *testing.T) {
		count, err := svc.Import(admin, "S.XLSX", buildWorkbook(t, [][]interface{}{
			header,
			{"eng101", "english", "4.0", 0},
			{nil, nil, nil, nil},
			{"MAT 102", "mathematics", 5, "6"},
		}))
		require.NoError(t, err)
		assert.Equal(t, 2, count)
		assert.Equal(t, "Import successful. 2 subject(s) added.", ImportMessage(count))
	})
}

func TestTemplateAndExport(t *testing.T) {
	f := testutil.NewFixture(t)
	svc := NewSubjectService(f.DB)
	admin := f.Actor(t, "admin", auth.RoleAdministrator)
	f.CreateSubject(t, admin, "ENG101", 4, 0)
	f.CreateSubject(t, admin, "MAT101", 5, 0)
	f.CreateSubject(t, admin, "SCI301", 3, 3)

	t.Run("模板", func(t *testing.T) {
		file, err := svc.Template()
		require.NoError(t, err)
		assert.Equal(t, "subjects_template.xlsx", file.Name)

		wb, err := excelize.OpenReader(bytes.NewReader(file.Data))
		require.NoError(t, err)
		defer wb.Close()
		rows, err := wb.GetRows("Subjects")
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, TemplateHeaders, rows[0])
	})

	t.Run("导出", func(t *testing.T) {
		file, err := svc.Export(admin)
		require.NoError(t, err)
		assert.Regexp(t, `^subjects_export_\d{8}_\d{6}\.xlsx$`, file.Name)

		wb, err := excelize.OpenReader(bytes.NewReader(file.Data))
		require.NoError(t, err)
		defer wb.Close()

		assert.Len(t, wb.GetSheetList(), 14)
		summary, err := wb.GetRows("Summary")
		require.NoError(t, err)
		require.Len(t, summary, 15)
		assert.Equal(t, []string{"KG", "2", "9", "Open"}, summary[1])
		assert.Equal(t, []string{"All Levels", "3", "12", "-"}, summary[14])

		grade1, err := wb.GetRows("Grade 1")
		require.NoError(t, err)
		assert.Equal(t, "No subjects found for this grade.", grade1[1][1])

		grade3, err := wb.GetRows("Grade 3")
		require.NoError(t, err)
		assert.Equal(t, []string{"SCI301", "Subject SCI301", "3", "Grade 3"}, grade3[1])
	})
}
