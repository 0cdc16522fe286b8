package teacher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/tis/internal/auth"
	"github.com/weiwangfds/tis/internal/database"
	apperrors "github.com/weiwangfds/tis/internal/errors"
	"github.com/weiwangfds/tis/internal/testutil"
)

func validInput() *Input {
	return &Input{
		TeacherID:    "1234567890",
		FirstName:    "  sara ",
		MiddleName:   "",
		LastName:     "al ahmad",
		SubjectCodes: []string{"eng101", "MAT101", "ENG101"},
		Level:        " Grade  5 ",
		MaxHours:     "24",
	}
}

func TestNormalizeCodes(t *testing.T) {
	assert.Equal(t, []string{"ENG101", "MAT101"}, NormalizeCodes([]string{" eng101", "", "MAT101", "ENG101"}))
}

func TestTeacherCreate(t *testing.T) {
	f := testutil.NewFixture(t)
	svc := NewTeacherService(f.DB)
	admin := f.Actor(t, "admin", auth.RoleAdministrator)
	f.CreateSubject(t, admin, "ENG101", 20, 5)
	f.CreateSubject(t, admin, "MAT101", 4, 5)
	f.CreateSubject(t, admin, "SCI101", 6, 5)

	t.Run("创建成功", func(t *testing.T) {
		teacher, err := svc.Create(admin, validInput())
		require.NoError(t, err)
		assert.Equal(t, "Sara", teacher.FirstName)
		assert.Equal(t, "Al Ahmad", teacher.LastName)
		assert.Nil(t, teacher.MiddleName)
		assert.Equal(t, "ENG101", teacher.SubjectCode)
		assert.Equal(t, "Grade 5", teacher.Level)
		assert.Equal(t, 0, teacher.ExtraHoursCount)

		var allocations []database.TeacherSubjectAllocation
		require.NoError(t, f.DB.Where("teacher_id = ?", teacher.ID).Find(&allocations).Error)
		assert.Len(t, allocations, 2)
	})

	t.Run("编号重复", func(t *testing.T) {
		_, err := svc.Create(admin, validInput())
		appErr, ok := apperrors.GetAppError(err)
		require.True(t, ok)
		assert.Equal(t, []string{MsgTeacherIDExists}, appErr.Errors)
	})

	t.Run("只有课时不一致", func(t *testing.T) {
		in := validInput()
		in.TeacherID = "42"
		in.SubjectCodes = []string{"ENG101"}
		_, err := svc.Create(admin, in)
		appErr, ok := apperrors.GetAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrAllocationMismatch, appErr.Code)
		assert.Equal(t, []string{"Allocated subject hours (20) must exactly match Max Hours (24)."}, appErr.Errors)
	})

	t.Run("多项校验错误按顺序返回", func(t *testing.T) {
		_, err := svc.Create(admin, &Input{
			TeacherID:         "12ab",
			FirstName:         "",
			MiddleName:        "J4",
			LastName:          "Smith1",
			SubjectCodes:      []string{"ZZZ999"},
			Level:             "Grade 13",
			MaxHours:          "30",
			ExtraHoursAllowed: "",
		})
		appErr, ok := apperrors.GetAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrValidation, appErr.Code)
		assert.Equal(t, []string{
			MsgTeacherID,
			MsgFirstNameRequired,
			MsgMiddleNameLetters,
			MsgLastNameLetters,
			MsgSubjectsMissing + "ZZZ999",
			MsgInvalidLevel,
			MsgMaxHoursExtra,
		}, appErr.Errors)
	})

	t.Run("开启加班后允许超过24课时", func(t *testing.T) {
		in := validInput()
		in.TeacherID = "777"
		in.SubjectCodes = []string{"ENG101", "SCI101"}
		in.MaxHours = "26"
		in.ExtraHoursAllowed = "on"
		_, err := svc.Create(admin, in)
		appErr, _ := apperrors.GetAppError(err)
		require.NotNil(t, appErr)
		assert.Equal(t, []string{MsgExtraHoursCount}, appErr.Errors)

		in.ExtraHoursCount = "2"
		teacher, err := svc.Create(admin, in)
		require.NoError(t, err)
		assert.True(t, teacher.ExtraHoursAllowed)
		assert.Equal(t, 26, teacher.MaxHours)
		assert.Equal(t, 2, teacher.ExtraHoursCount)
	})

	t.Run("只读角色", func(t *testing.T) {
		limited := f.Actor(t, "viewer", auth.RoleLimited)
		_, err := svc.Create(limited, validInput())
		assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))
	})
}

func TestTeacherListUpdateDelete(t *testing.T) {
	f := testutil.NewFixture(t)
	svc := NewTeacherService(f.DB)
	admin := f.Actor(t, "admin", auth.RoleAdministrator)
	f.CreateSubject(t, admin, "ENG101", 20, 5)
	f.CreateSubject(t, admin, "MAT101", 4, 5)
	teacher := f.CreateTeacher(t, admin, "555", 24, "ENG101")

	t.Run("列表包含分配汇总", func(t *testing.T) {
		result, err := svc.List(admin)
		require.NoError(t, err)
		require.Len(t, result.Teachers, 1)
		row := result.Teachers[0]
		assert.Equal(t, []string{"ENG101 (20h)"}, row.Allocation.SubjectLabels)
		assert.Equal(t, 20, row.Allocation.AllocatedHours)
		assert.False(t, row.Allocation.MatchesMaxHours)
		assert.Len(t, result.SubjectChoices, 2)
		assert.Equal(t, LevelOptions, result.LevelOptions)
	})

	t.Run("更新替换分配", func(t *testing.T) {
		in := validInput()
		in.TeacherID = "555"
		in.SubjectCodes = []string{"MAT101", "ENG101"}
		updated, err := svc.Update(admin, teacher.ID, in)
		require.NoError(t, err)
		assert.Equal(t, "MAT101", updated.SubjectCode)

		view, err := svc.Get(admin, teacher.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"ENG101", "MAT101"}, view.AssignedSubjectCodes)

		result, err := svc.List(admin)
		require.NoError(t, err)
		assert.True(t, result.Teachers[0].Allocation.MatchesMaxHours)
	})

	t.Run("删除时清除班主任", func(t *testing.T) {
		section := database.PlanningSection{
			GradeLevel:        "5",
			SectionName:       "A",
			ClassStatus:       "Current",
			HomeroomTeacherID: &teacher.ID,
			BranchID:          admin.ScopeBranchID,
			AcademicYearID:    admin.ScopeAcademicYearID,
		}
		require.NoError(t, f.DB.Create(&section).Error)

		editor := f.Actor(t, "editor", auth.RoleEditor)
		assert.True(t, apperrors.HasCode(svc.Delete(editor, teacher.ID), apperrors.ErrForbidden))

		require.NoError(t, svc.Delete(admin, teacher.ID))
		require.NoError(t, svc.Delete(admin, teacher.ID))

		var reloaded database.PlanningSection
		require.NoError(t, f.DB.First(&reloaded, section.ID).Error)
		assert.Nil(t, reloaded.HomeroomTeacherID)

		var count int64
		f.DB.Model(&database.TeacherSubjectAllocation{}).Count(&count)
		assert.Zero(t, count)
	})
}
