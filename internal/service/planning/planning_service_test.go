package planning

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/tis/internal/auth"
	apperrors "github.com/weiwangfds/tis/internal/errors"
	"github.com/weiwangfds/tis/internal/testutil"
	"github.com/weiwangfds/tis/internal/textutil"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "KG", NormalizeGrade(" kindergarten "))
	assert.Equal(t, "KG", NormalizeGrade("k"))
	assert.Equal(t, "7", NormalizeGrade("07"))
	assert.Equal(t, "", NormalizeGrade("13"))
	assert.Equal(t, "", NormalizeGrade("Grade 5"))

	assert.Equal(t, "B", NormalizeSection(" section b "))
	assert.Equal(t, "C", NormalizeSection("c"))

	assert.Equal(t, StatusNew, NormalizeStatus("NEW"))
	assert.Equal(t, StatusCurrent, NormalizeStatus(" current"))
	assert.Equal(t, "", NormalizeStatus("old"))

	assert.Equal(t, 0, GradeSortValue("KG"))
	assert.Equal(t, 12, GradeSortValue("12"))
	assert.Equal(t, 99, GradeSortValue("X"))
}

func TestPlanningCreate(t *testing.T) {
	f := testutil.NewFixture(t)
	svc := NewPlanningService(f.DB)
	admin := f.Actor(t, "admin", auth.RoleAdministrator)
	f.CreateSubject(t, admin, "ENG501", 6, 5)
	f.CreateSubject(t, admin, "ART501", 2, 5)
	f.CreateSubject(t, admin, "KGP001", 10, 0)
	teacher := f.CreateTeacher(t, admin, "101", 24, "ENG501")

	t.Run("创建成功", func(t *testing.T) {
		section, message, err := svc.Create(admin, &Input{
			GradeLevel:        "5",
			SectionName:       "section a",
			ClassStatus:       "current",
			HomeroomTeacherID: textutil.Loose(strconv.Itoa(int(teacher.ID))),
		})
		require.NoError(t, err)
		assert.Equal(t, "A", section.SectionName)
		assert.Equal(t, StatusCurrent, section.ClassStatus)
		require.NotNil(t, section.HomeroomTeacherID)
		assert.Equal(t, teacher.ID, *section.HomeroomTeacherID)
		assert.Equal(t, "Planning section created successfully: Grade 5 - Section A (8 allocated hours).", message)
	})

	t.Run("只有重复班级", func(t *testing.T) {
		_, _, err := svc.Create(admin, &Input{GradeLevel: "5", SectionName: "A", ClassStatus: "New"})
		appErr, ok := apperrors.GetAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrDuplicateSection, appErr.Code)
		assert.Equal(t, []string{MsgDuplicateSection}, appErr.Errors)
	})

	t.Run("多项错误按顺序返回", func(t *testing.T) {
		_, _, err := svc.Create(admin, &Input{
			GradeLevel:        "3",
			SectionName:       "Z",
			ClassStatus:       "Old",
			HomeroomTeacherID: "9999",
		})
		appErr, ok := apperrors.GetAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrValidation, appErr.Code)
		assert.Equal(t, []string{MsgSection, MsgStatus, MsgHomeroom, MsgNoSubjects}, appErr.Errors)
	})

	t.Run("只读角色", func(t *testing.T) {
		limited := f.Actor(t, "viewer", auth.RoleLimited)
		_, _, err := svc.Create(limited, &Input{GradeLevel: "KG", SectionName: "A", ClassStatus: "New"})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))
	})
}

func TestPlanningOverviewUpdateDelete(t *testing.T) {
	f := testutil.NewFixture(t)
	svc := NewPlanningService(f.DB)
	admin := f.Actor(t, "admin", auth.RoleAdministrator)
	f.CreateSubject(t, admin, "ENG501", 6, 5)
	f.CreateSubject(t, admin, "KGP001", 10, 0)
	teacher := f.CreateTeacher(t, admin, "101", 24, "ENG501")

	fifth, _, err := svc.Create(admin, &Input{GradeLevel: "5", SectionName: "B", ClassStatus: "New"})
	require.NoError(t, err)
	kg, _, err := svc.Create(admin, &Input{
		GradeLevel:        "KG",
		SectionName:       "A",
		ClassStatus:       "Current",
		HomeroomTeacherID: textutil.Loose(strconv.Itoa(int(teacher.ID))),
	})
	require.NoError(t, err)

	t.Run("概览按年级排序并统计", func(t *testing.T) {
		overview, err := svc.Overview(admin)
		require.NoError(t, err)
		require.Len(t, overview.Rows, 2)
		assert.Equal(t, kg.ID, overview.Rows[0].ID)
		assert.Equal(t, "Teacher 101", overview.Rows[0].HomeroomTeacherName)
		assert.Equal(t, "-", overview.Rows[1].HomeroomTeacherName)
		assert.Equal(t, 1, overview.CurrentSections)
		assert.Equal(t, 1, overview.NewSections)
		assert.Equal(t, 16, overview.TotalAllocatedHours)
		assert.Len(t, overview.AlignmentMap, len(GradeOptions))
		assert.Empty(t, overview.AlignmentMap["12"])
		require.Len(t, overview.TeacherChoices, 1)
		assert.Equal(t, "101 - Teacher 101", overview.TeacherChoices[0].Label)
		assert.True(t, overview.CanDelete)
	})

	t.Run("编辑数据", func(t *testing.T) {
		view, err := svc.Get(admin, fifth.ID)
		require.NoError(t, err)
		assert.Equal(t, 6, view.AllocatedHours)
		require.Len(t, view.AlignedSubjects, 1)
		assert.Equal(t, "ENG501", view.AlignedSubjects[0].SubjectCode)

		_, err = svc.Get(admin, 9999)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
	})

	t.Run("更新保留自身不算重复", func(t *testing.T) {
		updated, err := svc.Update(admin, fifth.ID, &Input{GradeLevel: "5", SectionName: "B", ClassStatus: "Current"})
		require.NoError(t, err)
		assert.Equal(t, StatusCurrent, updated.ClassStatus)

		_, err = svc.Update(admin, fifth.ID, &Input{GradeLevel: "KG", SectionName: "A", ClassStatus: "Current"})
		appErr, ok := apperrors.GetAppError(err)
		require.True(t, ok)
		assert.Equal(t, MsgDuplicateSection, appErr.Message)
	})

	t.Run("删除", func(t *testing.T) {
		editor := f.Actor(t, "editor", auth.RoleEditor)
		assert.True(t, apperrors.HasCode(svc.Delete(editor, kg.ID), apperrors.ErrForbidden))

		require.NoError(t, svc.Delete(admin, kg.ID))
		require.NoError(t, svc.Delete(admin, kg.ID))

		overview, err := svc.Overview(admin)
		require.NoError(t, err)
		assert.Len(t, overview.Rows, 1)
	})
}
