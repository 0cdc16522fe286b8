package academic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/tis/internal/auth"
	"github.com/weiwangfds/tis/internal/database"
	apperrors "github.com/weiwangfds/tis/internal/errors"
	"github.com/weiwangfds/tis/internal/testutil"
)

func TestValidYearName(t *testing.T) {
	assert.True(t, ValidYearName("2026-2027"))
	assert.False(t, ValidYearName("2026-2028"))
	assert.False(t, ValidYearName("26-27"))
	assert.False(t, ValidYearName("2026/2027"))
}

func TestScope(t *testing.T) {
	f := testutil.NewFixture(t)
	svc := NewAcademicService(f.DB)
	dev := f.Actor(t, "dev", auth.RoleDeveloper)
	admin := f.Actor(t, "admin", auth.RoleAdministrator)

	t.Run("分校列表", func(t *testing.T) {
		branches, err := svc.Branches(dev)
		require.NoError(t, err)
		assert.Len(t, branches, 2)

		branches, err = svc.Branches(admin)
		require.NoError(t, err)
		require.Len(t, branches, 1)
		assert.Equal(t, f.Branch.ID, branches[0].ID)
	})

	t.Run("切换分校", func(t *testing.T) {
		scope, err := svc.SwitchBranch(dev, f.Branch2.ID)
		require.NoError(t, err)
		assert.Equal(t, f.Branch2.ID, scope.BranchID)
		assert.Equal(t, f.ActiveYear.ID, scope.AcademicYearID)

		_, err = svc.SwitchBranch(admin, f.Branch2.ID)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))

		require.NoError(t, f.DB.Model(&f.Branch2).Update("status", false).Error)
		_, err = svc.SwitchBranch(dev, f.Branch2.ID)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrScopeInvalid))
	})

	t.Run("切换学年", func(t *testing.T) {
		scope, err := svc.SwitchYear(admin, f.PastYear.ID)
		require.NoError(t, err)
		assert.Equal(t, f.PastYear.ID, scope.AcademicYearID)
		assert.Equal(t, f.Branch.ID, scope.BranchID)

		_, err = svc.SwitchYear(admin, 999)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrScopeInvalid))
	})
}

func TestAcademicYears(t *testing.T) {
	f := testutil.NewFixture(t)
	svc := NewAcademicService(f.DB)
	dev := f.Actor(t, "dev", auth.RoleDeveloper)
	admin := f.Actor(t, "admin", auth.RoleAdministrator)

	t.Run("设置当前学年", func(t *testing.T) {
		year, err := svc.SetCurrentYear(admin, f.PastYear.ID)
		require.NoError(t, err)
		assert.True(t, year.IsActive)

		current, err := svc.CurrentYear()
		require.NoError(t, err)
		assert.Equal(t, f.PastYear.ID, current.ID)

		var active int64
		f.DB.Model(&database.AcademicYear{}).Where("is_active = ?", true).Count(&active)
		assert.EqualValues(t, 1, active)

		editor := f.Actor(t, "editor", auth.RoleEditor)
		_, err = svc.SetCurrentYear(editor, f.ActiveYear.ID)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))
	})

	t.Run("开设学年", func(t *testing.T) {
		_, err := svc.OpenYear(admin, "2026-2027", false)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))

		_, err = svc.OpenYear(dev, "2026-2028", false)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))

		year, err := svc.OpenYear(dev, " 2026-2027 ", true)
		require.NoError(t, err)
		assert.True(t, year.IsActive)

		_, err = svc.OpenYear(dev, "2026-2027", false)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrRecordAlreadyExists))

		years, err := svc.Years()
		require.NoError(t, err)
		require.Len(t, years, 3)
		assert.Equal(t, "2026-2027", years[0].YearName)
		for _, y := range years[1:] {
			assert.False(t, y.IsActive)
		}
	})
}

func TestDashboard(t *testing.T) {
	f := testutil.NewFixture(t)
	svc := NewAcademicService(f.DB)
	admin := f.Actor(t, "admin", auth.RoleAdministrator)
	f.CreateSubject(t, admin, "ENG501", 20, 5)
	f.CreateSubject(t, admin, "MAT501", 4, 5)
	f.CreateTeacher(t, admin, "1", 24, "ENG501", "MAT501")
	f.CreateTeacher(t, admin, "2", 24, "ENG501")
	require.NoError(t, f.DB.Create(&database.PlanningSection{
		GradeLevel: "5", SectionName: "A", ClassStatus: "New",
		BranchID: admin.ScopeBranchID, AcademicYearID: admin.ScopeAcademicYearID,
	}).Error)

	d, err := svc.Dashboard(admin)
	require.NoError(t, err)
	assert.Equal(t, "Main Branch", d.BranchName)
	assert.Equal(t, "2025-2026", d.AcademicYearName)
	assert.EqualValues(t, 2, d.SubjectsCount)
	assert.EqualValues(t, 2, d.TeachersCount)
	assert.EqualValues(t, 1, d.UsersCount)
	assert.EqualValues(t, 1, d.PlanningSectionsCount)
	assert.EqualValues(t, 0, d.CurrentSectionsCount)
	assert.EqualValues(t, 1, d.NewSectionsCount)
	assert.Equal(t, 24, d.TotalSubjectHours)
	assert.Equal(t, 44, d.TotalAllocatedHours)
	assert.Equal(t, 1, d.TeachersFullyAllocated)
	assert.Equal(t, 1, d.TeachersNotFullyAllocated)
}
