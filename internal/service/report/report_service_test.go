package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/tis/internal/auth"
	"github.com/weiwangfds/tis/internal/database"
	"github.com/weiwangfds/tis/internal/testutil"
	"github.com/xuri/excelize/v2"
)

func TestAllocationPlan(t *testing.T) {
	f := testutil.NewFixture(t)
	admin := f.Actor(t, "admin", auth.RoleAdministrator)
	f.CreateSubject(t, admin, "ENG501", 20, 5)
	f.CreateSubject(t, admin, "MAT501", 4, 5)
	balanced := f.CreateTeacher(t, admin, "1", 24, "MAT501", "ENG501")
	f.CreateTeacher(t, admin, "2", 24, "ENG501")
	require.NoError(t, f.DB.Create(&database.PlanningSection{
		GradeLevel: "5", SectionName: "A", ClassStatus: "Current", HomeroomTeacherID: &balanced.ID,
		BranchID: admin.ScopeBranchID, AcademicYearID: admin.ScopeAcademicYearID,
	}).Error)

	svc := &reportService{db: f.DB, now: func() time.Time {
		return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	}}
	file, err := svc.AllocationPlan(admin)
	require.NoError(t, err)
	assert.Equal(t, "allocation_plan_20260304_050607.xlsx", file.Name)

	wb, err := excelize.OpenReader(bytes.NewReader(file.Data))
	require.NoError(t, err)
	defer wb.Close()
	assert.Equal(t, []string{SheetSummary, SheetTeachers, SheetSections}, wb.GetSheetList())

	summary, err := wb.GetRows(SheetSummary)
	require.NoError(t, err)
	assert.Equal(t, []string{"Branch", "Main Branch"}, summary[1])
	assert.Equal(t, []string{"Balanced Teachers", "1"}, summary[5])
	assert.Equal(t, []string{"Teacher Allocated Hours", "44"}, summary[7])

	teachers, err := wb.GetRows(SheetTeachers)
	require.NoError(t, err)
	require.Len(t, teachers, 3)
	assert.Equal(t, TeacherHeaders, teachers[0])
	assert.Equal(t, []string{"1", "Teacher 1", "Grade 1", "ENG501 (20h), MAT501 (4h)", "24", "24", "0", StatusBalanced}, teachers[1])
	assert.Equal(t, StatusMismatch, teachers[2][7])

	sections, err := wb.GetRows(SheetSections)
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, []string{"5", "A", "Current", "Teacher 1", "ENG501, MAT501", "24"}, sections[1])
}
