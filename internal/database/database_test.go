package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB 设置测试数据库
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, Migrate(db))
	return db
}

func TestParseURL(t *testing.T) {
	cases := []struct {
		url    string
		driver string
		dsn    string
	}{
		{"sqlite:///tis.db", DriverSQLite, "tis.db"},
		{"sqlite:////var/lib/tis/tis.db", DriverSQLite, "/var/lib/tis/tis.db"},
		{"sqlite://", DriverSQLite, ":memory:"},
		{"./data/tis.db", DriverSQLite, "./data/tis.db"},
		{"file:tis.db?cache=shared", DriverSQLite, "file:tis.db?cache=shared"},
		{"postgres://tis:pw@db:5432/tis?sslmode=disable", DriverPostgres, "postgres://tis:pw@db:5432/tis?sslmode=disable"},
		{"postgresql://db/tis", DriverPostgres, "postgresql://db/tis"},
	}
	for _, tc := range cases {
		driver, dsn, err := ParseURL(tc.url)
		require.NoError(t, err, tc.url)
		assert.Equal(t, tc.driver, driver, tc.url)
		assert.Equal(t, tc.dsn, dsn, tc.url)
	}

	_, _, err := ParseURL("mysql://root@localhost/tis")
	assert.Error(t, err)
	_, _, err = ParseURL("  ")
	assert.Error(t, err)
}

func TestDefaultAcademicYearName(t *testing.T) {
	assert.Equal(t, "2025-2026", DefaultAcademicYearName(time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2025-2026", DefaultAcademicYearName(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
}

func TestSeedIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	data := SeedData{
		BranchName:            "Riyadh Campus",
		YearName:              "2025-2026",
		DeveloperUserID:       " Developer ",
		DeveloperPasswordHash: "hash",
	}

	require.NoError(t, Seed(db, data))
	require.NoError(t, Seed(db, data))

	var branches, years, users int64
	db.Model(&Branch{}).Count(&branches)
	db.Model(&AcademicYear{}).Count(&years)
	db.Model(&User{}).Count(&users)
	assert.Equal(t, int64(1), branches)
	assert.Equal(t, int64(1), years)
	assert.Equal(t, int64(1), users)

	var dev User
	require.NoError(t, db.First(&dev).Error)
	assert.Equal(t, "developer", dev.UserID)
	assert.Equal(t, "Developer", dev.Role)
	assert.True(t, dev.IsActive)

	var year AcademicYear
	require.NoError(t, db.First(&year).Error)
	assert.True(t, year.IsActive)
	assert.Equal(t, year.ID, dev.AcademicYearID)
}

func TestPlanningSectionUniqueIndex(t *testing.T) {
	db := setupTestDB(t)

	first := PlanningSection{GradeLevel: "KG", SectionName: "A", ClassStatus: "Current", BranchID: 1, AcademicYearID: 1}
	require.NoError(t, db.Create(&first).Error)

	dup := PlanningSection{GradeLevel: "KG", SectionName: "A", ClassStatus: "New", BranchID: 1, AcademicYearID: 1}
	assert.Error(t, db.Create(&dup).Error)

	otherYear := PlanningSection{GradeLevel: "KG", SectionName: "A", ClassStatus: "New", BranchID: 1, AcademicYearID: 2}
	assert.NoError(t, db.Create(&otherYear).Error)
}

func TestTeacherFullName(t *testing.T) {
	middle := "Ali"
	assert.Equal(t, "Omar Ali Hassan", Teacher{FirstName: "Omar", MiddleName: &middle, LastName: "Hassan"}.FullName())
	assert.Equal(t, "Omar Hassan", Teacher{FirstName: "Omar", LastName: "Hassan"}.FullName())
}
