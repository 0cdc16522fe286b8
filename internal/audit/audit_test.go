package audit

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/tis/config"
	"github.com/xuri/excelize/v2"
)

func TestClassifyAction(t *testing.T) {
	cases := []struct {
		method, path, want string
	}{
		{"POST", "/login", "User Login"},
		{"GET", "/subjects/", "View Subjects"},
		{"POST", "/subjects/edit/12", "Update Subject"},
		{"GET", "/users/delete/4", "Delete User"},
		{"POST", "/users/delete-bulk", "Bulk Delete Users"},
		{"GET", "/teachers/edit/9", "Open Teacher Edit"},
		{"GET", "/reports/allocation-plan.xlsx", "Download Allocation Plan"},
		{"DELETE", "/subjects", "System Action"},
		{"GET", "/unknown", "System Action"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyAction(tc.method, tc.path), tc.method+" "+tc.path)
	}
}

func TestResolveOutcome(t *testing.T) {
	assert.Equal(t, "Error", ResolveOutcome("200", "ValueError"))
	assert.Equal(t, "Unknown", ResolveOutcome("", ""))
	assert.Equal(t, "Server Error", ResolveOutcome("503", ""))
	assert.Equal(t, "Denied/Failed", ResolveOutcome("403", ""))
	assert.Equal(t, "Redirect", ResolveOutcome("303", ""))
	assert.Equal(t, "Success", ResolveOutcome("200", ""))
}

func TestBuildActionDetails(t *testing.T) {
	assert.Equal(t, "Target ID: 7 | Query: a=1 | Error: boom",
		BuildActionDetails("Delete Subject", "/subjects/delete/7", "a=1", "boom"))
	assert.Equal(t, "", BuildActionDetails("View Subjects", "/subjects/7", "", ""))
}

func TestSplitUTCTimestamp(t *testing.T) {
	date, clock := SplitUTCTimestamp("2025-03-04T23:30:00+02:00")
	assert.Equal(t, "2025-03-04", date)
	assert.Equal(t, "21:30:00", clock)

	date, clock = SplitUTCTimestamp("2025-03-04T01:02:03.123456Z")
	assert.Equal(t, "2025-03-04", date)
	assert.Equal(t, "01:02:03", clock)

	date, clock = SplitUTCTimestamp("yesterday")
	assert.Equal(t, "", date)
	assert.Equal(t, "yesterday", clock)
}

func TestParseLine(t *testing.T) {
	t.Run("正常事件", func(t *testing.T) {
		row := ParseLine(`{"timestamp_utc":"2025-01-02T03:04:05+00:00","method":"GET","path":"/users/edit/3","query":"","status_code":200,"duration_ms":12.5,"actor_user_id":"alice","actor_role":"Administrator","scope_branch_id":1,"scope_academic_year_id":null,"error":null}`)
		assert.Equal(t, "2025-01-02", row.Get("Date (UTC)"))
		assert.Equal(t, "Open User Edit", row.Get("Action"))
		assert.Equal(t, "Target ID: 3", row.Get("Action Details"))
		assert.Equal(t, "200", row.Get("Status"))
		assert.Equal(t, "Success", row.Get("Outcome"))
		assert.Equal(t, "12.5", row.Get("Duration (ms)"))
		assert.Equal(t, "1", row.Get("Branch Scope"))
		assert.Equal(t, "", row.Get("Academic Year Scope"))
	})

	t.Run("无法解析的行", func(t *testing.T) {
		line := "not json " + strings.Repeat("x", 400)
		row := ParseLine(line)
		assert.Equal(t, "Unparsed Log Entry", row.Get("Action"))
		assert.Len(t, []rune(row.Get("Action Details")), unparsedPreviewLength)
		assert.Equal(t, "", row.Get("User ID"))
	})
}

func newTestWriter(t *testing.T) *Writer {
	dir := t.TempDir()
	w, err := NewWriter(config.AuditConfig{Dir: dir, FileName: "system_audit.log", MaxBytes: 1024, BackupCount: 3})
	require.NoError(t, err)
	w.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestWriterAndExports(t *testing.T) {
	w := newTestWriter(t)
	user := "مدير"
	require.NoError(t, w.Write(Event{Method: "POST", Path: "/login", StatusCode: 303, ActorUserID: &user}))
	require.NoError(t, w.Write(Event{Method: "GET", Path: "/subjects/delete/5", StatusCode: 200}))

	f, err := os.OpenFile(w.Path(), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("\ngarbage line\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	raw, err := os.ReadFile(w.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `\u0645`)
	assert.NotContains(t, string(raw), `م`)
	assert.Contains(t, string(raw), `"timestamp_utc":"2025-01-02T03:04:05.000000+00:00"`)

	t.Run("CSV", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteCSV(&buf, w.Path()))
		records, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 4)
		assert.Equal(t, Fields, records[0])
		assert.Equal(t, "User Login", records[1][colAction])
		assert.Equal(t, "Redirect", records[1][colOutcome])
		assert.Equal(t, user, records[1][colUserID])
		assert.Equal(t, "Target ID: 5", records[2][colActionDetails])
		assert.Equal(t, "Unparsed Log Entry", records[3][colAction])
	})

	t.Run("XLSX", func(t *testing.T) {
		data, err := BuildXLSX(w.Path())
		require.NoError(t, err)
		book, err := excelize.OpenReader(bytes.NewReader(data))
		require.NoError(t, err)
		defer book.Close()

		rows, err := book.GetRows(SheetName)
		require.NoError(t, err)
		require.Len(t, rows, 4)
		assert.Equal(t, "Date (UTC)", rows[0][0])
		assert.Equal(t, "Delete Subject", rows[2][colAction])
	})
}

func TestExportsWithMissingLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.log")
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, path))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestExportFilename(t *testing.T) {
	now := time.Date(2025, 6, 7, 8, 9, 10, 0, time.FixedZone("x", 3600))
	assert.Equal(t, "system_audit_20250607_070910.csv", ExportFilename("logs/system_audit.log", "csv", now))
}

func TestMaxSizeMB(t *testing.T) {
	assert.Equal(t, 5, maxSizeMB(0))
	assert.Equal(t, 1, maxSizeMB(10))
	assert.Equal(t, 5, maxSizeMB(5*1024*1024))
	assert.Equal(t, 6, maxSizeMB(5*1024*1024+1))
}

func TestBackupFiles(t *testing.T) {
	w := newTestWriter(t)
	require.NoError(t, w.Write(Event{Method: "GET", Path: "/dashboard", StatusCode: 200}))
	require.NoError(t, w.Rotate())

	backups, err := w.BackupFiles()
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.True(t, strings.HasPrefix(filepath.Base(backups[0]), "system_audit-"))
}
