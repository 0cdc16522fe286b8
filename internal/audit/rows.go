// Package audit 记录系统审计日志，并把日志整理成可下载的CSV/Excel报表
package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Fields 报表列，顺序即导出顺序
var Fields = []string{
	"Date (UTC)",
	"Time (UTC)",
	"User ID",
	"Username",
	"Role",
	"Action",
	"Action Details",
	"HTTP Method",
	"Endpoint",
	"Status",
	"Outcome",
	"Branch Scope",
	"Academic Year Scope",
	"Client IP",
	"Duration (ms)",
	"Error",
	"User Agent",
}

// 报表列下标
const (
	colDate = iota
	colTime
	colUserID
	colUsername
	colRole
	colAction
	colActionDetails
	colMethod
	colEndpoint
	colStatus
	colOutcome
	colBranchScope
	colYearScope
	colClientIP
	colDuration
	colError
	colUserAgent
)

// unparsedPreviewLength 无法解析的日志行保留的最大字符数
const unparsedPreviewLength = 240

// Row 一行报表数据，与 Fields 一一对应
type Row []string

// Get 按列名取值
func (r Row) Get(field string) string {
	for i, f := range Fields {
		if f == field && i < len(r) {
			return r[i]
		}
	}
	return ""
}

var trailingIDPattern = regexp.MustCompile(`/(\d+)$`)

type route struct {
	method string
	path   string
	prefix bool
	action string
}

// actionRoutes 按顺序匹配，第一条命中即返回
var actionRoutes = []route{
	{"POST", "/login", false, "User Login"},
	{"GET", "/logout", false, "User Logout"},
	{"GET", "/dashboard", false, "View Dashboard"},
	{"POST", "/admin/current-year", false, "Set Current Academic Year"},
	{"POST", "/developer/open-academic-year", false, "Open New Academic Year"},
	{"POST", "/scope/branch", false, "Switch Branch Scope"},
	{"POST", "/scope/academic-year", false, "Switch Academic Year Scope"},
	{"GET", "/admin/audit-log", false, "Download Audit Log"},
	{"GET", "/reports/allocation-plan.xlsx", false, "Download Allocation Plan"},

	{"GET", "/subjects", false, "View Subjects"},
	{"POST", "/subjects", false, "Create Subject"},
	{"POST", "/subjects/import", false, "Import Subjects"},
	{"GET", "/subjects/template", false, "Download Subject Template"},
	{"GET", "/subjects/export", false, "Export Subjects"},
	{"POST", "/subjects/delete-bulk", false, "Bulk Delete Subjects"},
	{"GET", "/subjects/edit/", true, "Open Subject Edit"},
	{"POST", "/subjects/edit/", true, "Update Subject"},
	{"GET", "/subjects/delete/", true, "Delete Subject"},

	{"GET", "/users", false, "View Users"},
	{"POST", "/users", false, "Create User"},
	{"GET", "/users/edit/", true, "Open User Edit"},
	{"POST", "/users/edit/", true, "Update User"},
	{"GET", "/users/delete/", true, "Delete User"},
	{"POST", "/users/delete-bulk", false, "Bulk Delete Users"},

	{"GET", "/teachers", false, "View Teachers"},
	{"POST", "/teachers", false, "Create Teacher"},
	{"GET", "/teachers/edit/", true, "Open Teacher Edit"},
	{"POST", "/teachers/edit/", true, "Update Teacher"},
	{"GET", "/teachers/delete/", true, "Delete Teacher"},

	{"GET", "/planning", false, "View Planning"},
	{"POST", "/planning", false, "Create Planning Section"},
	{"GET", "/planning/edit/", true, "Open Planning Edit"},
	{"POST", "/planning/edit/", true, "Update Planning Section"},
	{"GET", "/planning/delete/", true, "Delete Planning Section"},

	{"POST", "/developer/storage/archive", false, "Archive Audit Logs"},
}

// targetActions 详情中需要带上目标ID的操作
var targetActions = map[string]bool{
	"Delete Subject":          true,
	"Update Subject":          true,
	"Open Subject Edit":       true,
	"Delete User":             true,
	"Update User":             true,
	"Open User Edit":          true,
	"Delete Teacher":          true,
	"Update Teacher":          true,
	"Open Teacher Edit":       true,
	"Delete Planning Section": true,
	"Update Planning Section": true,
	"Open Planning Edit":      true,
}

// ClassifyAction 根据请求方法和路径得到可读的操作名称
func ClassifyAction(method, path string) string {
	for _, r := range actionRoutes {
		if r.method != method {
			continue
		}
		if r.prefix {
			if strings.HasPrefix(path, r.path) {
				return r.action
			}
			continue
		}
		if path == r.path || path == r.path+"/" {
			return r.action
		}
	}
	return "System Action"
}

// ResolveOutcome 根据状态码和错误得到结果分类
func ResolveOutcome(status, errText string) string {
	if errText != "" {
		return "Error"
	}

	code, err := strconv.Atoi(strings.TrimSpace(status))
	if err != nil {
		return "Unknown"
	}

	switch {
	case code >= 500:
		return "Server Error"
	case code >= 400:
		return "Denied/Failed"
	case code >= 300:
		return "Redirect"
	default:
		return "Success"
	}
}

// BuildActionDetails 拼接操作详情：目标ID、查询参数、错误
func BuildActionDetails(action, path, query, errText string) string {
	var details []string
	if m := trailingIDPattern.FindStringSubmatch(path); m != nil && targetActions[action] {
		details = append(details, "Target ID: "+m[1])
	}
	if query != "" {
		details = append(details, "Query: "+query)
	}
	if errText != "" {
		details = append(details, "Error: "+errText)
	}
	return strings.Join(details, " | ")
}

// SplitUTCTimestamp 把时间戳拆成UTC日期和时间，无法解析时日期为空、时间保留原文
func SplitUTCTimestamp(value string) (string, string) {
	if value == "" {
		return "", ""
	}

	normalized := strings.Replace(value, "Z", "+00:00", 1)
	layouts := []string{
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
	}
	for _, layout := range layouts {
		parsed, err := time.Parse(layout, normalized)
		if err == nil {
			utc := parsed.UTC()
			return utc.Format("2006-01-02"), utc.Format("15:04:05")
		}
	}
	return "", value
}

// toText 把JSON值转换成报表文本，null 为空字符串
func toText(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "True"
		}
		return "False"
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}

// EventToRow 把一条审计事件转换为报表行
func EventToRow(event map[string]interface{}) Row {
	method := toText(event["method"])
	path := toText(event["path"])
	action := ClassifyAction(method, path)
	status := toText(event["status_code"])
	errText := toText(event["error"])
	date, clock := SplitUTCTimestamp(toText(event["timestamp_utc"]))

	row := make(Row, len(Fields))
	row[colDate] = date
	row[colTime] = clock
	row[colUserID] = toText(event["actor_user_id"])
	row[colUsername] = toText(event["actor_username"])
	row[colRole] = toText(event["actor_role"])
	row[colAction] = action
	row[colActionDetails] = BuildActionDetails(action, path, toText(event["query"]), errText)
	row[colMethod] = method
	row[colEndpoint] = path
	row[colStatus] = status
	row[colOutcome] = ResolveOutcome(status, errText)
	row[colBranchScope] = toText(event["scope_branch_id"])
	row[colYearScope] = toText(event["scope_academic_year_id"])
	row[colClientIP] = toText(event["client_ip"])
	row[colDuration] = toText(event["duration_ms"])
	row[colError] = errText
	row[colUserAgent] = toText(event["user_agent"])
	return row
}

// ParseLine 解析一行日志；非JSON对象的行生成“Unparsed Log Entry”
func ParseLine(line string) Row {
	decoder := json.NewDecoder(bytes.NewReader([]byte(line)))
	decoder.UseNumber()

	var event map[string]interface{}
	if err := decoder.Decode(&event); err != nil || event == nil {
		row := make(Row, len(Fields))
		row[colAction] = "Unparsed Log Entry"
		runes := []rune(line)
		if len(runes) > unparsedPreviewLength {
			runes = runes[:unparsedPreviewLength]
		}
		row[colActionDetails] = string(runes)
		return row
	}
	return EventToRow(event)
}
