package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/tis/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Event 一次请求的审计事件
type Event struct {
	TimestampUTC        string  `json:"timestamp_utc"`
	Method              string  `json:"method"`
	Path                string  `json:"path"`
	Query               string  `json:"query"`
	StatusCode          int     `json:"status_code"`
	DurationMs          float64 `json:"duration_ms"`
	ClientIP            string  `json:"client_ip"`
	UserAgent           string  `json:"user_agent"`
	RequestID           string  `json:"request_id,omitempty"`
	ActorUserID         *string `json:"actor_user_id"`
	ActorUsername       *string `json:"actor_username"`
	ActorRole           *string `json:"actor_role"`
	ScopeBranchID       *uint   `json:"scope_branch_id"`
	ScopeAcademicYearID *uint   `json:"scope_academic_year_id"`
	Error               *string `json:"error"`
}

// lineFormatter 只输出消息本身，每条一行
type lineFormatter struct{}

func (lineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return append([]byte(entry.Message), '\n'), nil
}

// Writer 审计日志写入器，按大小滚动
type Writer struct {
	path   string
	rotate *lumberjack.Logger
	logger *logrus.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// NewWriter 创建审计日志写入器，目录不存在时自动创建
func NewWriter(cfg config.AuditConfig) (*Writer, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "logs"
	}
	name := cfg.FileName
	if name == "" {
		name = "system_audit.log"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	path := filepath.Join(dir, name)
	rotate := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB(cfg.MaxBytes),
		MaxBackups: cfg.BackupCount,
		LocalTime:  false,
	}

	logger := logrus.New()
	logger.SetOutput(rotate)
	logger.SetFormatter(lineFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	return &Writer{
		path:   path,
		rotate: rotate,
		logger: logger,
		now:    time.Now,
	}, nil
}

// maxSizeMB 把字节上限换算成 lumberjack 使用的 MB，向上取整
func maxSizeMB(maxBytes int64) int {
	const mb = 1024 * 1024
	if maxBytes <= 0 {
		return 5
	}
	size := int((maxBytes + mb - 1) / mb)
	if size < 1 {
		size = 1
	}
	return size
}

// Path 当前审计日志文件路径
func (w *Writer) Path() string {
	return w.path
}

// Dir 审计日志所在目录
func (w *Writer) Dir() string {
	return filepath.Dir(w.path)
}

// Write 写入一条事件，未设置时间时补充当前UTC时间
func (w *Writer) Write(event Event) error {
	if event.TimestampUTC == "" {
		event.TimestampUTC = w.now().UTC().Format("2006-01-02T15:04:05.000000+00:00")
	}
	line, err := marshalASCII(event)
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.logger.Info(line)
	return nil
}

// Rotate 立即滚动当前日志文件
func (w *Writer) Rotate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rotate.Rotate()
}

// Close 关闭日志文件
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rotate.Close()
}

// BackupFiles 已滚动的历史日志文件，按文件名排序
func (w *Writer) BackupFiles() ([]string, error) {
	base := filepath.Base(w.path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	matches, err := filepath.Glob(filepath.Join(w.Dir(), stem+"-*"+ext+"*"))
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// marshalASCII 紧凑JSON编码，非ASCII字符转义为 \uXXXX
func marshalASCII(v interface{}) (string, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return "", err
	}
	raw := bytes.TrimRight(buf.Bytes(), "\n")

	var out strings.Builder
	out.Grow(len(raw))
	for len(raw) > 0 {
		r, size := utf8.DecodeRune(raw)
		raw = raw[size:]
		if r < utf8.RuneSelf {
			out.WriteRune(r)
			continue
		}
		if r > 0xFFFF {
			r -= 0x10000
			fmt.Fprintf(&out, `\u%04x\u%04x`, 0xD800+(r>>10), 0xDC00+(r&0x3FF))
			continue
		}
		fmt.Fprintf(&out, `\u%04x`, r)
	}
	return out.String(), nil
}
