package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/tis/config"
)

func TestInitFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tis.log")
	require.NoError(t, Init(config.LogConfig{Level: "debug", Format: "json", Output: "file", FilePath: path}))

	assert.Equal(t, logrus.DebugLevel, GetLogger().GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, GetLogger().Formatter)

	Infof("[测试] 写入 %d", 1)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"[测试] 写入 1"`)
}

func TestInitFallsBackOnInvalidValues(t *testing.T) {
	require.NoError(t, Init(config.LogConfig{Level: "loud", Format: "yaml", Output: "printer"}))

	var buf bytes.Buffer
	SetOutput(&buf)
	assert.Equal(t, logrus.InfoLevel, GetLogger().GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, GetLogger().Formatter)

	Debugf("hidden")
	WithField("request_id", "abc").Info("visible")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "request_id=abc")
}

func TestGinWriter(t *testing.T) {
	require.NoError(t, Init(config.LogConfig{Level: "debug"}))
	var buf bytes.Buffer
	SetOutput(&buf)

	n, err := ginWriter{level: logrus.ErrorLevel}.Write([]byte("route conflict\n"))
	require.NoError(t, err)
	assert.Equal(t, len("route conflict\n"), n)
	assert.Contains(t, buf.String(), "level=error")
	assert.Contains(t, buf.String(), `msg="route conflict"`)
}
