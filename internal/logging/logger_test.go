package logging_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mautops/submission-workflow/internal/config"
	"github.com/mautops/submission-workflow/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewLoggerFromConfig_JSON 测试 JSON 格式与默认字段
func TestNewLoggerFromConfig_JSON(t *testing.T) {
	logger, err := logging.NewLoggerFromConfig(&config.LogConfig{Level: "warn", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.WithField("workflow_item_id", "wf-1").Warn("stale state")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, logging.ServiceName, entry["service"])
	assert.Equal(t, "wf-1", entry["workflow_item_id"])
	assert.Equal(t, "stale state", entry["msg"])
}

// TestNewLoggerFromConfig_File 测试写入日志文件
func TestNewLoggerFromConfig_File(t *testing.T) {
	dir := t.TempDir()
	logger, err := logging.NewLoggerFromConfig(&config.LogConfig{Level: "info", Format: "text", Output: "file", Dir: dir})
	require.NoError(t, err)
	logger.Info("hello")

	data, err := os.ReadFile(filepath.Join(dir, logging.ServiceName+".log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

// TestApplyLevel 测试无法解析的级别回退到 info
func TestApplyLevel(t *testing.T) {
	logger := logging.NewLogger()
	logging.ApplyLevel(logger, "debug")
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	logging.ApplyLevel(logger, "loud")
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}
