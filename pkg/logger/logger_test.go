package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "warn")
	t.Cleanup(func() { SetOutput(os.Stdout, "info") })

	Info("[AMI] 已连接 %s", "127.0.0.1:5038")
	Warning("[AMI] 连接丢失: %v", "EOF")

	out := buf.String()
	assert.NotContains(t, out, "已连接")
	assert.Contains(t, out, "连接丢失: EOF")
	assert.Contains(t, out, `"level":"warn"`)
}

func TestSetupLoggerWritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SetupLoggerWithOptions(Options{Dir: dir, Level: "debug"}))
	t.Cleanup(func() {
		_ = Close()
		SetOutput(os.Stdout, "info")
	})

	Debug("[Hub] 客户端注册: %s", "1001")

	data, err := os.ReadFile(filepath.Join(dir, time.Now().Format("2006-01-02")+".log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "客户端注册: 1001")
}

func TestWriterForwardsLines(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "info")
	t.Cleanup(func() { SetOutput(os.Stdout, "info") })

	_, err := Writer().Write([]byte("[GIN] 200 | GET /api/ping\n"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "GET /api/ping")
}
