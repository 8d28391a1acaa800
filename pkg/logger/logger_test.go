package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitRejectsInvalidLevel(t *testing.T) {
	err := Init("loud", "json", "stdout")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestInitWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	require.NoError(t, Init("debug", "json", path))
	Info("query processed", zap.String("dataset", "sales"))
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"query processed"`)
	assert.Contains(t, string(data), `"dataset":"sales"`)
}

func TestDefaultLoggerIsSafeBeforeInit(t *testing.T) {
	assert.NotNil(t, GetLogger())
	Debug("no-op before Init")
}
