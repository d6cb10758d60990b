package obsdeck

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLog(t *testing.T) string {
	t.Helper()

	contents, err := os.ReadFile(filepath.Join(logDirectory, logFilename))
	require.NoError(t, err)
	return string(contents)
}

func TestNewLoggerDevWritesToFile(t *testing.T) {
	t.Chdir(t.TempDir())

	logger, err := NewLogger(buildTypeDev, true)
	require.NoError(t, err)

	logger.Named("main").Debugw("Created logger", "verbose", true)
	logger.Infow("Version info", "buildType", buildTypeDev)
	_ = logger.Sync()

	contents := readLog(t)
	assert.Contains(t, contents, "DEBUG")
	assert.Contains(t, contents, "Created logger")
	assert.Contains(t, contents, "logger_test.go")
	assert.Contains(t, contents, "Version info")
}

func TestNewLoggerReleaseStartsFreshFile(t *testing.T) {
	t.Chdir(t.TempDir())

	dev, err := NewLogger(buildTypeNone, false)
	require.NoError(t, err)
	dev.Info("previous run")
	_ = dev.Sync()
	require.Contains(t, readLog(t), "previous run")

	release, err := NewLogger(buildTypeRelease, false)
	require.NoError(t, err)

	release.Debug("hidden")
	release.Infow("Version info", "buildType", buildTypeRelease)
	_ = release.Sync()

	contents := readLog(t)
	assert.NotContains(t, contents, "previous run")
	assert.NotContains(t, contents, "hidden")
	assert.Contains(t, contents, `"msg":"Version info"`)
	assert.Contains(t, contents, `"buildType":"release"`)
}
