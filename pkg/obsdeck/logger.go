package obsdeck

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/MixyLabs/obsdeck/pkg/obsdeck/util"
)

const (
	buildTypeNone    = ""
	buildTypeDev     = "dev"
	buildTypeRelease = "release"

	logDirectory = "logs"
	logFilename  = "obsdeck-latest.log"
)

// NewLogger provides a logger for all components. The terminal belongs to the
// control panel, so every build type logs to a file in the logs directory.
func NewLogger(buildType string, verbose bool) (*zap.SugaredLogger, error) {
	if err := util.EnsureDirExists(logDirectory); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	var loggerConfig zap.Config

	if buildType == buildTypeNone || buildType == buildTypeDev {
		loggerConfig = zap.NewDevelopmentConfig()
		loggerConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		loggerConfig = zap.NewProductionConfig()
		loggerConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	if verbose {
		loggerConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	logPath := filepath.Join(logDirectory, logFilename)
	loggerConfig.OutputPaths = []string{logPath}
	loggerConfig.ErrorOutputPaths = []string{logPath}

	loggerConfig.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")

	// zap appends, start each run with a fresh file
	if err := os.Truncate(logPath, 0); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("truncate previous log: %w", err)
	}

	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("create zap logger: %w", err)
	}

	return logger.Sugar(), nil
}
