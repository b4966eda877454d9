package log

import (
	"os"

	"go.uber.org/zap"
)

// ExitOnFatal is switched off in tests
var ExitOnFatal = true

// Init builds the process logger and installs it as zap's global logger.
// level is one of debug, info, warn, error; empty means info.
func Init(level string, development bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	if level != "" {
		if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
			return nil, err
		}
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)

	return logger, nil
}

func Fatal(v ...interface{}) {
	zap.S().Error(v...)
	_ = zap.L().Sync()
	if ExitOnFatal {
		os.Exit(1)
	}
}

func WarnIfErr(description string, err error) {
	if err != nil {
		zap.L().Warn(description, zap.Error(err))
	}
}

func ErrIfErr(description string, err error) {
	if err != nil {
		zap.L().Error(description, zap.Error(err))
	}
}
