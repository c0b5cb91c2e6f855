package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapConfig defines the console backend settings
type ZapConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "console", "json"
	Output string `yaml:"output"` // "stderr", "stdout"
}

func DefaultZapConfig() ZapConfig {
	return ZapConfig{
		Level:  "info",
		Format: "console",
		Output: "stderr",
	}
}

// NewZapLogger builds a Logger backed by a zap sugared logger.
// The returned sync function flushes buffered entries.
func NewZapLogger(prefix string, config ZapConfig) (Logger, func() error, error) {
	zapLogger, err := createZapLogger(config)
	if err != nil {
		return nil, nil, err
	}
	sugar := zapLogger.Sugar()

	l := NewLogger(prefix, LogFuncs{
		Debugf: sugar.Debugf,
		Infof:  sugar.Infof,
		Warnf:  sugar.Warnf,
		Errorf: sugar.Errorf,
	})
	return l, zapLogger.Sync, nil
}

func createZapLogger(config ZapConfig) (*zap.Logger, error) {
	level, err := getLevelFromString(config.Level)
	if err != nil {
		return nil, err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	encoderConfig.LevelKey = "level"
	encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

	var encoder zapcore.Encoder
	switch config.Format {
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	case "console", "":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("invalid log format: %s", config.Format)
	}

	// stdout carries results, so logs go to stderr unless asked otherwise
	var writeSyncer zapcore.WriteSyncer
	switch config.Output {
	case "stderr", "":
		writeSyncer = zapcore.Lock(zapcore.AddSync(os.Stderr))
	case "stdout":
		writeSyncer = zapcore.Lock(zapcore.AddSync(os.Stdout))
	default:
		return nil, fmt.Errorf("invalid log output: %s", config.Output)
	}

	core := zapcore.NewCore(encoder, writeSyncer, level)
	return zap.New(core), nil
}

// zap v1.20.0 has no zapcore.ParseLevel
func getLevelFromString(levelStr string) (zapcore.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return zap.DebugLevel, nil
	case "info", "":
		return zap.InfoLevel, nil
	case "warn", "warning":
		return zap.WarnLevel, nil
	case "error":
		return zap.ErrorLevel, nil
	default:
		return -1, fmt.Errorf("invalid log level: %s", levelStr)
	}
}
