package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Field = zap.Field

type Logger interface {
	Info(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Debug(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
}

func StringField(key, val string) Field { return zap.String(key, val) }

func ErrorField(key string, err error) Field { return zap.NamedError(key, err) }

func AnyField(key string, val interface{}) Field { return zap.Any(key, val) }

func Int64Field(key string, val int64) Field { return zap.Int64(key, val) }

func IntField(key string, val int) Field { return zap.Int(key, val) }

func DecimalField(key string, val decimal.Decimal) Field { return zap.String(key, val.String()) }

// NewLogger writes info and below to dir/info.log and warnings and above to
// dir/error.log. With console set, every entry is mirrored to stdout.
func NewLogger(dir string, console bool) (*zap.Logger, func(), error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}

	infoFile, err := os.OpenFile(filepath.Join(dir, "info.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return nil, nil, fmt.Errorf("open info log file: %w", err)
	}

	errorFile, err := os.OpenFile(filepath.Join(dir, "error.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		infoFile.Close()
		return nil, nil, fmt.Errorf("open error log file: %w", err)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(infoFile),
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return lvl <= zapcore.InfoLevel
			}),
		),
		zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(errorFile),
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return lvl >= zapcore.WarnLevel
			}),
		),
	}

	if console {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.Lock(os.Stdout),
			zapcore.DebugLevel,
		))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())

	cleanup := func() {
		_ = logger.Sync()
		infoFile.Close()
		errorFile.Close()
	}

	return logger, cleanup, nil
}

func NewNop() Logger {
	return zap.NewNop()
}
