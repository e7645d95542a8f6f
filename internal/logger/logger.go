package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects where and how much to log.
type Options struct {
	// Dir receives taskdeck.<date>.log files and a taskdeck.log link to the current one.
	Dir   string
	Level string
	// Console also writes human-readable lines to stdout.
	Console       bool
	MaxFiles      int
	RotationHours int
}

// ParseLevel maps debug|info|warning|error to a zap level.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warning", "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// InitLogger builds a zap logger writing JSON to a rotating file and,
// optionally, console lines to stdout.
func InitLogger(opts Options) (*zap.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)

	writer, err := newRotatingWriter(opts)
	if err != nil {
		// Fall back to console only when the file cannot be opened.
		fmt.Fprintf(os.Stderr, "Warning: failed to open log file: %v, using console only\n", err)
		core := zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), level)
		return zap.New(core, zap.AddCaller()), nil
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(writer), level),
	}
	if opts.Console {
		cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), level))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func newRotatingWriter(opts Options) (*rotatelogs.RotateLogs, error) {
	hours := opts.RotationHours
	if hours <= 0 {
		hours = 24
	}
	pattern := "taskdeck.%Y%m%d.log"
	if hours < 24 {
		pattern = "taskdeck.%Y%m%d%H.log"
	}
	rotOpts := []rotatelogs.Option{
		rotatelogs.WithLinkName(filepath.Join(opts.Dir, "taskdeck.log")),
		rotatelogs.WithRotationTime(time.Duration(hours) * time.Hour),
	}
	if opts.MaxFiles > 0 {
		rotOpts = append(rotOpts, rotatelogs.WithRotationCount(uint(opts.MaxFiles)))
	}
	return rotatelogs.New(filepath.Join(opts.Dir, pattern), rotOpts...)
}
