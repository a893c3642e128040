package omlog

import (
	"io"
	"os"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is type of log levels
type Level = zapcore.Level

const (
	// DebugLevel level
	DebugLevel Level = zap.DebugLevel
	// InfoLevel level
	InfoLevel Level = zap.InfoLevel
	// WarnLevel level
	WarnLevel Level = zap.WarnLevel
	// ErrorLevel level
	ErrorLevel Level = zap.ErrorLevel
	// PanicLevel level
	PanicLevel Level = zap.PanicLevel
	// FatalLevel level
	FatalLevel Level = zap.FatalLevel
)

var (
	logLevel     = zap.NewAtomicLevelAt(DebugLevel)
	outputWriter io.Writer = os.Stderr
	source       string

	// Debugf logs formatted debug message
	Debugf logFormatFunc
	// Infof logs formatted info message
	Infof logFormatFunc
	// Warnf logs formatted warn message
	Warnf logFormatFunc
	// Errorf logs formatted error message
	Errorf logFormatFunc
	// Panicf logs formatted message and panics
	Panicf logFormatFunc
	// Fatalf logs formatted message and terminates the process
	Fatalf logFormatFunc
	// Panic logs args and panics
	Panic func(args ...interface{})
	// Fatal logs args and terminates the process
	Fatal func(args ...interface{})
)

type logFormatFunc func(format string, args ...interface{})

func init() {
	rebuildLogger()
}

func rebuildLogger() {
	encoderCfg := zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		TimeKey:        "ts",
		NameKey:        "logger",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.AddSync(outputWriter),
		logLevel,
	)

	logger := zap.New(core)
	if source != "" {
		logger = logger.With(zap.String("source", source))
	}
	setSugar(logger.Sugar())
}

func setSugar(sugar *zap.SugaredLogger) {
	Debugf = sugar.Debugf
	Infof = sugar.Infof
	Warnf = sugar.Warnf
	Errorf = sugar.Errorf
	Panicf = sugar.Panicf
	Panic = sugar.Panic
	Fatalf = sugar.Fatalf
	Fatal = sugar.Fatal
}

// SetSource sets the component name of the omlog module
func SetSource(comp string) {
	source = comp
	rebuildLogger()
}

// SetLevel sets the log level
func SetLevel(lv Level) {
	logLevel.SetLevel(lv)
}

// GetLevel returns the current log level
func GetLevel() Level {
	return logLevel.Level()
}

// SetOutput sets the output writer
func SetOutput(out io.Writer) {
	outputWriter = out
	rebuildLogger()
}

// GetOutput returns the output writer
func GetOutput() io.Writer {
	return outputWriter
}

// TraceError prints the stack and error
func TraceError(format string, args ...interface{}) {
	outputWriter.Write(debug.Stack())
	Errorf(format, args...)
}

// StringToLevel converts string to Level
func StringToLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "panic":
		return PanicLevel
	case "fatal":
		return FatalLevel
	}
	Errorf("StringToLevel: unknown level: %s", s)
	return DebugLevel
}
