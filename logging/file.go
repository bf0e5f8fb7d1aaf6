package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits of log files.
const (
	logFileMaxSizeMB  = 64
	logFileMaxBackups = 3
)

// NewLoggerWithFile returns a logger writing to stdout like NewLogger and, as JSON, to a size
// rotated file at path.
func NewLoggerWithFile(name, path string, debug bool) Logger {
	lvl := zapcore.InfoLevel
	if debug {
		lvl = zapcore.DebugLevel
	}
	level := zap.NewAtomicLevelAt(lvl)
	cfg := NewLoggerConfig()

	fileWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    logFileMaxSizeMB,
		MaxBackups: logFileMaxBackups,
		Compress:   true,
	})
	fileEncoderConfig := cfg.EncoderConfig
	fileEncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(cfg.EncoderConfig), zapcore.Lock(os.Stdout), level),
		zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoderConfig), fileWriter, level),
	)
	zl := zap.New(core, zap.AddCaller())
	if name != "" {
		zl = zl.Named(name)
	}
	return &impl{zl.Sugar(), level}
}
