// Package log provides the logging interface used across viewd, backed by
// zap with optional file rotation.
package log

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the logging interface every component depends on. Components
// take a Logger through their constructor; nothing reaches for a package
// global except cmd/viewd's bootstrap.
type Logger interface {
	Debug(msg string)
	Debugf(format string, args ...interface{})
	Info(msg string)
	Infof(format string, args ...interface{})
	Warn(msg string)
	Warnf(format string, args ...interface{})
	Error(msg string)
	Errorf(format string, args ...interface{})
	Fatal(msg string)
	Fatalf(format string, args ...interface{})
	With(args ...interface{}) Logger
	Sync() error
}

// Options controls how New builds a Logger.
type Options struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string
	// FilePath is the rotated log file destination. "stdout"/"stderr" or
	// empty routes to the console instead.
	FilePath string
	// EnableCaller adds the call site to each entry.
	EnableCaller bool
	// MaxSizeMB, MaxBackups, MaxAgeDays control lumberjack rotation; only
	// used when FilePath names a real file.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func defaults(o *Options) Options {
	if o == nil {
		o = &Options{}
	}
	out := *o
	if out.Level == "" {
		out.Level = "info"
	}
	if out.FilePath == "" {
		out.FilePath = "stdout"
	}
	if out.MaxSizeMB == 0 {
		out.MaxSizeMB = 100
	}
	if out.MaxBackups == 0 {
		out.MaxBackups = 5
	}
	if out.MaxAgeDays == 0 {
		out.MaxAgeDays = 14
	}
	return out
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

type logger struct {
	zap   *zap.Logger
	sugar *zap.SugaredLogger
}

// New builds a Logger from Options, defaulting unset fields.
func New(opts *Options) (Logger, error) {
	o := defaults(opts)
	level := parseLevel(o.Level)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	var writer zapcore.WriteSyncer
	switch o.FilePath {
	case "stdout":
		writer = zapcore.AddSync(os.Stdout)
	case "stderr":
		writer = zapcore.AddSync(os.Stderr)
	default:
		writer = zapcore.AddSync(&lumberjack.Logger{
			Filename:   o.FilePath,
			MaxSize:    o.MaxSizeMB,
			MaxBackups: o.MaxBackups,
			MaxAge:     o.MaxAgeDays,
		})
	}

	core := zapcore.NewCore(encoder, writer, zap.NewAtomicLevelAt(level))

	var zapOpts []zap.Option
	if o.EnableCaller {
		zapOpts = append(zapOpts, zap.AddCaller(), zap.AddCallerSkip(1))
	}

	zl := zap.New(core, zapOpts...)
	return &logger{zap: zl, sugar: zl.Sugar()}, nil
}

// NewNop returns a Logger that discards everything, for tests.
func NewNop() Logger {
	zl := zap.NewNop()
	return &logger{zap: zl, sugar: zl.Sugar()}
}

func (l *logger) Debug(msg string)                       { l.sugar.Debug(msg) }
func (l *logger) Debugf(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *logger) Info(msg string)                         { l.sugar.Info(msg) }
func (l *logger) Infof(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *logger) Warn(msg string)                         { l.sugar.Warn(msg) }
func (l *logger) Warnf(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *logger) Error(msg string)                        { l.sugar.Error(msg) }
func (l *logger) Errorf(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }
func (l *logger) Fatal(msg string)                        { l.sugar.Fatal(msg) }
func (l *logger) Fatalf(format string, args ...interface{}) { l.sugar.Fatalf(format, args...) }

func (l *logger) With(args ...interface{}) Logger {
	return &logger{zap: l.zap.With(toZapFields(args...)...), sugar: l.sugar.With(args...)}
}

func (l *logger) Sync() error { return l.zap.Sync() }

// toZapFields converts key, value, key, value... pairs into zap fields.
func toZapFields(args ...interface{}) []zap.Field {
	if len(args)%2 != 0 {
		args = args[:len(args)-1]
	}
	fields := make([]zap.Field, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		fields = append(fields, zap.Any(key, args[i+1]))
	}
	return fields
}
