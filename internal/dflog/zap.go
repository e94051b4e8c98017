package dflog

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how log output is written.
type Options struct {
	// Console, when true, writes human-readable logs to stderr and
	// disables file rotation entirely.
	Console bool

	// Dir is the directory rotated log files are written under when
	// Console is false.
	Dir string

	// FileName is the rotated log file's base name, e.g. "directory.log".
	FileName string

	// MaxSizeMB, MaxBackups, MaxAgeDays configure lumberjack rotation.
	// Zero values fall back to lumberjack's own defaults.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// New builds a Logger from Options, mirroring the core/grpc/gc
// multi-sink construction in the teacher's pkg/dflog/logcore, collapsed
// to the single sink this module's components need.
func New(opts Options) (Logger, error) {
	if opts.Console {
		cfg := zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
		l, err := cfg.Build()
		if err != nil {
			return nil, err
		}
		return &zapLogger{sugar: l.Sugar()}, nil
	}

	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.FileName == "" {
		opts.FileName = "p2p.log"
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, err
	}

	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, opts.FileName),
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	})

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), writer, zapcore.InfoLevel)
	l := zap.New(core)
	return &zapLogger{sugar: l.Sugar()}, nil
}

// NewNop returns a Logger that discards everything, useful in tests.
func NewNop() Logger {
	return &zapLogger{sugar: zap.NewNop().Sugar()}
}

func (z *zapLogger) Debugf(template string, args ...interface{}) { z.sugar.Debugf(template, args...) }
func (z *zapLogger) Infof(template string, args ...interface{})  { z.sugar.Infof(template, args...) }
func (z *zapLogger) Warnf(template string, args ...interface{})  { z.sugar.Warnf(template, args...) }
func (z *zapLogger) Errorf(template string, args ...interface{}) { z.sugar.Errorf(template, args...) }

func (z *zapLogger) With(keysAndValues ...interface{}) Logger {
	return &zapLogger{sugar: z.sugar.With(keysAndValues...)}
}

func (z *zapLogger) Sync() error {
	return z.sugar.Sync()
}
