package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu    sync.RWMutex
	sugar *zap.SugaredLogger
	debug bool
)

func init() {
	Init(os.Getenv("ENVIRONMENT"), os.Getenv("LOG_LEVEL"))
}

// Init rebuilds the process logger. Development gets a console encoder and
// debug output; everything else logs JSON at info level unless level says otherwise.
func Init(environment, level string) {
	var cfg zap.Config
	if environment == "development" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}

	if level != "" {
		if parsed, err := zapcore.ParseLevel(level); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(parsed)
		}
	}

	built, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		built = zap.NewNop()
	}

	mu.Lock()
	if sugar != nil {
		_ = sugar.Sync()
	}
	sugar = built.Sugar()
	debug = environment == "development" || cfg.Level.Enabled(zapcore.DebugLevel)
	mu.Unlock()
}

// L exposes the underlying zap logger for code that wants structured fields.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	// The printf helpers add a frame that direct callers do not have.
	return sugar.Desugar().WithOptions(zap.AddCallerSkip(-1))
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

func Info(format string, v ...interface{}) {
	current().Infof(format, v...)
}

func Error(format string, v ...interface{}) {
	current().Errorf(format, v...)
}

func Debug(format string, v ...interface{}) {
	mu.RLock()
	enabled := debug
	mu.RUnlock()
	if enabled {
		current().Debugf(format, v...)
	}
}

func Warn(format string, v ...interface{}) {
	current().Warnf(format, v...)
}

func Fatal(format string, v ...interface{}) {
	current().Fatalf(format, v...)
}

func Sync() {
	_ = current().Sync()
}
