package auth

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts a zap logger to Logger.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

var _ Logger = ZapLogger{}

// NewZapLogger wraps l. A nil logger is replaced by zap.NewNop.
func NewZapLogger(l *zap.Logger) ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return ZapLogger{sugar: l.Sugar()}
}

// NewZap builds a console logger for development and a JSON
// logger otherwise.
func NewZap(production bool, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if production {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(level)); err == nil {
			cfg.Level.SetLevel(lvl)
		}
	}

	return cfg.Build()
}

func (z ZapLogger) Debug(msg string, args ...any) { z.sugar.Debugw(msg, args...) }
func (z ZapLogger) Info(msg string, args ...any)  { z.sugar.Infow(msg, args...) }
func (z ZapLogger) Warn(msg string, args ...any)  { z.sugar.Warnw(msg, args...) }
func (z ZapLogger) Error(msg string, args ...any) { z.sugar.Errorw(msg, args...) }

// Sync flushes buffered entries.
func (z ZapLogger) Sync() error {
	return z.sugar.Sync()
}
