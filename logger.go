package tgauth

import "go.uber.org/zap"

// ZapLogger adapts a zap logger to the Logger interface.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

var _ Logger = (*ZapLogger)(nil)

// NewZapLogger wraps a zap.Logger. Call sites use the printf-with-pairs
// convention ("message", "key", value, ...), which maps onto zap's sugared
// keys-and-values form.
func NewZapLogger(l *zap.Logger) *ZapLogger {
	return &ZapLogger{sugar: l.Sugar()}
}

func (z *ZapLogger) Debug(format string, args ...any) {
	z.sugar.Debugw(format, args...)
}

func (z *ZapLogger) Info(format string, args ...any) {
	z.sugar.Infow(format, args...)
}

func (z *ZapLogger) Warn(format string, args ...any) {
	z.sugar.Warnw(format, args...)
}

func (z *ZapLogger) Error(format string, args ...any) {
	z.sugar.Errorw(format, args...)
}
