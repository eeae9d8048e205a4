// Package logger provides a zap-backed implementation of observability.Logger.
package logger

import (
	"context"
	"log"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/martinbechard/wslog/pkg/observability"
)

type zapLogger struct {
	logger *zap.Logger
}

// NewLogger builds an observability.Logger backed by zap, JSON-encoded to
// stdout/stderr with ISO8601 timestamps, tagged with the process hostname
// and a random instance id.
func NewLogger() observability.Logger {
	hostname, _ := os.Hostname()
	instanceID := uuid.NewString()

	logConfiguration := zap.Config{
		Encoding:         "json",
		Level:            zap.NewAtomicLevelAt(zap.DebugLevel),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		InitialFields: map[string]interface{}{
			"host.name":           hostname,
			"service.instance.id": instanceID,
		},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:  "message",
			TimeKey:     "time",
			LevelKey:    "severity",
			EncodeTime:  zapcore.ISO8601TimeEncoder,
			EncodeLevel: zapcore.CapitalLevelEncoder,
		},
	}

	zl, err := logConfiguration.Build()
	if err != nil {
		log.Fatal(err)
	}
	return &zapLogger{logger: zl}
}

func (l *zapLogger) Debug(ctx context.Context, msg string, fields ...observability.Field) {
	l.logger.Debug(msg, l.toZapFields(fields...)...)
}

func (l *zapLogger) Info(ctx context.Context, msg string, fields ...observability.Field) {
	l.logger.Info(msg, l.toZapFields(fields...)...)
}

func (l *zapLogger) Warn(ctx context.Context, msg string, fields ...observability.Field) {
	l.logger.Warn(msg, l.toZapFields(fields...)...)
}

func (l *zapLogger) Error(ctx context.Context, msg string, fields ...observability.Field) {
	l.logger.Error(msg, l.toZapFields(fields...)...)
}

func (l *zapLogger) With(fields ...observability.Field) observability.Logger {
	return &zapLogger{logger: l.logger.With(l.toZapFields(fields...)...)}
}

func (l *zapLogger) toZapFields(fields ...observability.Field) []zapcore.Field {
	zapFields := make([]zapcore.Field, 0, len(fields))
	for _, f := range fields {
		zapFields = append(zapFields, zap.Any(f.Key, f.Value))
	}
	return zapFields
}
