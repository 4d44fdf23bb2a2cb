package logging

import (
	"context"

	"go.uber.org/zap"
)

type contextKey struct{}

// WithFields returns a context carrying zap fields. Fields accumulate
// across calls; later fields with the same key win at encode time.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	existing := ContextFields(ctx)
	merged := make([]zap.Field, 0, len(existing)+len(fields))
	merged = append(merged, existing...)
	merged = append(merged, fields...)
	return context.WithValue(ctx, contextKey{}, merged)
}

// ContextFields extracts fields previously attached with WithFields.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	fields, _ := ctx.Value(contextKey{}).([]zap.Field)
	return fields
}

// FromContext returns logger enriched with the context's fields.
func FromContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}
