package apiclient

import (
	"context"

	"github.com/google/uuid"
)

// Тип для ключа в контексте (избегаем коллизий)
type ctxKey string

const traceIDKey ctxKey = "trace_id"

// TraceHeader пробрасывается на бэкенд, чтобы связать запрос панели с логами сервера.
const TraceHeader = "X-Trace-ID"

// WithTraceID кладет Trace-ID в контекст. Без него на каждый запрос генерируется новый.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

func traceIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}
