package audit

import "context"

type ctxKey struct{}

// WithTraceID кладет сквозной ID запроса, его подхватит запись журнала.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, traceID)
}

func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
