package authctx

import (
	"context"

	"crowdstack-backend/internal/domain"
)

type contextKey string

const callerContextKey contextKey = "caller"

func WithCaller(ctx context.Context, caller domain.Caller) context.Context {
	return context.WithValue(ctx, callerContextKey, caller)
}

func FromContext(ctx context.Context) *domain.Caller {
	val, ok := ctx.Value(callerContextKey).(domain.Caller)
	if !ok {
		return nil
	}
	return &val
}
