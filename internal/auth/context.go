package auth

import (
	"context"

	"quiz-session-engine/internal/domain"
)

type ctxKey string

const ctxKeyAuth ctxKey = "auth"

func WithAuth(ctx context.Context, a domain.AuthContext) context.Context {
	return context.WithValue(ctx, ctxKeyAuth, a)
}

func FromContext(ctx context.Context) (domain.AuthContext, bool) {
	if v := ctx.Value(ctxKeyAuth); v != nil {
		if a, ok := v.(domain.AuthContext); ok {
			return a, true
		}
	}
	return domain.AuthContext{}, false
}
