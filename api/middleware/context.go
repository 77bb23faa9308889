package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/stocktrace/stocktrace-backend/pkg/logger"
)

type contextKey string

const ctxActorID contextKey = "actor_id"

// actorIDHeader carries the operator identity asserted by the edge. The API
// trusts the gateway in front of it and does not verify the value.
const actorIDHeader = "X-Actor-Id"

func ActorIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxActorID).(string); ok {
		return v
	}
	return ""
}

// WithActorID injects the actor identifier into the context.
func WithActorID(ctx context.Context, actorID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActorID, actorID)
}

// ActorContext lifts the X-Actor-Id header into the request context and the
// structured log fields for everything downstream.
func ActorContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actorID := strings.TrimSpace(r.Header.Get(actorIDHeader))
			if actorID == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithActorID(r.Context(), actorID)
			if logg != nil {
				ctx = logg.WithActorID(ctx, actorID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
