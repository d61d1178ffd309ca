package ctxutil

import (
	"context"

	"github.com/yungbote/helpdesk-backend/internal/domain/auth"
)

type traceDataKey struct{}
type identityKey struct{}

type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	val := ctx.Value(traceDataKey{})
	if td, ok := val.(*TraceData); ok {
		return td
	}
	return nil
}

// WithIdentity stores the caller identity resolved by the auth middleware.
func WithIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func GetIdentity(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(auth.Identity)
	if !ok || !id.Valid() {
		return auth.Identity{}, false
	}
	return id, true
}
