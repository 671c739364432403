package context

import (
	"context"

	"github.com/smallbiznis/licensehub/internal/auditcontext"
	"github.com/smallbiznis/licensehub/internal/teamcontext"
)

type requestIDKey struct{}

// WithRequestID stores the inbound request id for log and trace correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// TeamIDFromContext returns the resolved team id, or "" outside a team scope.
func TeamIDFromContext(ctx context.Context) string {
	team, ok := teamcontext.FromContext(ctx)
	if !ok {
		return ""
	}
	return team.String()
}

func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	return auditcontext.ActorFromContext(ctx)
}
