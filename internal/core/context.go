package core

import "context"

type contextKey string

const ctxKeyClient contextKey = "import_client"

// ClientInfo identifies who started an import, for the run audit trail.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// ContextWithClient attaches client details to ctx.
func ContextWithClient(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, ctxKeyClient, info)
}

// ClientFromContext returns the client details on ctx, or the zero value.
func ClientFromContext(ctx context.Context) ClientInfo {
	if v, ok := ctx.Value(ctxKeyClient).(ClientInfo); ok {
		return v
	}
	return ClientInfo{}
}
