package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/entityregistry/internal/core"
	mw "github.com/JonMunkholm/entityregistry/internal/web/middleware"
)

// withClient tags the request context with the caller's address and user
// agent for the import run audit trail.
func withClient(r *http.Request) context.Context {
	return core.ContextWithClient(r.Context(), core.ClientInfo{
		IP:        mw.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
}
