package enrollflow

import "context"

type clientIPContextKey struct{}
type browserContextKey struct{}
type returnToContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine uses it
// for per-IP send throttling and audit logging.
//
//	Docs: docs/rate_limiting.md
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithBrowserContext attaches the browser context identifier to ctx. The
// published session slot is keyed by it; requests without one share the
// default context "0".
//
//	Docs: docs/session_sync.md
func WithBrowserContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, browserContextKey{}, id)
}

// WithReturnTo attaches an explicit caller-supplied destination override to
// ctx. Resolution honors it verbatim when it matches a privileged route
// prefix and ignores it otherwise.
//
//	Docs: docs/resolver.md
func WithReturnTo(ctx context.Context, dest Destination) context.Context {
	return context.WithValue(ctx, returnToContextKey{}, dest)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func browserContextFromContext(ctx context.Context) string {
	if ctx == nil {
		return "0"
	}

	id, _ := ctx.Value(browserContextKey{}).(string)
	if id == "" {
		return "0"
	}

	return id
}

func returnToFromContext(ctx context.Context) (Destination, bool) {
	if ctx == nil {
		return "", false
	}

	dest, ok := ctx.Value(returnToContextKey{}).(Destination)
	if !ok || dest == "" {
		return "", false
	}

	return dest, true
}
