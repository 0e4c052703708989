package goSession

import (
	"context"

	"github.com/MrEthical07/goSession/tokenstore"
)

type clientIPContextKey struct{}
type userAgentContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. It is recorded on
// refresh tokens and used for per-IP login throttling.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent to ctx. It is recorded on
// refresh tokens for diagnostics only.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ua, _ := ctx.Value(userAgentContextKey{}).(string)
	return ua
}

func deviceFromContext(ctx context.Context) tokenstore.Metadata {
	return tokenstore.Metadata{
		UserAgent: userAgentFromContext(ctx),
		IPAddress: clientIPFromContext(ctx),
	}
}
