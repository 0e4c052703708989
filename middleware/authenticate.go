package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
)

type identityContextKey struct{}
type jarContextKey struct{}

// IdentityFromContext returns the identity resolved by Authenticate, or the
// anonymous identity when the middleware did not run.
func IdentityFromContext(ctx context.Context) *goSession.Identity {
	if id, ok := ctx.Value(identityContextKey{}).(*goSession.Identity); ok && id != nil {
		return id
	}
	return goSession.Anonymous()
}

// JarFromContext returns the request's cookie jar. Handlers pass it to
// Engine.Login, Engine.Logout and friends. Changes must be made before the
// handler writes its response.
func JarFromContext(ctx context.Context) *goSession.CookieJar {
	jar, _ := ctx.Value(jarContextKey{}).(*goSession.CookieJar)
	return jar
}

// Authenticate resolves the request identity. It never rejects a request.
func Authenticate(engine *goSession.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := goSession.WithClientIP(r.Context(), ClientIP(r))
			ctx = goSession.WithUserAgent(ctx, r.UserAgent())
			jar := goSession.NewCookieJar(r)

			id, err := engine.ResolveIdentity(ctx, jar)
			if err != nil && !errors.Is(err, goSession.ErrMissingCredential) {
				engine.Logger().DebugContext(ctx, "anonymous request", "path", r.URL.Path, "error", err)
			}

			ctx = context.WithValue(ctx, identityContextKey{}, id)
			ctx = context.WithValue(ctx, jarContextKey{}, jar)

			fw := &cookieFlushWriter{ResponseWriter: w, jar: jar}
			next.ServeHTTP(fw, r.WithContext(ctx))
			fw.flush()
		})
	}
}

// cookieFlushWriter writes pending Set-Cookie headers once, right before
// the status line goes out.
type cookieFlushWriter struct {
	http.ResponseWriter
	jar     *goSession.CookieJar
	flushed bool
}

func (w *cookieFlushWriter) flush() {
	if w.flushed {
		return
	}
	w.flushed = true
	w.jar.Flush(w.ResponseWriter)
}

func (w *cookieFlushWriter) WriteHeader(code int) {
	w.flush()
	w.ResponseWriter.WriteHeader(code)
}

func (w *cookieFlushWriter) Write(b []byte) (int, error) {
	w.flush()
	return w.ResponseWriter.Write(b)
}

func (w *cookieFlushWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// ClientIP returns the host part of r.RemoteAddr. Deployments behind a
// proxy should rewrite RemoteAddr first (chi's RealIP does).
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
