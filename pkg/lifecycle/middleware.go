package lifecycle

import (
	"context"
	"net/http"
)

type contextKey struct{}

// NewContext returns a copy of ctx carrying rw.
func NewContext(ctx context.Context, rw *ResponseWriter) context.Context {
	return context.WithValue(ctx, contextKey{}, rw)
}

// FromContext returns the ResponseWriter installed by Middleware, if any.
func FromContext(ctx context.Context) (*ResponseWriter, bool) {
	if ctx == nil {
		return nil, false
	}
	rw, ok := ctx.Value(contextKey{}).(*ResponseWriter)
	return rw, ok && rw != nil
}

func FromRequest(r *http.Request) (*ResponseWriter, bool) {
	if r == nil {
		return nil, false
	}
	return FromContext(r.Context())
}

// Middleware decorates the response with a patched ResponseWriter so every
// later handler can observe "end". Once next returns it emits "finish" and
// then "close". If the request context is cancelled first, only "close" fires
// and "end" is never emitted for that request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := NewResponseWriter(w)
		Patch(rw)

		stop := context.AfterFunc(r.Context(), func() { rw.Close() })
		completed := false
		defer func() {
			if !stop() {
				// cancellation already scheduled close
				return
			}
			if completed {
				rw.Finish()
			}
			rw.Close()
		}()

		next.ServeHTTP(rw, r.WithContext(NewContext(r.Context(), rw)))
		completed = true
	})
}

// Watch registers fn once for each of signals on rw. fn receives the signal
// that fired.
func Watch(rw *ResponseWriter, fn func(Signal), signals ...Signal) {
	if rw == nil || fn == nil {
		return
	}
	for _, s := range signals {
		rw.Once(s, func() { fn(s) })
	}
}
