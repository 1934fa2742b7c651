package demo

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/endevent/pkg/lifecycle"
)

// RequestCounter hands out request numbers starting at 1.
type RequestCounter struct {
	n atomic.Uint64
}

func (c *RequestCounter) Next() uint64 { return c.n.Add(1) }

func (c *RequestCounter) Current() uint64 { return c.n.Load() }

// EventPublisher receives every lifecycle event observed by RequestLogger.
type EventPublisher interface {
	Publish(ev lifecycle.Event) error
}

type EventPublisherFunc func(ev lifecycle.Event) error

func (f EventPublisherFunc) Publish(ev lifecycle.Event) error { return f(ev) }

const RequestIDHeader = "X-Request-Id"

// RequestLogger numbers each request, logs its close/end/finish signals and
// forwards them to pub. It must run after lifecycle.Middleware; without it,
// requests pass through unobserved.
func RequestLogger(counter *RequestCounter, pub EventPublisher) func(http.Handler) http.Handler {
	if counter == nil {
		counter = &RequestCounter{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw, ok := lifecycle.FromRequest(r)
			if !ok {
				log.Warn().Str("component", "demo").Str("path", r.URL.Path).Msg("lifecycle middleware not installed, skipping request logging")
				next.ServeHTTP(w, r)
				return
			}

			current := counter.Next()
			requestID := uuid.NewString()
			w.Header().Set(RequestIDHeader, requestID)
			logger := log.With().Uint64("req", current).Str("request_id", requestID).Logger()

			var (
				mu   sync.Mutex
				step int
			)
			emit := func(sig lifecycle.Signal, status int) {
				mu.Lock()
				ev := lifecycle.Event{
					RequestID: requestID,
					Seq:       current,
					Step:      step,
					Signal:    sig,
					Method:    r.Method,
					Path:      r.URL.Path,
					Status:    status,
					At:        time.Now().UTC(),
				}
				step++
				mu.Unlock()
				if pub == nil {
					return
				}
				if err := pub.Publish(ev); err != nil {
					logger.Warn().Err(err).Str("signal", sig.String()).Msg("publish lifecycle event failed")
				}
			}

			logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Msg("app.use()")
			emit(lifecycle.SignalStart, 0)

			lifecycle.Watch(rw, func(sig lifecycle.Signal) {
				logger.Info().Str("signal", sig.String()).Int("status", rw.Status()).Msgf("app.use(): res.once(%s)", sig)
				emit(sig, rw.Status())
			}, lifecycle.SignalClose, lifecycle.SignalEnd, lifecycle.SignalFinish)

			next.ServeHTTP(w, r)
		})
	}
}
