package demo

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/endevent/pkg/journal"
	"github.com/go-go-golems/endevent/pkg/lifecycle"
	"github.com/go-go-golems/endevent/pkg/lifecycle/bus"
)

const shutdownTimeout = 30 * time.Second

// Server drives the lifecycle event bus and the HTTP server.
type Server struct {
	settings Settings
	counter  *RequestCounter
	bus      *bus.Bus
	journal  journal.Store
	pool     *ConnectionPool
	handler  http.Handler
	httpSrv  *http.Server

	busLogger watermill.LoggerAdapter

	readyOnce sync.Once
	ready     chan struct{}
	addr      net.Addr
}

type ServerOption func(*Server) error

// WithJournal replaces the journal store built from settings.
func WithJournal(store journal.Store) ServerOption {
	return func(s *Server) error {
		if store == nil {
			return errors.New("journal store is nil")
		}
		s.journal = store
		return nil
	}
}

func WithBusLogger(logger watermill.LoggerAdapter) ServerOption {
	return func(s *Server) error {
		s.busLogger = logger
		return nil
	}
}

func WithRequestCounter(counter *RequestCounter) ServerOption {
	return func(s *Server) error {
		if counter == nil {
			return errors.New("request counter is nil")
		}
		s.counter = counter
		return nil
	}
}

func NewServer(settings Settings, opts ...ServerOption) (*Server, error) {
	if err := settings.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid server settings")
	}
	s := &Server{
		settings: settings,
		counter:  &RequestCounter{},
		pool:     NewConnectionPool(),
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.journal == nil {
		store, err := openJournal(settings)
		if err != nil {
			return nil, err
		}
		s.journal = store
	}

	b, err := bus.New(bus.Options{Topic: settings.Topic, Redis: settings.Redis, Logger: s.busLogger})
	if err != nil {
		_ = s.journal.Close()
		return nil, errors.Wrap(err, "new event bus")
	}
	s.bus = b
	// A single handler: with Redis, handlers sharing a consumer group would
	// split the stream between them.
	s.bus.AddHandler("lifecycle-sink", s.consumeEvent)

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	mux := http.NewServeMux()
	mux.Handle("GET /test1", NewTestHandler(settings.Delay))
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.Handle("GET /api/requests", NewRequestsHandler(s.journal))
	mux.Handle("GET /ws/lifecycle", NewLifecycleWSHandler(s.pool, upgrader))

	// The patch goes first so every later handler can observe "end".
	s.handler = lifecycle.Middleware(RequestLogger(s.counter, s.bus)(mux))
	s.httpSrv = &http.Server{
		Addr:              settings.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func openJournal(settings Settings) (journal.Store, error) {
	p := strings.TrimSpace(settings.JournalDB)
	if p == "" {
		return journal.NewInMemoryStore(settings.JournalSize), nil
	}
	if dir := filepath.Dir(p); dir != "" && dir != "." {
		_ = os.MkdirAll(dir, 0755)
	}
	dsn, err := journal.SQLiteDSNForFile(p)
	if err != nil {
		return nil, errors.Wrap(err, "build journal DSN")
	}
	store, err := journal.NewSQLiteStore(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open journal store")
	}
	return store, nil
}

func (s *Server) Handler() http.Handler    { return s.handler }
func (s *Server) Bus() *bus.Bus            { return s.bus }
func (s *Server) Journal() journal.Store   { return s.journal }
func (s *Server) Pool() *ConnectionPool    { return s.pool }
func (s *Server) Counter() *RequestCounter { return s.counter }
func (s *Server) HTTPServer() *http.Server { return s.httpSrv }
func (s *Server) Ready() <-chan struct{}   { return s.ready }

// Addr returns the bound listener address once Ready is closed.
func (s *Server) Addr() net.Addr {
	select {
	case <-s.ready:
		return s.addr
	default:
		return nil
	}
}

func (s *Server) consumeEvent(ctx context.Context, ev lifecycle.Event) error {
	if err := s.journal.Append(ctx, ev); err != nil {
		// acking anyway: a poisoned record must not block the stream
		log.Warn().Err(err).Str("component", "demo").Str("request_id", ev.RequestID).Msg("journal append failed")
	}
	b, err := json.Marshal(map[string]any{"type": "lifecycle", "event": ev})
	if err != nil {
		return errors.Wrap(err, "marshal ws envelope")
	}
	s.pool.Broadcast(b)
	log.Debug().Str("component", "demo").Str("request_id", ev.RequestID).Str("signal", ev.Signal.String()).Msg("lifecycle event consumed")
	return nil
}

// Run serves HTTP and the event bus until ctx is cancelled, SIGINT/SIGTERM
// arrives or one of them fails, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if ctx == nil {
		return errors.New("ctx is nil")
	}
	if s == nil || s.httpSrv == nil || s.bus == nil {
		return errors.New("server is not initialized")
	}

	ln, err := net.Listen("tcp", s.httpSrv.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.httpSrv.Addr)
	}
	s.readyOnce.Do(func() {
		s.addr = ln.Addr()
		close(s.ready)
	})

	eg, egCtx := errgroup.WithContext(ctx)
	// The bus outlives the HTTP server so in-flight requests still get consumed.
	busCtx, busCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer busCancel()

	eg.Go(func() error {
		if err := s.bus.Run(busCtx); err != nil {
			return errors.Wrap(err, "event bus")
		}
		return nil
	})

	eg.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
			log.Info().Msg("received interrupt signal, shutting down gracefully...")
		case <-egCtx.Done():
			log.Info().Msg("context done, shutting down...")
		}
		s.pool.CloseAll()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		err := s.httpSrv.Shutdown(shutdownCtx)
		busCancel()
		if err != nil {
			log.Error().Err(err).Msg("server shutdown error")
			return err
		}
		log.Info().Msg("server shutdown complete")
		return nil
	})

	eg.Go(func() error {
		log.Info().Str("addr", ln.Addr().String()).Msg("starting end-demo server")
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server listen error")
			return err
		}
		return nil
	})

	err = eg.Wait()
	if closeErr := s.Close(); closeErr != nil {
		log.Error().Err(closeErr).Msg("close error")
		if err == nil {
			err = closeErr
		}
	}
	return err
}

// Close releases the bus and journal. Run calls it on exit.
func (s *Server) Close() error {
	if s == nil {
		return nil
	}
	var first error
	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			first = err
		}
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil && first == nil {
			first = errors.Wrap(err, "close journal")
		}
	}
	return first
}
