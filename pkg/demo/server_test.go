package demo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/endevent/pkg/journal"
	"github.com/go-go-golems/endevent/pkg/lifecycle"
)

func testSettings(delay time.Duration) Settings {
	s := DefaultSettings()
	s.Addr = "127.0.0.1:0"
	s.Delay = delay
	return s
}

func newTestServer(t *testing.T, s Settings, opts ...ServerOption) *Server {
	t.Helper()
	srv, err := NewServer(s, append([]ServerOption{WithBusLogger(watermill.NopLogger{})}, opts...)...)
	require.NoError(t, err)
	return srv
}

// runServer starts srv and returns its base URL. The server is stopped on cleanup.
func runServer(t *testing.T, srv *Server) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("server did not stop")
		}
	})

	select {
	case <-srv.Ready():
	case err := <-done:
		t.Fatalf("server exited early: %v", err)
	}
	<-srv.Bus().Running()
	return "http://" + srv.Addr().String()
}

func TestTest1_AnswersAfterDelay(t *testing.T) {
	const delay = 150 * time.Millisecond
	srv := newTestServer(t, testSettings(delay))
	t.Cleanup(func() { _ = srv.Close() })
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	start := time.Now()
	resp, err := http.Get(ts.URL + "/test1")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	elapsed := time.Since(start)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, `{"test":"test"}`, string(body))
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.GreaterOrEqual(t, elapsed, delay)
	require.Equal(t, uint64(1), srv.Counter().Current())
}

func TestTest1_ClientGoneDuringDelayWritesNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test1", nil).WithContext(ctx)
	cancel()

	NewTestHandler(time.Hour).ServeHTTP(rec, req)
	require.Empty(t, rec.Body.String())
}

func TestServer_RoutesAndMethods(t *testing.T) {
	srv := newTestServer(t, testSettings(0))
	t.Cleanup(func() { _ = srv.Close() })
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/test1", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/requests?limit=abc", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_RunJournalsRequests(t *testing.T) {
	s := testSettings(0)
	s.JournalDB = filepath.Join(t.TempDir(), "journal", "requests.db")
	srv := newTestServer(t, s)
	base := runServer(t, srv)

	resp, err := http.Get(base + "/test1")
	require.NoError(t, err)
	_ = resp.Body.Close()
	requestID := resp.Header.Get(RequestIDHeader)
	require.NotEmpty(t, requestID)

	var rec journal.Record
	require.Eventually(t, func() bool {
		r, ok, err := srv.Journal().Get(context.Background(), requestID)
		if err != nil || !ok || len(r.Signals) < 4 {
			return false
		}
		rec = r
		return true
	}, 5*time.Second, 20*time.Millisecond)
	require.Equal(t, []lifecycle.Signal{
		lifecycle.SignalStart, lifecycle.SignalEnd, lifecycle.SignalFinish, lifecycle.SignalClose,
	}, rec.Signals)
	require.Equal(t, "/test1", rec.Path)
	require.Equal(t, http.StatusOK, rec.Status)
	require.True(t, rec.Ended())

	resp, err = http.Get(base + "/api/requests?limit=10")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Requests []journal.Record `json:"requests"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	found := false
	for _, r := range out.Requests {
		if r.RequestID == requestID {
			found = true
		}
	}
	require.True(t, found)
}

func TestServer_StreamsLifecycleOverWebsocket(t *testing.T) {
	srv := newTestServer(t, testSettings(0), WithJournal(journal.NewInMemoryStore(10)))
	base := runServer(t, srv)

	wsURL := "ws" + base[len("http"):] + "/ws/lifecycle"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, hello, err := conn.ReadMessage()
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"hello"}`, string(hello))

	resp, err := http.Get(base + "/test1")
	require.NoError(t, err)
	_ = resp.Body.Close()
	requestID := resp.Header.Get(RequestIDHeader)

	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var env struct {
			Type  string          `json:"type"`
			Event lifecycle.Event `json:"event"`
		}
		require.NoError(t, json.Unmarshal(data, &env))
		require.Equal(t, "lifecycle", env.Type)
		if env.Event.RequestID == requestID && env.Event.Signal == lifecycle.SignalEnd {
			require.Equal(t, "/test1", env.Event.Path)
			return
		}
	}
}

func TestNewServer_RejectsInvalidSettings(t *testing.T) {
	s := DefaultSettings()
	s.Delay = -time.Second
	_, err := NewServer(s)
	require.ErrorContains(t, err, "delay must not be negative")

	s = DefaultSettings()
	s.Addr = ""
	_, err = NewServer(s)
	require.ErrorContains(t, err, "addr is empty")

	_, err = NewServer(DefaultSettings(), WithJournal(nil))
	require.ErrorContains(t, err, "journal store is nil")
}
