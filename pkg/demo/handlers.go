package demo

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/endevent/pkg/journal"
)

// NewTestHandler answers {"test":"test"} after delay. The wait does not hold
// any shared resource; if the client goes away first nothing is written.
func NewTestHandler(delay time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-req.Context().Done():
				log.Debug().Str("component", "demo").Str("path", req.URL.Path).Msg("client went away during delay")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"test": "test"})
	}
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func NewRequestsHandler(store journal.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if store == nil {
			http.Error(w, "journal not enabled", http.StatusNotFound)
			return
		}
		limit := journal.DefaultListLimit
		if s := strings.TrimSpace(req.URL.Query().Get("limit")); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil || v <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = v
		}
		records, err := store.List(req.Context(), limit)
		if err != nil {
			log.Error().Err(err).Str("component", "demo").Msg("journal list failed")
			http.Error(w, "journal list failed", http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []journal.Record{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"requests": records})
	}
}

// NewLifecycleWSHandler attaches websocket clients to pool until they disconnect.
func NewLifecycleWSHandler(pool *ConnectionPool, upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if pool == nil {
			http.Error(w, "lifecycle stream not initialized", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		// hello goes out before the connection joins the pool, so it is
		// always the first frame
		if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"hello"}`)); err != nil {
			_ = conn.Close()
			return
		}
		pool.Add(conn)
		defer pool.Remove(conn)

		// Clients do not send anything meaningful; reading detects disconnects.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "encode response failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}
