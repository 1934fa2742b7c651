package lifecycle

import (
	"bufio"
	"net"
	"net/http"
	"sync"

	"github.com/pkg/errors"
)

// ResponseWriter decorates an http.ResponseWriter with an Emitter and the
// host completion signals. Finish and Close each emit at most once.
type ResponseWriter struct {
	http.ResponseWriter
	Emitter

	mu          sync.Mutex
	status      int
	written     int64
	wroteHeader bool
	finished    bool
	closed      bool
}

var (
	_ http.ResponseWriter = &ResponseWriter{}
	_ http.Flusher        = &ResponseWriter{}
	_ http.Hijacker       = &ResponseWriter{}
	_ Target              = &ResponseWriter{}
	_ SignalSupporter     = &ResponseWriter{}
)

func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w}
}

func (rw *ResponseWriter) WriteHeader(statusCode int) {
	rw.mu.Lock()
	if rw.wroteHeader {
		rw.mu.Unlock()
		return
	}
	rw.wroteHeader = true
	rw.status = statusCode
	rw.mu.Unlock()
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *ResponseWriter) Write(data []byte) (int, error) {
	rw.mu.Lock()
	if !rw.wroteHeader {
		rw.wroteHeader = true
		rw.status = http.StatusOK
	}
	rw.mu.Unlock()
	n, err := rw.ResponseWriter.Write(data)
	rw.mu.Lock()
	rw.written += int64(n)
	rw.mu.Unlock()
	return n, err
}

func (rw *ResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack hands the connection over, e.g. for websocket upgrades. The
// response counts as sent with 101 Switching Protocols.
func (rw *ResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("lifecycle: wrapped ResponseWriter does not implement http.Hijacker")
	}
	conn, buf, err := h.Hijack()
	if err != nil {
		return nil, nil, err
	}
	rw.mu.Lock()
	rw.wroteHeader = true
	rw.status = http.StatusSwitchingProtocols
	rw.mu.Unlock()
	return conn, buf, nil
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (rw *ResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Status returns the status code sent so far, or 0 if nothing was written.
func (rw *ResponseWriter) Status() int {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.status
}

// BytesWritten returns the number of body bytes handed to the wrapped writer.
func (rw *ResponseWriter) BytesWritten() int64 {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.written
}

func (rw *ResponseWriter) Supports(signal Signal) bool {
	switch signal {
	case SignalFinish, SignalClose, SignalEnd:
		return true
	default:
		return false
	}
}

// Finish emits "finish" unless it already fired or the request was closed first.
func (rw *ResponseWriter) Finish() bool {
	rw.mu.Lock()
	if rw.finished || rw.closed {
		rw.mu.Unlock()
		return false
	}
	rw.finished = true
	rw.mu.Unlock()
	rw.Emit(SignalFinish)
	return true
}

// Close emits "close" unless it already fired.
func (rw *ResponseWriter) Close() bool {
	rw.mu.Lock()
	if rw.closed {
		rw.mu.Unlock()
		return false
	}
	rw.closed = true
	rw.mu.Unlock()
	rw.Emit(SignalClose)
	return true
}

func (rw *ResponseWriter) Finished() bool {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.finished
}

func (rw *ResponseWriter) Closed() bool {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.closed
}
