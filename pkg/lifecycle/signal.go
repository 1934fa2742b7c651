package lifecycle

// Signal names a lifecycle notification delivered by an Emitter.
type Signal string

const (
	// SignalFinish fires once the handler chain has produced the full response.
	SignalFinish Signal = "finish"
	// SignalClose fires once the request is over, either after finish or
	// because the client went away first.
	SignalClose Signal = "close"
	// SignalEnd is emitted by Patch, at most once, when the completion signal fires.
	SignalEnd Signal = "end"
	// SignalStart marks a request entering the pipeline. It is only used for
	// observation (journal, bus) and is never emitted on a ResponseWriter.
	SignalStart Signal = "start"
)

func (s Signal) String() string { return string(s) }

// Listener is invoked synchronously, without payload, when a signal fires.
type Listener func()

// Target is anything that supports one-time listener registration and
// custom signal emission.
type Target interface {
	Once(signal Signal, fn Listener) (unsubscribe func())
	Emit(signal Signal) bool
}

// SignalSupporter is optionally implemented by targets that only emit a
// subset of the host signals.
type SignalSupporter interface {
	Supports(signal Signal) bool
}
