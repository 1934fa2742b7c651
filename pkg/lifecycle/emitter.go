package lifecycle

import "sync"

type listenerEntry struct {
	id   uint64
	fn   Listener
	once bool
}

// Emitter delivers named signals to registered listeners.
// The zero value is ready to use and safe for concurrent use.
type Emitter struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[Signal][]listenerEntry
}

// On registers fn for every emission of signal.
func (e *Emitter) On(signal Signal, fn Listener) func() {
	return e.add(signal, fn, false)
}

// Once registers fn for the next emission of signal only.
func (e *Emitter) Once(signal Signal, fn Listener) func() {
	return e.add(signal, fn, true)
}

func (e *Emitter) add(signal Signal, fn Listener, once bool) func() {
	if fn == nil {
		return func() {}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listeners == nil {
		e.listeners = map[Signal][]listenerEntry{}
	}
	e.nextID++
	id := e.nextID
	e.listeners[signal] = append(e.listeners[signal], listenerEntry{id: id, fn: fn, once: once})
	return func() { e.remove(signal, id) }
}

func (e *Emitter) remove(signal Signal, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entries := e.listeners[signal]
	for i, entry := range entries {
		if entry.id == id {
			e.listeners[signal] = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(e.listeners[signal]) == 0 {
		delete(e.listeners, signal)
	}
}

// Emit calls the listeners of signal in registration order on the calling
// goroutine. Once listeners are dropped before they run, so a concurrent
// Emit never calls them twice. It reports whether any listener was called.
func (e *Emitter) Emit(signal Signal) bool {
	e.mu.Lock()
	entries := e.listeners[signal]
	if len(entries) == 0 {
		e.mu.Unlock()
		return false
	}
	fns := make([]Listener, 0, len(entries))
	kept := entries[:0:0]
	for _, entry := range entries {
		fns = append(fns, entry.fn)
		if !entry.once {
			kept = append(kept, entry)
		}
	}
	if len(kept) == 0 {
		delete(e.listeners, signal)
	} else {
		e.listeners[signal] = kept
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return true
}

// ListenerCount returns how many listeners are registered for signal.
func (e *Emitter) ListenerCount(signal Signal) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners[signal])
}
