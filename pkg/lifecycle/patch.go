package lifecycle

import "sync/atomic"

// Tracker records whether Patch already emitted "end" for its target.
type Tracker struct {
	ended atomic.Bool
}

// Ended reports whether "end" has been emitted.
func (t *Tracker) Ended() bool {
	if t == nil {
		return false
	}
	return t.ended.Load()
}

// CompletionSignal returns the signal Patch listens on for target: "finish",
// or "close" when target reports that it cannot emit "finish".
func CompletionSignal(target Target) Signal {
	if s, ok := target.(SignalSupporter); ok && !s.Supports(SignalFinish) {
		return SignalClose
	}
	return SignalFinish
}

// Patch makes target emit "end" exactly once, synchronously, when its
// completion signal first fires. Repeated completion signals are ignored.
func Patch(target Target) *Tracker {
	if target == nil {
		panic("lifecycle: Patch requires non-nil target")
	}
	tracker := &Tracker{}
	target.Once(CompletionSignal(target), func() {
		if !tracker.ended.CompareAndSwap(false, true) {
			return
		}
		target.Emit(SignalEnd)
	})
	return tracker
}
