package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// leakyTarget keeps "once" listeners registered, so only the tracker flag
// stands between a repeated completion signal and a second "end".
type leakyTarget struct {
	Emitter
}

func (l *leakyTarget) Once(signal Signal, fn Listener) func() {
	return l.On(signal, fn)
}

type closeOnlyTarget struct {
	Emitter
}

func (c *closeOnlyTarget) Supports(signal Signal) bool {
	return signal != SignalFinish
}

func TestPatch_EndFiresOnceForBeforeAndAfterListeners(t *testing.T) {
	var target Emitter
	before, after := 0, 0
	target.On(SignalEnd, func() { before++ })

	tracker := Patch(&target)
	target.On(SignalEnd, func() { after++ })
	require.False(t, tracker.Ended())
	require.Equal(t, 0, before)

	target.Emit(SignalFinish)
	require.True(t, tracker.Ended())
	require.Equal(t, 1, before)
	require.Equal(t, 1, after)
}

func TestPatch_FinishTwiceEndsOnce(t *testing.T) {
	var target Emitter
	ends := 0
	target.On(SignalEnd, func() { ends++ })
	Patch(&target)

	target.Emit(SignalFinish)
	target.Emit(SignalFinish)
	require.Equal(t, 1, ends)
}

func TestPatch_TrackerGuardsRepeatedCompletion(t *testing.T) {
	target := &leakyTarget{}
	ends := 0
	target.On(SignalEnd, func() { ends++ })
	tracker := Patch(target)

	target.Emit(SignalFinish)
	target.Emit(SignalFinish)
	target.Emit(SignalFinish)
	require.True(t, tracker.Ended())
	require.Equal(t, 1, ends)
	require.Equal(t, 1, target.ListenerCount(SignalFinish))
}

func TestPatch_EndNeverPrecedesCompletion(t *testing.T) {
	var target Emitter
	completed := false
	ends := 0
	target.On(SignalEnd, func() {
		require.True(t, completed, "end fired before finish")
		ends++
	})
	Patch(&target)

	target.Emit(SignalClose)
	target.Emit("custom")
	require.Equal(t, 0, ends)

	completed = true
	target.Emit(SignalFinish)
	require.Equal(t, 1, ends)
}

func TestPatch_FallsBackToClose(t *testing.T) {
	target := &closeOnlyTarget{}
	require.Equal(t, SignalClose, CompletionSignal(target))

	ends := 0
	target.On(SignalEnd, func() { ends++ })
	tracker := Patch(target)

	target.Emit(SignalFinish)
	require.Equal(t, 0, ends)
	target.Emit(SignalClose)
	target.Emit(SignalClose)
	require.True(t, tracker.Ended())
	require.Equal(t, 1, ends)
}

func TestPatch_DefaultsToFinish(t *testing.T) {
	require.Equal(t, SignalFinish, CompletionSignal(&Emitter{}))
	require.Equal(t, SignalFinish, CompletionSignal(NewResponseWriter(nil)))
}

func TestPatch_NilTargetPanics(t *testing.T) {
	require.Panics(t, func() { Patch(nil) })
}

func TestTracker_NilIsNotEnded(t *testing.T) {
	var tracker *Tracker
	require.False(t, tracker.Ended())
}
