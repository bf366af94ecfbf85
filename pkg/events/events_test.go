package events

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmitter_DeliversSynchronously(t *testing.T) {
	var got []Event
	e := New(func(ev Event) { got = append(got, ev) })

	e.Emit(KindProgress, ProgressEvent{Stage: "plan", Current: 1, Message: "planning"})
	e.Emit(KindError, ErrorEvent{Message: "boom", Source: "worker"})

	require.Len(t, got, 2)
	require.Equal(t, KindProgress, got[0].Kind)
	require.Equal(t, KindError, got[1].Kind)
}

func TestEmitter_ZeroValueDiscards(t *testing.T) {
	var e Emitter // no callback set
	require.NotPanics(t, func() {
		e.Emit(KindError, ErrorEvent{Message: "ignored"})
	})
}

func TestEmitter_CallerOrderPreserved(t *testing.T) {
	var order []string
	e := New(func(ev Event) {
		switch p := ev.Payload.(type) {
		case ProgressEvent:
			order = append(order, p.Stage)
		}
	})
	for _, s := range []string{"a", "b", "c"} {
		e.Progress(s, 0, nil, "")
	}
	require.Equal(t, []string{"a", "b", "c"}, order)
}
