package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSSEHub_LaggingClientStillGetsResult(t *testing.T) {
	hub := NewSSEHub(zaptest.NewLogger(t))
	t.Cleanup(hub.Close)

	ch := make(chan ProgressEvent, 32)
	hub.register <- sseClient{runID: "run-7", ch: ch}
	require.Eventually(t, func() bool { return hub.Subscribers("run-7") == 1 }, 5*time.Second, 5*time.Millisecond)

	for i := 1; i <= 50; i++ {
		hub.Broadcast(ProgressEvent{RunID: "run-7", Type: EventProgress, Iteration: i})
	}
	hub.Broadcast(ProgressEvent{RunID: "run-7", Type: EventResult})
	require.Eventually(t, func() bool { return hub.Subscribers("run-7") == 0 }, 5*time.Second, 5*time.Millisecond)

	var got []ProgressEvent
	for ev := range ch {
		got = append(got, ev)
	}
	require.NotEmpty(t, got)
	assert.LessOrEqual(t, len(got), 32)
	assert.Equal(t, EventResult, got[len(got)-1].Type)
	for _, ev := range got[:len(got)-1] {
		assert.Equal(t, EventProgress, ev.Type)
	}
}

func TestSSEHub_FailureEndsOnlyItsRun(t *testing.T) {
	hub := NewSSEHub(zaptest.NewLogger(t))
	t.Cleanup(hub.Close)

	failed := make(chan ProgressEvent, 4)
	other := make(chan ProgressEvent, 4)
	hub.register <- sseClient{runID: "a", ch: failed}
	hub.register <- sseClient{runID: "b", ch: other}
	require.Eventually(t, func() bool {
		return hub.Subscribers("a") == 1 && hub.Subscribers("b") == 1
	}, 5*time.Second, 5*time.Millisecond)

	hub.Broadcast(ProgressEvent{RunID: "a", Type: EventFailed})
	ev, ok := <-failed
	require.True(t, ok)
	assert.Equal(t, EventFailed, ev.Type)
	_, ok = <-failed
	assert.False(t, ok, "channel closed after terminal event")
	assert.Equal(t, 1, hub.Subscribers("b"))
}
