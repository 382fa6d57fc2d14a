package meeting

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueue_PriorityThenFIFO(t *testing.T) {
	var mu sync.Mutex
	var log []string
	q := NewEventQueue()
	q.Push(newRecordingEvent("media-1", PriorityMedia, &mu, &log))
	q.Push(newRecordingEvent("control-1", PriorityControl, &mu, &log))
	q.Push(newRecordingEvent("media-2", PriorityMedia, &mu, &log))
	q.Push(newRecordingEvent("control-2", PriorityControl, &mu, &log))
	assert.Equal(t, 4, q.Len())

	var order []string
	for {
		e, ok := q.Pop()
		if !ok {
			break
		}
		order = append(order, e.(*recordingEvent).label)
	}
	assert.Equal(t, []string{"control-1", "control-2", "media-1", "media-2"}, order)
	assert.Equal(t, 0, q.Len())
}

func TestEventQueue_NegativePriorityIsHighest(t *testing.T) {
	var mu sync.Mutex
	var log []string
	q := NewEventQueue()
	q.Push(newRecordingEvent("media", PriorityMedia, &mu, &log))
	q.Push(newRecordingEvent("urgent", -3, &mu, &log))

	e, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "urgent", e.(*recordingEvent).label)
}

func TestEventQueue_EmptyPop(t *testing.T) {
	_, ok := NewEventQueue().Pop()
	assert.False(t, ok)
}
