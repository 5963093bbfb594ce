package gateway

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyQueueDrainsInReservationOrder(t *testing.T) {
	q := newReplyQueue(16)

	first := q.reserve()
	second := q.reserve()
	third := q.reserve()

	// Complete out of order; the drainer must still emit 1, 2, 3.
	third <- []byte{3}
	first <- []byte{1}
	second <- []byte{2}
	q.closeQueue()

	var got []byte
	q.drain(func(resp []byte) error {
		got = append(got, resp...)
		return nil
	})

	assert.Equal(t, []byte{1, 2, 3}, got)
}

func TestReplyQueueBlocksOnOldestOutstanding(t *testing.T) {
	q := newReplyQueue(16)

	first := q.reserve()
	second := q.reserve()
	second <- []byte{2}

	var (
		mu  sync.Mutex
		got []byte
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		q.drain(func(resp []byte) error {
			mu.Lock()
			got = append(got, resp...)
			mu.Unlock()
			return nil
		})
	}()

	// Nothing can be written until the oldest slot completes.
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Empty(t, got)
	mu.Unlock()

	first <- []byte{1}
	q.closeQueue()
	<-done

	assert.Equal(t, []byte{1, 2}, got)
}

func TestReplyQueueStopsOnNilResponse(t *testing.T) {
	q := newReplyQueue(16)

	first := q.reserve()
	second := q.reserve()
	first <- nil
	second <- []byte{2}
	q.closeQueue()

	var got []byte
	q.drain(func(resp []byte) error {
		got = append(got, resp...)
		return nil
	})

	// The poisoned slot ends the drain before later responses leak out.
	assert.Empty(t, got)
}

func TestReplyQueueStopsOnWriteFailure(t *testing.T) {
	q := newReplyQueue(16)

	for i := byte(1); i <= 3; i++ {
		q.reserve() <- []byte{i}
	}
	q.closeQueue()

	var calls int
	q.drain(func(resp []byte) error {
		calls++
		return errors.New("broken pipe")
	})

	require.Equal(t, 1, calls)
}
