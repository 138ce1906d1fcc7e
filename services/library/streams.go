package library

import (
	"sync"

	"streamwise/internal/docstore"
)

// Stream adapts a raw document subscription into a typed push stream. Each
// snapshot from the store is decoded through the mapper and delivered on
// Updates; the channel closes when the stream or its context ends.
type Stream[T any] struct {
	sub     *docstore.Subscription
	updates chan T
	done    chan struct{}
	once    sync.Once

	mu  sync.Mutex
	err error
}

func newStream[T any](sub *docstore.Subscription, decode func([]docstore.Document) T) *Stream[T] {
	st := &Stream[T]{
		sub:     sub,
		updates: make(chan T),
		done:    make(chan struct{}),
	}

	go func() {
		defer close(st.updates)
		for docs := range sub.Updates() {
			select {
			case st.updates <- decode(docs):
			case <-st.done:
				return
			}
		}
		st.mu.Lock()
		st.err = sub.Err()
		st.mu.Unlock()
	}()

	return st
}

// Updates returns the receive channel. Values are full snapshots, never
// deltas, so a slow consumer that misses one snapshot loses nothing once
// the next arrives.
func (st *Stream[T]) Updates() <-chan T {
	return st.updates
}

// Err reports the terminal error, if any, once Updates has closed.
func (st *Stream[T]) Err() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.err
}

// Close releases the underlying subscription. Safe to call more than once
// and safe to call while a delivery is in flight.
func (st *Stream[T]) Close() {
	st.once.Do(func() {
		close(st.done)
		st.sub.Close()
	})
}
