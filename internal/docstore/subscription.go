package docstore

import (
	"context"
	"sync"
)

// Subscription is a live snapshot listener on a collection query or a
// single document. Updates delivers the full current result set on
// subscribe and again after every committed write to the collection; the
// channel closes when the subscription ends. Close is idempotent and
// guaranteed to release the listener; no deliveries happen after it
// returns to the hub's bookkeeping.
type Subscription struct {
	collection string
	run        func(ctx context.Context) ([]Document, error)

	updates chan []Document
	trigger chan struct{}
	done    chan struct{}
	once    sync.Once

	errMu sync.Mutex
	err   error

	hub *hub
}

// Updates is the stream of result-set snapshots.
func (s *Subscription) Updates() <-chan []Document { return s.updates }

// Err reports why the stream terminated. It is valid once Updates is
// closed; nil means a clean close.
func (s *Subscription) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close releases the listener. Safe to call multiple times and from any
// goroutine; pending notifications are discarded.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.done)
	})
}

func (s *Subscription) setErr(err error) {
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
}

func (s *Subscription) loop(ctx context.Context) {
	defer close(s.updates)

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			s.Close()
			return
		case <-s.trigger:
		}

		docs, err := s.run(ctx)
		if err != nil {
			s.setErr(err)
			s.Close()
			return
		}

		select {
		case s.updates <- docs:
		case <-s.done:
			return
		case <-ctx.Done():
			s.Close()
			return
		}
	}
}

// Listen subscribes to the query's result set. The first snapshot is
// delivered as soon as it can be read from the store.
func (q Query) Listen(ctx context.Context) (*Subscription, error) {
	if q.err != nil {
		return nil, q.err
	}
	if q.collection == nil || q.collection.path == "" {
		return nil, ErrPathRequired
	}

	sub := q.collection.store.hub.subscribe(q.collection.path, func(ctx context.Context) ([]Document, error) {
		return q.Documents(ctx)
	})
	go sub.loop(ctx)
	return sub, nil
}

// ListenDoc subscribes to a single document. Snapshots contain one
// document when it exists and none when it does not; a missing document is
// never an error.
func (c *Collection) ListenDoc(ctx context.Context, id string) (*Subscription, error) {
	if c.path == "" {
		return nil, ErrPathRequired
	}
	if id == "" {
		return nil, ErrIDRequired
	}

	sub := c.store.hub.subscribe(c.path, func(ctx context.Context) ([]Document, error) {
		doc, err := c.Get(ctx, id)
		if err != nil {
			if err == ErrNotFound {
				return []Document{}, nil
			}
			return nil, err
		}
		return []Document{doc}, nil
	})
	go sub.loop(ctx)
	return sub, nil
}

// hub fans write notifications out to the live subscriptions of each
// collection.
type hub struct {
	mu   sync.Mutex
	subs map[string][]*Subscription
}

func newHub() *hub {
	return &hub{subs: make(map[string][]*Subscription)}
}

func (h *hub) subscribe(collection string, run func(ctx context.Context) ([]Document, error)) *Subscription {
	sub := &Subscription{
		collection: collection,
		run:        run,
		updates:    make(chan []Document),
		trigger:    make(chan struct{}, 1),
		done:       make(chan struct{}),
		hub:        h,
	}
	// Seed the initial snapshot delivery.
	sub.trigger <- struct{}{}

	h.mu.Lock()
	h.subs[collection] = append(h.subs[collection], sub)
	h.mu.Unlock()
	return sub
}

// notify wakes every subscription on the collection. Bursts coalesce: a
// subscription that has not yet re-read the store keeps a single pending
// trigger, so the next snapshot always reflects the latest state.
func (h *hub) notify(collection string) {
	h.mu.Lock()
	subs := append([]*Subscription(nil), h.subs[collection]...)
	h.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.trigger <- struct{}{}:
		default:
		}
	}
}

func (h *hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	list := h.subs[sub.collection]
	for i, s := range list {
		if s == sub {
			h.subs[sub.collection] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(h.subs[sub.collection]) == 0 {
		delete(h.subs, sub.collection)
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	var all []*Subscription
	for _, list := range h.subs {
		all = append(all, list...)
	}
	h.mu.Unlock()

	for _, sub := range all {
		sub.Close()
	}
}
