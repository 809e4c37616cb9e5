// Package watch provides the push-on-change read model: writers notify a Hub
// of the tables they touched, and observers re-run their query and emit the
// new result only when it differs from the last one emitted.
package watch

import (
	"context"
	"errors"
	"reflect"
	"sync"
)

// Hub fans out table-change notifications to subscribers.
type Hub struct {
	mu   sync.Mutex
	next uint64
	subs map[uint64]*subscription
}

type subscription struct {
	tables map[string]bool
	ch     chan struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*subscription)}
}

// Subscribe registers interest in the given tables. The returned channel
// receives a signal after any notify touching one of them; bursts coalesce
// into a single pending signal. Call cancel to unsubscribe.
func (h *Hub) Subscribe(tables ...string) (<-chan struct{}, func()) {
	sub := &subscription{
		tables: make(map[string]bool, len(tables)),
		ch:     make(chan struct{}, 1),
	}
	for _, t := range tables {
		sub.tables[t] = true
	}

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = sub
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
	return sub.ch, cancel
}

// Notify signals every subscriber interested in any of the tables.
func (h *Hub) Notify(tables ...string) {
	if len(tables) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		for _, t := range tables {
			if sub.tables[t] {
				select {
				case sub.ch <- struct{}{}:
				default:
				}
				break
			}
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Source describes an observable query.
type Source[T any] struct {
	// Tables whose changes may alter the result
	Tables []string

	// Load computes the current result
	Load func(ctx context.Context) (T, error)

	// Equal compares two results; reflect.DeepEqual when nil
	Equal func(a, b T) bool

	// OnError receives reload failures; the previous value stays current
	OnError func(error)
}

// Observe loads the current value and returns a channel that yields it
// immediately, then again after every change that alters the result.
// An error from the initial load is returned directly. The channel is
// closed when ctx is done.
func Observe[T any](ctx context.Context, hub *Hub, src Source[T]) (<-chan T, error) {
	equal := src.Equal
	if equal == nil {
		equal = func(a, b T) bool { return reflect.DeepEqual(a, b) }
	}

	// Subscribe before the first load so no write slips between them
	changes, cancel := hub.Subscribe(src.Tables...)

	current, err := src.Load(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan T, 1)
	out <- current

	go func() {
		defer close(out)
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				return
			case <-changes:
			}

			next, err := src.Load(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if src.OnError != nil {
					src.OnError(err)
				}
				continue
			}
			if equal(current, next) {
				continue
			}
			current = next

			select {
			case out <- next:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// First returns the first value of an observable query and releases the
// subscription.
func First[T any](ctx context.Context, hub *Hub, src Source[T]) (T, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch, err := Observe(ctx, hub, src)
	if err != nil {
		var zero T
		return zero, err
	}
	return Receive(ctx, ch)
}

// ErrClosed is returned by Receive when the stream ended without a value.
var ErrClosed = errors.New("watch: stream closed")

// Receive waits for the next value on ch.
func Receive[T any](ctx context.Context, ch <-chan T) (T, error) {
	var zero T
	select {
	case v, ok := <-ch:
		if !ok {
			return zero, ErrClosed
		}
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
