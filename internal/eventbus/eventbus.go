package eventbus

import (
	"context"
	"reflect"
	"sync"
)

// Handler processes events of type T.
type Handler[T any] func(context.Context, T)

// Bus is a simple in-process event dispatcher. A nil *Bus is valid and
// drops every event, so components can publish unconditionally.
type Bus struct {
	mu       sync.RWMutex
	handlers map[reflect.Type][]*entry
}

// entry wraps a handler so subscriptions can be told apart by identity.
type entry struct {
	fn func(context.Context, any)
}

// New creates a new Bus.
func New() *Bus { return &Bus{handlers: make(map[reflect.Type][]*entry)} }

func (b *Bus) subscribe(t reflect.Type, e *entry) (unsubscribe func()) {
	b.mu.Lock()
	b.handlers[t] = append(b.handlers[t], e)
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		hs := b.handlers[t]
		for i, h := range hs {
			if h == e {
				hs = append(hs[:i:i], hs[i+1:]...)
				break
			}
		}
		if len(hs) == 0 {
			delete(b.handlers, t)
		} else {
			b.handlers[t] = hs
		}
	}
}

// emit dispatches e to all handlers of its dynamic type, synchronously and
// in subscription order.
func (b *Bus) emit(ctx context.Context, e any) {
	if b == nil {
		return
	}
	t := reflect.TypeOf(e)
	b.mu.RLock()
	hs := b.handlers[t]
	if len(hs) == 0 {
		b.mu.RUnlock()
		return
	}
	copied := append([]*entry(nil), hs...)
	b.mu.RUnlock()
	for _, h := range copied {
		h.fn(ctx, e)
	}
}

// Subscribe registers h on b for events of type T. Subscribing to a nil bus
// is a no-op.
func Subscribe[T any](b *Bus, h Handler[T]) (unsubscribe func()) {
	if b == nil {
		return func() {}
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	e := &entry{fn: func(ctx context.Context, v any) { h(ctx, v.(T)) }}
	return b.subscribe(t, e)
}

// Publish sends e through b.
func Publish[T any](ctx context.Context, b *Bus, e T) {
	b.emit(ctx, e)
}
