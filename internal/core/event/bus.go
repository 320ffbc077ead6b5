package event

import (
	"reflect"
)

// Bus delivers typed notifications synchronously: Publish returns after every
// subscriber of the event's type has run. Handlers see the world exactly as
// the publisher left it. Single-goroutine use only.
type Bus struct {
	handlers map[reflect.Type][]any
	depth    int
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[reflect.Type][]any),
	}
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.handlers[t] = append(b.handlers[t], fn)
}

// maxDepth bounds handlers that publish from inside a handler.
const maxDepth = 32

// Publish calls every handler subscribed to T, in subscription order. A nil
// bus drops the event.
func Publish[T any](b *Bus, ev T) {
	if b == nil {
		return
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	hs := b.handlers[t]
	if len(hs) == 0 {
		return
	}
	if b.depth >= maxDepth {
		panic("event: publish recursion too deep for " + t.String())
	}
	b.depth++
	defer func() { b.depth-- }()
	for _, h := range hs {
		// Subscribe and Publish use the same type key, so the assertion holds.
		h.(func(T))(ev)
	}
}

// Subscribers reports how many handlers listen for T.
func Subscribers[T any](b *Bus) int {
	return len(b.handlers[reflect.TypeOf((*T)(nil)).Elem()])
}
