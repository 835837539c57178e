package collections

// Event is a list of handlers notified synchronously, in subscription order.
// Handlers may subscribe or unsubscribe while the event is being raised; the
// change takes effect from the next Emit.
type Event[T any] struct {
	handlers handlerList[T]
}

// Subscribe registers h and returns a func that removes it. The returned func is idempotent.
func (e *Event[T]) Subscribe(h Handler[T]) (unsubscribe func()) {
	return e.handlers.add(h)
}

// Emit calls every handler with v.
func (e *Event[T]) Emit(v T) {
	e.handlers.notify(v)
}
