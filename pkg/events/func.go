package events

func NewHandlerFunc(handle func(event Event)) HandlerFunc {
	return HandlerFunc{
		handle: handle,
	}
}

type HandlerFunc struct {
	handle func(event Event)
}

func (h HandlerFunc) Handle(event Event) {
	h.handle(event)
}

// Multi fans an event out to every non-nil handler in order.
func Multi(handlers ...Handler) Handler {
	out := make(multi, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

type multi []Handler

func (m multi) Handle(event Event) {
	for _, h := range m {
		h.Handle(event)
	}
}
