package stress

import "github.com/olimci/lazycell/pkg/events"

func defaultOptions() *options {
	return &options{
		handler: events.NewNoopHandler(),
	}
}

type options struct {
	handler    events.Handler
	maxWorkers int
}

func (o *options) apply(opts ...Option) *options {
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type Option func(*options)

// WithEventHandler forwards every cell event to handler, e.g. a metrics exporter.
func WithEventHandler(handler events.Handler) Option {
	return func(o *options) {
		o.handler = handler
	}
}

// WithMaxWorkers limits how many workers run at once. Zero means all of them;
// a limit below the scenario's goroutine count gives up the start barrier.
func WithMaxWorkers(n int) Option {
	if n < 0 {
		panic("max workers must be >= 0")
	}
	return func(o *options) {
		o.maxWorkers = n
	}
}
