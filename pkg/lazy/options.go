package lazy

import (
	"fmt"

	"github.com/olimci/lazycell/pkg/events"
)

func defaultOptions() *options {
	return &options{
		handler: events.NewNoopHandler(),
	}
}

type options struct {
	name    string
	handler events.Handler
	release func(any) error

	// spin runs after every failed guard acquisition.
	spin func()
}

func (o *options) apply(opts ...Option) *options {
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type Option func(*options)

// WithName labels the cell in events and metrics.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithEventHandler sets the handler that receives slow-path events. The
// handler may be called from any goroutine.
func WithEventHandler(handler events.Handler) Option {
	return func(o *options) {
		if handler == nil {
			handler = events.NewNoopHandler()
		}
		o.handler = handler
	}
}

// WithRelease sets the hook Close uses to release an initialized value,
// replacing the io.Closer fallback. T must match the cell's value type.
// Option is not generic, so a mismatch is only reported as an error from
// Close; prefer NewWithRelease where the cell is constructed.
func WithRelease[T any](release func(T) error) Option {
	return func(o *options) {
		o.release = func(v any) error {
			value, ok := v.(T)
			if !ok && v != nil {
				return fmt.Errorf("lazy: release hook expects %T, got %T", value, v)
			}
			return release(value)
		}
	}
}
