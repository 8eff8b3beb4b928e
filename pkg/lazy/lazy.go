// Package lazy provides a lazily initialized value whose initialization is
// built from explicit atomic operations instead of sync.Once, so every
// synchronization point is visible to the race detector and to a reader.
package lazy

import (
	"io"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/olimci/lazycell/pkg/events"
)

// Cell holds a value computed on first access. The initializer runs at most
// once per cell, no matter how many goroutines race on the first access.
//
// A Cell must not be copied after first use.
type Cell[T any] struct {
	slot   atomic.Pointer[T]
	guard  atomic.Bool
	poison atomic.Pointer[PoisonError]
	closed atomic.Bool

	init func() T
	opts *options
}

// New returns an empty cell that will produce its value with init.
func New[T any](init func() T, opts ...Option) *Cell[T] {
	return &Cell[T]{
		init: init,
		opts: defaultOptions().apply(opts...),
	}
}

// NewWithRelease is New with a release hook typed against the cell, so a
// mismatched hook fails to compile instead of failing at Close.
func NewWithRelease[T any](init func() T, release func(T) error, opts ...Option) *Cell[T] {
	return New(init, append(opts[:len(opts):len(opts)], WithRelease(release))...)
}

// Must returns a cell whose initializer may report an error. A non-nil error
// aborts initialization and poisons the cell; it is never retried.
func Must[T any](init func() (T, error), opts ...Option) *Cell[T] {
	return New(func() T {
		value, err := init()
		if err != nil {
			panic(err)
		}
		return value
	}, opts...)
}

// Get returns the value, initializing it if necessary.
func (c *Cell[T]) Get() T {
	return *c.Pointer()
}

// Pointer returns a pointer to the value, initializing it if necessary. Every
// call on the same cell returns the same pointer. Callers must not write
// through it.
func (c *Cell[T]) Pointer() *T {
	if p := c.slot.Load(); p != nil {
		return p
	}
	return c.slow()
}

// Initialized reports whether the value has been produced.
func (c *Cell[T]) Initialized() bool {
	return c.slot.Load() != nil
}

// Name returns the label set with WithName.
func (c *Cell[T]) Name() string {
	return c.opts.name
}

func (c *Cell[T]) slow() *T {
	c.checkUsable()

	spins := c.lock()
	if spins > 0 {
		c.emit(events.Event{
			Level:   events.Debug,
			Kind:    events.Contended,
			Message: "waited for initialization guard",
			Spins:   spins,
		})
	}

	// Another goroutine may have finished between the fast path and the lock.
	if p := c.slot.Load(); p != nil {
		c.unlock()
		c.emit(events.Event{
			Level:   events.Debug,
			Kind:    events.RaceLost,
			Message: "value already initialized",
			Spins:   spins,
		})
		return p
	}

	// A poisoned cell keeps the guard free so later callers fail fast.
	if perr := c.poison.Load(); perr != nil {
		c.unlock()
		panic(perr)
	}

	return c.initialize(spins)
}

func (c *Cell[T]) initialize(spins int) *T {
	start := time.Now()
	finished := false
	defer func() {
		if finished {
			return
		}
		r := recover()
		perr := newPoisonError(r)
		c.poison.Store(perr)
		c.unlock()
		c.emit(events.Event{
			Level:    events.Error,
			Kind:     events.Poisoned,
			Message:  "initializer aborted",
			Duration: time.Since(start),
			Error:    perr,
		})
		if r != nil {
			panic(r)
		}
	}()

	// Handlers run under the guard, so a panicking handler poisons the cell too.
	c.emit(events.Event{
		Level:   events.Debug,
		Kind:    events.InitStart,
		Message: "initializing",
		Spins:   spins,
	})

	value := c.init()
	p := &value
	c.publish(p)
	finished = true
	c.unlock()

	c.emit(events.Event{
		Level:    events.Info,
		Kind:     events.InitDone,
		Message:  "initialized",
		Duration: time.Since(start),
		Spins:    spins,
	})
	return p
}

// lock spins until the guard is acquired and reports how many attempts failed.
func (c *Cell[T]) lock() int {
	spins := 0
	for !c.guard.CompareAndSwap(false, true) {
		spins++
		if c.opts.spin != nil {
			c.opts.spin()
		}
		runtime.Gosched()
	}
	return spins
}

func (c *Cell[T]) unlock() {
	if !c.guard.Swap(false) {
		panic(ErrGuardNotHeld)
	}
}

// publish occupies the slot. The value must be fully built before the call.
func (c *Cell[T]) publish(p *T) {
	if old := c.slot.Swap(p); old != nil {
		panic(ErrDoubleInit)
	}
}

func (c *Cell[T]) checkUsable() {
	if c.closed.Load() {
		panic(ErrClosed)
	}
	if perr := c.poison.Load(); perr != nil {
		panic(perr)
	}
}

// Close releases the value if it was initialized. The caller must ensure no
// other goroutine is accessing the cell. Closing twice is a no-op, and any
// access after Close panics with ErrClosed.
func (c *Cell[T]) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	// Clearing the slot sends any later access down the slow path.
	p := c.slot.Swap(nil)
	if p == nil {
		return nil
	}

	err := c.release(p)
	c.emit(events.Event{
		Level:   events.Info,
		Kind:    events.Released,
		Message: "released",
		Error:   err,
	})
	return err
}

func (c *Cell[T]) release(p *T) error {
	if c.opts.release != nil {
		return c.opts.release(*p)
	}
	if closer, ok := any(*p).(io.Closer); ok {
		return closer.Close()
	}
	if closer, ok := any(p).(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Cell[T]) emit(event events.Event) {
	event.Cell = c.opts.name
	c.opts.handler.Handle(event)
}
