package events

import (
	"slices"
	"sync"
)

// NewCollector records every event and forwards it to handler, which may be nil.
func NewCollector(handler Handler) *Collector {
	if handler == nil {
		handler = NewNoopHandler()
	}
	return &Collector{
		events:  make([]Event, 0),
		handler: handler,
	}
}

type Collector struct {
	mu      sync.Mutex
	events  []Event
	handler Handler
}

func (c *Collector) Handle(event Event) {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()

	c.handler.Handle(event)
}

// Events returns a copy of everything recorded so far.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.events)
}

func (c *Collector) AtLevel(level Level) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Event, 0)
	for _, event := range c.events {
		if event.Level >= level {
			out = append(out, event)
		}
	}
	return out
}

func (c *Collector) HasLevel(level Level) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, event := range c.events {
		if event.Level == level {
			return true
		}
	}
	return false
}

func (c *Collector) MaxLevel() Level {
	c.mu.Lock()
	defer c.mu.Unlock()

	max := Level(0)
	for _, event := range c.events {
		if event.Level > max {
			max = event.Level
		}
	}
	return max
}

// Count returns how many recorded events have the given kind.
func (c *Collector) Count(kind Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, event := range c.events {
		if event.Kind == kind {
			n++
		}
	}
	return n
}

// Spins sums the spin counts of all Contended events.
func (c *Collector) Spins() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, event := range c.events {
		if event.Kind == Contended {
			n += event.Spins
		}
	}
	return n
}

func (c *Collector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = make([]Event, 0)
}

func (c *Collector) Summary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := new(Summary)
	for _, event := range c.events {
		if event.Level == Error {
			out.ErrorCount++
			out.Errors = append(out.Errors, event)
		}
	}

	out.Full = slices.Clone(c.events)

	return out
}
