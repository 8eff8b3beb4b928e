package events

import "time"

type Level uint8

const (
	Debug Level = iota
	Info
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "D"
	case Info:
		return "I"
	case Error:
		return "E"
	default:
		return "X"
	}
}

// Kind identifies the point in a cell's lifecycle an event was emitted from.
type Kind uint8

const (
	InitStart Kind = iota
	InitDone
	Contended
	RaceLost
	Poisoned
	Released
)

func (k Kind) String() string {
	switch k {
	case InitStart:
		return "init-start"
	case InitDone:
		return "init-done"
	case Contended:
		return "contended"
	case RaceLost:
		return "race-lost"
	case Poisoned:
		return "poisoned"
	case Released:
		return "released"
	default:
		return "unknown"
	}
}

type Event struct {
	Level   Level
	Kind    Kind
	Cell    string
	Message string

	// Duration is set on InitDone and Poisoned.
	Duration time.Duration
	// Spins counts failed guard acquisitions before the event.
	Spins int
	Error error
}

// Handler receives events. Implementations must be safe for concurrent use.
type Handler interface {
	Handle(event Event)
}
