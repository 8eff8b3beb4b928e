// Package stress races goroutines against a fresh cell and checks that the
// cell kept its guarantees.
package stress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/olimci/lazycell/pkg/config"
	"github.com/olimci/lazycell/pkg/events"
	"github.com/olimci/lazycell/pkg/lazy"
	"github.com/olimci/lazycell/pkg/scope"
	"golang.org/x/sync/errgroup"
)

var (
	ErrMultipleInit    = errors.New("initializer ran more than once")
	ErrNotLazy         = errors.New("initializer ran without an access")
	ErrNeverInit       = errors.New("accesses returned without running the initializer")
	ErrDivergent       = errors.New("accesses observed different values")
	ErrReleaseMismatch = errors.New("release count does not match initialization")
	ErrPoisonMismatch  = errors.New("poisoned cell behaved unexpectedly")
	ErrUnexpectedPanic = errors.New("unexpected panic")
)

// Result is what one scenario run observed.
type Result struct {
	Scenario config.Scenario

	Invocations int64
	Accesses    int64
	// Pointers and Values count distinct results across all accesses.
	Pointers int
	Values   int
	Poisoned int64
	Releases int64

	Contended int
	Spins     int
	RaceLost  int

	Duration time.Duration
}

// Check returns an error describing every broken guarantee.
func (r *Result) Check() error {
	var errs []error

	wantInit := int64(0)
	if r.Scenario.Accesses() > 0 {
		wantInit = 1
	}

	switch {
	case r.Invocations > 1:
		errs = append(errs, fmt.Errorf("%w: %d invocations", ErrMultipleInit, r.Invocations))
	case r.Invocations != wantInit && wantInit == 0:
		errs = append(errs, fmt.Errorf("%w: %d invocations", ErrNotLazy, r.Invocations))
	case r.Invocations != wantInit:
		errs = append(errs, fmt.Errorf("%w: %d accesses", ErrNeverInit, r.Accesses))
	}

	if r.Pointers > 1 || r.Values > 1 {
		errs = append(errs, fmt.Errorf("%w: %d pointers, %d values", ErrDivergent, r.Pointers, r.Values))
	}

	if r.Scenario.Initializer == config.InitPanic {
		if r.Poisoned != r.Accesses {
			errs = append(errs, fmt.Errorf("%w: %d of %d accesses panicked", ErrPoisonMismatch, r.Poisoned, r.Accesses))
		}
		if r.Releases != 0 {
			errs = append(errs, fmt.Errorf("%w: %d releases of a poisoned cell", ErrReleaseMismatch, r.Releases))
		}
	} else {
		if r.Poisoned != 0 {
			errs = append(errs, fmt.Errorf("%w: %d accesses panicked", ErrPoisonMismatch, r.Poisoned))
		}
		if r.Releases != r.Invocations {
			errs = append(errs, fmt.Errorf("%w: %d releases, %d invocations", ErrReleaseMismatch, r.Releases, r.Invocations))
		}
	}

	return errors.Join(errs...)
}

// Run races a fresh cell under s. The cell is owned by a scope named after
// the scenario and released when the run ends.
func Run(ctx context.Context, s config.Scenario, opts ...Option) (*Result, error) {
	o := defaultOptions().apply(opts...)

	var (
		invocations atomic.Int64
		releases    atomic.Int64
		counter     atomic.Int64
	)

	collector := events.NewCollector(o.handler)
	owner := scope.New(s.Name)
	cell := lazy.NewWithRelease(func() int64 {
		invocations.Add(1)
		if s.InitDelay.Duration > 0 {
			time.Sleep(s.InitDelay.Duration)
		}
		switch s.Initializer {
		case config.InitCounter:
			return counter.Add(1) - 1
		case config.InitPanic:
			panic(fmt.Sprintf("scenario %s: initializer panicked", s.Name))
		default:
			return s.Value
		}
	}, func(int64) error {
		releases.Add(1)
		return nil
	},
		lazy.WithName(s.Name),
		lazy.WithEventHandler(collector),
	)
	if err := owner.Own(cell); err != nil {
		return nil, err
	}

	g, ctx := errgroup.WithContext(ctx)
	barrier := o.maxWorkers == 0 || o.maxWorkers >= s.Goroutines
	if !barrier {
		g.SetLimit(o.maxWorkers)
	}

	var (
		mu       sync.Mutex
		pointers = make(map[*int64]struct{})
		values   = make(map[int64]struct{})
		accesses atomic.Int64
		poisoned atomic.Int64
		start    = make(chan struct{})
	)

	began := time.Now()
	for range s.Goroutines {
		g.Go(func() error {
			if barrier {
				<-start
			}

			seenPtr := make(map[*int64]struct{}, 1)
			seenVal := make(map[int64]struct{}, 1)
			for range s.Calls {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}

				p, err := access(cell)
				accesses.Add(1)
				if errors.Is(err, lazy.ErrPoisoned) || (err != nil && s.Initializer == config.InitPanic) {
					poisoned.Add(1)
					continue
				}
				if err != nil {
					return err
				}
				seenPtr[p] = struct{}{}
				seenVal[*p] = struct{}{}
			}

			mu.Lock()
			for p := range seenPtr {
				pointers[p] = struct{}{}
			}
			for v := range seenVal {
				values[v] = struct{}{}
			}
			mu.Unlock()
			return nil
		})
	}
	close(start)

	err := g.Wait()
	elapsed := time.Since(began)

	if cerr := owner.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("close: %w", cerr))
	}
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	return &Result{
		Scenario:    s,
		Invocations: invocations.Load(),
		Accesses:    accesses.Load(),
		Pointers:    len(pointers),
		Values:      len(values),
		Poisoned:    poisoned.Load(),
		Releases:    releases.Load(),
		Contended:   collector.Count(events.Contended),
		Spins:       collector.Spins(),
		RaceLost:    collector.Count(events.RaceLost),
		Duration:    elapsed,
	}, nil
}

// access converts a panic from the cell into an error so one poisoned worker
// does not take the process down.
func access(cell *lazy.Cell[int64]) (p *int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			if rerr, ok := r.(error); ok {
				err = rerr
				return
			}
			err = fmt.Errorf("%w: %v", ErrUnexpectedPanic, r)
		}
	}()
	return cell.Pointer(), nil
}

// RunAll runs scenarios in order, calling report after each one. It stops at
// the first scenario that fails to run; broken guarantees are left to Check.
func RunAll(ctx context.Context, scenarios []config.Scenario, report func(*Result), opts ...Option) ([]*Result, error) {
	results := make([]*Result, 0, len(scenarios))
	for _, s := range scenarios {
		res, err := Run(ctx, s, opts...)
		if err != nil {
			return results, err
		}
		results = append(results, res)
		if report != nil {
			report(res)
		}
	}
	return results, nil
}
