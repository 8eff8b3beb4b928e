// Package scope owns the teardown of lazily initialized values. Cells are
// registered as they are created and released in reverse order when the
// scope ends.
package scope

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/olimci/lazycell/pkg/lazy"
)

var ErrScopeClosed = errors.New("scope closed")

// New returns an empty, open scope.
func New(name string) *Scope {
	return &Scope{name: name}
}

type Scope struct {
	name string

	mu      sync.Mutex
	closers []io.Closer
	closed  bool
}

// Own registers c for release when the scope closes.
func (s *Scope) Own(c io.Closer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%w: %s", ErrScopeClosed, s.name)
	}
	s.closers = append(s.closers, c)
	return nil
}

// Len reports how many closers the scope still owns.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.closers)
}

// Close releases everything the scope owns, most recently registered first.
// Every closer runs even if an earlier one fails; the errors are joined.
// Callers must ensure nothing owned by the scope is still in use.
func (s *Scope) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

// Lazy creates a cell owned by s.
func Lazy[T any](s *Scope, init func() T, opts ...lazy.Option) (*lazy.Cell[T], error) {
	c := lazy.New(init, opts...)
	if err := s.Own(c); err != nil {
		return nil, err
	}
	return c, nil
}

// MustLazy is Lazy for scopes known to be open.
func MustLazy[T any](s *Scope, init func() T, opts ...lazy.Option) *lazy.Cell[T] {
	c, err := Lazy(s, init, opts...)
	if err != nil {
		panic(err)
	}
	return c
}
