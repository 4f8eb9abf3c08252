package app

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/dkeye/devcord-rt/internal/core"
)

var errFull = errors.New("buffer full")

// recorder is an in-memory SignalConnection.
type recorder struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
	closes int
}

func (r *recorder) TrySend(f core.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return core.ErrClosed
	}
	if r.full {
		return errFull
	}
	r.frames = append(r.frames, f)
	return nil
}

func (r *recorder) Close() {
	r.mu.Lock()
	r.closed = true
	r.closes++
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func (r *recorder) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *recorder) closeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closes
}
