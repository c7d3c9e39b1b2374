// Package semaphore bounds the number of concurrent relay connections.
package semaphore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrFull is returned when no slot became free in time.
var ErrFull = errors.New("all connection slots in use")

// Slots is a counting semaphore over a buffered channel. A nil *Slots never
// blocks.
type Slots struct {
	free chan struct{}
}

// New creates n free slots.
func New(n int) *Slots {
	free := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		free <- struct{}{}
	}
	return &Slots{free: free}
}

// TryAcquire takes a slot if one is free right now.
func (s *Slots) TryAcquire() bool {
	if s == nil {
		return true
	}

	select {
	case <-s.free:
		return true
	default:
		return false
	}
}

// Acquire waits up to timeout for a free slot.
func (s *Slots) Acquire(ctx context.Context, timeout time.Duration) error {
	if s == nil {
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.free:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("after %s: %w", timeout, ErrFull)
	}
}

// Release returns a slot taken by TryAcquire or Acquire.
func (s *Slots) Release() {
	if s == nil {
		return
	}
	s.free <- struct{}{}
}

// Free is the number of slots currently available.
func (s *Slots) Free() int {
	if s == nil {
		return 0
	}
	return len(s.free)
}

// Cap is the total number of slots.
func (s *Slots) Cap() int {
	if s == nil {
		return 0
	}
	return cap(s.free)
}
