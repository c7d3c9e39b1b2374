// Package pipeio wraps standard streams for interactive commands: input
// lines can be abandoned on shutdown instead of blocking the process.
package pipeio

import (
	"io"

	"github.com/muesli/cancelreader"
)

// Stdio reads from an input that can be cancelled and writes to an output.
// Cancellation only unblocks a pending read on platforms and inputs
// cancelreader supports; elsewhere it stops further reads.
type Stdio struct {
	in          io.Reader
	cancellable cancelreader.CancelReader

	out io.Writer
}

// NewStdio wraps in and out.
func NewStdio(in io.Reader, out io.Writer) *Stdio {
	s := &Stdio{in: in, out: out}

	cancellable, err := cancelreader.NewReader(in)
	if err != nil {
		return s
	}
	s.cancellable = cancellable
	return s
}

// Read reads from the input.
func (s *Stdio) Read(p []byte) (int, error) {
	if s.cancellable != nil {
		return s.cancellable.Read(p)
	}
	return s.in.Read(p)
}

// Write writes to the output.
func (s *Stdio) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

// Cancel abandons pending and future reads. Reads fail with
// cancelreader.ErrCanceled afterwards.
func (s *Stdio) Cancel() {
	if s.cancellable != nil {
		s.cancellable.Cancel()
	}
}

// Close cancels reading and releases the cancel machinery.
func (s *Stdio) Close() error {
	if s.cancellable == nil {
		return nil
	}
	s.cancellable.Cancel()
	return s.cancellable.Close()
}
