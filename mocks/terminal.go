package mocks

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Terminal stands in for a user at a terminal: lines typed with Type arrive
// on Stdin, and everything written to Stdout is kept for inspection.
type Terminal struct {
	inR *io.PipeReader
	inW *io.PipeWriter

	mu      sync.Mutex
	out     bytes.Buffer
	changed chan struct{}
}

// NewTerminal creates a terminal with empty input and output.
func NewTerminal() *Terminal {
	r, w := io.Pipe()
	return &Terminal{inR: r, inW: w, changed: make(chan struct{})}
}

// Stdin returns the input side, read by the command under test.
func (m *Terminal) Stdin() io.Reader {
	return m.inR
}

// Stdout returns the output side, written by the command under test.
func (m *Terminal) Stdout() io.Writer {
	return terminalOut{m}
}

// Type enters line followed by a newline. It blocks until the command reads
// it.
func (m *Terminal) Type(line string) error {
	_, err := io.WriteString(m.inW, line+"\n")
	return err
}

// EndInput closes the input, like Ctrl-D.
func (m *Terminal) EndInput() {
	m.inW.Close()
}

// Output returns everything written so far.
func (m *Terminal) Output() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.out.String()
}

// WaitForOutput waits until the output contains expected.
func (m *Terminal) WaitForOutput(expected string, timeout time.Duration) error {
	deadline := time.After(timeout)

	for {
		m.mu.Lock()
		got, changed := m.out.String(), m.changed
		m.mu.Unlock()

		if strings.Contains(got, expected) {
			return nil
		}

		select {
		case <-changed:
		case <-deadline:
			return fmt.Errorf("timeout waiting for output %q, got: %q", expected, got)
		}
	}
}

type terminalOut struct {
	m *Terminal
}

func (o terminalOut) Write(p []byte) (int, error) {
	o.m.mu.Lock()
	defer o.m.mu.Unlock()

	n, err := o.m.out.Write(p)
	close(o.m.changed)
	o.m.changed = make(chan struct{})
	return n, err
}
