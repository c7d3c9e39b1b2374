package pipeio

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/muesli/cancelreader"
)

func TestStdio_ReadWrite(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	s := NewStdio(strings.NewReader("posted line\n"), &out)
	defer s.Close()

	got, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(got) != "posted line\n" {
		t.Errorf("Read() = %q", got)
	}

	if _, err := s.Write([]byte("@bot - hi\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if out.String() != "@bot - hi\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestStdio_Cancel(t *testing.T) {
	t.Parallel()

	s := NewStdio(strings.NewReader("never read"), io.Discard)
	s.Cancel()

	buf := make([]byte, 16)
	if _, err := s.Read(buf); !errors.Is(err, cancelreader.ErrCanceled) {
		t.Errorf("Read() after Cancel error = %v, want ErrCanceled", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestStdio_CancelPipe(t *testing.T) {
	t.Parallel()

	r, w := io.Pipe()
	defer w.Close()

	s := NewStdio(r, io.Discard)
	s.Cancel()

	if _, err := s.Read(make([]byte, 1)); err == nil {
		t.Error("Read() after Cancel should fail")
	}
}
