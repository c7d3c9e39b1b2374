package socket

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"net/netip"
	"strings"
	"testing"
	"time"

	"ninjametal/ledticker/mocks"
	"ninjametal/ledticker/pkg/chip"
	"ninjametal/ledticker/pkg/config"
	"ninjametal/ledticker/pkg/log"
)

var remote = netip.MustParseAddr("51.140.68.75")

func newTestConn(t *testing.T, maxAttempts int) (*Conn, *mocks.MockChip) {
	t.Helper()

	cfg := config.DefaultClient()
	cfg.Connect.MaxAttempts = maxAttempts
	cfg.Read.MaxAttempts = maxAttempts
	cfg.Deps = &config.Dependencies{Sleep: func(time.Duration) {}}

	m := mocks.NewMockChip()
	return New(m, cfg), m
}

func connected(t *testing.T) (*Conn, *mocks.MockChip) {
	t.Helper()

	c, m := newTestConn(t, 50)
	m.SetStatus(0, chip.StatusEstablished)
	if err := c.Connect(context.Background(), remote, 443); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return c, m
}

func TestConnect_StatusSequences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		statuses []chip.SocketStatus
		wantErr  error
	}{
		{"immediately established", []chip.SocketStatus{chip.StatusEstablished}, nil},
		{"init then syn sent", []chip.SocketStatus{chip.StatusInit, chip.StatusSynSent, chip.StatusSynSent, chip.StatusEstablished}, nil},
		{"closed first", []chip.SocketStatus{chip.StatusSynSent, chip.StatusClosed, chip.StatusEstablished}, ErrClosed},
		{"close wait first", []chip.SocketStatus{chip.StatusCloseWait}, ErrClosed},
		{"no status", []chip.SocketStatus{chip.StatusSynSent, mocks.NoStatus}, ErrStatusUnavailable},
		{"never established", []chip.SocketStatus{chip.StatusSynSent}, ErrTimeout},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c, m := newTestConn(t, 10)
			m.ScriptStatus(0, tc.statuses...)

			err := c.Connect(context.Background(), remote, 443)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Connect() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestConnect_WarnsOnUndocumentedStatus(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cfg := config.DefaultClient()
	cfg.Logger = log.NewLoggerTo(&out, false)
	cfg.Deps = &config.Dependencies{Sleep: func(time.Duration) {}}

	m := mocks.NewMockChip()
	m.ScriptStatus(0, chip.StatusSynSent, chip.SocketStatus(0x99), chip.StatusEstablished)

	if err := New(m, cfg).Connect(context.Background(), remote, 443); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if got := out.String(); !strings.Contains(got, "undocumented status Status(0x99) after SynSent") {
		t.Errorf("log = %q, want a warning about status 0x99", got)
	}
	if strings.Count(out.String(), "Warning") != 1 {
		t.Errorf("log = %q, want exactly one warning", out.String())
	}
}

func TestConnect_RandomStatusSequences(t *testing.T) {
	t.Parallel()

	pending := []chip.SocketStatus{chip.StatusInit, chip.StatusSynSent, chip.StatusSynRecv}
	final := []chip.SocketStatus{chip.StatusEstablished, chip.StatusClosed, chip.StatusCloseWait}
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		var seq []chip.SocketStatus
		for j := rng.Intn(8); j > 0; j-- {
			seq = append(seq, pending[rng.Intn(len(pending))])
		}
		last := final[rng.Intn(len(final))]
		seq = append(seq, last)
		// whatever follows the first decisive status must not matter
		seq = append(seq, final[rng.Intn(len(final))])

		c, m := newTestConn(t, 20)
		m.ScriptStatus(0, seq...)

		err := c.Connect(context.Background(), remote, 443)
		if last == chip.StatusEstablished {
			if err != nil {
				t.Fatalf("sequence %v: Connect() error = %v, want nil", seq, err)
			}
			continue
		}
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("sequence %v: Connect() error = %v, want ErrClosed", seq, err)
		}
	}
}

func TestConnect_ConfiguresChipOnce(t *testing.T) {
	t.Parallel()

	c, m := connected(t)
	if err := c.Connect(context.Background(), remote, 443); err != nil {
		t.Fatalf("second Connect() error = %v", err)
	}

	for method, want := range map[string]int{
		"SetMode":     1,
		"SetMAC":      1,
		"SetIP":       1,
		"SetSubnet":   1,
		"SetGateway":  1,
		"SetProtocol": 2,
		"Disconnect":  2,
		"OpenTCP":     2,
		"Connect":     2,
	} {
		if got := m.Calls(method); got != want {
			t.Errorf("%s called %d times, want %d", method, got, want)
		}
	}
}

func TestConnect_ChipError(t *testing.T) {
	t.Parallel()

	c, m := newTestConn(t, 10)
	busErr := errors.New("bus fault")
	m.FailOn("OpenTCP", busErr)

	if err := c.Connect(context.Background(), remote, 443); !errors.Is(err, busErr) {
		t.Errorf("Connect() error = %v, want %v", err, busErr)
	}
}

func TestConnect_ContextCancelled(t *testing.T) {
	t.Parallel()

	c, m := newTestConn(t, 10)
	m.SetStatus(0, chip.StatusSynSent)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.Connect(ctx, remote, 443); !errors.Is(err, context.Canceled) {
		t.Errorf("Connect() error = %v, want context.Canceled", err)
	}
}

func TestWriteAll_ChunksConcatenate(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		payload := make([]byte, rng.Intn(3*chip.MaxTransfer)+1)
		rng.Read(payload)

		var sizes []int
		for j := rng.Intn(10); j >= 0; j-- {
			sizes = append(sizes, rng.Intn(700)) // zero means the chip is busy
		}
		sizes = append(sizes, rng.Intn(700)+1)

		c, m := connected(t)
		m.ScriptSendSizes(sizes...)

		if err := c.WriteAll(payload); err != nil {
			t.Fatalf("WriteAll() with chunks %v error = %v", sizes, err)
		}
		if got := m.Sent(0); !bytes.Equal(got, payload) {
			t.Fatalf("chunks %v: sent %d bytes, want the %d byte payload unchanged", sizes, len(got), len(payload))
		}
	}
}

func TestWriteAll_DropMidWrite(t *testing.T) {
	t.Parallel()

	c, m := connected(t)
	m.ScriptStatus(0, chip.StatusEstablished, chip.StatusCloseWait)
	m.ScriptSendSizes(4)

	err := c.WriteAll([]byte("0123456789ab"))
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("WriteAll() error = %v, want ErrClosed", err)
	}
	if got := string(m.Sent(0)); got != "01234567" {
		t.Errorf("sent %q before the drop, want %q", got, "01234567")
	}
}

func TestWriteAll_Stalled(t *testing.T) {
	t.Parallel()

	c, m := connected(t)
	m.ScriptSendSizes(0)

	if err := c.WriteAll([]byte("x")); !errors.Is(err, ErrTimeout) {
		t.Errorf("WriteAll() error = %v, want ErrTimeout", err)
	}
}

func TestRead(t *testing.T) {
	t.Parallel()

	t.Run("waits for data", func(t *testing.T) {
		t.Parallel()

		c, m := connected(t)
		polls := 0
		c.sleep = func(time.Duration) {
			polls++
			if polls == 3 {
				m.Feed(0, []byte("hello"))
			}
		}

		buf := make([]byte, 16)
		n, err := c.Read(buf)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if string(buf[:n]) != "hello" {
			t.Errorf("Read() = %q, want %q", buf[:n], "hello")
		}
	})

	t.Run("not established", func(t *testing.T) {
		t.Parallel()

		c, m := connected(t)
		m.Feed(0, []byte("pending"))
		m.SetStatus(0, chip.StatusCloseWait)

		if _, err := c.Read(make([]byte, 16)); !errors.Is(err, ErrClosed) {
			t.Errorf("Read() error = %v, want ErrClosed", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()

		c, _ := connected(t)
		if _, err := c.Read(make([]byte, 16)); !errors.Is(err, ErrTimeout) {
			t.Errorf("Read() error = %v, want ErrTimeout", err)
		}
	})

	t.Run("partial", func(t *testing.T) {
		t.Parallel()

		c, m := connected(t)
		m.Feed(0, []byte("abcdef"))

		buf := make([]byte, 4)
		n, err := c.Read(buf)
		if err != nil || string(buf[:n]) != "abcd" {
			t.Fatalf("first Read() = %q, %v", buf[:n], err)
		}
		n, err = c.Read(buf)
		if err != nil || string(buf[:n]) != "ef" {
			t.Fatalf("second Read() = %q, %v", buf[:n], err)
		}
	})
}

func TestLease(t *testing.T) {
	t.Parallel()

	c, m := connected(t)
	lease := c.Lease()
	if !lease.Valid() {
		t.Fatal("lease of a connected socket is not valid")
	}
	if err := lease.WriteAll([]byte("ok")); err != nil {
		t.Fatalf("WriteAll() through lease error = %v", err)
	}

	if err := c.Connect(context.Background(), remote, 443); err != nil {
		t.Fatalf("reconnect error = %v", err)
	}
	if lease.Valid() {
		t.Error("lease survived a reconnect")
	}
	if _, err := lease.Read(make([]byte, 1)); !errors.Is(err, ErrLeaseExpired) {
		t.Errorf("Read() through stale lease error = %v, want ErrLeaseExpired", err)
	}

	fresh := c.Lease()
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := fresh.WriteAll([]byte("late")); !errors.Is(err, ErrLeaseExpired) {
		t.Errorf("WriteAll() after Close error = %v, want ErrLeaseExpired", err)
	}
	if m.Calls("Close") != 1 {
		t.Errorf("chip Close called %d times, want 1", m.Calls("Close"))
	}
	if err := fresh.Close(); err != nil || m.Calls("Close") != 1 {
		t.Errorf("Close() through stale lease reached the chip")
	}
}
