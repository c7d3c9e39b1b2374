package mocks

import (
	"bytes"
	"errors"
	"io"
	"net"
	"testing"
	"time"
)

func TestNetwork_TCP(t *testing.T) {
	t.Parallel()

	n := NewNetwork()
	addr := &net.TCPAddr{IP: net.IPv4(10, 0, 0, 2), Port: 443}

	l, err := n.ListenTCP("tcp", addr)
	if err != nil {
		t.Fatalf("ListenTCP() error = %v", err)
	}
	if _, err := n.ListenTCP("tcp", addr); err == nil {
		t.Error("second ListenTCP() on the same address should fail")
	}

	done := make(chan []byte, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			done <- nil
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		done <- data
	}()

	conn, err := n.DialTCP("tcp", nil, addr)
	if err != nil {
		t.Fatalf("DialTCP() error = %v", err)
	}
	if got := conn.RemoteAddr().String(); got != "10.0.0.2:443" {
		t.Errorf("RemoteAddr() = %q", got)
	}
	if _, err := conn.Write([]byte("ticker")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	conn.Close()

	select {
	case got := <-done:
		if string(got) != "ticker" {
			t.Errorf("server received %q, want %q", got, "ticker")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive the data")
	}

	l.Close()
	if _, err := l.Accept(); !errors.Is(err, net.ErrClosed) {
		t.Errorf("Accept() after Close error = %v, want net.ErrClosed", err)
	}
	if _, err := n.DialTCP("tcp", nil, addr); err == nil {
		t.Error("DialTCP() to a closed listener should fail")
	}
	if _, err := n.DialTCP("udp", nil, addr); err == nil {
		t.Error("DialTCP(udp) should fail")
	}
}

func TestNetwork_UDP(t *testing.T) {
	t.Parallel()

	n := NewNetwork()
	server, err := n.ServeUDP("10.0.0.3:123", func(req []byte) []byte {
		if bytes.Equal(req, []byte("silent")) {
			return nil
		}
		return bytes.ToUpper(req)
	})
	if err != nil {
		t.Fatalf("ServeUDP() error = %v", err)
	}
	defer server.Close()

	if _, err := n.ListenPacket("udp", ":123"); err == nil {
		t.Error("ListenPacket() on a bound port should fail")
	}

	client, err := n.ListenPacket("udp4", ":50123")
	if err != nil {
		t.Fatalf("ListenPacket() error = %v", err)
	}
	defer client.Close()

	dst := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 3), Port: 123}
	if _, err := client.WriteTo([]byte("silent"), dst); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	if _, err := client.WriteTo([]byte("time?"), dst); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}

	buf := make([]byte, 64)
	got, from, err := client.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom() error = %v", err)
	}
	if string(buf[:got]) != "TIME?" {
		t.Errorf("ReadFrom() = %q, want %q", buf[:got], "TIME?")
	}
	if udp, ok := from.(*net.UDPAddr); !ok || udp.Port != 123 {
		t.Errorf("reply came from %v, want port 123", from)
	}

	// nobody listens on 9999
	if _, err := client.WriteTo([]byte("lost"), &net.UDPAddr{IP: net.IPv4(10, 0, 0, 9), Port: 9999}); err != nil {
		t.Errorf("WriteTo(unbound port) error = %v, want the datagram dropped silently", err)
	}

	client.Close()
	if _, _, err := client.ReadFrom(buf); !errors.Is(err, net.ErrClosed) {
		t.Errorf("ReadFrom() after Close error = %v, want net.ErrClosed", err)
	}
	if _, err := n.ListenPacket("udp", ":50123"); err != nil {
		t.Errorf("port was not released by Close: %v", err)
	}
}
