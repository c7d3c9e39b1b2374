package config

import (
	"io"
	"net"
	"os"
	"time"
)

// Dependencies lets tests put the hosted chip, the relay and the CLI on an
// in-memory network and terminal. A nil struct or nil field means the real
// thing.
type Dependencies struct {
	TCPDialer      TCPDialerFunc      // outgoing socket slots
	TCPListener    TCPListenerFunc    // relay listener
	PacketListener PacketListenerFunc // UDP socket slots (NTP)
	Stdin          StdinFunc
	Stdout         StdoutFunc
	Sleep          SleepFunc // pause between register polls
}

type (
	TCPDialerFunc      func(network string, laddr, raddr *net.TCPAddr) (net.Conn, error)
	TCPListenerFunc    func(network string, laddr *net.TCPAddr) (net.Listener, error)
	PacketListenerFunc func(network, address string) (net.PacketConn, error)
	StdinFunc          func() io.Reader
	StdoutFunc         func() io.Writer
	SleepFunc          func(d time.Duration)
)

// GetTCPDialerFunc falls back to net.DialTCP.
func GetTCPDialerFunc(deps *Dependencies) TCPDialerFunc {
	if deps == nil || deps.TCPDialer == nil {
		return func(network string, laddr, raddr *net.TCPAddr) (net.Conn, error) {
			return net.DialTCP(network, laddr, raddr)
		}
	}
	return deps.TCPDialer
}

// GetTCPListenerFunc falls back to net.ListenTCP.
func GetTCPListenerFunc(deps *Dependencies) TCPListenerFunc {
	if deps == nil || deps.TCPListener == nil {
		return func(network string, laddr *net.TCPAddr) (net.Listener, error) {
			return net.ListenTCP(network, laddr)
		}
	}
	return deps.TCPListener
}

// GetPacketListenerFunc falls back to net.ListenPacket.
func GetPacketListenerFunc(deps *Dependencies) PacketListenerFunc {
	if deps == nil || deps.PacketListener == nil {
		return net.ListenPacket
	}
	return deps.PacketListener
}

func GetStdinFunc(deps *Dependencies) StdinFunc {
	if deps == nil || deps.Stdin == nil {
		return func() io.Reader { return os.Stdin }
	}
	return deps.Stdin
}

func GetStdoutFunc(deps *Dependencies) StdoutFunc {
	if deps == nil || deps.Stdout == nil {
		return func() io.Writer { return os.Stdout }
	}
	return deps.Stdout
}

func GetSleepFunc(deps *Dependencies) SleepFunc {
	if deps == nil || deps.Sleep == nil {
		return time.Sleep
	}
	return deps.Sleep
}
