// Package format holds small formatting helpers shared by the CLI and the
// client stack.
package format

import (
	"net"
	"net/netip"
	"strconv"
)

// Addr joins host and port, bracketing IPv6 hosts.
func Addr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Endpoint formats an offload chip endpoint (IPv4 only on the chip).
func Endpoint(ip netip.Addr, port uint16) string {
	return netip.AddrPortFrom(ip, port).String()
}
