package shared

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"regexp"
	"strconv"
)

var (
	serverRe = regexp.MustCompile(`^wss://([^:/]+)(?::(\d+))?(/[^\s]*)?$`)
	roomRe   = regexp.MustCompile(`^(ws|wss)://([^:/]+)(?::(\d+))?/ws/([^/\s]+)$`)
	listenRe = regexp.MustCompile(`^([^:]*):(\d+)$`)
)

// ParseServer parses a ticker server URL "wss://host[:port][/path]". The
// port defaults to 443 and the path to "/".
func ParseServer(s string) (host string, port int, path string, err error) {
	matches := serverRe.FindStringSubmatch(s)
	if len(matches) != 4 {
		err = fmt.Errorf("parsing %s: format should be 'wss://host[:port][/path]'", s)
		return
	}

	host, path = matches[1], matches[3]
	if path == "" {
		path = "/"
	}

	port = 443
	if matches[2] != "" {
		if port, err = parsePort(matches[2]); err != nil {
			err = fmt.Errorf("parsing %s: %s", s, err)
			return
		}
	}

	return
}

// ParseRoom parses a relay room URL "ws[s]://host[:port]/ws/room". The port
// defaults to the relay port.
func ParseRoom(s string) (url string, room string, err error) {
	matches := roomRe.FindStringSubmatch(s)
	if len(matches) != 5 {
		return "", "", fmt.Errorf("parsing %s: format should be 'ws[s]://host[:port]/ws/room'", s)
	}

	port := 8663
	if matches[3] != "" {
		if port, err = parsePort(matches[3]); err != nil {
			return "", "", fmt.Errorf("parsing %s: %s", s, err)
		}
	}

	room = matches[4]
	url = fmt.Sprintf("%s://%s/ws/%s", matches[1], net.JoinHostPort(matches[2], strconv.Itoa(port)), room)
	return url, room, nil
}

// ParseListen parses a listen address "[host]:port". An empty host or "*"
// binds all interfaces.
func ParseListen(s string) (host string, port int, err error) {
	matches := listenRe.FindStringSubmatch(s)
	if len(matches) != 3 {
		err = fmt.Errorf("parsing %s: format should be '[host]:port'", s)
		return
	}

	host = matches[1]
	if host == "*" {
		host = ""
	}
	if port, err = parsePort(matches[2]); err != nil {
		err = fmt.Errorf("parsing %s: %s", s, err)
	}
	return
}

// ParseIPv4 parses a dotted IPv4 address.
func ParseIPv4(name, s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("--%s: %q is not an IPv4 address", name, s)
	}
	return addr, nil
}

// ParseMAC parses a 6 byte hardware address.
func ParseMAC(s string) (net.HardwareAddr, error) {
	mac, err := net.ParseMAC(s)
	if err != nil || len(mac) != 6 {
		return nil, fmt.Errorf("--mac: %q is not a 6 byte MAC address", s)
	}
	return mac, nil
}

// ResolverFunc looks up IP addresses of a host.
type ResolverFunc func(ctx context.Context, network, host string) ([]netip.Addr, error)

// ResolveIPv4 returns the first IPv4 address of host. IP literals are
// returned as they are.
func ResolveIPv4(ctx context.Context, lookup ResolverFunc, host string) (netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		if !addr.Is4() {
			return netip.Addr{}, fmt.Errorf("%s is not an IPv4 address", host)
		}
		return addr, nil
	}

	if lookup == nil {
		lookup = net.DefaultResolver.LookupNetIP
	}
	addrs, err := lookup(ctx, "ip4", host)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("resolving %s: %w", host, err)
	}
	for _, addr := range addrs {
		if addr = addr.Unmap(); addr.Is4() {
			return addr, nil
		}
	}
	return netip.Addr{}, fmt.Errorf("resolving %s: no IPv4 address", host)
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %s not in [1, 65535]", s)
	}
	return port, nil
}
