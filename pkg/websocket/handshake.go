package websocket

import (
	"bufio"
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
)

const acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

var headerEnd = []byte("\r\n\r\n")

// ClientConnect writes the opening handshake request into to. It returns
// the request length and the Sec-WebSocket-Key that ClientAccept checks
// the response against.
func (c *Client) ClientConnect(opts Options, to []byte) (int, string, error) {
	if c.state != StateNone {
		return 0, "", fmt.Errorf("%w: connect in state %s", ErrInvalidState, c.state)
	}

	var raw [16]byte
	if _, err := io.ReadFull(c.rng, raw[:]); err != nil {
		return 0, "", fmt.Errorf("reading handshake key: %w", err)
	}
	key := base64.StdEncoding.EncodeToString(raw[:])

	path := opts.Path
	if path == "" {
		path = "/"
	}

	var req bytes.Buffer
	fmt.Fprintf(&req, "GET %s HTTP/1.1\r\n", path)
	fmt.Fprintf(&req, "Host: %s\r\n", opts.Host)
	req.WriteString("Upgrade: websocket\r\n")
	req.WriteString("Connection: Upgrade\r\n")
	fmt.Fprintf(&req, "Sec-WebSocket-Key: %s\r\n", key)
	if opts.Origin != "" {
		fmt.Fprintf(&req, "Origin: %s\r\n", opts.Origin)
	}
	if len(opts.SubProtocols) > 0 {
		fmt.Fprintf(&req, "Sec-WebSocket-Protocol: %s\r\n", strings.Join(opts.SubProtocols, ", "))
	}
	for _, h := range opts.Headers {
		fmt.Fprintf(&req, "%s\r\n", h)
	}
	req.WriteString("Sec-WebSocket-Version: 13\r\n\r\n")

	if req.Len() > len(to) {
		return 0, "", fmt.Errorf("%w: request is %d bytes, buffer %d", ErrWriteToBufferTooSmall, req.Len(), len(to))
	}

	c.offered = slices.Clone(opts.SubProtocols)
	c.state = StateConnecting
	return copy(to, req.Bytes()), key, nil
}

// ClientAccept checks the server's handshake response in resp against key.
// It returns the number of bytes belonging to the response; anything after
// them is already frame data.
func (c *Client) ClientAccept(key string, resp []byte) (int, error) {
	if c.state != StateConnecting {
		return 0, fmt.Errorf("%w: accept in state %s", ErrInvalidState, c.state)
	}

	end := bytes.Index(resp, headerEnd)
	if end < 0 {
		return 0, ErrHandshakeIncomplete
	}
	end += len(headerEnd)

	res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(resp[:end])), nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrHandshakeMismatch, err)
	}
	res.Body.Close()

	if res.StatusCode != http.StatusSwitchingProtocols {
		return 0, fmt.Errorf("%w: %s", ErrHandshakeStatus, res.Status)
	}
	if !strings.EqualFold(res.Header.Get("Upgrade"), "websocket") {
		return 0, fmt.Errorf("%w: Upgrade header %q", ErrHandshakeMismatch, res.Header.Get("Upgrade"))
	}
	if !headerContainsToken(res.Header, "Connection", "upgrade") {
		return 0, fmt.Errorf("%w: Connection header %q", ErrHandshakeMismatch, res.Header.Get("Connection"))
	}
	if got := res.Header.Get("Sec-WebSocket-Accept"); got != AcceptKey(key) {
		return 0, fmt.Errorf("%w: Sec-WebSocket-Accept %q", ErrHandshakeMismatch, got)
	}

	// the server may only pick one of the offered protocols
	proto := res.Header.Get("Sec-WebSocket-Protocol")
	if proto != "" && !slices.Contains(c.offered, proto) {
		return 0, fmt.Errorf("%w: Sec-WebSocket-Protocol %q was not offered", ErrHandshakeMismatch, proto)
	}

	c.subProtocol = proto
	c.state = StateOpen
	return end, nil
}

// AcceptKey derives the Sec-WebSocket-Accept value for key.
func AcceptKey(key string) string {
	h := sha1.Sum([]byte(key + acceptGUID))
	return base64.StdEncoding.EncodeToString(h[:])
}

func headerContainsToken(h http.Header, name, token string) bool {
	for _, v := range h.Values(name) {
		for _, t := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(t), token) {
				return true
			}
		}
	}
	return false
}
