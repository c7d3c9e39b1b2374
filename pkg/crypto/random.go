package crypto

import (
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"io"
)

// Entropy returns the randomness source of the TLS session and the WebSocket
// masking keys. An empty seed selects crypto/rand. A non-empty seed yields a
// deterministic stream, which makes every session with that seed predictable;
// insecure reports that case so callers can warn about it.
func Entropy(seed string) (r io.Reader, insecure bool) {
	if seed == "" {
		return rand.Reader, false
	}
	return seeded(seed), true
}

// Token returns n URL-safe random characters from crypto/rand.
func Token(n int) (string, error) {
	return token(n, rand.Reader)
}

func token(n int, r io.Reader) (string, error) {
	// base64 turns every 3 bytes into 4 characters
	raw := make([]byte, (n*3+3)/4)
	if _, err := io.ReadFull(r, raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw)[:n], nil
}

// hashChain expands a seed with SHA-512: the upper half of every digest is
// output, the lower half is hashed for the next block.
type hashChain struct {
	state []byte
	buf   []byte
}

func seeded(seed string) *hashChain {
	return &hashChain{state: []byte(seed)}
}

func (h *hashChain) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(h.buf) == 0 {
			sum := sha512.Sum512(h.state)
			h.state = sum[:sha512.Size/2]
			h.buf = sum[sha512.Size/2:]
		}
		c := copy(p[n:], h.buf)
		h.buf = h.buf[c:]
		n += c
	}
	return n, nil
}
