package relay

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"

	"github.com/coder/websocket"
)

// Dial joins a relay room at url (ws:// or wss://). For wss, caPEM pins the
// relay's CA; without it the certificate is not checked.
func Dial(ctx context.Context, url string, caPEM []byte) (*websocket.Conn, error) {
	tlsCfg := &tls.Config{InsecureSkipVerify: true}
	if len(caPEM) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no certificates in CA PEM")
		}
		tlsCfg = &tls.Config{RootCAs: pool}
	}

	opts := &websocket.DialOptions{
		HTTPClient: &http.Client{
			Transport: &http.Transport{TLSClientConfig: tlsCfg},
		},
	}

	c, _, err := websocket.Dial(ctx, url, opts)
	if err != nil {
		return nil, fmt.Errorf("websocket.Dial(%s): %w", url, err)
	}
	return c, nil
}

// Chat posts every line of in to the room and prints what the room says to
// out. It returns when in ends, the relay goes away or ctx is cancelled.
func Chat(ctx context.Context, conn *websocket.Conn, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				readErr <- err
				return
			}
			fmt.Fprintf(out, "%s\n", data)
		}
	}()

	lines := make(chan string)
	inErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		inErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "")
			return ctx.Err()

		case err := <-readErr:
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("read: %w", err)

		case err := <-inErr:
			conn.Close(websocket.StatusNormalClosure, "") // the relay may be gone already
			return err

		case line := <-lines:
			if err := conn.Write(ctx, websocket.MessageText, []byte(line)); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		}
	}
}
