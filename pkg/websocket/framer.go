package websocket

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Stream is the byte stream a Framer runs over.
type Stream interface {
	Read(p []byte) (int, error)
	WriteAll(p []byte) error
}

// Message is one message returned by Framer.ReadMessage. For control
// frames Data points into the framer's frame buffer and is only valid
// until the next call on the framer.
type Message struct {
	Type        MessageType
	Data        []byte
	CloseStatus CloseStatus
}

// Framer drives a Client over a Stream using three fixed buffers: read
// holds undecoded stream bytes, frame receives one decoded frame payload
// and write holds outgoing frames.
type Framer struct {
	client *Client
	stream Stream

	read       []byte
	start, end int // undecoded bytes are read[start:end]

	frame []byte
	write []byte

	pending int // bytes of a fragmented message already in the caller's buffer
}

// NewFramer creates a framer. The buffers are owned by the framer until it
// is dropped.
func NewFramer(c *Client, s Stream, read, frame, write []byte) *Framer {
	return &Framer{client: c, stream: s, read: read, frame: frame, write: write}
}

// Client returns the protocol state machine the framer drives.
func (f *Framer) Client() *Client {
	return f.client
}

// Connect performs the opening handshake. Frame bytes that arrive together
// with the response are kept for ReadMessage.
func (f *Framer) Connect(opts Options) error {
	n, key, err := f.client.ClientConnect(opts, f.write)
	if err != nil {
		return err
	}
	if err := f.stream.WriteAll(f.write[:n]); err != nil {
		return fmt.Errorf("sending handshake: %w", err)
	}

	f.start, f.end = 0, 0
	for {
		if f.end == len(f.read) {
			return fmt.Errorf("%w: %d bytes", ErrHandshakeTooLarge, len(f.read))
		}
		if err := f.fill(); err != nil {
			return fmt.Errorf("reading handshake response: %w", err)
		}

		n, err := f.client.ClientAccept(key, f.read[:f.end])
		if errors.Is(err, ErrHandshakeIncomplete) {
			continue
		}
		if err != nil {
			return err
		}
		f.start = n
		return nil
	}
}

// fill appends at least one byte from the stream to the read buffer.
func (f *Framer) fill() error {
	n, err := f.stream.Read(f.read[f.end:])
	f.end += n
	if n == 0 && err != nil {
		return err
	}
	return nil
}

// compact moves undecoded bytes to the front of the read buffer.
func (f *Framer) compact() {
	if f.start == 0 {
		return
	}
	f.end = copy(f.read, f.read[f.start:f.end])
	f.start = 0
}

// nextFrame decodes the next frame into the frame buffer, reading from the
// stream as needed.
func (f *Framer) nextFrame() (ReadResult, error) {
	for {
		if f.start < f.end {
			res, err := f.client.Read(f.read[f.start:f.end], f.frame)
			switch {
			case err == nil:
				f.start += res.LenFrom
				if f.start == f.end {
					f.start, f.end = 0, 0
				}
				return res, nil
			case errors.Is(err, ErrReadBufferTooSmall):
				return ReadResult{}, fmt.Errorf("%w: %w", ErrFrameTooLarge, err)
			case !errors.Is(err, ErrReadFrameIncomplete):
				return ReadResult{}, err
			}
		}

		f.compact()
		if f.end == len(f.read) {
			return ReadResult{}, fmt.Errorf("%w: frame does not fit the %d byte read buffer", ErrFrameTooLarge, len(f.read))
		}
		if err := f.fill(); err != nil {
			return ReadResult{}, err
		}
	}
}

// ReadMessage returns the next message. Fragmented data messages are
// reassembled into out; while one is pending, control frames are returned
// as they arrive and the following call must pass the same out. Text
// messages are checked to be valid UTF-8.
func (f *Framer) ReadMessage(out []byte) (Message, error) {
	for {
		res, err := f.nextFrame()
		if err != nil {
			f.pending = 0
			return Message{}, err
		}

		payload := f.frame[:res.LenTo]
		if res.MessageType.IsControl() {
			return Message{Type: res.MessageType, Data: payload, CloseStatus: res.CloseStatus}, nil
		}

		if f.pending+len(payload) > len(out) {
			f.pending = 0
			return Message{}, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(out))
		}
		f.pending += copy(out[f.pending:], payload)
		if !res.EndOfMessage {
			continue
		}

		data := out[:f.pending]
		f.pending = 0
		if res.MessageType == Text && !utf8.Valid(data) {
			return Message{}, ErrInvalidUTF8
		}
		return Message{Type: res.MessageType, Data: data}, nil
	}
}

// WriteMessage frames payload as one final frame and sends it.
func (f *Framer) WriteMessage(t SendType, payload []byte) error {
	n, err := f.client.Write(t, true, payload, f.write)
	if err != nil {
		return err
	}
	return f.stream.WriteAll(f.write[:n])
}

// Reply sends what the protocol requires in answer to msg: a Pong carrying
// a Ping's payload, or a CloseReply echoing the peer's close. Other
// messages need no reply.
func (f *Framer) Reply(msg Message) error {
	switch msg.Type {
	case Ping:
		return f.WriteMessage(SendPong, msg.Data)
	case CloseMustReply:
		return f.WriteMessage(SendCloseReply, msg.Data)
	}
	return nil
}

// Close starts the closing handshake.
func (f *Framer) Close(status CloseStatus, reason string) error {
	n, err := f.client.Close(status, reason, f.write)
	if err != nil {
		return err
	}
	return f.stream.WriteAll(f.write[:n])
}
