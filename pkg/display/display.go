// Package display renders ticker messages. The LED panel is modelled by
// Sink; Marquee scrolls text through a terminal line the way the panel
// scrolls it through its modules.
package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// DefaultWidth is the panel width in columns: four 8x8 modules.
const DefaultWidth = 32

// DefaultStep is the delay between two scroll positions.
const DefaultStep = 40 * time.Millisecond

// Sink shows one text message. Show returns once the message is rendered.
type Sink interface {
	Show(text string) error
}

// Marquee scrolls each message from right to left through a window of
// fixed width.
type Marquee struct {
	out   io.Writer
	width int
	step  time.Duration
	paint *color.Color
	sleep func(time.Duration)
}

// NewMarquee creates a marquee writing to out. A width below one selects
// the terminal width of out, or DefaultWidth if out is not a terminal.
func NewMarquee(out io.Writer, width int, step time.Duration) *Marquee {
	if width < 1 {
		width = TerminalWidth(out)
	}
	return &Marquee{
		out:   out,
		width: width,
		step:  step,
		paint: color.New(color.FgHiRed, color.Bold),
		sleep: time.Sleep,
	}
}

// TerminalWidth returns the column count of the terminal behind w.
func TerminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return DefaultWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width < 1 {
		return DefaultWidth
	}
	return width - 1 // the last column would wrap the cursor
}

// Width returns the window width in columns.
func (m *Marquee) Width() int {
	return m.width
}

// Show scrolls text through the window until it has left it again.
func (m *Marquee) Show(text string) error {
	blank := strings.Repeat(" ", m.width)
	track := []rune(blank + text + blank)

	for i := 0; i+m.width <= len(track); i++ {
		frame := string(track[i : i+m.width])
		if _, err := fmt.Fprint(m.out, "\r"+m.paint.Sprint(frame)); err != nil {
			return fmt.Errorf("writing frame: %w", err)
		}
		if m.step > 0 {
			m.sleep(m.step)
		}
	}

	if _, err := fmt.Fprint(m.out, "\r"+blank+"\r"); err != nil {
		return fmt.Errorf("clearing window: %w", err)
	}
	return nil
}

// Recorder remembers every message it is shown.
type Recorder struct {
	mu   sync.Mutex
	msgs []string
	err  error
}

// NewRecorder returns an empty recorder. If err is set, Show records the
// message and then fails with err.
func NewRecorder(err error) *Recorder {
	return &Recorder{err: err}
}

func (r *Recorder) Show(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.msgs = append(r.msgs, text)
	return r.err
}

// Messages returns a copy of the messages shown so far.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.msgs...)
}

var (
	_ Sink = (*Marquee)(nil)
	_ Sink = (*Recorder)(nil)
)
