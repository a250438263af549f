package main

import (
	"io"
	"strings"
	"sync"
	"sync/atomic"

	tm "github.com/buger/goterm"

	"gochip8/pkg/cpu"
	"gochip8/pkg/peripherals"
)

const (
	// keyHoldFrames is how long a key counts as held after its last
	// repeat, terminals report no key releases.
	keyHoldFrames = 6

	// two display rows share one text row
	textRows = cpu.DisplayHeight / 2

	keyEscape = 0x1b
	keyCtrlC  = 0x03
	bell      = "\a"
)

// consoleHost renders frames to a terminal and reads keys from raw input.
type consoleHost struct {
	output    io.Writer
	keypad    *peripherals.Keypad
	quit      atomic.Bool
	maxFrames int

	mu     sync.Mutex
	frames int
	last   cpu.Frame
	tone   bool
}

func newConsoleHost(output io.Writer, maxFrames int) *consoleHost {
	return &consoleHost{
		output:    output,
		keypad:    peripherals.NewKeypad(),
		maxFrames: maxFrames,
	}
}

// Present implements cpu.Host.
func (h *consoleHost) Present(frame cpu.Frame) {
	h.mu.Lock()
	h.last = frame
	h.frames++
	h.mu.Unlock()

	h.keypad.Decay(keyHoldFrames)

	_, _ = io.WriteString(h.output, tm.MoveTo(tm.Color(renderFrame(&frame), tm.GREEN), 1, 1))
}

// PollPressedKey implements cpu.Host.
func (h *consoleHost) PollPressedKey() (byte, bool) {
	return h.keypad.Pressed()
}

// ShutdownRequested implements cpu.Host.
func (h *consoleHost) ShutdownRequested() bool {
	if h.quit.Load() {
		return true
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.maxFrames > 0 && h.frames >= h.maxFrames
}

// SetTone implements cpu.Beeper by ringing the terminal bell when the tone
// starts.
func (h *consoleHost) SetTone(on bool) {
	if on && !h.tone {
		_, _ = io.WriteString(h.output, bell)
	}
	h.tone = on
}

func (h *consoleHost) lastFrame() *cpu.Frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	frame := h.last
	return &frame
}

// handleInput processes one byte of raw input and reports whether it asked
// to quit.
func (h *consoleHost) handleInput(b byte) bool {
	switch b {
	case keyEscape, keyCtrlC:
		h.quit.Store(true)
		return true
	}
	if key, ok := peripherals.LookupKey(string(rune(b))); ok {
		h.keypad.Press(key)
	}
	return false
}

// readInput feeds raw input bytes until quit or the reader fails.
func (h *consoleHost) readInput(r io.Reader) {
	buf := make([]byte, 16)
	for {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			if h.handleInput(b) {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// clearScreen wipes the terminal before the first frame.
func (h *consoleHost) clearScreen() {
	tm.Output.Reset(h.output)
	tm.Clear()
	_ = tm.Output.Flush()
}

// restoreCursor moves the cursor below the display.
func (h *consoleHost) restoreCursor() {
	_, _ = io.WriteString(h.output, tm.MoveTo("\r\n", 1, textRows+1))
}

// renderFrame draws the display with half-block characters, two cells per
// character. Lines end in \r\n since raw mode disables output processing.
func renderFrame(frame *cpu.Frame) string {
	var sb strings.Builder
	sb.Grow(textRows * (cpu.DisplayWidth*3 + 2))

	for row := 0; row < textRows; row++ {
		for x := 0; x < cpu.DisplayWidth; x++ {
			top := frame.Pixel(x, row*2)
			bottom := frame.Pixel(x, row*2+1)
			switch {
			case top && bottom:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bottom:
				sb.WriteRune('▄')
			default:
				sb.WriteByte(' ')
			}
		}
		sb.WriteString("\r\n")
	}
	return sb.String()
}
