package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/pkg/term/termios"
	"golang.org/x/sys/unix"

	"gochip8/pkg/cpu"
)

// terminal switches a posix terminal between its original and raw mode.
type terminal struct {
	input  *os.File
	output *os.File

	canAttr syscall.Termios
	rawAttr syscall.Termios
}

func newTerminal(input, output *os.File) (*terminal, error) {
	t := &terminal{
		input:  input,
		output: output,
	}
	if err := termios.Tcgetattr(t.input.Fd(), &t.canAttr); err != nil {
		return nil, fmt.Errorf("reading terminal attributes: %w", err)
	}
	t.rawAttr = t.canAttr
	termios.Cfmakeraw(&t.rawAttr)
	return t, nil
}

// rawMode delivers key presses immediately and without echo.
func (t *terminal) rawMode() error {
	return termios.Tcsetattr(t.input.Fd(), termios.TCIFLUSH, &t.rawAttr)
}

// restore puts the terminal back into the mode it was found in.
func (t *terminal) restore() error {
	return termios.Tcsetattr(t.input.Fd(), termios.TCIFLUSH, &t.canAttr)
}

// checkSize returns an error when the output cannot hold the whole display.
func (t *terminal) checkSize() error {
	ws, err := unix.IoctlGetWinsize(int(t.output.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return fmt.Errorf("reading terminal size: %w", err)
	}
	if int(ws.Col) < cpu.DisplayWidth || int(ws.Row) < textRows+1 {
		return fmt.Errorf("need %dx%d characters, have %dx%d",
			cpu.DisplayWidth, textRows+1, ws.Col, ws.Row)
	}
	return nil
}
