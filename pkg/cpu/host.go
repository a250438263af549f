package cpu

// Host is everything the interpreter needs from the outside world:
// somewhere to show frames, a key source and a shutdown signal.
type Host interface {
	// Present is called once per completed frame.
	Present(frame Frame)
	// PollPressedKey returns the currently pressed key in [0,16), if any.
	// It must return the same answer when called twice in one cycle.
	PollPressedKey() (byte, bool)
	// ShutdownRequested is polled once per frame.
	ShutdownRequested() bool
}

// Beeper is implemented by hosts that can sound a tone. SetTone is called once
// per frame with whether the sound timer is running.
type Beeper interface {
	SetTone(on bool)
}

type nullHost struct{}

func (nullHost) Present(Frame)                {}
func (nullHost) PollPressedKey() (byte, bool) { return 0, false }
func (nullHost) ShutdownRequested() bool      { return false }
