package peripherals

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gochip8/pkg/cpu"
)

// DefaultHoldFrames is how long a scripted key stays pressed.
const DefaultHoldFrames = 3

// Headless is a Host without any window or input device. It is used for
// batch runs and tests: it counts frames, keeps the most recent frame, plays
// back a key schedule and stops after an optional frame limit.
type Headless struct {
	keypad     *Keypad
	schedule   map[int]byte
	hold       int
	maxFrames  int
	frames     int
	toneFrames int
	last       cpu.Frame
	wav        *WavWriter
}

// HeadlessOption configures a Headless host.
type HeadlessOption func(*Headless)

// WithFrameLimit requests shutdown once n frames have been presented.
// Zero means no limit.
func WithFrameLimit(n int) HeadlessOption {
	return func(h *Headless) {
		h.maxFrames = n
	}
}

// WithKeySchedule presses the given key at the start of each listed frame.
func WithKeySchedule(schedule map[int]byte) HeadlessOption {
	return func(h *Headless) {
		h.schedule = schedule
	}
}

// WithHoldFrames sets how many frames a scheduled key stays pressed.
func WithHoldFrames(n int) HeadlessOption {
	return func(h *Headless) {
		if n > 0 {
			h.hold = n
		}
	}
}

// WithWav records the sound timer state into w.
func WithWav(w *WavWriter) HeadlessOption {
	return func(h *Headless) {
		h.wav = w
	}
}

// NewHeadless returns a headless host. Keys scheduled for frame 0 are
// already pressed.
func NewHeadless(opts ...HeadlessOption) *Headless {
	h := &Headless{
		keypad: NewKeypad(),
		hold:   DefaultHoldFrames,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.applySchedule()
	return h
}

// Present implements cpu.Host.
func (h *Headless) Present(frame cpu.Frame) {
	h.last = frame
	h.frames++
	h.keypad.Decay(h.hold)
	h.applySchedule()
}

// PollPressedKey implements cpu.Host.
func (h *Headless) PollPressedKey() (byte, bool) {
	return h.keypad.Pressed()
}

// ShutdownRequested implements cpu.Host.
func (h *Headless) ShutdownRequested() bool {
	return h.maxFrames > 0 && h.frames >= h.maxFrames
}

// SetTone implements cpu.Beeper.
func (h *Headless) SetTone(on bool) {
	if on {
		h.toneFrames++
	}
	if h.wav != nil {
		h.wav.SetTone(on)
	}
}

// Keypad gives direct access to the key state.
func (h *Headless) Keypad() *Keypad {
	return h.keypad
}

// Frames returns the number of frames presented so far.
func (h *Headless) Frames() int {
	return h.frames
}

// ToneFrames returns the number of frames the beeper was sounding.
func (h *Headless) ToneFrames() int {
	return h.toneFrames
}

// LastFrame returns the most recently presented frame.
func (h *Headless) LastFrame() cpu.Frame {
	return h.last
}

func (h *Headless) applySchedule() {
	if key, ok := h.schedule[h.frames]; ok {
		h.keypad.Press(key)
	}
}

// ParseKeySchedule parses a comma separated list of frame:key pairs such as
// "10:5,40:A". Keys are hexadecimal keypad codes or host key names from
// DefaultKeymap prefixed with '@' (e.g. "12:@W").
func ParseKeySchedule(s string) (map[int]byte, error) {
	schedule := make(map[int]byte)
	s = strings.TrimSpace(s)
	if s == "" {
		return schedule, nil
	}

	for _, item := range strings.Split(s, ",") {
		frameText, keyText, ok := strings.Cut(strings.TrimSpace(item), ":")
		if !ok {
			return nil, fmt.Errorf("invalid key schedule entry '%s': expected frame:key", item)
		}

		frame, err := strconv.Atoi(frameText)
		if err != nil || frame < 0 {
			return nil, fmt.Errorf("invalid frame '%s' in key schedule", frameText)
		}

		key, err := parseKey(keyText)
		if err != nil {
			return nil, err
		}
		schedule[frame] = key
	}
	return schedule, nil
}

// FormatKeySchedule is the inverse of ParseKeySchedule using hex key codes.
func FormatKeySchedule(schedule map[int]byte) string {
	frames := make([]int, 0, len(schedule))
	for f := range schedule {
		frames = append(frames, f)
	}
	sort.Ints(frames)

	parts := make([]string, len(frames))
	for i, f := range frames {
		parts[i] = fmt.Sprintf("%d:%X", f, schedule[f])
	}
	return strings.Join(parts, ",")
}

func parseKey(text string) (byte, error) {
	if name, ok := strings.CutPrefix(text, "@"); ok {
		key, found := LookupKey(name)
		if !found {
			return 0, fmt.Errorf("unknown key name '%s' in key schedule", name)
		}
		return key, nil
	}

	v, err := strconv.ParseUint(text, 16, 8)
	if err != nil || v >= KeyCount {
		return 0, fmt.Errorf("invalid key '%s' in key schedule", text)
	}
	return byte(v), nil
}
