package peripherals

import (
	"encoding/binary"
	"sync"
)

const (
	// SampleRate is the audio sample rate used by every tone output.
	SampleRate = 44100
	// ToneFrequency is the pitch of the beeper.
	ToneFrequency = 440
)

// squareHigh reports whether the square wave is in its upper half at sample
// index phase.
func squareHigh(phase int) bool {
	return (phase*ToneFrequency*2/SampleRate)%2 == 0
}

// Tone is an io.Reader producing a 16-bit little-endian stereo square wave
// while switched on and silence otherwise. Audio players pull from it on
// their own goroutine.
type Tone struct {
	mu     sync.Mutex
	on     bool
	phase  int
	volume int16
}

// NewTone returns a silent tone generator.
func NewTone() *Tone {
	return &Tone{volume: 0x1000}
}

// SetTone switches the tone on or off.
func (t *Tone) SetTone(on bool) {
	t.mu.Lock()
	t.on = on
	t.mu.Unlock()
}

// On reports whether the tone is sounding.
func (t *Tone) On() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.on
}

// Read fills p with whole stereo frames of 4 bytes each.
func (t *Tone) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(p) / 4 * 4
	for i := 0; i < n; i += 4 {
		var v int16
		if t.on {
			v = t.volume
			if !squareHigh(t.phase) {
				v = -t.volume
			}
		}
		t.phase = (t.phase + 1) % SampleRate
		binary.LittleEndian.PutUint16(p[i:], uint16(v))
		binary.LittleEndian.PutUint16(p[i+2:], uint16(v))
	}
	return n, nil
}
