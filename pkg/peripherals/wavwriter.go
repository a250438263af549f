package peripherals

import (
	"errors"
	"fmt"
	"os"

	"github.com/youpy/go-wav"

	"gochip8/pkg/cpu"
)

// SamplesPerFrame is the number of audio samples covering one frame.
const SamplesPerFrame = SampleRate / cpu.FrameRate

// 8-bit WAV samples are unsigned with silence at the midpoint.
const (
	wavSilence = 0x80
	wavHigh    = 0xC0
	wavLow     = 0x40
)

// WavWriter records the beeper as an 8-bit mono WAV file. Samples are
// buffered in memory and written to disk by Close.
type WavWriter struct {
	filename string
	buffer   []wav.Sample
	phase    int
}

// NewWavWriter creates a writer for filename. Nothing is written until Close.
func NewWavWriter(filename string) *WavWriter {
	return &WavWriter{
		filename: filename,
		buffer:   make([]wav.Sample, 0, SamplesPerFrame*cpu.FrameRate),
	}
}

// SetTone appends one frame of samples, a square wave when on is true and
// silence otherwise.
func (w *WavWriter) SetTone(on bool) {
	for i := 0; i < SamplesPerFrame; i++ {
		s := wav.Sample{}
		switch {
		case !on:
			s.Values[0] = wavSilence
		case squareHigh(w.phase):
			s.Values[0] = wavHigh
		default:
			s.Values[0] = wavLow
		}
		w.phase = (w.phase + 1) % SampleRate
		w.buffer = append(w.buffer, s)
	}
}

// Samples returns the number of buffered samples.
func (w *WavWriter) Samples() int {
	return len(w.buffer)
}

// Close encodes the buffered samples and writes the file.
func (w *WavWriter) Close() (rerr error) {
	f, err := os.Create(w.filename)
	if err != nil {
		return fmt.Errorf("creating wav file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil && rerr == nil {
			rerr = fmt.Errorf("closing wav file: %w", err)
		}
	}()

	enc := wav.NewWriter(f, uint32(len(w.buffer)), 1, SampleRate, 8)
	if enc == nil {
		return errors.New("bad parameters for wav encoding")
	}
	if err := enc.WriteSamples(w.buffer); err != nil {
		return fmt.Errorf("writing wav samples: %w", err)
	}
	return nil
}
