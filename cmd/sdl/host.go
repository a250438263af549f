package main

import (
	"fmt"

	"github.com/faiface/mainthread"
	"github.com/veandco/go-sdl2/sdl"

	"gochip8/pkg/cpu"
	"gochip8/pkg/peripherals"
)

const (
	audioSamples = 1024
	// queued audio above this many bytes is not topped up
	maxQueuedAudio = peripherals.SamplesPerFrame * 4 * 4
)

// sdlHost draws frames into a streaming texture and reads the keyboard
// through SDL events. Every SDL call runs on the main thread.
type sdlHost struct {
	keypad    *peripherals.Keypad
	tone      *peripherals.Tone
	maxFrames int
	frames    int
	quit      bool
	last      cpu.Frame

	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture
	audioDev sdl.AudioDeviceID
	audioBuf []byte
}

func newSDLHost(maxFrames int) *sdlHost {
	return &sdlHost{
		keypad:    peripherals.NewKeypad(),
		tone:      peripherals.NewTone(),
		maxFrames: maxFrames,
		audioBuf:  make([]byte, peripherals.SamplesPerFrame*4),
	}
}

func (h *sdlHost) open(title string, scale int) error {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_AUDIO); err != nil {
		return fmt.Errorf("initializing sdl: %w", err)
	}

	window, err := sdl.CreateWindow(title,
		sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(cpu.DisplayWidth*scale), int32(cpu.DisplayHeight*scale),
		sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		return fmt.Errorf("creating window: %w", err)
	}
	h.window = window

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}
	h.renderer = renderer

	texture, err := renderer.CreateTexture(uint32(sdl.PIXELFORMAT_RGBA32),
		sdl.TEXTUREACCESS_STREAMING, cpu.DisplayWidth, cpu.DisplayHeight)
	if err != nil {
		return fmt.Errorf("creating texture: %w", err)
	}
	h.texture = texture

	spec := sdl.AudioSpec{
		Freq:     peripherals.SampleRate,
		Format:   sdl.AUDIO_S16LSB,
		Channels: 2,
		Samples:  audioSamples,
	}
	dev, err := sdl.OpenAudioDevice("", false, &spec, nil, 0)
	if err == nil {
		h.audioDev = dev
		sdl.PauseAudioDevice(dev, false)
	}
	return nil
}

func (h *sdlHost) close() {
	if h.audioDev != 0 {
		sdl.CloseAudioDevice(h.audioDev)
	}
	if h.texture != nil {
		_ = h.texture.Destroy()
	}
	if h.renderer != nil {
		_ = h.renderer.Destroy()
	}
	if h.window != nil {
		_ = h.window.Destroy()
	}
	sdl.Quit()
}

// Present implements cpu.Host.
func (h *sdlHost) Present(frame cpu.Frame) {
	h.last = frame
	h.frames++
	mainthread.Call(func() {
		h.pollEvents()
		h.draw(&frame)
	})
}

// PollPressedKey implements cpu.Host.
func (h *sdlHost) PollPressedKey() (byte, bool) {
	return h.keypad.Pressed()
}

// ShutdownRequested implements cpu.Host.
func (h *sdlHost) ShutdownRequested() bool {
	return h.quit || (h.maxFrames > 0 && h.frames >= h.maxFrames)
}

// SetTone implements cpu.Beeper. A frame of samples is queued every call so
// the device never runs dry.
func (h *sdlHost) SetTone(on bool) {
	h.tone.SetTone(on)
	if h.audioDev == 0 {
		return
	}
	_, _ = h.tone.Read(h.audioBuf)
	mainthread.Call(func() {
		if sdl.GetQueuedAudioSize(h.audioDev) < maxQueuedAudio {
			_ = sdl.QueueAudio(h.audioDev, h.audioBuf)
		}
	})
}

func (h *sdlHost) draw(frame *cpu.Frame) {
	pixels, pitch, err := h.texture.Lock(nil)
	if err != nil {
		return
	}
	rgba := frame.RGBA(cpu.ColorOn, cpu.ColorOff)
	rowBytes := cpu.DisplayWidth * 4
	for y := 0; y < cpu.DisplayHeight; y++ {
		copy(pixels[y*pitch:y*pitch+rowBytes], rgba[y*rowBytes:(y+1)*rowBytes])
	}
	h.texture.Unlock()

	_ = h.renderer.Clear()
	_ = h.renderer.Copy(h.texture, nil, nil)
	h.renderer.Present()
}

func (h *sdlHost) pollEvents() {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			h.quit = true
		case *sdl.KeyboardEvent:
			if e.Repeat != 0 {
				continue
			}
			h.handleKey(sdl.GetKeyName(e.Keysym.Sym), e.Type == sdl.KEYDOWN)
		}
	}
}

// handleKey updates the keypad for a named key going down or up.
func (h *sdlHost) handleKey(name string, down bool) {
	if name == "Escape" {
		h.quit = true
		return
	}
	key, ok := peripherals.LookupKey(name)
	if !ok {
		return
	}
	if down {
		h.keypad.Press(key)
	} else {
		h.keypad.Release(key)
	}
}
