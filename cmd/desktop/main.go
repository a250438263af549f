package main

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/retroenv/retrogolib/log"

	"gochip8/pkg/config"
	"gochip8/pkg/cpu"
	"gochip8/pkg/peripherals"
	"gochip8/pkg/rom"
	"gochip8/pkg/statsview"
)

// keyBindings maps physical keys to DefaultKeymap names.
var keyBindings = map[ebiten.Key]string{
	ebiten.Key1: "1", ebiten.Key2: "2", ebiten.Key3: "3", ebiten.Key4: "4",
	ebiten.KeyQ: "Q", ebiten.KeyW: "W", ebiten.KeyE: "E", ebiten.KeyR: "R",
	ebiten.KeyA: "A", ebiten.KeyS: "S", ebiten.KeyD: "D", ebiten.KeyF: "F",
	ebiten.KeyZ: "Z", ebiten.KeyX: "X", ebiten.KeyC: "C", ebiten.KeyV: "V",
}

var (
	colorOn  = color.RGBA{0x33, 0xFF, 0x66, 0xFF}
	colorOff = color.RGBA{0x10, 0x18, 0x10, 0xFF}
)

// Game is both the ebiten game and the interpreter's host.
type Game struct {
	vm        *cpu.CPU
	keypad    *peripherals.Keypad
	tone      *peripherals.Tone
	logger    *log.Logger
	scale     int
	maxFrames int

	frame       cpu.Frame
	frames      int
	quit        bool
	showOverlay bool
	displayImg  *ebiten.Image // reused 64×32 canvas
}

func newGame(scale, maxFrames int, logger *log.Logger) *Game {
	return &Game{
		keypad:    peripherals.NewKeypad(),
		tone:      peripherals.NewTone(),
		logger:    logger,
		scale:     scale,
		maxFrames: maxFrames,
	}
}

// Present implements cpu.Host.
func (g *Game) Present(frame cpu.Frame) {
	g.frame = frame
	g.frames++
}

// PollPressedKey implements cpu.Host.
func (g *Game) PollPressedKey() (byte, bool) {
	return g.keypad.Pressed()
}

// ShutdownRequested implements cpu.Host.
func (g *Game) ShutdownRequested() bool {
	return g.quit || (g.maxFrames > 0 && g.frames >= g.maxFrames)
}

// SetTone implements cpu.Beeper.
func (g *Game) SetTone(on bool) {
	g.tone.SetTone(on)
}

func (g *Game) readKeys() {
	for key, name := range keyBindings {
		code := peripherals.DefaultKeymap[name]
		if ebiten.IsKeyPressed(key) {
			g.keypad.Press(code)
		} else {
			g.keypad.Release(code)
		}
	}
}

func (g *Game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		g.quit = true
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF1) {
		g.showOverlay = !g.showOverlay
	}
	g.readKeys()

	// ebiten calls Update at cpu.FrameRate, one interpreter frame per tick
	if !g.vm.RunFrame() {
		g.logger.Info("Shutdown requested", log.Int("frames", g.frames))
		return ebiten.Termination
	}
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	if g.displayImg == nil {
		g.displayImg = ebiten.NewImage(cpu.DisplayWidth, cpu.DisplayHeight)
	}

	g.displayImg.WritePixels(g.frame.RGBA(colorOn, colorOff))

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(g.scale), float64(g.scale))
	screen.DrawImage(g.displayImg, op)

	if g.showOverlay {
		r := g.vm.Regs
		msg := fmt.Sprintf("TPS %0.1f  %s\nPC %03X  I %03X  DT %02X  ST %02X",
			ebiten.ActualTPS(), g.vm.State(), r.PC, r.I, r.DT, r.ST)
		ebitenutil.DebugPrintAt(screen, msg, 2, 2)
	}
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return cpu.DisplayWidth * g.scale, cpu.DisplayHeight * g.scale
}

func startAudio(tone *peripherals.Tone) (*audio.Player, error) {
	ctx := audio.NewContext(peripherals.SampleRate)
	player, err := ctx.NewPlayer(tone)
	if err != nil {
		return nil, fmt.Errorf("creating audio player: %w", err)
	}
	player.SetBufferSize(50 * time.Millisecond)
	player.Play()
	return player, nil
}

func main() {
	opts, err := config.ParseFlags("chip8-desktop", os.Args[1:])
	if err != nil {
		logger := config.CreateLogger(opts.Debug, opts.Quiet)
		var usageErr *config.UsageError
		if errors.As(err, &usageErr) {
			usageErr.ShowUsage()
		} else {
			logger.Fatal(err.Error())
		}
		os.Exit(1)
	}
	logger := config.CreateLogger(opts.Debug, opts.Quiet)

	image, err := rom.Load(opts.ROM)
	if err != nil {
		logger.Fatal("Loading rom failed", log.Err(err))
	}
	logger.Info("Loaded rom", log.String("path", opts.ROM), log.Int("size", len(image)))

	game := newGame(opts.Scale, opts.Frames, logger)
	vm, err := cpu.NewCPU(image, game, cpu.WithLogger(logger))
	if err != nil {
		logger.Fatal("Creating interpreter failed", log.Err(err))
	}
	game.vm = vm

	player, err := startAudio(game.tone)
	if err != nil {
		logger.Error("Audio disabled", log.Err(err))
	} else {
		defer player.Close()
	}

	if opts.StatsView {
		statsview.Launch(os.Stdout)
	}

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(cpu.DisplayWidth*opts.Scale, cpu.DisplayHeight*opts.Scale)
	ebiten.SetWindowTitle("CHIP-8 - " + opts.ROM)
	ebiten.SetTPS(cpu.FrameRate)

	if err := ebiten.RunGame(game); err != nil {
		logger.Fatal("Running game failed", log.Err(err))
	}

	if opts.Screenshot != "" {
		if err := game.frame.SaveScreenshot(opts.Screenshot, opts.Scale); err != nil {
			logger.Error("Saving screenshot failed", log.Err(err))
		}
	}
}
