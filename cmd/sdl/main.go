package main

import (
	"errors"
	"os"

	"github.com/faiface/mainthread"
	"github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/log"

	"gochip8/pkg/config"
	"gochip8/pkg/cpu"
	"gochip8/pkg/rom"
	"gochip8/pkg/statsview"
)

var opts config.Options

func run() {
	ctx := app.Context()
	logger := config.CreateLogger(opts.Debug, opts.Quiet)

	image, err := rom.Load(opts.ROM)
	if err != nil {
		logger.Fatal("Loading rom failed", log.Err(err))
	}
	logger.Info("Loaded rom", log.String("path", opts.ROM), log.Int("size", len(image)))

	host := newSDLHost(opts.Frames)
	// SDL resources must be created and used on the main thread
	mainthread.Call(func() {
		err = host.open("CHIP-8 - "+opts.ROM, opts.Scale)
	})
	if err != nil {
		logger.Fatal("Opening window failed", log.Err(err))
	}
	defer mainthread.Call(host.close)

	if opts.StatsView {
		statsview.Launch(os.Stdout)
	}

	vm, err := cpu.NewCPU(image, host, cpu.WithLogger(logger))
	if err != nil {
		logger.Fatal("Creating interpreter failed", log.Err(err))
	}

	if err := vm.Run(ctx); err != nil && !errors.Is(err, ctx.Err()) {
		logger.Error("Interpreter stopped", log.Err(err))
	}
	logger.Info("Shutdown", log.Int("frames", host.frames))

	if opts.Screenshot != "" {
		if err := host.last.SaveScreenshot(opts.Screenshot, opts.Scale); err != nil {
			logger.Error("Saving screenshot failed", log.Err(err))
		}
	}
}

func main() {
	var err error
	opts, err = config.ParseFlags("chip8-sdl", os.Args[1:])
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

	// Enable mainthread package and run in a separate goroutine.
	mainthread.Run(run)
}
