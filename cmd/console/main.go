package main

import (
	"errors"
	"os"

	"github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/log"

	"gochip8/pkg/config"
	"gochip8/pkg/cpu"
	"gochip8/pkg/rom"
)

func main() {
	ctx := app.Context()

	opts, err := config.ParseFlags("chip8-console", os.Args[1:])
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
	// the display owns stdout, keep log output to errors unless debugging
	logger := config.CreateLogger(opts.Debug, !opts.Debug)

	image, err := rom.Load(opts.ROM)
	if err != nil {
		logger.Fatal("Loading rom failed", log.Err(err))
	}

	term, err := newTerminal(os.Stdin, os.Stdout)
	if err != nil {
		logger.Fatal("Preparing terminal failed", log.Err(err))
	}
	if err := term.checkSize(); err != nil {
		logger.Warn("Terminal too small", log.Err(err))
	}

	host := newConsoleHost(term.output, opts.Frames)
	vm, err := cpu.NewCPU(image, host, cpu.WithLogger(logger))
	if err != nil {
		logger.Fatal("Creating interpreter failed", log.Err(err))
	}

	if err := term.rawMode(); err != nil {
		logger.Fatal("Switching terminal to raw mode failed", log.Err(err))
	}
	host.clearScreen()
	go host.readInput(term.input)

	err = vm.Run(ctx)
	host.restoreCursor()
	if rerr := term.restore(); rerr != nil {
		logger.Error("Restoring terminal failed", log.Err(rerr))
	}

	if err != nil && !errors.Is(err, ctx.Err()) {
		logger.Error("Interpreter stopped", log.Err(err))
	}
	if opts.Screenshot != "" {
		if err := host.lastFrame().SaveScreenshot(opts.Screenshot, opts.Scale); err != nil {
			logger.Error("Saving screenshot failed", log.Err(err))
		}
	}
}
