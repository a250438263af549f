package cpu

import (
	"context"
	"time"
)

const (
	// CyclesPerFrame is the number of instructions executed between timer ticks.
	CyclesPerFrame = 10
	// FrameRate is the timer and display cadence in Hz.
	FrameRate = 60
	// FrameInterval is the wall-clock length of one frame.
	FrameInterval = time.Second / FrameRate
)

// RunFrame executes CyclesPerFrame cycles, ticks both timers once and hands the
// display to the host. It returns false once the host has requested shutdown.
func (c *CPU) RunFrame() bool {
	for i := 0; i < CyclesPerFrame; i++ {
		c.Step()
	}
	c.Regs.TickTimers()

	c.host.Present(c.Display.Snapshot())
	if b, ok := c.host.(Beeper); ok {
		b.SetTone(c.Regs.ST > 0)
	}
	return !c.host.ShutdownRequested()
}

// Run executes frames at FrameRate until the host requests shutdown or ctx is
// cancelled. The machine state is left intact either way.
func (c *CPU) Run(ctx context.Context) error {
	ticker := time.NewTicker(FrameInterval)
	defer ticker.Stop()

	for {
		if !c.RunFrame() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunUntilDone executes frames back to back without pacing until the host
// requests shutdown, ctx is cancelled or maxFrames frames have run
// (0 means no limit). It returns the number of frames executed.
func (c *CPU) RunUntilDone(ctx context.Context, maxFrames int) (int, error) {
	frames := 0
	for maxFrames == 0 || frames < maxFrames {
		if err := ctx.Err(); err != nil {
			return frames, err
		}
		frames++
		if !c.RunFrame() {
			break
		}
	}
	return frames, nil
}
