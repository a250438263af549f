package main

import (
	"context"
	"math/bits"
	"testing"

	"gochip8/pkg/asm"
	"gochip8/pkg/cpu"
	"gochip8/pkg/peripherals"
)

func assembleAndRun(t *testing.T, source string, frames int, opts ...peripherals.HeadlessOption) (*cpu.CPU, *peripherals.Headless) {
	t.Helper()

	machineCode, _, err := asm.Assemble(source)
	if err != nil {
		t.Fatalf("Assembly failed: %v", err)
	}

	host := peripherals.NewHeadless(append(opts, peripherals.WithFrameLimit(frames))...)
	vm, err := cpu.NewCPU(machineCode, host)
	if err != nil {
		t.Fatalf("Loading program failed: %v", err)
	}

	if _, err := vm.RunUntilDone(context.Background(), 0); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if host.Frames() != frames {
		t.Fatalf("ran %d frames; want %d", host.Frames(), frames)
	}
	return vm, host
}

func TestAssemblerAndCPU(t *testing.T) {
	// writes the first 10 Fibonacci numbers to table
	source := `
        LD V4, 1
        LD V0, 0        ; a
        LD V1, 1        ; b
        LD V2, 0        ; count
        LD I, table
next:   LD V3, V0
        LD [I], V0      ; stores only V0
        ADD I, V4       ; V4 stays 1
        ADD V3, V1
        LD V0, V1
        LD V1, V3
        ADD V2, 1
        SE V2, 10
        JP next
done:   JP done

.ORG 0x300
table:  .BYTE 0xEE
`
	vm, _ := assembleAndRun(t, source, 20)

	want := []byte{0, 1, 1, 2, 3, 5, 8, 13, 21, 34}
	for i, w := range want {
		if got := vm.Memory.Read(0x300 + uint16(i)); got != w {
			t.Errorf("table[%d] = %d; want %d", i, got, w)
		}
	}
	if got := vm.Regs.I; got != 0x30A {
		t.Errorf("I = 0x%03X; want 0x30A", got)
	}
}

func TestJumpTable(t *testing.T) {
	source := `
        LD V0, 4
        JP V0, table
back:   JP back

table:  LD V5, 1
        JP back
        LD V5, 2
        JP back
`
	vm, _ := assembleAndRun(t, source, 1)

	if got := vm.Regs.V[5]; got != 2 {
		t.Errorf("V5 = %d; want 2", got)
	}
}

func TestTimersAndScheduledKey(t *testing.T) {
	// counts frames in V1 until key 5 is held, using DT as the frame clock
	source := `
        LD V1, 0
        LD V2, 5
frame:  LD V0, 1
        LD DT, V0
tick:   LD V0, DT
        SE V0, 0
        JP tick
        ADD V1, 1
        SKP V2
        JP frame
done:   JP done
`
	vm, host := assembleAndRun(t, source, 30,
		peripherals.WithKeySchedule(map[int]byte{12: 0x5}),
	)

	if got := vm.Regs.V[1]; got < 10 || got > 14 {
		t.Errorf("V1 = %d; want about 12 frames counted", got)
	}
	if host.ToneFrames() != 0 {
		t.Errorf("tone sounded for %d frames", host.ToneFrames())
	}
}

func TestDrawGlyphRow(t *testing.T) {
	// draws glyphs 0-B side by side in 5 pixel wide cells
	source := `
        LD V0, 0        ; digit
        LD V1, 2        ; x
        LD V2, 3        ; y
loop:   LD F, V0
        DRW V1, V2, 5
        ADD V1, 5
        ADD V0, 1
        SE V0, 12
        JP loop
done:   JP done
`
	vm, host := assembleAndRun(t, source, 10)

	want := 0
	for addr := uint16(0); addr < 12*cpu.GlyphSize; addr++ {
		want += bits.OnesCount8(vm.Memory.Read(addr))
	}
	frame := host.LastFrame()
	if got := frame.Lit(); got != want {
		t.Errorf("lit cells = %d; want %d", got, want)
	}
	if vm.Regs.V[cpu.FlagRegister] != 0 {
		t.Error("glyph cells collided")
	}
	// top row of glyph 0
	for x := 2; x < 6; x++ {
		if !frame.Pixel(x, 3) {
			t.Errorf("pixel (%d, 3) not lit", x)
		}
	}
}
