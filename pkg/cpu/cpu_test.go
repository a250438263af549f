package cpu

import (
	"errors"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

// fakeHost is a scriptable Host used by the interpreter tests.
type fakeHost struct {
	key      byte
	pressed  bool
	polls    int
	frames   []Frame
	shutdown bool
	tones    []bool
}

func (h *fakeHost) Present(frame Frame) { h.frames = append(h.frames, frame) }

func (h *fakeHost) PollPressedKey() (byte, bool) {
	h.polls++
	return h.key, h.pressed
}

func (h *fakeHost) ShutdownRequested() bool { return h.shutdown }

func (h *fakeHost) SetTone(on bool) { h.tones = append(h.tones, on) }

func (h *fakeHost) press(key byte) {
	h.key = key
	h.pressed = true
}

func (h *fakeHost) release() {
	h.pressed = false
}

// words encodes instruction words as a big-endian program image.
func words(ws ...uint16) []byte {
	out := make([]byte, 0, len(ws)*2)
	for _, w := range ws {
		out = append(out, byte(w>>8), byte(w))
	}
	return out
}

func newTestCPU(t *testing.T, ws ...uint16) (*CPU, *fakeHost) {
	t.Helper()
	host := &fakeHost{}
	c, err := NewCPU(words(ws...), host, WithLogger(log.NewTestLogger(t)))
	assert.NoError(t, err)
	return c, host
}

func steps(c *CPU, n int) {
	for i := 0; i < n; i++ {
		c.Step()
	}
}

func TestEncodeDecode(t *testing.T) {
	assert.Equal(t, uint16(0xD123), Encode(0xD, 1, 2, 3))
	assert.Equal(t, uint16(0x8AB4), Encode(OpALU, 0xA, 0xB, AluAdd))

	a, b, c, d := Decode(0xF265)
	assert.Equal(t, byte(0xF), a)
	assert.Equal(t, byte(0x2), b)
	assert.Equal(t, byte(0x6), c)
	assert.Equal(t, byte(0x5), d)

	for op := 0; op <= 0xFFFF; op += 0x0101 {
		a, b, c, d := Decode(uint16(op))
		assert.Equal(t, uint16(op), Encode(a, b, c, d))
	}
}

func TestNewCPUCapacity(t *testing.T) {
	c, err := NewCPU(make([]byte, MaxProgramSize+1), nil)
	assert.True(t, c == nil)
	assert.True(t, errors.Is(err, ErrCapacity))

	c, err = NewCPU(make([]byte, MaxProgramSize), nil)
	assert.NoError(t, err)
	assert.NotNil(t, c)
	assert.Equal(t, Running, c.State())
}

func TestInstancesAreIndependent(t *testing.T) {
	a, _ := newTestCPU(t, 0x6007)
	b, _ := newTestCPU(t, 0x6009)
	a.Step()
	b.Step()
	assert.Equal(t, byte(7), a.Regs.V[0])
	assert.Equal(t, byte(9), b.Regs.V[0])
}

func TestScenarioLoadIndexAndRegister(t *testing.T) {
	c, _ := newTestCPU(t, 0xA200, 0x6005)
	steps(c, 2)
	assert.Equal(t, uint16(0x200), c.Regs.I)
	assert.Equal(t, byte(5), c.Regs.V[0])
	assert.Equal(t, uint16(0x204), c.Regs.PC)
}

func TestScenarioJump(t *testing.T) {
	for _, at := range []uint16{0x200, 0x2AE, 0x800, 0xFFE} {
		c, _ := newTestCPU(t)
		c.Memory.Write(at, 0x12)
		c.Memory.Write(at+1, 0x00)
		c.Regs.PC = at
		regs := c.Regs
		mem := c.Memory.Bytes()
		disp := c.Display.Snapshot()

		c.Step()

		assert.Equal(t, uint16(0x200), c.Regs.PC)
		regs.PC = 0x200
		assert.True(t, regs == c.Regs, "registers changed")
		assert.True(t, mem == c.Memory.Bytes(), "memory changed")
		assert.True(t, disp == c.Display.Snapshot(), "display changed")
	}
}

func TestScenarioCallReturn(t *testing.T) {
	c, _ := newTestCPU(t, 0x2300)
	c.Memory.Write(0x300, 0x00)
	c.Memory.Write(0x301, 0xEE)

	c.Step()
	assert.Equal(t, uint16(0x300), c.Regs.PC)
	assert.Equal(t, uint16(StackBase+2), c.Regs.SP)

	c.Step()
	assert.Equal(t, uint16(0x202), c.Regs.PC)
	assert.Equal(t, uint16(StackBase), c.Regs.SP)
}

func TestScenarioDrawTwice(t *testing.T) {
	c, _ := newTestCPU(t,
		0xA20A, // LD I, sprite
		0xD011, // DRW V0, V1, 1
		0xD011, // DRW V0, V1, 1
		0x1206, // JP self
		0x0000,
		0xFF00, // sprite: one full row
	)

	steps(c, 2)
	assert.Equal(t, byte(0), c.Regs.V[FlagRegister])
	for x := 0; x < 8; x++ {
		assert.True(t, c.Display.Pixel(x, 0))
	}

	c.Step()
	assert.Equal(t, byte(1), c.Regs.V[FlagRegister])
	frame := c.Display.Snapshot()
	assert.Equal(t, 0, frame.Lit())
}

func TestClearScreen(t *testing.T) {
	c, _ := newTestCPU(t, 0x00E0)
	c.Display.DrawSprite([]byte{0xFF}, 0, 0)
	c.Step()
	frame := c.Display.Snapshot()
	assert.Equal(t, 0, frame.Lit())
	assert.Equal(t, uint16(0x202), c.Regs.PC)
}

func TestSysAndUnknownAreNoOps(t *testing.T) {
	tests := []uint16{
		0x0123, // SYS
		0x0000,
		0x00E1,
		0x5121, // 5xy_ with non-zero low nibble
		0x9128,
		0x8128,
		0x812F,
		0xE19F,
		0xE1A2,
		0xF199,
		0xF100,
	}

	for _, op := range tests {
		c, _ := newTestCPU(t, op)
		c.Regs.V[1] = 3
		c.Regs.V[2] = 3
		regs := c.Regs
		mem := c.Memory.Bytes()

		c.Step()

		regs.PC += 2
		assert.True(t, regs == c.Regs, "registers changed")
		assert.True(t, mem == c.Memory.Bytes(), "memory changed")
		assert.Equal(t, Running, c.State())
	}
}

func TestSkips(t *testing.T) {
	tests := []struct {
		name  string
		op    uint16
		v1    byte
		v2    byte
		skips bool
	}{
		{"SE imm equal", 0x3142, 0x42, 0, true},
		{"SE imm differ", 0x3142, 0x41, 0, false},
		{"SNE imm equal", 0x4142, 0x42, 0, false},
		{"SNE imm differ", 0x4142, 0x41, 0, true},
		{"SE reg equal", 0x5120, 7, 7, true},
		{"SE reg differ", 0x5120, 7, 8, false},
		{"SNE reg equal", 0x9120, 7, 7, false},
		{"SNE reg differ", 0x9120, 7, 8, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCPU(t, tt.op)
			c.Regs.V[1] = tt.v1
			c.Regs.V[2] = tt.v2
			c.Step()
			want := uint16(0x202)
			if tt.skips {
				want = 0x204
			}
			assert.Equal(t, want, c.Regs.PC)
		})
	}
}

func TestLoadAndAddImmediate(t *testing.T) {
	c, _ := newTestCPU(t, 0x6AFE, 0x7A03, 0x7A01)
	c.Regs.V[FlagRegister] = 0x55

	c.Step()
	assert.Equal(t, byte(0xFE), c.Regs.V[0xA])
	c.Step()
	assert.Equal(t, byte(0x01), c.Regs.V[0xA])
	c.Step()
	assert.Equal(t, byte(0x02), c.Regs.V[0xA])
	// 7xkk never touches the flag
	assert.Equal(t, byte(0x55), c.Regs.V[FlagRegister])
}

func TestALU(t *testing.T) {
	tests := []struct {
		name     string
		n        byte
		vx, vy   byte
		wantX    byte
		wantFlag int // -1 means the flag must be left alone
	}{
		{"LD", AluMove, 0x12, 0x34, 0x34, -1},
		{"OR", AluOr, 0xF0, 0x0F, 0xFF, -1},
		{"AND", AluAnd, 0xF3, 0x3F, 0x33, -1},
		{"XOR", AluXor, 0xFF, 0x0F, 0xF0, -1},
		{"ADD no carry", AluAdd, 100, 155, 255, 0},
		{"ADD carry", AluAdd, 200, 100, 44, 1},
		{"ADD carry exact", AluAdd, 0xFF, 0x01, 0x00, 1},
		{"SUB no borrow", AluSub, 10, 3, 7, 1},
		{"SUB equal", AluSub, 5, 5, 0, 1},
		{"SUB borrow", AluSub, 3, 10, 249, 0},
		{"SHR odd", AluShr, 0x05, 0xFF, 0x02, 1},
		{"SHR even", AluShr, 0x04, 0xFF, 0x02, 0},
		{"SUBN no borrow", AluSubn, 3, 10, 7, 1},
		{"SUBN equal", AluSubn, 5, 5, 0, 1},
		{"SUBN borrow", AluSubn, 10, 3, 249, 0},
		{"SHL high set", AluShl, 0x81, 0x00, 0x02, 1},
		{"SHL high clear", AluShl, 0x41, 0x00, 0x82, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCPU(t, Encode(OpALU, 3, 4, tt.n))
			c.Regs.V[3] = tt.vx
			c.Regs.V[4] = tt.vy
			c.Regs.V[FlagRegister] = 0xAA
			c.Step()

			assert.Equal(t, tt.wantX, c.Regs.V[3])
			assert.Equal(t, tt.vy, c.Regs.V[4])
			if tt.wantFlag < 0 {
				assert.Equal(t, byte(0xAA), c.Regs.V[FlagRegister])
			} else {
				assert.Equal(t, byte(tt.wantFlag), c.Regs.V[FlagRegister])
			}
		})
	}
}

func TestALUFlagRegisterAsOperand(t *testing.T) {
	// the flag is written last, so it wins over the arithmetic result
	c, _ := newTestCPU(t, 0x8F14)
	c.Regs.V[FlagRegister] = 200
	c.Regs.V[1] = 100
	c.Step()
	assert.Equal(t, byte(1), c.Regs.V[FlagRegister])
}

func TestIndexInstructions(t *testing.T) {
	c, _ := newTestCPU(t, 0xA123, 0xF51E, 0xF629)
	c.Regs.V[5] = 0x10
	c.Regs.V[6] = 0x0B

	c.Step()
	assert.Equal(t, uint16(0x123), c.Regs.I)
	c.Step()
	assert.Equal(t, uint16(0x133), c.Regs.I)
	c.Step()
	assert.Equal(t, uint16(5*0x0B), c.Regs.I)
	assert.Equal(t, byte(0xE0), c.Memory.Read(c.Regs.I))
}

func TestGlyphAddresses(t *testing.T) {
	for digit := byte(0); digit < 16; digit++ {
		c, _ := newTestCPU(t, 0xF029)
		c.Regs.V[0] = digit
		c.Step()
		assert.Equal(t, uint16(digit)*GlyphSize, c.Regs.I)
		for row := uint16(0); row < GlyphSize; row++ {
			assert.Equal(t, fontSet[uint16(digit)*GlyphSize+row], c.Memory.Read(c.Regs.I+row))
		}
	}
}

func TestAddIndexWraps(t *testing.T) {
	c, _ := newTestCPU(t, 0xF01E)
	c.Regs.I = 0xFFFF
	c.Regs.V[0] = 2
	c.Step()
	assert.Equal(t, uint16(1), c.Regs.I)
}

func TestJumpOffset(t *testing.T) {
	c, _ := newTestCPU(t, 0xB300)
	c.Regs.V[0] = 0x22
	c.Step()
	assert.Equal(t, uint16(0x322), c.Regs.PC)

	c, _ = newTestCPU(t, 0xBFFF)
	c.Regs.V[0] = 0xFF
	c.Step()
	assert.Equal(t, uint16(0x10FE), c.Regs.PC)
}

func TestRandomMasked(t *testing.T) {
	host := &fakeHost{}
	c, err := NewCPU(words(0xC30F, 0xC4F0), host, WithRandom(func() byte { return 0xAB }))
	assert.NoError(t, err)
	steps(c, 2)
	assert.Equal(t, byte(0x0B), c.Regs.V[3])
	assert.Equal(t, byte(0xA0), c.Regs.V[4])
}

func TestDrawFromIndexAtOrigin(t *testing.T) {
	c, _ := newTestCPU(t, 0xF029, 0xD125)
	c.Regs.V[0] = 0x1 // glyph "1"
	c.Regs.V[1] = 62
	c.Regs.V[2] = 30
	steps(c, 2)

	assert.Equal(t, byte(0), c.Regs.V[FlagRegister])
	// glyph 1 row 0 is 0x20: bit 2 lit -> x = 62+2 wraps to 0
	assert.True(t, c.Display.Pixel(0, 30))
	// row 2 wraps to y = 0
	assert.True(t, c.Display.Pixel(0, 0))
}

func TestDrawZeroRows(t *testing.T) {
	c, _ := newTestCPU(t, 0xD010)
	c.Regs.V[FlagRegister] = 1
	c.Step()
	frame := c.Display.Snapshot()
	assert.Equal(t, 0, frame.Lit())
	assert.Equal(t, byte(0), c.Regs.V[FlagRegister])
}

func TestKeySkips(t *testing.T) {
	tests := []struct {
		name    string
		op      uint16
		pressed bool
		key     byte
		vx      byte
		skips   bool
	}{
		{"SKP match", 0xE79E, true, 5, 5, true},
		{"SKP other key", 0xE79E, true, 4, 5, false},
		{"SKP nothing pressed", 0xE79E, false, 5, 5, false},
		{"SKNP match", 0xE7A1, true, 5, 5, false},
		{"SKNP other key", 0xE7A1, true, 4, 5, true},
		{"SKNP nothing pressed", 0xE7A1, false, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, host := newTestCPU(t, tt.op)
			host.key = tt.key
			host.pressed = tt.pressed
			c.Regs.V[7] = tt.vx
			c.Step()
			want := uint16(0x202)
			if tt.skips {
				want = 0x204
			}
			assert.Equal(t, want, c.Regs.PC)
		})
	}
}

func TestWaitForKey(t *testing.T) {
	c, host := newTestCPU(t, 0xF30A, 0x6101)

	c.Step()
	assert.Equal(t, AwaitingKey, c.State())
	assert.Equal(t, byte(3), c.WaitRegister())
	assert.Equal(t, uint16(0x202), c.Regs.PC)

	// no key: nothing executes
	steps(c, 5)
	assert.Equal(t, AwaitingKey, c.State())
	assert.Equal(t, uint16(0x202), c.Regs.PC)
	assert.Equal(t, byte(0), c.Regs.V[1])
	assert.Equal(t, 5, host.polls)

	host.press(0xC)
	c.Step()
	assert.Equal(t, Running, c.State())
	assert.Equal(t, byte(0xC), c.Regs.V[3])
	assert.Equal(t, uint16(0x202), c.Regs.PC)

	host.release()
	c.Step()
	assert.Equal(t, byte(1), c.Regs.V[1])
	assert.Equal(t, uint16(0x204), c.Regs.PC)
}

func TestWaitForKeyIgnoresOutOfRangeKey(t *testing.T) {
	c, host := newTestCPU(t, 0xF00A)
	c.Step()
	host.press(0x10)
	c.Step()
	assert.Equal(t, AwaitingKey, c.State())
}

func TestTimerInstructions(t *testing.T) {
	c, _ := newTestCPU(t, 0xF215, 0xF318, 0xF407)
	c.Regs.V[2] = 30
	c.Regs.V[3] = 40
	steps(c, 2)
	assert.Equal(t, byte(30), c.Regs.DT)
	assert.Equal(t, byte(40), c.Regs.ST)

	c.Regs.TickTimers()
	c.Step()
	assert.Equal(t, byte(29), c.Regs.V[4])
}

func TestBCD(t *testing.T) {
	tests := []struct {
		v    byte
		want [3]byte
	}{
		{0, [3]byte{0, 0, 0}},
		{7, [3]byte{0, 0, 7}},
		{42, [3]byte{0, 4, 2}},
		{100, [3]byte{1, 0, 0}},
		{255, [3]byte{2, 5, 5}},
	}

	for _, tt := range tests {
		c, _ := newTestCPU(t, 0xF833)
		c.Regs.V[8] = tt.v
		c.Regs.I = 0x400
		c.Step()
		got := [3]byte{c.Memory.Read(0x400), c.Memory.Read(0x401), c.Memory.Read(0x402)}
		assert.Equal(t, tt.want, got)
		assert.Equal(t, uint16(0x400), c.Regs.I)
	}
}

func TestStoreAndLoadRegisters(t *testing.T) {
	c, _ := newTestCPU(t, 0xF355, 0xF365)
	c.Regs.I = 0x500
	for i := range c.Regs.V {
		c.Regs.V[i] = byte(0x10 + i)
	}
	c.Step()
	for i := 0; i <= 3; i++ {
		assert.Equal(t, byte(0x10+i), c.Memory.Read(uint16(0x500+i)))
	}
	assert.Equal(t, byte(0), c.Memory.Read(0x504))
	assert.Equal(t, uint16(0x500), c.Regs.I)

	for i := range c.Regs.V {
		c.Regs.V[i] = 0
	}
	c.Memory.Write(0x504, 0x99)
	c.Step()
	for i := 0; i <= 3; i++ {
		assert.Equal(t, byte(0x10+i), c.Regs.V[i])
	}
	assert.Equal(t, byte(0), c.Regs.V[4])
}

func TestStoreRegistersWrapsAddress(t *testing.T) {
	c, _ := newTestCPU(t, 0xFF55)
	c.Regs.I = 0xFFE
	for i := range c.Regs.V {
		c.Regs.V[i] = byte(i + 1)
	}
	c.Step()
	assert.Equal(t, byte(1), c.Memory.Read(0xFFE))
	assert.Equal(t, byte(2), c.Memory.Read(0xFFF))
	assert.Equal(t, byte(3), c.Memory.Read(0x000))
}

func TestProgramCounterWraps(t *testing.T) {
	c, _ := newTestCPU(t)
	c.Regs.PC = 0xFFFE
	c.Step()
	assert.Equal(t, uint16(0x0000), c.Regs.PC)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "awaiting key", AwaitingKey.String())
	assert.Equal(t, "unknown", State(9).String())
}
