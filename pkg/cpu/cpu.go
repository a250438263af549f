package cpu

import (
	"math/rand/v2"

	"github.com/retroenv/retrogolib/log"
)

// Instruction groups, selected by the most significant nibble.
const (
	OpSys        byte = 0x0
	OpJump       byte = 0x1
	OpCall       byte = 0x2
	OpSkipEqImm  byte = 0x3
	OpSkipNeImm  byte = 0x4
	OpSkipEqReg  byte = 0x5
	OpLoadImm    byte = 0x6
	OpAddImm     byte = 0x7
	OpALU        byte = 0x8
	OpSkipNeReg  byte = 0x9
	OpLoadIndex  byte = 0xA
	OpJumpOffset byte = 0xB
	OpRandom     byte = 0xC
	OpDraw       byte = 0xD
	OpKey        byte = 0xE
	OpMisc       byte = 0xF
)

// Low nibble of the 8xy_ group.
const (
	AluMove byte = 0x0
	AluOr   byte = 0x1
	AluAnd  byte = 0x2
	AluXor  byte = 0x3
	AluAdd  byte = 0x4
	AluSub  byte = 0x5
	AluShr  byte = 0x6
	AluSubn byte = 0x7
	AluShl  byte = 0xE
)

// Low byte of the Ex__ and Fx__ groups.
const (
	KeySkipPressed    byte = 0x9E
	KeySkipNotPressed byte = 0xA1

	MiscGetDelay  byte = 0x07
	MiscWaitKey   byte = 0x0A
	MiscSetDelay  byte = 0x15
	MiscSetSound  byte = 0x18
	MiscAddIndex  byte = 0x1E
	MiscGlyph     byte = 0x29
	MiscBCD       byte = 0x33
	MiscStoreRegs byte = 0x55
	MiscLoadRegs  byte = 0x65
)

const (
	opClearScreen uint16 = 0x00E0
	opReturn      uint16 = 0x00EE
)

// State is the interpreter's execution state.
type State int

const (
	Running State = iota
	AwaitingKey
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case AwaitingKey:
		return "awaiting key"
	default:
		return "unknown"
	}
}

// CPU is the fetch-decode-execute engine. It exclusively owns its memory,
// registers and display; separate instances share nothing.
type CPU struct {
	Memory  *Memory
	Regs    Registers
	Display *Display

	host    Host
	state   State
	waitReg byte

	random func() byte
	logger *log.Logger
}

// Option configures a CPU at construction.
type Option func(*CPU)

// WithLogger sets the logger used for debug tracing.
func WithLogger(logger *log.Logger) Option {
	return func(c *CPU) {
		c.logger = logger
	}
}

// WithRandom replaces the random byte source used by Cxkk.
func WithRandom(random func() byte) Option {
	return func(c *CPU) {
		c.random = random
	}
}

func randomByte() byte {
	return byte(rand.UintN(256))
}

// NewCPU loads program at ProgramStart and returns an interpreter ready to
// run. A program larger than MaxProgramSize returns a *CapacityError and no
// CPU. A nil host behaves as one that never presses keys or shuts down.
func NewCPU(program []byte, host Host, opts ...Option) (*CPU, error) {
	if len(program) > MaxProgramSize {
		return nil, &CapacityError{Size: len(program), Limit: MaxProgramSize}
	}
	if host == nil {
		host = nullHost{}
	}

	c := &CPU{
		Memory:  NewMemory(),
		Regs:    NewRegisters(),
		Display: NewDisplay(),
		host:    host,
		random:  randomByte,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.Memory.LoadProgram(program); err != nil {
		return nil, err
	}
	return c, nil
}

// State returns the current execution state.
func (c *CPU) State() State {
	return c.state
}

// WaitRegister returns the register that receives the next key press while
// the CPU is AwaitingKey.
func (c *CPU) WaitRegister() byte {
	return c.waitReg
}

// Encode packs four nibbles, most significant first, into an instruction word.
func Encode(a, b, c, d byte) uint16 {
	return uint16(a&0xF)<<12 | uint16(b&0xF)<<8 | uint16(c&0xF)<<4 | uint16(d&0xF)
}

// Decode splits an instruction word into its four nibbles, most significant first.
func Decode(op uint16) (a, b, c, d byte) {
	return byte(op >> 12 & 0xF), byte(op >> 8 & 0xF), byte(op >> 4 & 0xF), byte(op & 0xF)
}

// Step runs one cycle. While AwaitingKey it only polls the host for a key.
func (c *CPU) Step() {
	if c.state == AwaitingKey {
		c.pollWaitKey()
		return
	}

	addr := c.Regs.PC
	op := c.Memory.ReadWord(addr)
	c.Regs.PC += 2
	c.execute(addr, op)
}

func (c *CPU) pollWaitKey() {
	key, ok := c.host.PollPressedKey()
	if !ok || key > 0xF {
		return
	}
	c.Regs.Set(c.waitReg, key)
	c.state = Running
	if c.logger != nil {
		c.logger.Debug("Key received",
			log.Uint8("register", c.waitReg),
			log.Uint8("key", key))
	}
}

func (c *CPU) skip() {
	c.Regs.PC += 2
}

func (c *CPU) execute(addr, op uint16) {
	group, x, y, n := Decode(op)
	nnn := op & 0x0FFF
	kk := byte(op)
	r := &c.Regs

	switch group {
	case OpSys:
		switch op {
		case opClearScreen:
			c.Display.Clear()
		case opReturn:
			r.PC = c.popAddr()
		}
		// Any other 0nnn is a machine code routine call and is ignored.

	case OpJump:
		r.PC = nnn

	case OpCall:
		c.pushAddr(r.PC)
		r.PC = nnn

	case OpSkipEqImm:
		if r.Get(x) == kk {
			c.skip()
		}

	case OpSkipNeImm:
		if r.Get(x) != kk {
			c.skip()
		}

	case OpSkipEqReg:
		if n != 0 {
			c.unknown(addr, op)
			return
		}
		if r.Get(x) == r.Get(y) {
			c.skip()
		}

	case OpLoadImm:
		r.Set(x, kk)

	case OpAddImm:
		r.Set(x, r.Get(x)+kk)

	case OpALU:
		c.executeALU(addr, op, x, y, n)

	case OpSkipNeReg:
		if n != 0 {
			c.unknown(addr, op)
			return
		}
		if r.Get(x) != r.Get(y) {
			c.skip()
		}

	case OpLoadIndex:
		r.I = nnn

	case OpJumpOffset:
		r.PC = uint16(r.Get(0)) + nnn

	case OpRandom:
		r.Set(x, c.random()&kk)

	case OpDraw:
		var rows [MaxSpriteRows]byte
		for i := byte(0); i < n; i++ {
			rows[i] = c.Memory.Read(r.I + uint16(i))
		}
		collided := c.Display.DrawSprite(rows[:n], r.Get(x), r.Get(y))
		r.setFlag(collided)

	case OpKey:
		key, pressed := c.host.PollPressedKey()
		switch kk {
		case KeySkipPressed:
			if pressed && key == r.Get(x) {
				c.skip()
			}
		case KeySkipNotPressed:
			if !pressed || key != r.Get(x) {
				c.skip()
			}
		default:
			c.unknown(addr, op)
		}

	case OpMisc:
		c.executeMisc(addr, op, x, kk)
	}
}

func (c *CPU) executeALU(addr, op uint16, x, y, n byte) {
	r := &c.Regs
	vx, vy := r.Get(x), r.Get(y)

	switch n {
	case AluMove:
		r.Set(x, vy)
	case AluOr:
		r.Set(x, vx|vy)
	case AluAnd:
		r.Set(x, vx&vy)
	case AluXor:
		r.Set(x, vx^vy)
	case AluAdd:
		sum := uint16(vx) + uint16(vy)
		r.Set(x, byte(sum))
		r.setFlag(sum > 0xFF)
	case AluSub:
		r.Set(x, vx-vy)
		r.setFlag(vx >= vy)
	case AluShr:
		r.Set(x, vx>>1)
		r.V[FlagRegister] = vx & 0x01
	case AluSubn:
		r.Set(x, vy-vx)
		r.setFlag(vy >= vx)
	case AluShl:
		r.Set(x, vx<<1)
		r.V[FlagRegister] = vx >> 7
	default:
		c.unknown(addr, op)
	}
}

func (c *CPU) executeMisc(addr, op uint16, x, kk byte) {
	r := &c.Regs

	switch kk {
	case MiscGetDelay:
		r.Set(x, r.DT)
	case MiscWaitKey:
		c.state = AwaitingKey
		c.waitReg = x
		if c.logger != nil {
			c.logger.Debug("Waiting for key", log.Uint8("register", x))
		}
	case MiscSetDelay:
		r.DT = r.Get(x)
	case MiscSetSound:
		r.ST = r.Get(x)
	case MiscAddIndex:
		r.I += uint16(r.Get(x))
	case MiscGlyph:
		r.I = FontStart + GlyphSize*uint16(r.Get(x))
	case MiscBCD:
		v := r.Get(x)
		c.Memory.Write(r.I, v/100)
		c.Memory.Write(r.I+1, v/10%10)
		c.Memory.Write(r.I+2, v%10)
	case MiscStoreRegs:
		for i := byte(0); i <= x; i++ {
			c.Memory.Write(r.I+uint16(i), r.Get(i))
		}
	case MiscLoadRegs:
		for i := byte(0); i <= x; i++ {
			r.Set(i, c.Memory.Read(r.I+uint16(i)))
		}
	default:
		c.unknown(addr, op)
	}
}

// unknown treats an undefined instruction as a no-op.
func (c *CPU) unknown(addr, op uint16) {
	if c.logger != nil {
		c.logger.Debug("Unknown opcode skipped",
			log.Uint16("address", addr),
			log.Uint16("opcode", op))
	}
}
