package cpu

const (
	// FlagRegister is overwritten by arithmetic, shift and draw instructions.
	FlagRegister = 0xF
	// StackBase is the address of the first stack byte. The stack grows upward.
	StackBase = 0xEA0
)

// Registers holds the register file and both countdown timers.
type Registers struct {
	V  [16]byte
	PC uint16
	SP uint16
	I  uint16
	DT byte // delay timer
	ST byte // sound timer
}

// NewRegisters returns registers in their power-on state.
func NewRegisters() Registers {
	return Registers{
		PC: ProgramStart,
		SP: StackBase,
	}
}

// Get returns general-purpose register idx. Only the low nibble of idx is used.
func (r *Registers) Get(idx byte) byte {
	return r.V[idx&0xF]
}

// Set writes general-purpose register idx. Only the low nibble of idx is used.
func (r *Registers) Set(idx byte, val byte) {
	r.V[idx&0xF] = val
}

func (r *Registers) setFlag(set bool) {
	if set {
		r.V[FlagRegister] = 1
	} else {
		r.V[FlagRegister] = 0
	}
}

// TickTimers decrements both timers independently, stopping at zero.
func (r *Registers) TickTimers() {
	if r.DT > 0 {
		r.DT--
	}
	if r.ST > 0 {
		r.ST--
	}
}
