package cpu

// The call stack lives in memory at StackBase and grows upward one byte per
// push. Return addresses take two bytes: low byte first, then high byte.

func (c *CPU) push(val byte) {
	c.Memory.Write(c.Regs.SP, val)
	c.Regs.SP++
}

func (c *CPU) pop() byte {
	c.Regs.SP--
	return c.Memory.Read(c.Regs.SP)
}

func (c *CPU) pushAddr(addr uint16) {
	c.push(byte(addr))
	c.push(byte(addr >> 8))
}

// popAddr undoes pushAddr: the high byte comes off first.
func (c *CPU) popAddr() uint16 {
	hi := uint16(c.pop())
	lo := uint16(c.pop())
	return hi<<8 | lo
}
