package cpu

import (
	"errors"
	"fmt"
)

const (
	// MemorySize is the number of addressable bytes.
	MemorySize = 0x1000
	// ProgramStart is where program images are loaded and execution begins.
	ProgramStart = 0x200
	// MaxProgramSize is the largest program image that fits above ProgramStart.
	MaxProgramSize = MemorySize - ProgramStart
	// FontStart is the address of the first font glyph.
	FontStart = 0x000
	// GlyphSize is the number of bytes per font glyph.
	GlyphSize = 5

	addrMask = MemorySize - 1
)

// ErrCapacity is matched by every CapacityError.
var ErrCapacity = errors.New("program image exceeds memory capacity")

// CapacityError reports a program image that does not fit into memory.
type CapacityError struct {
	Size  int
	Limit int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("program image too large: %d bytes > %d bytes", e.Size, e.Limit)
}

// Is lets errors.Is(err, ErrCapacity) match.
func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacity
}

// fontSet holds the hexadecimal digit glyphs 0-F, 5 rows each.
var fontSet = [16 * GlyphSize]byte{
	0xF0, 0x90, 0x90, 0x90, 0xF0, // 0
	0x20, 0x60, 0x20, 0x20, 0x70, // 1
	0xF0, 0x10, 0xF0, 0x80, 0xF0, // 2
	0xF0, 0x10, 0xF0, 0x10, 0xF0, // 3
	0x90, 0x90, 0xF0, 0x10, 0x10, // 4
	0xF0, 0x80, 0xF0, 0x10, 0xF0, // 5
	0xF0, 0x80, 0xF0, 0x90, 0xF0, // 6
	0xF0, 0x10, 0x20, 0x40, 0x40, // 7
	0xF0, 0x90, 0xF0, 0x90, 0xF0, // 8
	0xF0, 0x90, 0xF0, 0x10, 0xF0, // 9
	0xF0, 0x90, 0xF0, 0x90, 0x90, // A
	0xE0, 0x90, 0xE0, 0x90, 0xE0, // B
	0xF0, 0x80, 0x80, 0x80, 0xF0, // C
	0xE0, 0x90, 0x90, 0x90, 0xE0, // D
	0xF0, 0x80, 0xF0, 0x80, 0xF0, // E
	0xF0, 0x80, 0xF0, 0x80, 0x80, // F
}

// Memory is the flat 4K address space. Every address is masked into range
// before use, so out-of-range accesses alias rather than fail.
type Memory struct {
	bytes [MemorySize]byte
}

// NewMemory returns memory with the font glyphs installed at FontStart.
func NewMemory() *Memory {
	m := &Memory{}
	copy(m.bytes[FontStart:], fontSet[:])
	return m
}

// Read returns the byte at addr.
func (m *Memory) Read(addr uint16) byte {
	return m.bytes[addr&addrMask]
}

// Write stores val at addr.
func (m *Memory) Write(addr uint16, val byte) {
	m.bytes[addr&addrMask] = val
}

// ReadWord reads a big-endian uint16 from addr and addr+1.
func (m *Memory) ReadWord(addr uint16) uint16 {
	hi := uint16(m.Read(addr))
	lo := uint16(m.Read(addr + 1))
	return hi<<8 | lo
}

// LoadProgram copies program to ProgramStart. Nothing is written when the
// image is larger than MaxProgramSize.
func (m *Memory) LoadProgram(program []byte) error {
	if len(program) > MaxProgramSize {
		return &CapacityError{Size: len(program), Limit: MaxProgramSize}
	}
	copy(m.bytes[ProgramStart:], program)
	return nil
}

// Bytes returns a copy of the whole address space.
func (m *Memory) Bytes() [MemorySize]byte {
	return m.bytes
}
