// Package asm implements a two-pass assembler for the canonical CHIP-8
// mnemonics. The output is a program image meant to be loaded at
// cpu.ProgramStart.
package asm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"gochip8/pkg/cpu"
)

const (
	maxAddress = cpu.MemorySize
	maxByte    = 0xFF
	maxNibble  = 0xF
	maxAddr12  = 0xFFF
)

var zeroOperandOps = map[string]uint16{
	"CLS": 0x00E0,
	"RET": 0x00EE,
}

// register-to-register arithmetic, encoded as 8xyN
var aluOps = map[string]byte{
	"OR":   cpu.AluOr,
	"AND":  cpu.AluAnd,
	"XOR":  cpu.AluXor,
	"SUB":  cpu.AluSub,
	"SUBN": cpu.AluSubn,
}

// single register forms, encoded as group x low-byte
var keyOps = map[string]byte{
	"SKP":  cpu.KeySkipPressed,
	"SKNP": cpu.KeySkipNotPressed,
}

// names that can never be used as labels
var reservedNames = map[string]struct{}{
	"I": {}, "[I]": {}, "DT": {}, "ST": {}, "K": {}, "F": {}, "B": {},
}

type Assembler struct {
	labels map[string]uint16
}

type parsedLine struct {
	lineNo   int
	labels   []string
	mnemonic string
	operands []string
}

func NewAssembler() *Assembler {
	return &Assembler{
		labels: make(map[string]uint16),
	}
}

// Assemble translates source into a program image starting at
// cpu.ProgramStart. The returned source map links the absolute address of
// every emitted instruction or directive to its 1-based source line.
func Assemble(code string) ([]byte, map[uint16]int, error) {
	return NewAssembler().Assemble(code)
}

func (a *Assembler) Assemble(code string) ([]byte, map[uint16]int, error) {
	lines := strings.Split(code, "\n")

	if err := a.pass1(lines); err != nil {
		return nil, nil, err
	}

	return a.pass2(lines)
}

// pass1 records the address of every label.
func (a *Assembler) pass1(lines []string) error {
	address := uint32(cpu.ProgramStart)

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return err
		}

		for _, lbl := range p.labels {
			if address >= maxAddress {
				return fmt.Errorf("label '%s' on line %d points past addressable memory", lbl, lineNo)
			}
			key := normalizeLabel(lbl)
			if isReserved(key) {
				return fmt.Errorf("label '%s' on line %d is a reserved name", lbl, lineNo)
			}
			if _, exists := a.labels[key]; exists {
				return fmt.Errorf("duplicate label '%s' on line %d", lbl, lineNo)
			}
			a.labels[key] = uint16(address)
		}

		if p.mnemonic == "" {
			continue
		}

		if p.mnemonic == ".ORG" {
			target, err := parseOrigin(p, uint32(address))
			if err != nil {
				return err
			}
			address = target
			continue
		}

		length, err := statementLength(p)
		if err != nil {
			return err
		}
		if address+length > maxAddress {
			return fmt.Errorf("program too large near line %d", lineNo)
		}
		address += length
	}

	return nil
}

func (a *Assembler) pass2(lines []string) ([]byte, map[uint16]int, error) {
	program := make([]byte, 0)
	sourceMap := make(map[uint16]int)

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return nil, nil, err
		}

		if p.mnemonic == "" {
			continue
		}

		address := uint32(cpu.ProgramStart + len(program))

		switch p.mnemonic {
		case ".ORG":
			target, err := parseOrigin(p, address)
			if err != nil {
				return nil, nil, err
			}
			program = append(program, make([]byte, target-address)...)
			continue

		case ".BYTE":
			sourceMap[uint16(address)] = lineNo
			for _, op := range p.operands {
				val, err := a.parseValue(op, maxByte, lineNo)
				if err != nil {
					return nil, nil, err
				}
				program = append(program, byte(val))
			}
			continue

		case ".WORD":
			sourceMap[uint16(address)] = lineNo
			for _, op := range p.operands {
				val, err := a.parseImmediate(op, lineNo)
				if err != nil {
					return nil, nil, err
				}
				program = append(program, byte(val>>8), byte(val))
			}
			continue
		}

		instr, err := a.encode(p)
		if err != nil {
			return nil, nil, err
		}
		sourceMap[uint16(address)] = lineNo
		program = append(program, byte(instr>>8), byte(instr))
	}

	return program, sourceMap, nil
}

// encode translates a single instruction line into its opcode word.
func (a *Assembler) encode(p parsedLine) (uint16, error) {
	mnemonic := p.mnemonic
	ops := p.operands
	lineNo := p.lineNo

	if opcode, ok := zeroOperandOps[mnemonic]; ok {
		if err := expectOperands(p, 0); err != nil {
			return 0, err
		}
		return opcode, nil
	}

	if low, ok := aluOps[mnemonic]; ok {
		if err := expectOperands(p, 2); err != nil {
			return 0, err
		}
		x, y, err := parseRegisterPair(ops, lineNo)
		if err != nil {
			return 0, err
		}
		return cpu.Encode(cpu.OpALU, x, y, low), nil
	}

	if low, ok := keyOps[mnemonic]; ok {
		if err := expectOperands(p, 1); err != nil {
			return 0, err
		}
		x, err := parseRegister(ops[0], lineNo)
		if err != nil {
			return 0, err
		}
		return encodeLow(cpu.OpKey, x, low), nil
	}

	switch mnemonic {
	case "SYS", "CALL":
		if err := expectOperands(p, 1); err != nil {
			return 0, err
		}
		group := cpu.OpSys
		if mnemonic == "CALL" {
			group = cpu.OpCall
		}
		return a.encodeAddr(group, ops[0], lineNo)

	case "JP":
		if len(ops) == 2 {
			if reg, err := parseRegister(ops[0], lineNo); err != nil || reg != 0 {
				return 0, fmt.Errorf("JP with offset expects V0 on line %d", lineNo)
			}
			return a.encodeAddr(cpu.OpJumpOffset, ops[1], lineNo)
		}
		if err := expectOperands(p, 1); err != nil {
			return 0, err
		}
		return a.encodeAddr(cpu.OpJump, ops[0], lineNo)

	case "SE", "SNE":
		if err := expectOperands(p, 2); err != nil {
			return 0, err
		}
		immGroup, regGroup := cpu.OpSkipEqImm, cpu.OpSkipEqReg
		if mnemonic == "SNE" {
			immGroup, regGroup = cpu.OpSkipNeImm, cpu.OpSkipNeReg
		}
		return a.encodeRegOrByte(immGroup, regGroup, 0, ops, lineNo)

	case "ADD":
		if err := expectOperands(p, 2); err != nil {
			return 0, err
		}
		if strings.EqualFold(ops[0], "I") {
			x, err := parseRegister(ops[1], lineNo)
			if err != nil {
				return 0, err
			}
			return encodeLow(cpu.OpMisc, x, cpu.MiscAddIndex), nil
		}
		return a.encodeRegOrByte(cpu.OpAddImm, cpu.OpALU, cpu.AluAdd, ops, lineNo)

	case "SHR", "SHL":
		if len(ops) != 1 && len(ops) != 2 {
			return 0, fmt.Errorf("%s expects 1 or 2 operands on line %d", mnemonic, lineNo)
		}
		x, err := parseRegister(ops[0], lineNo)
		if err != nil {
			return 0, err
		}
		var y byte
		if len(ops) == 2 {
			if y, err = parseRegister(ops[1], lineNo); err != nil {
				return 0, err
			}
		}
		low := cpu.AluShr
		if mnemonic == "SHL" {
			low = cpu.AluShl
		}
		return cpu.Encode(cpu.OpALU, x, y, low), nil

	case "RND":
		if err := expectOperands(p, 2); err != nil {
			return 0, err
		}
		x, err := parseRegister(ops[0], lineNo)
		if err != nil {
			return 0, err
		}
		kk, err := a.parseValue(ops[1], maxByte, lineNo)
		if err != nil {
			return 0, err
		}
		return encodeLow(cpu.OpRandom, x, byte(kk)), nil

	case "DRW":
		if err := expectOperands(p, 3); err != nil {
			return 0, err
		}
		x, y, err := parseRegisterPair(ops, lineNo)
		if err != nil {
			return 0, err
		}
		n, err := a.parseValue(ops[2], maxNibble, lineNo)
		if err != nil {
			return 0, err
		}
		return cpu.Encode(cpu.OpDraw, x, y, byte(n)), nil

	case "LD":
		if err := expectOperands(p, 2); err != nil {
			return 0, err
		}
		return a.encodeLoad(ops, lineNo)
	}

	return 0, fmt.Errorf("unknown instruction on line %d: %s", lineNo, mnemonic)
}

// encodeLoad handles every LD form.
func (a *Assembler) encodeLoad(ops []string, lineNo int) (uint16, error) {
	dst := strings.ToUpper(ops[0])
	src := strings.ToUpper(ops[1])

	// destinations that take a register source and encode as Fx__
	miscDst := map[string]byte{
		"DT":  cpu.MiscSetDelay,
		"ST":  cpu.MiscSetSound,
		"F":   cpu.MiscGlyph,
		"B":   cpu.MiscBCD,
		"[I]": cpu.MiscStoreRegs,
	}
	if low, ok := miscDst[dst]; ok {
		x, err := parseRegister(ops[1], lineNo)
		if err != nil {
			return 0, err
		}
		return encodeLow(cpu.OpMisc, x, low), nil
	}

	if dst == "I" {
		return a.encodeAddr(cpu.OpLoadIndex, ops[1], lineNo)
	}

	x, err := parseRegister(ops[0], lineNo)
	if err != nil {
		return 0, err
	}

	switch src {
	case "DT":
		return encodeLow(cpu.OpMisc, x, cpu.MiscGetDelay), nil
	case "K":
		return encodeLow(cpu.OpMisc, x, cpu.MiscWaitKey), nil
	case "[I]":
		return encodeLow(cpu.OpMisc, x, cpu.MiscLoadRegs), nil
	}

	return a.encodeRegOrByte(cpu.OpLoadImm, cpu.OpALU, cpu.AluMove, ops, lineNo)
}

// encodeRegOrByte encodes "Vx, Vy" as regGroup x y low and "Vx, byte" as
// immGroup x kk.
func (a *Assembler) encodeRegOrByte(immGroup, regGroup, low byte, ops []string, lineNo int) (uint16, error) {
	x, err := parseRegister(ops[0], lineNo)
	if err != nil {
		return 0, err
	}
	if isRegister(ops[1]) {
		y, err := parseRegister(ops[1], lineNo)
		if err != nil {
			return 0, err
		}
		return cpu.Encode(regGroup, x, y, low), nil
	}
	kk, err := a.parseValue(ops[1], maxByte, lineNo)
	if err != nil {
		return 0, err
	}
	return encodeLow(immGroup, x, byte(kk)), nil
}

func (a *Assembler) encodeAddr(group byte, token string, lineNo int) (uint16, error) {
	nnn, err := a.parseValue(token, maxAddr12, lineNo)
	if err != nil {
		return 0, err
	}
	return uint16(group)<<12 | nnn, nil
}

func encodeLow(group, x, low byte) uint16 {
	return cpu.Encode(group, x, low>>4, low&0xF)
}

func expectOperands(p parsedLine, n int) error {
	if len(p.operands) != n {
		return fmt.Errorf("%s expects %d operands on line %d", p.mnemonic, n, p.lineNo)
	}
	return nil
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return p, nil
	}

	for {
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			break
		}

		beforeColon := strings.TrimSpace(line[:colon])
		if beforeColon == "" {
			return p, fmt.Errorf("invalid label on line %d", lineNo)
		}

		if strings.ContainsAny(beforeColon, " \t") {
			break
		}

		if !isIdentifier(beforeColon) {
			return p, fmt.Errorf("invalid label '%s' on line %d", beforeColon, lineNo)
		}

		p.labels = append(p.labels, beforeColon)
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return p, nil
		}
	}

	line = normalizeInstructionText(line)
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return p, nil
	}

	p.mnemonic = strings.ToUpper(fields[0])
	if len(fields) > 1 {
		p.operands = fields[1:]
	}

	switch p.mnemonic {
	case ".ORG":
		if len(p.operands) != 1 {
			return p, fmt.Errorf(".ORG expects exactly one operand on line %d", lineNo)
		}
	case ".BYTE", ".WORD":
		if len(p.operands) == 0 {
			return p, fmt.Errorf("%s expects at least one operand on line %d", p.mnemonic, lineNo)
		}
	}

	return p, nil
}

// statementLength returns the number of bytes a non-.ORG statement emits.
func statementLength(p parsedLine) (uint32, error) {
	switch p.mnemonic {
	case ".BYTE":
		return uint32(len(p.operands)), nil
	case ".WORD":
		return uint32(2 * len(p.operands)), nil
	}
	if !isInstruction(p.mnemonic) {
		return 0, fmt.Errorf("unknown instruction on line %d: %s", p.lineNo, p.mnemonic)
	}
	return 2, nil
}

func parseOrigin(p parsedLine, address uint32) (uint32, error) {
	target, err := strconv.ParseUint(p.operands[0], 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid .ORG value on line %d: %s", p.lineNo, p.operands[0])
	}
	if target < cpu.ProgramStart || target >= maxAddress {
		return 0, fmt.Errorf(".ORG out of range on line %d: %s", p.lineNo, p.operands[0])
	}
	if uint32(target) < address {
		return 0, fmt.Errorf("cannot move origin backward on line %d", p.lineNo)
	}
	return uint32(target), nil
}

func stripComments(line string) string {
	semicolon := strings.Index(line, ";")
	doubleSlash := strings.Index(line, "//")

	cut := -1
	if semicolon >= 0 {
		cut = semicolon
	}
	if doubleSlash >= 0 && (cut == -1 || doubleSlash < cut) {
		cut = doubleSlash
	}
	if cut >= 0 {
		return line[:cut]
	}
	return line
}

// normalizeInstructionText turns operand separators into whitespace. Brackets
// are kept so [I] stays distinct from I.
func normalizeInstructionText(line string) string {
	return strings.ReplaceAll(line, ",", " ")
}

func isRegister(token string) bool {
	if len(token) != 2 || (token[0] != 'V' && token[0] != 'v') {
		return false
	}
	_, err := strconv.ParseUint(token[1:], 16, 4)
	return err == nil
}

func parseRegister(token string, lineNo int) (byte, error) {
	if !isRegister(token) {
		return 0, fmt.Errorf("invalid register '%s' on line %d", token, lineNo)
	}
	v, _ := strconv.ParseUint(token[1:], 16, 4)
	return byte(v), nil
}

func parseRegisterPair(ops []string, lineNo int) (byte, byte, error) {
	x, err := parseRegister(ops[0], lineNo)
	if err != nil {
		return 0, 0, err
	}
	y, err := parseRegister(ops[1], lineNo)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

// parseValue resolves an immediate and checks it against limit.
func (a *Assembler) parseValue(token string, limit uint16, lineNo int) (uint16, error) {
	val, err := a.parseImmediate(token, lineNo)
	if err != nil {
		return 0, err
	}
	if val > limit {
		return 0, fmt.Errorf("value out of range on line %d: %s (max 0x%X)", lineNo, token, limit)
	}
	return val, nil
}

func (a *Assembler) parseImmediate(token string, lineNo int) (uint16, error) {
	if value, err := strconv.ParseUint(token, 0, 32); err == nil {
		if value > 0xFFFF {
			return 0, fmt.Errorf("immediate out of range on line %d: %s", lineNo, token)
		}
		return uint16(value), nil
	}

	label := normalizeLabel(token)
	if addr, ok := a.labels[label]; ok {
		return addr, nil
	}

	if isIdentifier(token) {
		return 0, fmt.Errorf("undefined label '%s' on line %d", token, lineNo)
	}

	return 0, fmt.Errorf("invalid immediate '%s' on line %d", token, lineNo)
}

func isInstruction(mnemonic string) bool {
	if _, ok := zeroOperandOps[mnemonic]; ok {
		return true
	}
	if _, ok := aluOps[mnemonic]; ok {
		return true
	}
	if _, ok := keyOps[mnemonic]; ok {
		return true
	}
	switch mnemonic {
	case "SYS", "CALL", "JP", "SE", "SNE", "ADD", "SHR", "SHL", "RND", "DRW", "LD":
		return true
	}
	return false
}

func isReserved(label string) bool {
	if _, ok := reservedNames[label]; ok {
		return true
	}
	return isRegister(label)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}

	return true
}

func normalizeLabel(label string) string {
	return strings.ToUpper(label)
}
