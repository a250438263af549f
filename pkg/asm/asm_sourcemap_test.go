package asm

import (
	"testing"
)

func TestAssembleSourceMap(t *testing.T) {
	code := `
; Line 2: Comment
LD V0, 10       ; Line 3: Instruction at 0x200
                ; Line 4: Empty
LABEL:          ; Line 5: Label
ADD V0, V1      ; Line 6: Instruction at 0x202
.ORG 0x210      ; Line 7: padding up to 0x210
CLS             ; Line 8: Instruction at 0x210
.BYTE 1, 2, 3   ; Line 9: Data at 0x212
JP LABEL        ; Line 10: Instruction at 0x215
`
	_, sourceMap, err := Assemble(code)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	tests := []struct {
		addr uint16
		line int
	}{
		{0x200, 3},
		{0x202, 6},
		{0x210, 8},
		{0x212, 9},
		{0x215, 10},
	}

	for _, tc := range tests {
		if got := sourceMap[tc.addr]; got != tc.line {
			t.Errorf("sourceMap[0x%04X] = %d; want %d", tc.addr, got, tc.line)
		}
	}

	if len(sourceMap) != len(tests) {
		t.Errorf("len(sourceMap) = %d; want %d", len(sourceMap), len(tests))
	}
}
