package peripherals

import (
	"strings"
	"sync"
)

// KeyCount is the number of keys on the hexadecimal keypad.
const KeyCount = 16

// DefaultKeymap maps host key names to keypad codes. The left hand block of a
// QWERTY keyboard mirrors the physical 4x4 keypad:
//
//	1 2 3 4      1 2 3 C
//	Q W E R  ->  4 5 6 D
//	A S D F      7 8 9 E
//	Z X C V      A 0 B F
var DefaultKeymap = map[string]byte{
	"1": 0x1, "2": 0x2, "3": 0x3, "4": 0xC,
	"Q": 0x4, "W": 0x5, "E": 0x6, "R": 0xD,
	"A": 0x7, "S": 0x8, "D": 0x9, "F": 0xE,
	"Z": 0xA, "X": 0x0, "C": 0xB, "V": 0xF,
}

// LookupKey returns the keypad code for a host key name, case-insensitive.
func LookupKey(name string) (byte, bool) {
	key, ok := DefaultKeymap[strings.ToUpper(name)]
	return key, ok
}

// Keypad tracks the state of the 16 keys. It is safe for concurrent use so
// input can be fed from a reader goroutine.
type Keypad struct {
	mu   sync.Mutex
	down [KeyCount]bool
	age  [KeyCount]int
}

func NewKeypad() *Keypad {
	return &Keypad{}
}

// Press marks key as held and restarts its decay counter.
func (k *Keypad) Press(key byte) {
	if key >= KeyCount {
		return
	}
	k.mu.Lock()
	k.down[key] = true
	k.age[key] = 0
	k.mu.Unlock()
}

// Release marks key as up.
func (k *Keypad) Release(key byte) {
	if key >= KeyCount {
		return
	}
	k.mu.Lock()
	k.down[key] = false
	k.mu.Unlock()
}

// ReleaseAll marks every key as up.
func (k *Keypad) ReleaseAll() {
	k.mu.Lock()
	k.down = [KeyCount]bool{}
	k.mu.Unlock()
}

// IsDown reports whether key is held.
func (k *Keypad) IsDown(key byte) bool {
	if key >= KeyCount {
		return false
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.down[key]
}

// Pressed returns the lowest numbered held key.
func (k *Keypad) Pressed() (byte, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for i, d := range k.down {
		if d {
			return byte(i), true
		}
	}
	return 0, false
}

// Decay ages every held key by one frame and releases those that have not
// been pressed again within frames frames. Hosts without key-up events call
// it once per frame.
func (k *Keypad) Decay(frames int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for i := range k.down {
		if !k.down[i] {
			continue
		}
		k.age[i]++
		if k.age[i] >= frames {
			k.down[i] = false
		}
	}
}
