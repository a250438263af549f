package cpu

import "gochip8/pkg/grid"

const (
	DisplayWidth  = 64
	DisplayHeight = 32
	// MaxSpriteRows is the tallest sprite a single draw can produce.
	MaxSpriteRows = 15
)

// Display is the monochrome cell grid, one byte per cell holding 0 or 1.
// Sprites are composed with XOR, never overwritten.
type Display struct {
	cells Frame
}

// NewDisplay returns a cleared display.
func NewDisplay() *Display {
	return &Display{}
}

// Clear resets every cell to 0.
func (d *Display) Clear() {
	d.cells = Frame{}
}

// DrawSprite XORs up to MaxSpriteRows 8-pixel rows onto the grid with the
// top-left corner at (x, y). Both axes wrap independently. It returns true when
// any lit cell was turned off.
func (d *Display) DrawSprite(rows []byte, x, y byte) bool {
	if len(rows) > MaxSpriteRows {
		rows = rows[:MaxSpriteRows]
	}

	collided := false
	for row, line := range rows {
		py := grid.Wrap(int(y)+row, DisplayHeight)
		for bit := 0; bit < 8; bit++ {
			if line&(0x80>>bit) == 0 {
				continue
			}
			px := grid.Wrap(int(x)+bit, DisplayWidth)
			idx := grid.Index(px, py, DisplayWidth)
			if d.cells[idx] == 1 {
				collided = true
			}
			d.cells[idx] ^= 1
		}
	}
	return collided
}

// Pixel reports whether the cell at (x, y) is lit. Coordinates wrap.
func (d *Display) Pixel(x, y int) bool {
	return d.cells.Pixel(x, y)
}

// Snapshot returns a copy of the grid for presentation.
func (d *Display) Snapshot() Frame {
	return d.cells
}
