// Package grid maps between cell coordinates and row-major indices of a
// toroidal grid.
package grid

// Index converts a column and row into a row-major cell index.
func Index(x, y, cols int) int {
	return y*cols + x
}

// Wrap reduces v into [0, size), treating the axis as toroidal.
func Wrap(v, size int) int {
	v %= size
	if v < 0 {
		v += size
	}
	return v
}
