package cpu

import (
	"image"
	"image/color"
	"image/png"
	"os"

	"golang.org/x/image/draw"

	"gochip8/pkg/grid"
)

// Frame is a read-only copy of the display grid handed to hosts.
type Frame [DisplayWidth * DisplayHeight]byte

var (
	// ColorOn and ColorOff are the default colors for lit and unlit cells.
	ColorOn  = color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}
	ColorOff = color.RGBA{0x00, 0x00, 0x00, 0xFF}
)

// Pixel reports whether the cell at (x, y) is lit. Coordinates wrap.
func (f *Frame) Pixel(x, y int) bool {
	x = grid.Wrap(x, DisplayWidth)
	y = grid.Wrap(y, DisplayHeight)
	return f[grid.Index(x, y, DisplayWidth)] != 0
}

// Lit returns the number of lit cells.
func (f *Frame) Lit() int {
	n := 0
	for _, c := range f {
		if c != 0 {
			n++
		}
	}
	return n
}

// RGBA decodes the frame into a 64×32 RGBA8888 byte slice
// (length 64*32*4 = 8192) using the given colors.
func (f *Frame) RGBA(on, off color.RGBA) []byte {
	pixels := make([]byte, len(f)*4)
	for i, c := range f {
		col := off
		if c != 0 {
			col = on
		}
		pixels[i*4+0] = col.R
		pixels[i*4+1] = col.G
		pixels[i*4+2] = col.B
		pixels[i*4+3] = col.A
	}
	return pixels
}

// Image returns the frame as an *image.RGBA at native resolution.
func (f *Frame) Image(on, off color.RGBA) *image.RGBA {
	return &image.RGBA{
		Pix:    f.RGBA(on, off),
		Stride: DisplayWidth * 4,
		Rect:   image.Rect(0, 0, DisplayWidth, DisplayHeight),
	}
}

// Scaled returns the frame enlarged by scale with nearest-neighbour sampling,
// which keeps cell edges sharp.
func (f *Frame) Scaled(scale int, on, off color.RGBA) *image.RGBA {
	if scale < 1 {
		scale = 1
	}
	src := f.Image(on, off)
	dst := image.NewRGBA(image.Rect(0, 0, DisplayWidth*scale, DisplayHeight*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// SaveScreenshot encodes the frame as a PNG and writes it to filename.
func (f *Frame) SaveScreenshot(filename string, scale int) error {
	img := f.Scaled(scale, ColorOn, ColorOff)
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()
	return png.Encode(file, img)
}
