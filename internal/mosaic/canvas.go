package mosaic

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sync"

	"github.com/anthonynsimon/bild/transform"
)

// Canvas is the output surface of a mosaic build.
//
// DrawTile receives every tile of the grid, including ones whose resource
// failed to resolve, together with the cell it occupies.
type Canvas interface {
	DrawTile(res Resource, rect image.Rectangle)
}

// RGBACanvas is an in-memory Canvas backed by an *image.RGBA.
//
// Tiles are scaled to the cell size (nearest neighbor) and composited with
// source-over. A failed tile is filled with the placeholder color, which
// defaults to fully transparent (the cell is left untouched).
type RGBACanvas struct {
	mu          sync.Mutex
	img         *image.RGBA
	placeholder color.Color
}

// NewRGBACanvas returns a transparent canvas of the given size.
func NewRGBACanvas(width, height int) *RGBACanvas {
	return &RGBACanvas{
		img: image.NewRGBA(image.Rect(0, 0, width, height)),
	}
}

// SetPlaceholder sets the fill color used for tiles that failed to resolve.
// A nil color leaves failed cells untouched.
func (c *RGBACanvas) SetPlaceholder(col color.Color) {
	c.mu.Lock()
	c.placeholder = col
	c.mu.Unlock()
}

// DrawTile composites res into rect.
func (c *RGBACanvas) DrawTile(res Resource, rect image.Rectangle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !res.OK() {
		if c.placeholder != nil {
			draw.Draw(c.img, rect, image.NewUniform(c.placeholder), image.Point{}, draw.Over)
		}
		return
	}

	src := res.Image
	if b := src.Bounds(); b.Dx() != rect.Dx() || b.Dy() != rect.Dy() {
		src = transform.Resize(src, rect.Dx(), rect.Dy(), transform.NearestNeighbor)
	}
	draw.Draw(c.img, rect, src, src.Bounds().Min, draw.Over)
}

// Bounds returns the canvas bounds.
func (c *RGBACanvas) Bounds() image.Rectangle {
	return c.img.Bounds()
}

// Image returns a copy of the current canvas contents.
func (c *RGBACanvas) Image() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := image.NewRGBA(c.img.Bounds())
	copy(out.Pix, c.img.Pix)
	return out
}

// EncodePNG encodes the current canvas contents as PNG.
func (c *RGBACanvas) EncodePNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, c.Image()); err != nil {
		return nil, fmt.Errorf("failed to encode mosaic: %w", err)
	}
	return buf.Bytes(), nil
}
