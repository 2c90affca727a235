package mosaic

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/cenkalti/dominantcolor"
	"github.com/disintegration/imaging"

	mimg "github.com/ironsheep/image-mosaic-mcp/internal/imaging"
)

// PathPrefix is the resource path prefix of the color tile service.
const PathPrefix = "/color/"

// Default tile dimensions in pixels.
const (
	DefaultTileWidth  = 16
	DefaultTileHeight = 16
)

// ErrInvalidGeometry is returned when a tile dimension is not positive.
var ErrInvalidGeometry = errors.New("tile dimensions must be positive")

// Geometry holds the pixel dimensions of one tile.
type Geometry struct {
	TileWidth  int `json:"tile_width"`
	TileHeight int `json:"tile_height"`
}

// DefaultGeometry returns the default 16x16 tile geometry.
func DefaultGeometry() Geometry {
	return Geometry{TileWidth: DefaultTileWidth, TileHeight: DefaultTileHeight}
}

// Validate returns ErrInvalidGeometry if either dimension is not positive.
func (g Geometry) Validate() error {
	if g.TileWidth <= 0 || g.TileHeight <= 0 {
		return fmt.Errorf("%w: got %dx%d", ErrInvalidGeometry, g.TileWidth, g.TileHeight)
	}
	return nil
}

// GridSize returns the number of whole tile rows and columns that fit in a
// width x height image.
func (g Geometry) GridSize(width, height int) (rows, cols int) {
	if g.TileWidth <= 0 || g.TileHeight <= 0 || width <= 0 || height <= 0 {
		return 0, 0
	}
	return height / g.TileHeight, width / g.TileWidth
}

// ColorMode selects how a tile's representative color is computed.
type ColorMode string

const (
	// ColorAverage is the floored per-channel mean of the tile.
	ColorAverage ColorMode = "average"

	// ColorDominant is the most prominent color cluster of the tile.
	ColorDominant ColorMode = "dominant"
)

// ParseColorMode maps a name to a ColorMode. The empty string selects ColorAverage.
func ParseColorMode(s string) (ColorMode, error) {
	switch ColorMode(strings.ToLower(s)) {
	case "", ColorAverage:
		return ColorAverage, nil
	case ColorDominant:
		return ColorDominant, nil
	default:
		return "", fmt.Errorf("unknown color mode: %s", s)
	}
}

// TilerOptions controls tile color computation and encoding.
type TilerOptions struct {
	// Mode selects the color metric. Zero value is ColorAverage.
	Mode ColorMode

	// ExactZeroChannels disables the legacy encoder behavior that reports
	// any color with a zero channel as #FFFFFF.
	ExactZeroChannels bool
}

// Tile describes one cell of the grid.
type Tile struct {
	Row   int           `json:"row"`
	Col   int           `json:"col"`
	Color mimg.RGBColor `json:"color"`
	Hex   string        `json:"hex"`
	Path  string        `json:"path"`
}

// Grid is the row-major tile grid of one source image. Every row has the
// same number of columns.
type Grid [][]Tile

// Rows returns the number of rows.
func (g Grid) Rows() int {
	return len(g)
}

// Columns returns the number of columns, or 0 for an empty grid.
func (g Grid) Columns() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

// Paths returns the resource paths, one slice per row.
func (g Grid) Paths() [][]string {
	out := make([][]string, len(g))
	for r, row := range g {
		out[r] = RowPaths(row)
	}
	return out
}

// RowPaths returns the resource paths of one row in column order.
func RowPaths(row []Tile) []string {
	paths := make([]string, len(row))
	for c, t := range row {
		paths[c] = t.Path
	}
	return paths
}

// ColorPath builds the resource path for an encoded color: "#ff8040"
// becomes "/color/ff8040".
func ColorPath(hex string) string {
	return PathPrefix + strings.TrimPrefix(hex, "#")
}

// ParseColorPath extracts the color from a resource path. Hex digits are
// case-insensitive.
func ParseColorPath(path string) (color.RGBA, error) {
	hex, ok := strings.CutPrefix(path, PathPrefix)
	if !ok || len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color path: %q", path)
	}
	return mimg.ParseHexColor(hex)
}

// ComputeTileGrid partitions img into whole tiles and derives each tile's
// color and resource path.
//
// Parameters:
//   - img: The source image. Any image.Image is accepted; pixels are read
//     non-premultiplied after cloning into an *image.NRGBA.
//   - geom: Tile width and height in pixels. Both must be positive.
//   - opts: Color metric and hex encoding mode. The zero value selects the
//     floored average and the legacy zero-channel-to-white encoding.
//
// Returns:
//   - Grid: Row-major tiles; every row has floor(width/TileWidth) columns and
//     there are floor(height/TileHeight) rows.
//   - error: Non-nil only for invalid geometry or a nil image.
//
// Tile origins are visited row-major: y advances in steps of TileHeight
// while y+TileHeight <= height, and within each row x advances in steps of
// TileWidth while x+TileWidth <= width. A tile size larger than the image
// yields an empty grid.
//
// # Errors
//
//   - ErrInvalidGeometry if either tile dimension is not positive
//   - Returns error if img is nil
func ComputeTileGrid(img image.Image, geom Geometry, opts TilerOptions) (Grid, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, errors.New("nil image")
	}

	// Non-premultiplied buffer anchored at (0,0).
	pix := imaging.Clone(img)
	width, height := pix.Bounds().Dx(), pix.Bounds().Dy()

	grid := make(Grid, 0, height/geom.TileHeight)
	for y, r := 0, 0; y+geom.TileHeight <= height; y, r = y+geom.TileHeight, r+1 {
		row := make([]Tile, 0, width/geom.TileWidth)
		for x, c := 0, 0; x+geom.TileWidth <= width; x, c = x+geom.TileWidth, c+1 {
			rect := image.Rect(x, y, x+geom.TileWidth, y+geom.TileHeight)

			var rgb mimg.RGBColor
			if opts.Mode == ColorDominant {
				rgb = dominantRGB(pix, rect)
			} else {
				rgb = averageNRGBA(pix, rect)
			}

			hex := mimg.HexColor(rgb, !opts.ExactZeroChannels)
			row = append(row, Tile{
				Row:   r,
				Col:   c,
				Color: rgb,
				Hex:   hex,
				Path:  ColorPath(hex),
			})
		}
		grid = append(grid, row)
	}

	return grid, nil
}

// AverageRGB returns the floored per-channel mean color of rect within img.
//
// Parameters:
//   - img: The image to sample.
//   - rect: The region to average, in img's coordinate space.
//
// Returns:
//   - mimg.RGBColor: Each channel is sum/count with the floor taken once,
//     after summation.
//
// Alpha is ignored; channels are read non-premultiplied. rect is in img's
// coordinate space and is clipped to its bounds. An empty rectangle yields
// black.
func AverageRGB(img image.Image, rect image.Rectangle) mimg.RGBColor {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return mimg.RGBColor{}
	}
	if nrgba, ok := img.(*image.NRGBA); ok {
		return averageNRGBA(nrgba, rect)
	}
	origin := img.Bounds().Min
	return averageNRGBA(imaging.Clone(img), rect.Sub(origin))
}

// averageNRGBA sums each channel over rect and floors once after summation.
func averageNRGBA(pix *image.NRGBA, rect image.Rectangle) mimg.RGBColor {
	count := uint64(rect.Dx() * rect.Dy())
	if count == 0 {
		return mimg.RGBColor{}
	}

	var sr, sg, sb uint64
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		i := pix.PixOffset(rect.Min.X, y)
		for x := rect.Min.X; x < rect.Max.X; x++ {
			sr += uint64(pix.Pix[i])
			sg += uint64(pix.Pix[i+1])
			sb += uint64(pix.Pix[i+2])
			i += 4
		}
	}

	return mimg.RGBColor{
		R: uint8(sr / count),
		G: uint8(sg / count),
		B: uint8(sb / count),
	}
}

func dominantRGB(pix *image.NRGBA, rect image.Rectangle) mimg.RGBColor {
	c := dominantcolor.Find(pix.SubImage(rect))
	return mimg.RGBColor{R: c.R, G: c.G, B: c.B}
}
