package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"github.com/disintegration/imaging"
)

// GridPreviewResult contains the source image with the mosaic tile grid drawn on it.
type GridPreviewResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Rows        int    `json:"rows"`
	Columns     int    `json:"columns"`
	TileWidth   int    `json:"tile_width"`
	TileHeight  int    `json:"tile_height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// TileGridOverlay draws the tile boundaries a mosaic build would use.
//
// Parameters:
//   - img: The source image. It is not modified.
//   - tileWidth, tileHeight: Tile size in pixels, both positive.
//   - showCoordinates: Label each cell with its "row,col" index.
//   - gridColorHex: Line color as hex; an unparsable value falls back to
//     semi-transparent red.
//
// Returns:
//   - *GridPreviewResult: The overlay as base64 PNG with the grid size.
//   - error: Non-nil for non-positive tile dimensions or an encode failure.
//
// Only whole tiles are outlined: the partial strip at the right and bottom
// edges that the tiler drops is left untouched. When showCoordinates is set
// each cell is labeled "row,col" at its top-left corner.
func TileGridOverlay(img image.Image, tileWidth, tileHeight int, showCoordinates bool, gridColorHex string) (*GridPreviewResult, error) {
	if tileWidth <= 0 || tileHeight <= 0 {
		return nil, fmt.Errorf("tile dimensions must be positive, got %dx%d", tileWidth, tileHeight)
	}

	gridColor, err := ParseHexColor(gridColorHex)
	if err != nil {
		gridColor = color.RGBA{255, 0, 0, 128} // Default: semi-transparent red
	}

	result := imaging.Clone(img)
	width := result.Bounds().Dx()
	height := result.Bounds().Dy()
	cols := width / tileWidth
	rows := height / tileHeight
	gridW := cols * tileWidth
	gridH := rows * tileHeight

	// Vertical lines
	for x := tileWidth; x <= gridW && x < width; x += tileWidth {
		for y := 0; y < gridH; y++ {
			result.Set(x, y, gridColor)
		}
	}

	// Horizontal lines
	for y := tileHeight; y <= gridH && y < height; y += tileHeight {
		for x := 0; x < gridW; x++ {
			result.Set(x, y, gridColor)
		}
	}

	if showCoordinates {
		labelColor := color.RGBA{255, 255, 255, 255}
		bgColor := color.RGBA{0, 0, 0, 180}

		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				label := fmt.Sprintf("%d,%d", r, c)
				drawLabel(result, c*tileWidth+2, r*tileHeight+2, label, labelColor, bgColor)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, result); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &GridPreviewResult{
		Width:       width,
		Height:      height,
		Rows:        rows,
		Columns:     cols,
		TileWidth:   tileWidth,
		TileHeight:  tileHeight,
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// drawLabel draws a simple text label at the given position
func drawLabel(img draw.Image, x, y int, text string, fg, bg color.RGBA) {
	// Simple 3x5 pixel font for digits and comma
	glyphs := map[rune][]string{
		'0': {"111", "101", "101", "101", "111"},
		'1': {"010", "110", "010", "010", "111"},
		'2': {"111", "001", "111", "100", "111"},
		'3': {"111", "001", "111", "001", "111"},
		'4': {"101", "101", "111", "001", "001"},
		'5': {"111", "100", "111", "001", "111"},
		'6': {"111", "100", "111", "101", "111"},
		'7': {"111", "001", "001", "001", "001"},
		'8': {"111", "101", "111", "101", "111"},
		'9': {"111", "101", "111", "001", "111"},
		',': {"000", "000", "000", "010", "010"},
	}

	bounds := img.Bounds()
	charWidth := 4
	labelWidth := len(text) * charWidth
	labelHeight := 7

	inside := func(px, py int) bool {
		return px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y
	}

	for dy := -1; dy < labelHeight; dy++ {
		for dx := -1; dx < labelWidth; dx++ {
			if px, py := x+dx, y+dy; inside(px, py) {
				img.Set(px, py, bg)
			}
		}
	}

	cx := x
	for _, ch := range text {
		glyph, ok := glyphs[ch]
		if !ok {
			cx += charWidth
			continue
		}
		for row, line := range glyph {
			for col, pixel := range line {
				if pixel == '1' {
					if px, py := cx+col, y+row; inside(px, py) {
						img.Set(px, py, fg)
					}
				}
			}
		}
		cx += charWidth
	}
}
