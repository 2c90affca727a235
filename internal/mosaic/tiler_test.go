package mosaic

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"testing"

	mimg "github.com/ironsheep/image-mosaic-mcp/internal/imaging"
)

// createSolidImage creates an opaque in-memory image of one color
func createSolidImage(width, height int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// tileColor is the distinct, zero-free color used for cell (r, c) of test mosaics
func tileColor(r, c int) color.RGBA {
	return color.RGBA{R: uint8(20 * (c + 1)), G: uint8(50 * (r + 1)), B: 7, A: 255}
}

// createTiledImage creates an image of rows x cols uniform tiles colored by tileColor
func createTiledImage(rows, cols int, geom Geometry) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, cols*geom.TileWidth, rows*geom.TileHeight))
	for y := 0; y < rows*geom.TileHeight; y++ {
		for x := 0; x < cols*geom.TileWidth; x++ {
			img.SetRGBA(x, y, tileColor(y/geom.TileHeight, x/geom.TileWidth))
		}
	}
	return img
}

func TestComputeTileGrid_GridSize(t *testing.T) {
	tests := []struct {
		name             string
		width, height    int
		tw, th           int
		wantRows, wantCo int
	}{
		{"exact fit", 100, 60, 25, 20, 3, 4},
		{"partial strips dropped", 99, 59, 25, 20, 2, 3},
		{"single tile", 16, 16, 16, 16, 1, 1},
		{"narrow tiles", 17, 33, 4, 8, 4, 4},
		{"tile larger than image", 10, 10, 20, 20, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := createSolidImage(tt.width, tt.height, color.RGBA{10, 20, 30, 255})
			geom := Geometry{TileWidth: tt.tw, TileHeight: tt.th}

			grid, err := ComputeTileGrid(img, geom, TilerOptions{})
			if err != nil {
				t.Fatalf("ComputeTileGrid failed: %v", err)
			}

			if grid.Rows() != tt.wantRows {
				t.Errorf("rows: got %d, want %d", grid.Rows(), tt.wantRows)
			}
			if grid.Columns() != tt.wantCo {
				t.Errorf("columns: got %d, want %d", grid.Columns(), tt.wantCo)
			}
			for r, row := range grid {
				if len(row) != tt.wantCo {
					t.Errorf("row %d: got %d columns, want %d", r, len(row), tt.wantCo)
				}
			}

			rows, cols := geom.GridSize(tt.width, tt.height)
			if rows != tt.wantRows || cols != tt.wantCo {
				t.Errorf("GridSize: got %dx%d, want %dx%d", rows, cols, tt.wantRows, tt.wantCo)
			}
		})
	}
}

func TestComputeTileGrid_UniformColor(t *testing.T) {
	img := createSolidImage(32, 32, color.RGBA{255, 128, 64, 255})

	grid, err := ComputeTileGrid(img, Geometry{TileWidth: 16, TileHeight: 16}, TilerOptions{})
	if err != nil {
		t.Fatalf("ComputeTileGrid failed: %v", err)
	}

	for _, row := range grid {
		for _, tile := range row {
			if tile.Color != (mimg.RGBColor{R: 255, G: 128, B: 64}) {
				t.Errorf("tile (%d,%d) color: got %v, want (255,128,64)", tile.Row, tile.Col, tile.Color)
			}
			if tile.Path != "/color/ff8040" {
				t.Errorf("tile (%d,%d) path: got %s, want /color/ff8040", tile.Row, tile.Col, tile.Path)
			}
		}
	}
}

// Known behavior: with the default options a tile with any zero channel is
// reported as white, reproducing the legacy encoder.
func TestComputeTileGrid_ZeroChannelReportedAsWhite(t *testing.T) {
	img := createSolidImage(8, 8, color.RGBA{255, 0, 0, 255})

	grid, err := ComputeTileGrid(img, Geometry{TileWidth: 8, TileHeight: 8}, TilerOptions{})
	if err != nil {
		t.Fatalf("ComputeTileGrid failed: %v", err)
	}

	tile := grid[0][0]
	if tile.Color != (mimg.RGBColor{R: 255}) {
		t.Errorf("average: got %v, want (255,0,0)", tile.Color)
	}
	if tile.Hex != "#FFFFFF" {
		t.Errorf("hex: got %s, want #FFFFFF", tile.Hex)
	}
	if tile.Path != "/color/FFFFFF" {
		t.Errorf("path: got %s, want /color/FFFFFF", tile.Path)
	}
}

func TestComputeTileGrid_ExactZeroChannels(t *testing.T) {
	tests := []struct {
		name     string
		color    color.RGBA
		wantPath string
	}{
		{"pure red", color.RGBA{255, 0, 0, 255}, "/color/ff0000"},
		{"black", color.RGBA{0, 0, 0, 255}, "/color/000000"},
		{"dark", color.RGBA{1, 0, 2, 255}, "/color/010002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := createSolidImage(4, 4, tt.color)
			grid, err := ComputeTileGrid(img, Geometry{TileWidth: 4, TileHeight: 4}, TilerOptions{ExactZeroChannels: true})
			if err != nil {
				t.Fatalf("ComputeTileGrid failed: %v", err)
			}
			if got := grid[0][0].Path; got != tt.wantPath {
				t.Errorf("path: got %s, want %s", got, tt.wantPath)
			}
		})
	}
}

func TestComputeTileGrid_RowMajorPaths(t *testing.T) {
	geom := Geometry{TileWidth: 4, TileHeight: 3}
	img := createTiledImage(2, 4, geom)

	grid, err := ComputeTileGrid(img, geom, TilerOptions{})
	if err != nil {
		t.Fatalf("ComputeTileGrid failed: %v", err)
	}

	paths := grid.Paths()
	if len(paths) != 2 {
		t.Fatalf("rows: got %d, want 2", len(paths))
	}

	seen := make(map[string]bool)
	for r, row := range paths {
		if len(row) != 4 {
			t.Fatalf("row %d: got %d columns, want 4", r, len(row))
		}
		for c, path := range row {
			want := fmt.Sprintf("/color/%02x%02x%02x", tileColor(r, c).R, tileColor(r, c).G, tileColor(r, c).B)
			if path != want {
				t.Errorf("(%d,%d): got %s, want %s", r, c, path, want)
			}
			if seen[path] {
				t.Errorf("duplicate path %s", path)
			}
			seen[path] = true
		}
	}
}

func TestComputeTileGrid_InvalidGeometry(t *testing.T) {
	img := createSolidImage(10, 10, color.RGBA{1, 1, 1, 255})

	tests := []struct {
		name string
		geom Geometry
	}{
		{"zero width", Geometry{TileWidth: 0, TileHeight: 4}},
		{"zero height", Geometry{TileWidth: 4, TileHeight: 0}},
		{"negative", Geometry{TileWidth: -1, TileHeight: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeTileGrid(img, tt.geom, TilerOptions{})
			if !errors.Is(err, ErrInvalidGeometry) {
				t.Errorf("got %v, want ErrInvalidGeometry", err)
			}
		})
	}
}

func TestComputeTileGrid_NilImage(t *testing.T) {
	if _, err := ComputeTileGrid(nil, DefaultGeometry(), TilerOptions{}); err == nil {
		t.Error("ComputeTileGrid should fail for nil image")
	}
}

func TestComputeTileGrid_OffsetBounds(t *testing.T) {
	// A sub-image whose bounds do not start at the origin.
	base := createTiledImage(2, 2, Geometry{TileWidth: 4, TileHeight: 4})
	sub := base.SubImage(image.Rect(4, 4, 8, 8))

	grid, err := ComputeTileGrid(sub, Geometry{TileWidth: 4, TileHeight: 4}, TilerOptions{})
	if err != nil {
		t.Fatalf("ComputeTileGrid failed: %v", err)
	}
	want := tileColor(1, 1)
	if got := grid[0][0].Color; got != (mimg.RGBColor{R: want.R, G: want.G, B: want.B}) {
		t.Errorf("color: got %v, want %v", got, want)
	}
}

func TestComputeTileGrid_DominantMode(t *testing.T) {
	img := createSolidImage(16, 16, color.RGBA{200, 100, 50, 255})

	grid, err := ComputeTileGrid(img, Geometry{TileWidth: 16, TileHeight: 16}, TilerOptions{Mode: ColorDominant})
	if err != nil {
		t.Fatalf("ComputeTileGrid failed: %v", err)
	}

	got := grid[0][0].Color
	near := func(a, b uint8) bool { return int(a)-int(b) <= 2 && int(b)-int(a) <= 2 }
	if !near(got.R, 200) || !near(got.G, 100) || !near(got.B, 50) {
		t.Errorf("dominant color: got %v, want about (200,100,50)", got)
	}
}

func TestAverageRGB_FloorsAfterSumming(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{1, 3, 255, 255})
	img.SetNRGBA(1, 0, color.NRGBA{2, 3, 254, 255})
	img.SetNRGBA(0, 1, color.NRGBA{2, 3, 254, 255})
	img.SetNRGBA(1, 1, color.NRGBA{2, 4, 254, 0})

	// Sums 7, 13, 1017 over 4 pixels; flooring per pixel would give 0, 0, 252.
	got := AverageRGB(img, img.Bounds())
	if got != (mimg.RGBColor{R: 1, G: 3, B: 254}) {
		t.Errorf("got %v, want (1,3,254)", got)
	}
}

func TestAverageRGB_IgnoresAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{100, 100, 100, 255})
	img.SetNRGBA(1, 0, color.NRGBA{100, 100, 100, 0})

	if got := AverageRGB(img, img.Bounds()); got != (mimg.RGBColor{R: 100, G: 100, B: 100}) {
		t.Errorf("got %v, want (100,100,100)", got)
	}
}

func TestAverageRGB_OrderInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const n = 64
	colors := make([]color.NRGBA, n)
	for i := range colors {
		colors[i] = color.NRGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255}
	}

	fill := func(order []int) *image.NRGBA {
		img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
		for i, idx := range order {
			img.SetNRGBA(i%8, i/8, colors[idx])
		}
		return img
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	want := AverageRGB(fill(order), image.Rect(0, 0, 8, 8))

	for trial := 0; trial < 5; trial++ {
		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
		if got := AverageRGB(fill(order), image.Rect(0, 0, 8, 8)); got != want {
			t.Fatalf("trial %d: got %v, want %v", trial, got, want)
		}
	}
}

func TestAverageRGB_NonNRGBASource(t *testing.T) {
	img := createSolidImage(6, 6, color.RGBA{9, 18, 27, 255})
	sub := img.SubImage(image.Rect(2, 2, 5, 5))

	if got := AverageRGB(sub, sub.Bounds()); got != (mimg.RGBColor{R: 9, G: 18, B: 27}) {
		t.Errorf("got %v, want (9,18,27)", got)
	}
}

func TestAverageRGB_EmptyRect(t *testing.T) {
	img := createSolidImage(4, 4, color.RGBA{9, 9, 9, 255})
	if got := AverageRGB(img, image.Rect(10, 10, 12, 12)); got != (mimg.RGBColor{}) {
		t.Errorf("got %v, want zero color", got)
	}
}

func TestColorPath(t *testing.T) {
	if got := ColorPath("#ff8040"); got != "/color/ff8040" {
		t.Errorf("got %s, want /color/ff8040", got)
	}

	c, err := ParseColorPath("/color/FF8040")
	if err != nil {
		t.Fatalf("ParseColorPath failed: %v", err)
	}
	if c != (color.RGBA{255, 128, 64, 255}) {
		t.Errorf("got %v, want (255,128,64)", c)
	}

	for _, bad := range []string{"", "/color/", "/colour/ff8040", "/color/ff80", "/color/ff8040aa", "/color/zzzzzz"} {
		if _, err := ParseColorPath(bad); err == nil {
			t.Errorf("ParseColorPath(%q) should fail", bad)
		}
	}
}

func TestParseColorMode(t *testing.T) {
	tests := []struct {
		input   string
		want    ColorMode
		wantErr bool
	}{
		{"", ColorAverage, false},
		{"average", ColorAverage, false},
		{"Dominant", ColorDominant, false},
		{"median", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseColorMode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err: got %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}
