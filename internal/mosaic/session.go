package mosaic

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the number of in-flight tile resolutions.
const DefaultConcurrency = 8

// CursorMode selects where a resolved row is drawn.
type CursorMode int

const (
	// CursorIndexed draws row i at y = i * TileHeight regardless of the
	// order in which rows finish resolving.
	CursorIndexed CursorMode = iota

	// CursorShared keeps the legacy single draw cursor: each drawn row is
	// placed one tile height below the previously drawn row, so placement
	// follows completion order.
	CursorShared
)

// String returns the mode name.
func (m CursorMode) String() string {
	switch m {
	case CursorIndexed:
		return "indexed"
	case CursorShared:
		return "shared"
	default:
		return fmt.Sprintf("CursorMode(%d)", int(m))
	}
}

// Options configures a Session.
type Options struct {
	Geometry Geometry
	Cursor   CursorMode

	// Concurrency bounds in-flight resolutions. Zero means DefaultConcurrency.
	Concurrency int

	// Tiler is used by Build to compute the grid.
	Tiler TilerOptions

	// Debug enables per-row log output.
	Debug bool
}

// Stats summarizes a finished build.
type Stats struct {
	Rows    int `json:"rows"`
	Columns int `json:"columns"`
	Tiles   int `json:"tiles"`
	Failed  int `json:"failed"`
}

// PendingRow is one queued row of resource paths and its resolution state.
type PendingRow struct {
	index   int
	paths   []string
	results []Resource

	remaining atomic.Int32
	ready     chan struct{}
	done      chan struct{}

	// mu guards results against resolutions that land after the row was
	// abandoned.
	mu        sync.Mutex
	abandoned bool

	// guarded by Session.mu
	started bool
	claimed bool
	origin  image.Point
	err     error
}

func newPendingRow(index int, paths []string) *PendingRow {
	row := &PendingRow{
		index:   index,
		paths:   paths,
		results: make([]Resource, len(paths)),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
	row.remaining.Store(int32(len(paths)))
	if len(paths) == 0 {
		close(row.ready)
	}
	return row
}

// resolve stores the outcome for column col and marks the row ready once
// every column has settled.
func (r *PendingRow) resolve(col int, res Resource) {
	r.mu.Lock()
	if !r.abandoned {
		r.results[col] = res
	}
	r.mu.Unlock()
	if r.remaining.Add(-1) == 0 {
		close(r.ready)
	}
}

// abandon freezes results. Resolutions still in flight are discarded.
func (r *PendingRow) abandon() {
	r.mu.Lock()
	r.abandoned = true
	r.mu.Unlock()
}

// Index returns the row's logical (enqueue) index.
func (r *PendingRow) Index() int {
	return r.index
}

// Paths returns a copy of the row's resource paths.
func (r *PendingRow) Paths() []string {
	return append([]string(nil), r.paths...)
}

// Len returns the number of tiles in the row.
func (r *PendingRow) Len() int {
	return len(r.paths)
}

// Done returns a channel that is closed after the row has been drawn or has
// given up waiting.
func (r *PendingRow) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the row has been drawn or ctx is done.
func (r *PendingRow) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resources returns the resolved resources in column order. After Done is
// closed the result no longer changes; for a row that gave up waiting,
// columns that had not settled are zero Resources.
func (r *PendingRow) Resources() []Resource {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Resource(nil), r.results...)
}

// Origin returns the canvas point where the row's first tile was drawn. It
// must only be called after Done is closed.
func (r *PendingRow) Origin() image.Point {
	return r.origin
}

// Session is the state of one mosaic build: the output canvas, the tile
// fetcher, the queued rows and the draw cursor.
type Session struct {
	canvas  Canvas
	fetcher Fetcher
	opts    Options

	mu      sync.Mutex
	rows    []*PendingRow
	max     int
	cursorY int
	stats   Stats
}

// NewSession creates a Session drawing onto canvas with tiles from fetcher.
//
// # Errors
//
//   - Returns error if canvas or fetcher is nil
//   - ErrInvalidGeometry if opts.Geometry has a non-positive dimension
func NewSession(canvas Canvas, fetcher Fetcher, opts Options) (*Session, error) {
	if canvas == nil {
		return nil, errors.New("nil canvas")
	}
	if fetcher == nil {
		return nil, errors.New("nil fetcher")
	}
	if err := opts.Geometry.Validate(); err != nil {
		return nil, err
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Session{
		canvas:  canvas,
		fetcher: fetcher,
		opts:    opts,
	}, nil
}

// Enqueue queues one row. A single path is queued as a one-element row.
// The running maximum row length is updated.
func (s *Session) Enqueue(paths ...string) *PendingRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := newPendingRow(len(s.rows), append([]string(nil), paths...))
	s.rows = append(s.rows, row)
	if len(paths) > s.max {
		s.max = len(paths)
	}
	return row
}

// MaxColumns returns the length of the longest queued row.
func (s *Session) MaxColumns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.max
}

// Rows returns the queued rows in enqueue order.
func (s *Session) Rows() []*PendingRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*PendingRow(nil), s.rows...)
}

// Preload starts resolving every queued row that has not been started yet.
//
// Resolutions are issued column by column across rows (column 0 of every
// row, then column 1, ...) up to the running maximum and run in the
// background, at most Options.Concurrency at a time. Preload does not wait
// for them.
func (s *Session) Preload(ctx context.Context) {
	s.mu.Lock()
	var batch []*PendingRow
	for _, row := range s.rows {
		if !row.started {
			row.started = true
			batch = append(batch, row)
		}
	}
	maxCols := s.max
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	go func() {
		var g errgroup.Group
		g.SetLimit(s.opts.Concurrency)
		for col := 0; col < maxCols; col++ {
			for _, row := range batch {
				if col >= len(row.paths) {
					continue
				}
				g.Go(func() error {
					row.resolve(col, s.fetcher.Fetch(ctx, row.paths[col]))
					return nil
				})
			}
		}
		_ = g.Wait()
	}()
}

// Draw resolves and draws every queued row that has not been drawn yet and
// returns once all of them are drawn. Rows not yet preloaded are preloaded
// first.
//
// Parameters:
//   - ctx: Bounds how long each row waits for its tiles. It is also handed
//     to the fetcher by Preload.
//
// Returns:
//   - error: nil when every claimed row was drawn, otherwise the error of the
//     first row that gave up.
//
// Each row is drawn as soon as all of its tiles have settled, left to right,
// without interleaving with other rows. A row that gives up waiting because
// ctx is done is logged and does not stop the others; Draw then returns the
// context error.
//
// # Errors
//
//   - Returns an error wrapping ctx.Err() for each row abandoned on
//     cancellation; its Wait reports the same error and its Resources stop
//     changing
//   - A tile that failed to load is not an error: it is drawn as a failed
//     Resource and counted in Stats.Failed
func (s *Session) Draw(ctx context.Context) error {
	s.Preload(ctx)

	s.mu.Lock()
	var batch []*PendingRow
	for _, row := range s.rows {
		if !row.claimed {
			row.claimed = true
			batch = append(batch, row)
		}
	}
	s.mu.Unlock()

	var g errgroup.Group
	for _, row := range batch {
		g.Go(func() error {
			select {
			case <-row.ready:
				s.drawRow(row)
				return nil
			case <-ctx.Done():
				err := fmt.Errorf("row %d: %w", row.index, ctx.Err())
				log.Printf("Error resolving row tiles: %v", err)
				row.abandon()
				s.mu.Lock()
				row.err = err
				s.mu.Unlock()
				close(row.done)
				return err
			}
		})
	}
	return g.Wait()
}

// drawRow draws one ready row at the position selected by the cursor mode.
func (s *Session) drawRow(row *PendingRow) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tw, th := s.opts.Geometry.TileWidth, s.opts.Geometry.TileHeight

	y := row.index * th
	if s.opts.Cursor == CursorShared {
		y = s.cursorY
	}

	x := 0
	failedTiles := 0
	var firstErr error
	results := row.Resources()
	for _, res := range results {
		s.canvas.DrawTile(res, image.Rect(x, y, x+tw, y+th))
		if !res.OK() {
			failedTiles++
			if firstErr == nil {
				firstErr = res.Err
			}
		}
		x += tw
	}
	s.cursorY += th

	row.origin = image.Pt(0, y)
	s.stats.Rows++
	s.stats.Tiles += len(results)
	s.stats.Failed += failedTiles
	if len(results) > s.stats.Columns {
		s.stats.Columns = len(results)
	}

	if failedTiles > 0 {
		log.Printf("row %d: %d of %d tiles failed to load: %v", row.index, failedTiles, len(results), firstErr)
	}
	if s.opts.Debug {
		log.Printf("row %d drawn at y=%d (%d tiles)", row.index, y, len(results))
	}

	close(row.done)
}

// Stats returns totals over the rows drawn so far.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Build runs the whole pipeline for img: compute the tile grid, queue each
// row, preload and draw. It returns the grid and the draw totals.
func (s *Session) Build(ctx context.Context, img image.Image) (Grid, Stats, error) {
	grid, err := ComputeTileGrid(img, s.opts.Geometry, s.opts.Tiler)
	if err != nil {
		return nil, Stats{}, err
	}

	for _, row := range grid {
		s.Enqueue(RowPaths(row)...)
	}
	s.Preload(ctx)

	if err := s.Draw(ctx); err != nil {
		return grid, s.Stats(), err
	}
	return grid, s.Stats(), nil
}

// Result is the output of BuildMosaic.
type Result struct {
	Canvas *RGBACanvas
	Grid   Grid
	Stats  Stats
}

// BuildMosaic sizes a new RGBACanvas to img and runs one build on it.
//
// Parameters:
//   - ctx: Cancels tile waits; see Session.Draw.
//   - img: The source image. The canvas has the same width and height.
//   - fetcher: Resolves each /color/rrggbb path to a tile image.
//   - opts: Geometry, cursor mode, concurrency and tiler options.
//
// Returns:
//   - *Result: The drawn canvas, the tile grid and draw totals.
//   - error: Non-nil if the inputs are invalid or the build was cancelled.
//
// # Errors
//
//   - Returns error if img or fetcher is nil
//   - ErrInvalidGeometry for non-positive tile dimensions
//   - Returns an error wrapping ctx.Err() if ctx ends before every row is drawn
func BuildMosaic(ctx context.Context, img image.Image, fetcher Fetcher, opts Options) (*Result, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	b := img.Bounds()
	canvas := NewRGBACanvas(b.Dx(), b.Dy())

	s, err := NewSession(canvas, fetcher, opts)
	if err != nil {
		return nil, err
	}

	grid, stats, err := s.Build(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("mosaic build failed: %w", err)
	}
	return &Result{Canvas: canvas, Grid: grid, Stats: stats}, nil
}
