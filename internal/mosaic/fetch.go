package mosaic

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/singleflight"
)

// maxTileBytes caps the size of a tile response body.
const maxTileBytes = 8 << 20

// Resource is the outcome of resolving one resource path. Exactly one of
// Image or Err is set.
type Resource struct {
	Path  string
	Image image.Image
	Err   error
}

// OK reports whether the resource resolved to an image.
func (r Resource) OK() bool {
	return r.Err == nil && r.Image != nil
}

// Fetcher resolves a resource path to a tile image.
//
// Fetch never fails the caller: failures are reported in Resource.Err.
type Fetcher interface {
	Fetch(ctx context.Context, path string) Resource
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, path string) Resource

// Fetch calls f(ctx, path).
func (f FetcherFunc) Fetch(ctx context.Context, path string) Resource {
	return f(ctx, path)
}

// failed builds a failure-shaped Resource.
func failed(path string, err error) Resource {
	return Resource{Path: path, Err: err}
}

// HTTPFetcher fetches tiles from a color tile service over HTTP.
type HTTPFetcher struct {
	// BaseURL is prepended to each resource path, e.g. "http://localhost:8765".
	BaseURL string

	Client *http.Client
}

// NewHTTPFetcher returns an HTTPFetcher with a client using the given timeout.
func NewHTTPFetcher(baseURL string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

// Fetch issues GET BaseURL+path and decodes the body as an image. Transport
// errors, non-2xx statuses and undecodable bodies yield a failed Resource.
func (f *HTTPFetcher) Fetch(ctx context.Context, path string) Resource {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	url := strings.TrimRight(f.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return failed(path, fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Accept", "image/*")

	resp, err := client.Do(req)
	if err != nil {
		return failed(path, fmt.Errorf("failed to fetch tile: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failed(path, fmt.Errorf("failed to fetch tile %s: status %d", path, resp.StatusCode))
	}

	img, err := imaging.Decode(io.LimitReader(resp.Body, maxTileBytes))
	if err != nil {
		return failed(path, fmt.Errorf("failed to decode tile %s: %w", path, err))
	}
	return Resource{Path: path, Image: img}
}

// SolidFetcher renders tiles locally as solid color images parsed from the
// resource path, without any network access.
type SolidFetcher struct {
	Geometry Geometry
}

// Fetch parses "/color/rrggbb" and returns a tile filled with that color.
func (f SolidFetcher) Fetch(ctx context.Context, path string) Resource {
	if err := ctx.Err(); err != nil {
		return failed(path, err)
	}
	c, err := ParseColorPath(path)
	if err != nil {
		return failed(path, err)
	}
	geom := f.Geometry
	if geom.Validate() != nil {
		geom = DefaultGeometry()
	}
	return Resource{Path: path, Image: imaging.New(geom.TileWidth, geom.TileHeight, c)}
}

// CachingFetcher memoizes successful resolutions of another Fetcher and
// collapses concurrent requests for the same path into one.
//
// Failed resolutions are not cached. CachingFetcher is safe for concurrent use.
type CachingFetcher struct {
	next  Fetcher
	group singleflight.Group

	mu    sync.RWMutex
	tiles map[string]Resource
}

// NewCachingFetcher wraps next with an in-memory cache.
func NewCachingFetcher(next Fetcher) *CachingFetcher {
	return &CachingFetcher{
		next:  next,
		tiles: make(map[string]Resource),
	}
}

// Fetch returns the cached resource for path or resolves it through the
// wrapped Fetcher.
//
// The shared resolution is detached from the cancellation of whichever
// caller started it; each caller stops waiting when its own ctx is done and
// gets a failed Resource carrying ctx.Err().
func (f *CachingFetcher) Fetch(ctx context.Context, path string) Resource {
	f.mu.RLock()
	if res, ok := f.tiles[path]; ok {
		f.mu.RUnlock()
		return res
	}
	f.mu.RUnlock()

	flight := context.WithoutCancel(ctx)
	ch := f.group.DoChan(path, func() (interface{}, error) {
		res := f.next.Fetch(flight, path)
		if res.OK() {
			f.mu.Lock()
			f.tiles[path] = res
			f.mu.Unlock()
		}
		return res, nil
	})

	select {
	case r := <-ch:
		return r.Val.(Resource)
	case <-ctx.Done():
		return failed(path, ctx.Err())
	}
}

// Len returns the number of cached tiles.
func (f *CachingFetcher) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.tiles)
}

// Clear drops every cached tile.
func (f *CachingFetcher) Clear() {
	f.mu.Lock()
	f.tiles = make(map[string]Resource)
	f.mu.Unlock()
}
