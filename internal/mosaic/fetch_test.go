package mosaic

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// newTileServer serves solid 2x2 PNG tiles for /color/ paths, 404 for
// /color/missing and a non-image body for /color/garbage.
func newTileServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		switch r.URL.Path {
		case "/color/missing":
			http.NotFound(w, r)
			return
		case "/color/garbage":
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("definitely not a png"))
			return
		}
		c, err := ParseColorPath(r.URL.Path)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		png.Encode(w, createSolidImage(2, 2, c))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	srv := newTileServer(t, nil)
	f := NewHTTPFetcher(srv.URL+"/", 5*time.Second)

	res := f.Fetch(context.Background(), "/color/ff8040")
	if !res.OK() {
		t.Fatalf("Fetch failed: %v", res.Err)
	}
	if res.Path != "/color/ff8040" {
		t.Errorf("Path: got %s, want /color/ff8040", res.Path)
	}
	r, g, b, _ := res.Image.At(0, 0).RGBA()
	if uint8(r>>8) != 255 || uint8(g>>8) != 128 || uint8(b>>8) != 64 {
		t.Errorf("pixel: got (%d,%d,%d), want (255,128,64)", r>>8, g>>8, b>>8)
	}
}

func TestHTTPFetcher_FailuresResolve(t *testing.T) {
	srv := newTileServer(t, nil)
	f := NewHTTPFetcher(srv.URL, 5*time.Second)

	tests := []struct {
		name string
		path string
	}{
		{"not found", "/color/missing"},
		{"bad request", "/color/zz"},
		{"undecodable body", "/color/garbage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.Fetch(context.Background(), tt.path)
			if res.OK() {
				t.Fatal("Fetch should report failure")
			}
			if res.Err == nil || res.Image != nil {
				t.Errorf("failed resource should carry only Err: %+v", res)
			}
			if res.Path != tt.path {
				t.Errorf("Path: got %s, want %s", res.Path, tt.path)
			}
		})
	}
}

func TestHTTPFetcher_Unreachable(t *testing.T) {
	f := NewHTTPFetcher("http://127.0.0.1:1", time.Second)
	if res := f.Fetch(context.Background(), "/color/010101"); res.OK() {
		t.Error("Fetch against an unreachable service should fail")
	}
}

func TestSolidFetcher_Fetch(t *testing.T) {
	f := SolidFetcher{Geometry: Geometry{TileWidth: 3, TileHeight: 5}}

	res := f.Fetch(context.Background(), "/color/0a0b0c")
	if !res.OK() {
		t.Fatalf("Fetch failed: %v", res.Err)
	}
	if b := res.Image.Bounds(); b.Dx() != 3 || b.Dy() != 5 {
		t.Errorf("size: got %dx%d, want 3x5", b.Dx(), b.Dy())
	}
	if got := color.NRGBAModel.Convert(res.Image.At(1, 1)).(color.NRGBA); got != (color.NRGBA{10, 11, 12, 255}) {
		t.Errorf("pixel: got %v, want (10,11,12)", got)
	}

	if res := f.Fetch(context.Background(), "/nope"); res.OK() {
		t.Error("Fetch should fail for a malformed path")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if res := f.Fetch(ctx, "/color/0a0b0c"); res.OK() {
		t.Error("Fetch should fail for a cancelled context")
	}
}

func TestCachingFetcher_Memoizes(t *testing.T) {
	var hits atomic.Int32
	srv := newTileServer(t, &hits)
	f := NewCachingFetcher(NewHTTPFetcher(srv.URL, 5*time.Second))

	for i := 0; i < 3; i++ {
		if res := f.Fetch(context.Background(), "/color/111111"); !res.OK() {
			t.Fatalf("Fetch failed: %v", res.Err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("upstream hits: got %d, want 1", got)
	}
	if f.Len() != 1 {
		t.Errorf("Len: got %d, want 1", f.Len())
	}

	f.Clear()
	if f.Len() != 0 {
		t.Errorf("Len after Clear: got %d, want 0", f.Len())
	}
}

func TestCachingFetcher_DoesNotCacheFailures(t *testing.T) {
	var hits atomic.Int32
	srv := newTileServer(t, &hits)
	f := NewCachingFetcher(NewHTTPFetcher(srv.URL, 5*time.Second))

	f.Fetch(context.Background(), "/color/missing")
	f.Fetch(context.Background(), "/color/missing")

	if got := hits.Load(); got != 2 {
		t.Errorf("upstream hits: got %d, want 2", got)
	}
	if f.Len() != 0 {
		t.Errorf("Len: got %d, want 0", f.Len())
	}
}

func TestCachingFetcher_CollapsesConcurrent(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	next := FetcherFunc(func(ctx context.Context, path string) Resource {
		calls.Add(1)
		<-release
		return Resource{Path: path, Image: image.NewRGBA(image.Rect(0, 0, 1, 1))}
	})
	f := NewCachingFetcher(next)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.Fetch(context.Background(), "/color/222222")
		}()
	}

	// Let the goroutines pile up on the in-flight call before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("upstream calls: got %d, want 1", got)
	}
	if f.Len() != 1 {
		t.Errorf("Len: got %d, want 1", f.Len())
	}
}

func TestCachingFetcher_CancelledCallerDoesNotFailOthers(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var startOnce sync.Once
	next := FetcherFunc(func(ctx context.Context, path string) Resource {
		startOnce.Do(func() { close(started) })
		select {
		case <-release:
			return Resource{Path: path, Image: image.NewRGBA(image.Rect(0, 0, 1, 1))}
		case <-ctx.Done():
			return Resource{Path: path, Err: ctx.Err()}
		}
	})
	f := NewCachingFetcher(next)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	first := make(chan Resource, 1)
	go func() { first <- f.Fetch(firstCtx, "/color/333333") }()
	<-started

	second := make(chan Resource, 1)
	go func() { second <- f.Fetch(context.Background(), "/color/333333") }()

	// Let the second caller join the in-flight call.
	time.Sleep(20 * time.Millisecond)
	cancelFirst()

	res := <-first
	if res.OK() || res.Err != context.Canceled {
		t.Errorf("cancelled caller: got %+v, want context.Canceled", res)
	}

	close(release)
	if res := <-second; !res.OK() {
		t.Errorf("live caller should resolve, got %v", res.Err)
	}
	if f.Len() != 1 {
		t.Errorf("Len: got %d, want 1", f.Len())
	}
}
