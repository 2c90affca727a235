// Package tileservice serves solid color tile images at /color/RRGGBB.
//
// It is the local stand-in for the remote color tile service a mosaic
// build fetches from: every request for a 6-digit hex color returns a PNG of
// the configured tile size filled with that color.
package tileservice

import (
	"bytes"
	"fmt"
	"image/png"
	"log"
	"net/http"

	"github.com/disintegration/imaging"

	mimg "github.com/ironsheep/image-mosaic-mcp/internal/imaging"
)

// Handler returns an http.Handler serving tiles of tileWidth x tileHeight.
//
// Routes:
//   - GET /color/{hex}: PNG tile, 400 for a malformed color
//   - GET /healthz: plain "ok"
func Handler(tileWidth, tileHeight int) (http.Handler, error) {
	if tileWidth <= 0 || tileHeight <= 0 {
		return nil, fmt.Errorf("tile dimensions must be positive, got %dx%d", tileWidth, tileHeight)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /color/{hex}", func(w http.ResponseWriter, r *http.Request) {
		hex := r.PathValue("hex")
		if len(hex) != 6 {
			http.Error(w, fmt.Sprintf("invalid color %q: want 6 hex digits", hex), http.StatusBadRequest)
			return
		}
		c, err := mimg.ParseHexColor(hex)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, imaging.New(tileWidth, tileHeight, c)); err != nil {
			log.Printf("Failed to encode tile %s: %v", hex, err)
			http.Error(w, "failed to encode tile", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write(buf.Bytes())
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	return mux, nil
}
