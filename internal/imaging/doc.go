// Package imaging provides the image input boundary and color primitives for
// the mosaic server.
//
// This package loads source images from disk or from base64 data URLs,
// validates that the supplied input really is an image, and implements the
// color representations shared by the tiler and the tile service. All
// operations work with standard Go image.Image types and use a coordinate
// system where (0,0) is at the top-left corner, X increases rightward, and Y
// increases downward.
//
// # Supported Formats
//
// PNG, JPEG and GIF decoders come from the standard library; BMP and WebP
// decoders are registered from golang.org/x/image.
//
// # Input Validation
//
// ValidateImageFile and DecodeDataURL reject input that is missing or whose
// MIME type does not begin with "image". The returned errors wrap ErrNoFile
// or ErrNotImage so callers can branch with errors.Is.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Individual image operations
// are stateless and can be called concurrently on different images.
//
// # Color Representation
//
// Tile colors are encoded as 7-character lowercase hex strings "#rrggbb".
// HexColor can reproduce the legacy encoder, which reports any color with a
// zero channel as "#FFFFFF".
package imaging
