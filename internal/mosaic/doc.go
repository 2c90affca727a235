// Package mosaic turns a source image into a mosaic of color tiles.
//
// A build runs in two stages:
//
//  1. The tiler partitions the source image into whole tiles of a fixed
//     Geometry, computes each tile's floored average color and derives a
//     resource path "/color/rrggbb" from it. A partial strip at the right or
//     bottom edge is dropped, never padded.
//
//  2. The Session (row loader and compositor) queues one row of paths at a
//     time, resolves every path to a tile image through a Fetcher and draws
//     each row left-to-right onto a Canvas once all of that row's tiles have
//     resolved.
//
// # Resolution
//
// A Fetcher never fails a row. A tile that cannot be fetched or decoded comes
// back as a Resource carrying Err, still occupies its grid slot and is still
// handed to the canvas.
//
// # Row Placement
//
// Rows resolve concurrently and may finish in any order. With CursorIndexed
// (the default) a row is always drawn at y = row index * tile height. With
// CursorShared the legacy behavior is kept: a single cursor advances by one
// tile height per drawn row, so placement follows completion order and a
// slow row lands below rows that finished before it.
//
// # Thread Safety
//
// A Session serializes row draws; tiles of one row are drawn sequentially and
// rows never interleave. Running two builds against the same canvas is not
// supported.
package mosaic
