// Package server implements the MCP (Model Context Protocol) server for the
// image mosaic tools.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Source image information:
//   - image_load: Load image and get metadata
//   - image_dimensions: Get width and height
//
// Mosaic operations:
//   - mosaic_tile_grid: Per-tile colors as /color/RRGGBB resource paths
//   - mosaic_grid_preview: Source image with the tile grid drawn on it
//   - mosaic_build: Fetch and composite tiles into a finished mosaic
//
// # Tile Sources
//
// mosaic_build resolves tile paths against a tile service (service_url or
// MOSAIC_TILE_SERVICE_URL). Remote fetchers are kept for the lifetime of the
// server so each distinct color is downloaded once. Without a service URL,
// solid tiles are rendered in-process.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// A tile that fails to load does not fail the build; it is counted in the
// returned stats.failed and its cell is left unpainted.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv := server.New(cfg)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
