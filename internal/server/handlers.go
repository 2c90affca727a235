package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log"

	dimaging "github.com/disintegration/imaging"

	"github.com/ironsheep/image-mosaic-mcp/internal/imaging"
	"github.com/ironsheep/image-mosaic-mcp/internal/mosaic"
	"github.com/ironsheep/image-mosaic-mcp/internal/storage"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "mosaic_build").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Source image information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)

	// Mosaic operations
	case "mosaic_tile_grid":
		return s.handleMosaicTileGrid(args)
	case "mosaic_grid_preview":
		return s.handleMosaicGridPreview(args)
	case "mosaic_build":
		return s.handleMosaicBuild(ctx, args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Source Image Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

// sourceArgs selects the source image: a file path, or an inline data URL.
type sourceArgs struct {
	Path      string `json:"path"`
	ImageData string `json:"image_data"`
}

func (s *Server) loadSource(a sourceArgs) (image.Image, error) {
	switch {
	case a.Path != "":
		return s.cache.Load(a.Path)
	case a.ImageData != "":
		return imaging.DecodeDataURL(a.ImageData)
	default:
		return nil, errors.New("either path or image_data is required")
	}
}

type geometryArgs struct {
	TileWidth  int `json:"tile_width"`
	TileHeight int `json:"tile_height"`
}

// geometry fills unset tile dimensions from the server configuration.
func (s *Server) geometry(a geometryArgs) mosaic.Geometry {
	g := mosaic.Geometry{TileWidth: a.TileWidth, TileHeight: a.TileHeight}
	if g.TileWidth == 0 {
		g.TileWidth = s.cfg.TileWidth
	}
	if g.TileHeight == 0 {
		g.TileHeight = s.cfg.TileHeight
	}
	return g
}

type colorArgs struct {
	ColorMode         string `json:"color_mode"`
	ExactZeroChannels bool   `json:"exact_zero_channels"`
}

func (a colorArgs) tilerOptions() (mosaic.TilerOptions, error) {
	mode, err := mosaic.ParseColorMode(a.ColorMode)
	if err != nil {
		return mosaic.TilerOptions{}, err
	}
	return mosaic.TilerOptions{Mode: mode, ExactZeroChannels: a.ExactZeroChannels}, nil
}

// === Mosaic Handlers ===

type mosaicTileGridArgs struct {
	sourceArgs
	geometryArgs
	colorArgs
}

// TileGridResult lists the tile resource paths of a source image.
type TileGridResult struct {
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	Rows       int        `json:"rows"`
	Columns    int        `json:"columns"`
	TileWidth  int        `json:"tile_width"`
	TileHeight int        `json:"tile_height"`
	ColorMode  string     `json:"color_mode"`
	Paths      [][]string `json:"paths"`
}

func (s *Server) handleMosaicTileGrid(args json.RawMessage) (interface{}, error) {
	var a mosaicTileGridArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	opts, err := a.tilerOptions()
	if err != nil {
		return nil, err
	}
	img, err := s.loadSource(a.sourceArgs)
	if err != nil {
		return nil, err
	}

	geom := s.geometry(a.geometryArgs)
	grid, err := mosaic.ComputeTileGrid(img, geom, opts)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	return &TileGridResult{
		Width:      b.Dx(),
		Height:     b.Dy(),
		Rows:       grid.Rows(),
		Columns:    grid.Columns(),
		TileWidth:  geom.TileWidth,
		TileHeight: geom.TileHeight,
		ColorMode:  string(opts.Mode),
		Paths:      grid.Paths(),
	}, nil
}

type mosaicGridPreviewArgs struct {
	sourceArgs
	geometryArgs
	ShowCoordinates bool   `json:"show_coordinates"`
	GridColor       string `json:"grid_color"`
}

func (s *Server) handleMosaicGridPreview(args json.RawMessage) (interface{}, error) {
	var a mosaicGridPreviewArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.GridColor == "" {
		a.GridColor = "#FF000080"
	}
	img, err := s.loadSource(a.sourceArgs)
	if err != nil {
		return nil, err
	}
	geom := s.geometry(a.geometryArgs)
	return imaging.TileGridOverlay(img, geom.TileWidth, geom.TileHeight, a.ShowCoordinates, a.GridColor)
}

type mosaicBuildArgs struct {
	sourceArgs
	geometryArgs
	colorArgs
	ServiceURL   string `json:"service_url"`
	LegacyCursor bool   `json:"legacy_cursor"`
	OutputPath   string `json:"output_path"`
	OutputURI    string `json:"output_uri"`
	IncludeImage bool   `json:"include_image"`
}

// MosaicBuildResult reports a finished build and where its output went.
type MosaicBuildResult struct {
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	TileWidth   int          `json:"tile_width"`
	TileHeight  int          `json:"tile_height"`
	ColorMode   string       `json:"color_mode"`
	Cursor      string       `json:"cursor"`
	TileSource  string       `json:"tile_source"`
	Stats       mosaic.Stats `json:"stats"`
	OutputPath  string       `json:"output_path,omitempty"`
	OutputURI   string       `json:"output_uri,omitempty"`
	ImageBase64 string       `json:"image_base64,omitempty"`
	MimeType    string       `json:"mime_type,omitempty"`
}

func (s *Server) handleMosaicBuild(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a mosaicBuildArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	tiler, err := a.tilerOptions()
	if err != nil {
		return nil, err
	}

	var loc storage.Location
	if a.OutputURI != "" {
		if loc, err = storage.ParseURI(a.OutputURI); err != nil {
			return nil, err
		}
	}

	img, err := s.loadSource(a.sourceArgs)
	if err != nil {
		return nil, err
	}

	geom := s.geometry(a.geometryArgs)
	cursor := mosaic.CursorIndexed
	if a.LegacyCursor {
		cursor = mosaic.CursorShared
	}

	serviceURL := a.ServiceURL
	if serviceURL == "" {
		serviceURL = s.cfg.TileServiceURL
	}
	tileSource := serviceURL
	if tileSource == "" {
		tileSource = "local"
	}

	result, err := mosaic.BuildMosaic(ctx, img, s.fetcherFor(serviceURL, geom), mosaic.Options{
		Geometry:    geom,
		Cursor:      cursor,
		Concurrency: s.cfg.Concurrency,
		Tiler:       tiler,
		Debug:       s.cfg.Debug,
	})
	if err != nil {
		return nil, err
	}
	if result.Stats.Failed > 0 {
		log.Printf("mosaic_build: %d of %d tiles failed to load from %s", result.Stats.Failed, result.Stats.Tiles, tileSource)
	}

	b := result.Canvas.Bounds()
	out := &MosaicBuildResult{
		Width:      b.Dx(),
		Height:     b.Dy(),
		TileWidth:  geom.TileWidth,
		TileHeight: geom.TileHeight,
		ColorMode:  string(tiler.Mode),
		Cursor:     cursor.String(),
		TileSource: tileSource,
		Stats:      result.Stats,
	}

	if a.OutputPath != "" {
		if err := dimaging.Save(result.Canvas.Image(), a.OutputPath); err != nil {
			return nil, fmt.Errorf("failed to write mosaic: %w", err)
		}
		out.OutputPath = a.OutputPath
	}

	var encoded []byte
	if a.OutputURI != "" || a.IncludeImage || a.OutputPath == "" {
		if encoded, err = result.Canvas.EncodePNG(); err != nil {
			return nil, err
		}
	}

	if a.OutputURI != "" {
		store, err := s.objectStore(ctx)
		if err != nil {
			return nil, err
		}
		if err := store.Put(ctx, loc, encoded, "image/png"); err != nil {
			return nil, err
		}
		out.OutputURI = loc.String()
	}

	if a.IncludeImage || (a.OutputPath == "" && a.OutputURI == "") {
		out.ImageBase64 = base64.StdEncoding.EncodeToString(encoded)
		out.MimeType = "image/png"
	}

	return out, nil
}
