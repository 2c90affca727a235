package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the source image file",
	}
}

func imageDataProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Source image as a data URL (data:image/png;base64,...). Used when path is empty.",
	}
}

// tileProperties are the geometry arguments shared by the mosaic tools.
func tileProperties(props map[string]interface{}) map[string]interface{} {
	props["tile_width"] = map[string]interface{}{
		"type":        "integer",
		"description": "Tile width in pixels. Defaults to MOSAIC_TILE_WIDTH (16).",
		"minimum":     1,
	}
	props["tile_height"] = map[string]interface{}{
		"type":        "integer",
		"description": "Tile height in pixels. Defaults to MOSAIC_TILE_HEIGHT (16).",
		"minimum":     1,
	}
	return props
}

// colorProperties are the tile color arguments shared by mosaic_tile_grid and mosaic_build.
func colorProperties(props map[string]interface{}) map[string]interface{} {
	props["color_mode"] = map[string]interface{}{
		"type":        "string",
		"enum":        []string{"average", "dominant"},
		"description": "How each tile's color is computed. Default average (floored per-channel mean).",
		"default":     "average",
	}
	props["exact_zero_channels"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Encode colors with a zero channel exactly. By default any such color is reported as FFFFFF.",
		"default":     false,
	}
	return props
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Source image information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions, format and MIME type. The image is cached for subsequent mosaic operations.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},

		// Mosaic operations
		{
			Name:        "mosaic_tile_grid",
			Description: "Split an image into whole tiles and return each tile's color as a /color/RRGGBB resource path, row by row. Partial tiles at the right and bottom edges are dropped.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": colorProperties(tileProperties(map[string]interface{}{
					"path":       pathProperty(),
					"image_data": imageDataProperty(),
				})),
			},
		},
		{
			Name:        "mosaic_grid_preview",
			Description: "Draw the tile grid a mosaic build would use over the source image and return it as base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": tileProperties(map[string]interface{}{
					"path":       pathProperty(),
					"image_data": imageDataProperty(),
					"show_coordinates": map[string]interface{}{
						"type":        "boolean",
						"description": "Label each tile with its row,col index",
						"default":     false,
					},
					"grid_color": map[string]interface{}{
						"type":        "string",
						"description": "Grid line color in hex (e.g. #FF000080). Default semi-transparent red.",
						"default":     "#FF000080",
					},
				}),
			},
		},
		{
			Name:        "mosaic_build",
			Description: "Build a photomosaic: compute the tile grid, fetch one tile image per color from the tile service and composite them row by row onto a canvas the size of the source. Returns build statistics and the mosaic as base64 PNG unless it is written to output_path or output_uri.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": colorProperties(tileProperties(map[string]interface{}{
					"path":       pathProperty(),
					"image_data": imageDataProperty(),
					"service_url": map[string]interface{}{
						"type":        "string",
						"description": "Tile service base URL serving GET /color/RRGGBB. Defaults to MOSAIC_TILE_SERVICE_URL; when both are empty, solid tiles are rendered locally.",
					},
					"legacy_cursor": map[string]interface{}{
						"type":        "boolean",
						"description": "Place rows at a shared cursor in completion order instead of at their row index.",
						"default":     false,
					},
					"output_path": map[string]interface{}{
						"type":        "string",
						"description": "Write the mosaic to this file. The format follows the extension (.png, .jpg, .gif, .bmp, .tif).",
					},
					"output_uri": map[string]interface{}{
						"type":        "string",
						"description": "Upload the mosaic PNG to s3://bucket/key.",
					},
					"include_image": map[string]interface{}{
						"type":        "boolean",
						"description": "Return base64 PNG even when the mosaic is written elsewhere.",
						"default":     false,
					},
				})),
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
