package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/ironsheep/image-mosaic-mcp/internal/config"
	"github.com/ironsheep/image-mosaic-mcp/internal/imaging"
	"github.com/ironsheep/image-mosaic-mcp/internal/mosaic"
	"github.com/ironsheep/image-mosaic-mcp/internal/storage"
)

// maxRequestBytes bounds a single request line. Inline image_data payloads
// make requests much larger than typical JSON-RPC traffic.
const maxRequestBytes = 64 << 20

// objectPutter stores encoded mosaics. *storage.Uploader satisfies it.
type objectPutter interface {
	Put(ctx context.Context, loc storage.Location, data []byte, contentType string) error
}

// Server handles MCP protocol communication
type Server struct {
	cfg   config.Config
	cache *imaging.ImageCache

	mu       sync.Mutex
	fetchers map[string]*mosaic.CachingFetcher // keyed by tile service URL
	putter   objectPutter
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MCPNotification represents an outgoing notification (no ID)
type MCPNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// New creates a new MCP server instance using cfg for tool defaults.
func New(cfg config.Config) *Server {
	return &Server{
		cfg:      cfg,
		cache:    imaging.NewImageCache(),
		fetchers: make(map[string]*mosaic.CachingFetcher),
	}
}

// Run starts the MCP server, reading from stdin and writing to stdout
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve processes newline-delimited JSON-RPC requests from in until EOF or
// until ctx is cancelled, writing responses to out. Cancellation is observed
// even while a read from in is blocked; the reading goroutine is then left to
// end with in.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxRequestBytes)

	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	encoder := json.NewEncoder(out)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var line []byte
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("scanner error: %w", err)
					}
					return nil
				default:
					return ctx.Err()
				}
			}
			line = l
		}

		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			log.Printf("Failed to parse request: %v", err)
			continue
		}

		resp := s.handleRequest(ctx, &req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				log.Printf("Failed to encode response: %v", err)
			}
		}
	}
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "image-mosaic-mcp",
				"version": "0.1.0",
			},
		},
	}
}

// fetcherFor returns the tile fetcher for serviceURL. An empty URL renders
// tiles locally at the build geometry; remote fetchers are shared across
// calls so repeated colors hit the cache.
func (s *Server) fetcherFor(serviceURL string, geom mosaic.Geometry) mosaic.Fetcher {
	if serviceURL == "" {
		return mosaic.SolidFetcher{Geometry: geom}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fetchers[serviceURL]
	if !ok {
		f = mosaic.NewCachingFetcher(mosaic.NewHTTPFetcher(serviceURL, s.cfg.FetchTimeout))
		s.fetchers[serviceURL] = f
	}
	return f
}

// objectStore returns the storage sink, connecting on first use.
func (s *Server) objectStore(ctx context.Context) (objectPutter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putter != nil {
		return s.putter, nil
	}

	u, err := storage.NewUploader(ctx, storage.S3Config{
		Endpoint:  s.cfg.S3Endpoint,
		Region:    s.cfg.S3Region,
		AccessKey: s.cfg.S3AccessKey,
		SecretKey: s.cfg.S3SecretKey,
	})
	if err != nil {
		return nil, err
	}
	s.putter = u
	return u, nil
}
